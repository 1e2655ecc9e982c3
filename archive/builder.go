package archive

import (
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// DefaultConnectTimeout bounds how long a session waits for the backend.
const DefaultConnectTimeout = 10 * time.Second

const tracerName = "github.com/newthinker/lasr-archive/archive"

// Builder collects the configuration of a Store. URI, Backend and Datastore are
// required; only their presence is checked.
type Builder struct {
	uri       *string
	kind      *Kind
	datastore *string

	policy   ConnectionPolicy
	timeout  time.Duration
	logger   *zap.Logger
	recorder Recorder
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// URI sets the backend connection string.
func (b *Builder) URI(uri string) *Builder {
	b.uri = &uri
	return b
}

// Backend sets the backend kind.
func (b *Builder) Backend(kind Kind) *Builder {
	b.kind = &kind
	return b
}

// Datastore sets the logical database name.
func (b *Builder) Datastore(name string) *Builder {
	b.datastore = &name
	return b
}

// Policy sets the connection policy. Defaults to PolicyPerCall.
func (b *Builder) Policy(p ConnectionPolicy) *Builder {
	b.policy = p
	return b
}

// ConnectTimeout bounds connection establishment. Defaults to DefaultConnectTimeout.
func (b *Builder) ConnectTimeout(d time.Duration) *Builder {
	b.timeout = d
	return b
}

// Logger sets the logger used by the store and its adapter.
func (b *Builder) Logger(l *zap.Logger) *Builder {
	b.logger = l
	return b
}

// Recorder sets the operation metrics sink.
func (b *Builder) Recorder(r Recorder) *Builder {
	b.recorder = r
	return b
}

// Build validates presence of the required fields and creates the store.
func (b *Builder) Build() (*Store, error) {
	var missing []string
	if b.uri == nil {
		missing = append(missing, "uri")
	}
	if b.kind == nil {
		missing = append(missing, "backend")
	}
	if b.datastore == nil {
		missing = append(missing, "datastore")
	}
	if len(missing) > 0 {
		return nil, Errorf(ErrConfigMissing, "%s must be initialized", strings.Join(missing, ", "))
	}

	factory, err := lookup(*b.kind)
	if err != nil {
		return nil, err
	}

	policy := b.policy
	if policy == "" {
		policy = PolicyPerCall
	}
	timeout := b.timeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := b.recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	logger = logger.With(
		zap.String("backend", b.kind.String()),
		zap.String("datastore", *b.datastore),
	)

	backend := factory(BackendConfig{
		URI:            *b.uri,
		Datastore:      *b.datastore,
		ConnectTimeout: timeout,
		Logger:         logger,
	})

	return &Store{
		uri:       *b.uri,
		kind:      *b.kind,
		datastore: *b.datastore,
		policy:    policy,
		backend:   backend,
		logger:    logger,
		recorder:  recorder,
		tracer:    otel.Tracer(tracerName),
	}, nil
}
