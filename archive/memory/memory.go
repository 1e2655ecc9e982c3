// Package memory is an in-process archive backend. Stores built with the same
// memory://<name> URI share records for the life of the process.
package memory

import (
	"context"
	"net/url"
	"sync"

	"github.com/newthinker/lasr-archive/archive"
	"github.com/newthinker/lasr-archive/archive/docjson"
	"go.uber.org/zap"
)

func init() {
	archive.Register(archive.KindMemory, New)
}

var (
	spacesMu sync.Mutex
	spaces   = make(map[string]*space)
)

type entry struct {
	id   string
	body []byte
}

// space holds records keyed by datastore and collection.
type space struct {
	mu      sync.RWMutex
	records map[string][]entry
}

func getSpace(name string) *space {
	spacesMu.Lock()
	defer spacesMu.Unlock()

	sp, ok := spaces[name]
	if !ok {
		sp = &space{records: make(map[string][]entry)}
		spaces[name] = sp
	}
	return sp
}

// Reset drops every record held under name.
func Reset(name string) {
	spacesMu.Lock()
	defer spacesMu.Unlock()
	delete(spaces, name)
}

// Backend implements archive.Backend in memory.
type Backend struct {
	cfg    archive.BackendConfig
	logger *zap.Logger
}

// New creates a memory backend. It matches archive.Factory.
func New(cfg archive.BackendConfig) archive.Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{cfg: cfg, logger: logger}
}

func (b *Backend) Kind() archive.Kind { return archive.KindMemory }

// Connect resolves the named space from the URI.
func (b *Backend) Connect(ctx context.Context) (archive.Session, error) {
	name, err := parseURI(b.cfg.URI)
	if err != nil {
		return nil, err
	}
	return &session{space: getSpace(name), datastore: b.cfg.Datastore, logger: b.logger}, nil
}

func parseURI(raw string) (string, error) {
	if raw == "" {
		return "", archive.Errorf(archive.ErrURIInvalid, "empty URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", archive.InvalidURI(raw, err)
	}
	if u.Scheme != "memory" {
		return "", archive.Errorf(archive.ErrURIInvalid, "scheme must be memory, got %q", u.Scheme)
	}
	name := u.Host + u.Path
	if name == "" {
		name = u.Opaque
	}
	return name, nil
}

type session struct {
	space     *space
	datastore string
	logger    *zap.Logger
}

func (s *session) key(rt archive.RecordType) (string, error) {
	coll, err := rt.Collection()
	if err != nil {
		return "", err
	}
	return s.datastore + "/" + coll, nil
}

func (s *session) Insert(ctx context.Context, rt archive.RecordType, record any) (string, error) {
	key, err := s.key(rt)
	if err != nil {
		return "", err
	}
	body, err := docjson.Encode(record)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", archive.WrapError(archive.ErrInsertFailed, err)
	}

	id := docjson.NewID()

	s.space.mu.Lock()
	s.space.records[key] = append(s.space.records[key], entry{id: id, body: body})
	s.space.mu.Unlock()

	s.logger.Debug("inserted record", zap.String("collection", key), zap.String("id", id))
	return id, nil
}

func (s *session) Find(ctx context.Context, rt archive.RecordType, filter archive.Filter) (archive.Cursor, error) {
	key, err := s.key(rt)
	if err != nil {
		return nil, err
	}
	m, err := docjson.NewMatcher(filter)
	if err != nil {
		return nil, err
	}

	s.space.mu.RLock()
	defer s.space.mu.RUnlock()

	var docs [][]byte
	for _, e := range s.space.records[key] {
		if m.Match(e.body) {
			docs = append(docs, e.body)
		}
	}
	return docjson.NewCursor(docs), nil
}

func (s *session) Close(ctx context.Context) error { return nil }
