// Package archive is a persistence facade for opaque archival records. A Store
// writes records tagged with a RecordType to one backend selected at build time
// and reads them back into caller-chosen types.
//
// Backends live in sub-packages and register themselves on import:
//
//	import _ "github.com/newthinker/lasr-archive/archive/mongodb"
//
//	store, err := archive.NewBuilder().
//		URI("mongodb://localhost:27017").
//		Backend(archive.KindMongoDB).
//		Datastore("lasr_archive").
//		Build()
//	id, err := store.Create(ctx, archive.RecordAccount, doc)
//	docs, err := archive.FindAll[Account](ctx, store, archive.RecordAccount)
package archive

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const releaseTimeout = 5 * time.Second

// Recorder receives one observation per store operation.
type Recorder interface {
	RecordOperation(backend, operation, recordType, status string, duration float64)
	RecordReturned(backend, recordType string, count int)
}

type nopRecorder struct{}

func (nopRecorder) RecordOperation(string, string, string, string, float64) {}
func (nopRecorder) RecordReturned(string, string, int) {}

// Store is an archive datastore. Its configuration is fixed at build time and it
// is safe for concurrent use.
type Store struct {
	uri       string
	kind      Kind
	datastore string
	policy    ConnectionPolicy

	backend  Backend
	logger   *zap.Logger
	recorder Recorder
	tracer   trace.Tracer

	mu      sync.Mutex
	session Session // pooled policy only
	closed  bool
}

// Kind returns the configured backend kind.
func (s *Store) Kind() Kind { return s.kind }

// Datastore returns the logical database name.
func (s *Store) Datastore() string { return s.datastore }

// Policy returns the connection policy.
func (s *Store) Policy() ConnectionPolicy { return s.policy }

// Create persists a new record of type rt and returns the backend-issued identifier.
func (s *Store) Create(ctx context.Context, rt RecordType, record any) (string, error) {
	ctx, span := s.startSpan(ctx, "archive.Create", rt)
	defer span.End()

	start := time.Now()
	id, err := s.create(ctx, rt, record)
	s.observe(span, "create", rt, start, err)
	if err != nil {
		return "", fmt.Errorf("creating record: %w", err)
	}

	span.SetAttributes(attribute.String("archive.record_id", id))
	return id, nil
}

func (s *Store) create(ctx context.Context, rt RecordType, record any) (string, error) {
	sess, release, err := s.acquire(ctx)
	if err != nil {
		return "", err
	}
	defer release()

	return sess.Insert(ctx, rt, record)
}

// FindOption configures a find call.
type FindOption func(*findOptions)

type findOptions struct {
	filter Filter
}

// WithFilter restricts results to records whose top-level fields equal the given
// values. Without it every record of the type is returned.
func WithFilter(f Filter) FindOption {
	return func(o *findOptions) {
		o.filter = f
	}
}

// FindAll returns every record of type rt decoded into T. Ordering is backend
// defined. A record that fails to decode aborts the call and no records are
// returned; use FindAllLenient to keep the rest.
func FindAll[T any](ctx context.Context, s *Store, rt RecordType, opts ...FindOption) ([]T, error) {
	out, err := find[T](ctx, s, rt, opts, false)
	if err != nil {
		return nil, fmt.Errorf("retrieving records: %w", err)
	}
	return out, nil
}

// FindAllLenient is FindAll that skips records which fail to decode. It returns the
// decoded records together with a *DecodeErrors describing the skipped ones.
func FindAllLenient[T any](ctx context.Context, s *Store, rt RecordType, opts ...FindOption) ([]T, error) {
	out, err := find[T](ctx, s, rt, opts, true)
	if err != nil {
		return out, fmt.Errorf("retrieving records: %w", err)
	}
	return out, nil
}

func find[T any](ctx context.Context, s *Store, rt RecordType, opts []FindOption, lenient bool) (out []T, err error) {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}

	ctx, span := s.startSpan(ctx, "archive.FindAll", rt)
	defer span.End()

	start := time.Now()
	defer func() {
		s.observe(span, "find_all", rt, start, err)
		s.recorder.RecordReturned(s.kind.String(), rt.String(), len(out))
	}()

	sess, release, err := s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	cur, err := sess.Find(ctx, rt, o.filter)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := cur.Close(context.WithoutCancel(ctx)); cerr != nil {
			s.logger.Debug("closing cursor", zap.Error(cerr))
		}
	}()

	out = make([]T, 0)
	var failed []RecordError
	for i := 0; cur.Next(ctx); i++ {
		var v T
		if derr := cur.Decode(&v); derr != nil {
			if !lenient {
				return nil, Errorf(ErrDecodeFailed, "record %d: %w", i, derr)
			}
			failed = append(failed, RecordError{Index: i, Err: derr})
			continue
		}
		out = append(out, v)
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	if len(failed) > 0 {
		return out, &DecodeErrors{Records: failed}
	}
	return out, nil
}

// Close releases the pooled session, if any. Further operations fail with
// ErrStoreClosed.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.session == nil {
		return nil
	}
	err := s.session.Close(ctx)
	s.session = nil
	return err
}

// acquire returns a session and the function that releases it. Under the per-call
// policy every call opens and closes its own session.
func (s *Store) acquire(ctx context.Context) (Session, func(), error) {
	if s.policy == PolicyPooled {
		return s.pooled(ctx)
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil, ErrStoreClosed
	}

	sess, err := s.backend.Connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := sess.Close(rctx); err != nil {
			s.logger.Warn("closing backend session", zap.Error(err))
		}
	}
	return sess, release, nil
}

func (s *Store) pooled(ctx context.Context) (Session, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrStoreClosed
	}
	if s.session == nil {
		sess, err := s.backend.Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		s.session = sess
	}
	return s.session, func() {}, nil
}

func (s *Store) startSpan(ctx context.Context, name string, rt RecordType) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("archive.backend", s.kind.String()),
		attribute.String("archive.datastore", s.datastore),
		attribute.String("archive.record_type", rt.String()),
	))
}

func (s *Store) observe(span trace.Span, op string, rt RecordType, start time.Time, err error) {
	elapsed := time.Since(start)
	status := "ok"

	var partial *DecodeErrors
	switch {
	case errors.As(err, &partial):
		status = "partial"
		span.RecordError(err)
		s.logger.Warn("archive operation skipped records",
			zap.String("operation", op),
			zap.Stringer("record_type", rt),
			zap.Int("skipped", len(partial.Records)),
		)
	case err != nil:
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn("archive operation failed",
			zap.String("operation", op),
			zap.Stringer("record_type", rt),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
	default:
		s.logger.Debug("archive operation completed",
			zap.String("operation", op),
			zap.Stringer("record_type", rt),
			zap.Duration("elapsed", elapsed),
		)
	}

	s.recorder.RecordOperation(s.kind.String(), op, rt.String(), status, elapsed.Seconds())
}

// DescribeOption configures Describe.
type DescribeOption func(*describeOptions)

type describeOptions struct {
	reveal bool
}

// RevealCredentials makes Describe print the connection URI unredacted.
func RevealCredentials() DescribeOption {
	return func(o *describeOptions) {
		o.reveal = true
	}
}

// Describe returns a human-readable summary of the store configuration. The URI is
// redacted unless RevealCredentials is passed.
func (s *Store) Describe(opts ...DescribeOption) string {
	var o describeOptions
	for _, opt := range opts {
		opt(&o)
	}

	uri := s.uri
	if !o.reveal {
		uri = RedactURI(uri)
	}
	return fmt.Sprintf("URI: %s, Backend: %s, Datastore: %s", uri, s.kind, s.datastore)
}

// String implements fmt.Stringer with credentials redacted.
func (s *Store) String() string {
	return s.Describe()
}
