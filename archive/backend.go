package archive

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BackendConfig is what an adapter receives when a store is built. The URI is not
// validated until Connect.
type BackendConfig struct {
	URI            string
	Datastore      string
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

// Backend defines the interface for an archive storage engine.
type Backend interface {
	// Kind returns the backend kind this adapter serves
	Kind() Kind

	// Connect opens a session against the backend
	Connect(ctx context.Context) (Session, error)
}

// Session is one open connection to a backend. It must be closed by the caller.
type Session interface {
	// Insert stores one record and returns its backend-issued identifier
	Insert(ctx context.Context, rt RecordType, record any) (string, error)

	// Find returns a cursor over the records of rt matching filter
	Find(ctx context.Context, rt RecordType, filter Filter) (Cursor, error)

	// Close releases the connection
	Close(ctx context.Context) error
}

// Cursor iterates over query results. Decode unmarshals the current record.
type Cursor interface {
	Next(ctx context.Context) bool
	Decode(v any) error
	Err() error
	Close(ctx context.Context) error
}

// Filter is an equality match on top-level record fields. An empty filter
// selects every record.
type Filter map[string]any

// Empty reports whether the filter selects all records.
func (f Filter) Empty() bool {
	return len(f) == 0
}

// Factory builds a backend adapter from configuration.
type Factory func(cfg BackendConfig) Backend
