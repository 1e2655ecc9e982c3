// Package mongodb is the document-database archive backend. Each record type is a
// separate collection (see archive.AccountCollection and
// archive.TransactionCollection) in the database named by the store's datastore.
package mongodb

import (
	"context"
	"fmt"
	"sort"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.uber.org/zap"

	"github.com/newthinker/lasr-archive/archive"
)

func init() {
	archive.Register(archive.KindMongoDB, New)
}

// Backend implements archive.Backend for MongoDB.
type Backend struct {
	cfg    archive.BackendConfig
	logger *zap.Logger
}

// New creates a MongoDB backend. Nothing is dialled until Connect.
func New(cfg archive.BackendConfig) archive.Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{cfg: cfg, logger: logger}
}

func (b *Backend) Kind() archive.Kind { return archive.KindMongoDB }

// Connect parses the URI, creates a client and pings the primary. Pooling and
// reconnects inside the returned session are left to the driver.
func (b *Backend) Connect(ctx context.Context) (archive.Session, error) {
	opts := options.Client().ApplyURI(b.cfg.URI)
	if err := opts.Validate(); err != nil {
		return nil, archive.InvalidURI(b.cfg.URI, err)
	}
	if b.cfg.ConnectTimeout > 0 {
		if opts.ServerSelectionTimeout == nil {
			opts.SetServerSelectionTimeout(b.cfg.ConnectTimeout)
		}
		if opts.ConnectTimeout == nil {
			opts.SetConnectTimeout(b.cfg.ConnectTimeout)
		}
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, archive.Errorf(archive.ErrConnectFailed, "failed to set MongoDB client options: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.WithoutCancel(ctx))
		return nil, archive.WrapError(archive.ErrConnectFailed, err)
	}

	return &session{
		client: client,
		db:     client.Database(b.cfg.Datastore),
		logger: b.logger,
	}, nil
}

type session struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

func (s *session) collection(rt archive.RecordType) (*mongo.Collection, error) {
	name, err := rt.Collection()
	if err != nil {
		return nil, err
	}
	return s.db.Collection(name), nil
}

// Insert encodes the record as BSON and inserts it as one document.
func (s *session) Insert(ctx context.Context, rt archive.RecordType, record any) (string, error) {
	coll, err := s.collection(rt)
	if err != nil {
		return "", err
	}

	doc, err := bson.Marshal(record)
	if err != nil {
		return "", archive.WrapError(archive.ErrEncodeFailed, err)
	}

	res, err := coll.InsertOne(ctx, bson.Raw(doc))
	if err != nil {
		return "", archive.Errorf(archive.ErrInsertFailed, "failed to insert document: %w", err)
	}

	id := displayID(res.InsertedID)
	s.logger.Debug("inserted record", zap.String("collection", coll.Name()), zap.String("id", id))
	return id, nil
}

// Find runs an unconditional query when filter is empty, otherwise an equality
// match on every filter field.
func (s *session) Find(ctx context.Context, rt archive.RecordType, filter archive.Filter) (archive.Cursor, error) {
	coll, err := s.collection(rt)
	if err != nil {
		return nil, err
	}

	cur, err := coll.Find(ctx, toBSON(filter))
	if err != nil {
		return nil, archive.Errorf(archive.ErrQueryFailed, "failed to find documents: %w", err)
	}
	return &cursor{Cursor: cur}, nil
}

func (s *session) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type cursor struct {
	*mongo.Cursor
}

func (c *cursor) Err() error {
	if err := c.Cursor.Err(); err != nil {
		return archive.WrapError(archive.ErrQueryFailed, err)
	}
	return nil
}

func toBSON(f archive.Filter) bson.D {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: f[k]})
	}
	return d
}

func displayID(id any) string {
	switch v := id.(type) {
	case bson.ObjectID:
		return v.Hex()
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
