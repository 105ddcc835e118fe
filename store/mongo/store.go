package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/store"
)

// Collection name constants.
const (
	colJobs     = "vmjobs_jobs"
	colCounters = "vmjobs_counters"
)

// closeTimeout bounds the client disconnect in Close.
const closeTimeout = 10 * time.Second

var _ store.Store = (*Store)(nil)

// Store implements store.Store backed by MongoDB.
type Store struct {
	db     *mongod.Database
	client *mongod.Client // set only when the store owns the client
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New wraps an existing database handle. The caller owns the client
// lifecycle and Close will not disconnect it.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Connect opens a client for uri and returns a store on database. The
// store owns the client and disconnects it on Close.
func Connect(ctx context.Context, uri, database string, opts ...Option) (*Store, error) {
	client, err := mongod.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("vmjobs/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("vmjobs/mongo: ping: %w", err)
	}
	s := New(client.Database(database), opts...)
	s.client = client
	return s, nil
}

// DB returns the underlying database handle.
func (s *Store) DB() *mongod.Database {
	return s.db
}

// Migrate creates the job collection indexes. Index creation is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Collection(colJobs).Indexes().CreateMany(ctx, jobIndexes())
	if err != nil {
		return fmt.Errorf("vmjobs/mongo: migrate %s indexes: %w: %w", colJobs, vmjobs.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, readpref.Primary())
}

// Close disconnects the client if the store opened it.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

func jobIndexes() []mongod.IndexModel {
	return []mongod.IndexModel{
		{
			Keys:    bson.D{{Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "seq", Value: 1}}},
		{Keys: bson.D{{Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "start_date", Value: 1}}},
		{Keys: bson.D{{Key: "end_date", Value: 1}}},
	}
}
