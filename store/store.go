package store

import (
	"context"

	"github.com/darkh14/vmjobs/job"
)

// Store is the aggregate persistence interface.
type Store interface {
	job.Store

	// Migrate creates or upgrades the schema.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}
