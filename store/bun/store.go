package bunstore

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/store"
)

//go:embed migrations
var migrationsFS embed.FS

var _ store.Store = (*Store)(nil)

// Store is a Bun ORM implementation of store.Store.
type Store struct {
	db     *bun.DB
	logger *slog.Logger
	owned  bool
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithOwnedDB makes Close close the *bun.DB. Use it with handles built by
// Open.
func WithOwnedDB() Option {
	return func(s *Store) {
		s.owned = true
	}
}

// New creates a new Bun store. Unless WithOwnedDB is given the caller owns
// the db lifecycle.
func New(db *bun.DB, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying *bun.DB.
func (s *Store) DB() *bun.DB {
	return s.db
}

// migrationsDir maps the dialect to its embedded DDL directory.
func (s *Store) migrationsDir() (string, error) {
	switch s.db.Dialect().Name() {
	case dialect.PG:
		return "migrations/pg", nil
	case dialect.SQLite:
		return "migrations/sqlite", nil
	case dialect.MySQL:
		return "migrations/mysql", nil
	default:
		return "", fmt.Errorf("vmjobs/bun: unsupported dialect %s", s.db.Dialect().Name())
	}
}

// Migrate runs the embedded SQL migration files for the db's dialect in
// order. Files are split on ";" so drivers without multi-statement support
// work too.
func (s *Store) Migrate(ctx context.Context) error {
	dir, err := s.migrationsDir()
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS vmjobs_migrations (
			filename VARCHAR(255) NOT NULL PRIMARY KEY
		)
	`)
	if err != nil {
		return fmt.Errorf("vmjobs/bun: create migrations table: %w", err)
	}

	entries, err := fs.ReadDir(migrationsFS, dir)
	if err != nil {
		return fmt.Errorf("vmjobs/bun: read migrations: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		var applied int
		err = s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM vmjobs_migrations WHERE filename = ?`,
			entry.Name(),
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("vmjobs/bun: check migration %s: %w", entry.Name(), err)
		}
		if applied > 0 {
			continue
		}

		data, readErr := fs.ReadFile(migrationsFS, path.Join(dir, entry.Name()))
		if readErr != nil {
			return fmt.Errorf("vmjobs/bun: read migration %s: %w", entry.Name(), readErr)
		}

		for _, stmt := range strings.Split(string(data), ";") {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, execErr := s.db.ExecContext(ctx, stmt); execErr != nil {
				return fmt.Errorf("vmjobs/bun: execute migration %s: %w: %w", entry.Name(), vmjobs.ErrMigrationFailed, execErr)
			}
		}

		if _, recErr := s.db.ExecContext(ctx,
			`INSERT INTO vmjobs_migrations (filename) VALUES (?)`,
			entry.Name(),
		); recErr != nil {
			return fmt.Errorf("vmjobs/bun: record migration %s: %w", entry.Name(), recErr)
		}

		s.logger.Info("applied migration",
			slog.String("dialect", s.db.Dialect().Name().String()),
			slog.String("file", entry.Name()),
		)
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the db if the store owns it.
func (s *Store) Close() error {
	if s.owned {
		return s.db.Close()
	}
	return nil
}
