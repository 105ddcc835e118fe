package main

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/darkh14/vmjobs/internal/config"
	"github.com/darkh14/vmjobs/store"
	bunstore "github.com/darkh14/vmjobs/store/bun"
	"github.com/darkh14/vmjobs/store/memory"
	"github.com/darkh14/vmjobs/store/mongo"
	"github.com/darkh14/vmjobs/store/postgres"
	"github.com/darkh14/vmjobs/store/redis"
)

// openStore opens the configured backend. The returned closer releases
// resources the store does not own itself; call it after the store's
// Close.
func openStore(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (store.Store, func() error, error) {
	noop := func() error { return nil }
	logger = logger.With(slog.String("store", cfg.Driver))

	switch cfg.Driver {
	case "memory":
		return memory.New(), noop, nil

	case "postgres":
		s, err := postgres.New(ctx, cfg.DSN, postgres.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil

	case "bun-postgres", "sqlite", "mysql":
		driver := cfg.Driver
		if driver == "bun-postgres" {
			driver = bunstore.DriverPostgres
		}
		db, err := bunstore.Open(driver, cfg.DSN)
		if err != nil {
			return nil, nil, err
		}
		return bunstore.New(db, bunstore.WithLogger(logger), bunstore.WithOwnedDB()), noop, nil

	case "redis":
		opts, err := goredis.ParseURL(cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := goredis.NewClient(opts)
		return redis.New(client, redis.WithLogger(logger)), client.Close, nil

	case "mongo":
		s, err := mongo.Connect(ctx, cfg.DSN, cfg.Database, mongo.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}
