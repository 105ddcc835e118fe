package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v3"
)

func migrateCmd() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Create or upgrade the job store schema",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			s, closeExtra, err := openStore(ctx, cfg.Store, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer func() {
				_ = s.Close()
				_ = closeExtra()
			}()

			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("store migrated", slog.String("driver", cfg.Store.Driver))
			return nil
		},
	}
}
