package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/api"
	"github.com/darkh14/vmjobs/engine"
	"github.com/darkh14/vmjobs/internal/config"
	"github.com/darkh14/vmjobs/internal/general"
)

// loadConfig reads the config file named by --config and builds the
// process logger.
func loadConfig(cmd *cli.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	logger := newLogger(os.Stderr, cfg.Log)
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP server",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeExtra, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeExtra(); err != nil {
			logger.Warn("close store client", slog.String("error", err.Error()))
		}
	}()

	if cfg.Store.Migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return fmt.Errorf("migrate: %w", err)
		}
	}

	opts := append([]vmjobs.Option{vmjobs.WithStore(s), vmjobs.WithLogger(logger)}, cfg.Options()...)
	d, err := vmjobs.New(opts...)
	if err != nil {
		_ = s.Close()
		return err
	}
	eng, err := engine.Build(d, engine.WithJobTimeout(cfg.Launcher.JobTimeout))
	if err != nil {
		_ = s.Close()
		return err
	}
	if err := registerActions(eng); err != nil {
		_ = eng.Stop(ctx)
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           api.New(eng, api.WithVersion(version)).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening",
			slog.String("addr", srv.Addr),
			slog.String("store", cfg.Store.Driver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Launcher.ShutdownTimeout+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown", slog.String("error", err.Error()))
		}
		return eng.Stop(shutdownCtx)
	})
	return g.Wait()
}

func registerActions(eng *engine.Engine) error {
	if err := eng.Register(general.Actions(version)...); err != nil {
		return err
	}
	return eng.RegisterBackground(general.BackgroundActions()...)
}
