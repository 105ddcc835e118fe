package main

import (
	"io"
	"log/slog"
	"strings"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog/v2"

	"github.com/darkh14/vmjobs/internal/config"
)

// newLogger builds a zerolog logger per cfg and returns it behind slog,
// which the library packages log through.
func newLogger(w io.Writer, cfg config.LogConfig) *slog.Logger {
	var out io.Writer = w
	if cfg.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: w}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zl := zerolog.New(out).Level(level).With().Timestamp().Logger()

	return slog.New(slogzerolog.Option{
		Level:  slogLevel(level),
		Logger: &zl,
	}.NewZerologHandler())
}

func slogLevel(l zerolog.Level) slog.Level {
	switch {
	case l <= zerolog.DebugLevel:
		return slog.LevelDebug
	case l == zerolog.InfoLevel:
		return slog.LevelInfo
	case l == zerolog.WarnLevel:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
