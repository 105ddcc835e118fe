package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/darkh14/vmjobs/job"
)

// Timeout returns middleware that enforces an execution deadline on every
// job. A non-positive d disables it. The callable must watch ctx for the
// deadline to have any effect.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		if d <= 0 {
			return next(ctx)
		}
		logger.Debug("job timeout set",
			slog.String("job_id", j.ID.String()),
			slog.Duration("timeout", d),
		)
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
