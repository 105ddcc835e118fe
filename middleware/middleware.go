// Package middleware provides composable middleware for job execution.
// Middleware wraps the job callable synchronously and can observe or
// modify its execution (recover from panics, log, trace, time out).
package middleware

import (
	"context"

	"github.com/darkh14/vmjobs/job"
)

// Handler is the terminal function that runs the job callable and returns
// its result.
type Handler func(ctx context.Context) (any, error)

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the job record being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, j *job.Job, next Handler) (any, error)

// Chain composes multiple middleware into a single Middleware.
// The first middleware in the list is the outermost wrapper.
//
// Example: Chain(logging, recover) executes as:
//
//	logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) (any, error) {
				return mw(ctx, j, prev)
			}
		}
		return h(ctx)
	}
}
