// Package middleware provides composable middleware for job execution.
//
// A [Middleware] wraps the job callable. Middleware are composed into a
// chain using [Chain] and applied by the worker around every background
// execution. The first middleware in the slice is the outermost wrapper.
//
//	// logging → recover → handler
//	chain := middleware.Chain(middleware.Logging(logger), middleware.Recover(logger))
//
// # Built-in Middleware
//
//   - [Logging] logs job name, duration and outcome
//   - [Recover] turns panics into errors so the job ends up failed
//   - [Timeout] cancels the job context after a fixed duration
//   - [Tracing] wraps execution in an OpenTelemetry span
//   - [Metrics] records per-job duration and outcome counters
package middleware
