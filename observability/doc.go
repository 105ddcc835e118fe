// Package observability provides an OpenTelemetry metrics extension for
// background jobs. The MetricsExtension implements lifecycle hooks to
// record system-wide counters for launches, rejections, completions,
// failures and deletions.
//
// For per-execution tracing and duration histograms, see the middleware
// package: middleware.Tracing() and middleware.Metrics().
package observability
