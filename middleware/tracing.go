package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/darkh14/vmjobs/job"
)

// tracerName is the instrumentation scope name for job tracing.
const tracerName = "github.com/darkh14/vmjobs"

// Tracing returns middleware that wraps job execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is used
// and this middleware becomes a pass-through.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, j *job.Job, next Handler) (any, error) {
		ctx, span := tracer.Start(ctx, "vmjobs.job.execute",
			trace.WithAttributes(
				attribute.String("vmjobs.job.id", j.ID.String()),
				attribute.String("vmjobs.job.name", j.Name),
				attribute.String("vmjobs.worker.id", j.WorkerID.String()),
				attribute.Int("vmjobs.worker.pid", j.PID),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		result, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return result, err
	}
}
