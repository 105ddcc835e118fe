package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/ext"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// meterName is the instrumentation scope name for lifecycle metrics.
const meterName = "github.com/darkh14/vmjobs/observability"

// Compile-time interface checks.
var (
	_ ext.Extension    = (*MetricsExtension)(nil)
	_ ext.JobLaunched  = (*MetricsExtension)(nil)
	_ ext.JobRejected  = (*MetricsExtension)(nil)
	_ ext.JobStarted   = (*MetricsExtension)(nil)
	_ ext.JobCompleted = (*MetricsExtension)(nil)
	_ ext.JobFailed    = (*MetricsExtension)(nil)
	_ ext.JobDeleted   = (*MetricsExtension)(nil)
)

// MetricsExtension records system-wide lifecycle counters with OpenTelemetry.
// Register it as an extension to track launch, rejection, completion,
// failure and deletion rates.
type MetricsExtension struct {
	JobLaunched  metric.Int64Counter
	JobRejected  metric.Int64Counter
	JobStarted   metric.Int64Counter
	JobCompleted metric.Int64Counter
	JobFailed    metric.Int64Counter
	JobDeleted   metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the provided
// meter.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	return &MetricsExtension{
		JobLaunched:  counter(meter, "vmjobs.job.launched", "Background jobs accepted for execution"),
		JobRejected:  counter(meter, "vmjobs.job.rejected", "Background job launches refused by admission control"),
		JobStarted:   counter(meter, "vmjobs.job.started", "Jobs marked running by a worker"),
		JobCompleted: counter(meter, "vmjobs.job.completed", "Jobs finished successfully"),
		JobFailed:    counter(meter, "vmjobs.job.failed", "Jobs ended in the failed status"),
		JobDeleted:   counter(meter, "vmjobs.job.deleted", "Job records removed"),
	}
}

// counter falls back to the noop instrument the API returns on error.
func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, _ := meter.Int64Counter(name,
		metric.WithDescription(desc),
		metric.WithUnit("{job}"),
	)
	return c
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Job lifecycle hooks ─────────────────────────────

// OnJobLaunched implements ext.JobLaunched.
func (m *MetricsExtension) OnJobLaunched(ctx context.Context, j *job.Job) error {
	m.JobLaunched.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobRejected implements ext.JobRejected.
func (m *MetricsExtension) OnJobRejected(ctx context.Context, name string, reason error) error {
	m.JobRejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", name),
		attribute.String("reason", rejectReason(reason)),
	))
	return nil
}

// OnJobStarted implements ext.JobStarted.
func (m *MetricsExtension) OnJobStarted(ctx context.Context, j *job.Job) error {
	m.JobStarted.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobCompleted implements ext.JobCompleted.
func (m *MetricsExtension) OnJobCompleted(ctx context.Context, j *job.Job, _ time.Duration) error {
	m.JobCompleted.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobFailed implements ext.JobFailed.
func (m *MetricsExtension) OnJobFailed(ctx context.Context, j *job.Job, _ error) error {
	m.JobFailed.Add(ctx, 1, jobAttrs(j))
	return nil
}

// OnJobDeleted implements ext.JobDeleted.
func (m *MetricsExtension) OnJobDeleted(ctx context.Context, _ id.JobID) error {
	m.JobDeleted.Add(ctx, 1)
	return nil
}

func jobAttrs(j *job.Job) metric.AddOption {
	return metric.WithAttributes(attribute.String("job_name", j.Name))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, vmjobs.ErrTooManyJobs):
		return "too_many_jobs"
	case errors.Is(err, vmjobs.ErrLaunchRateExceeded):
		return "rate_limited"
	case errors.Is(err, vmjobs.ErrLauncherStopped):
		return "stopped"
	default:
		return "other"
	}
}
