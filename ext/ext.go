// Package ext defines the extension system for the job subsystem.
// Extensions are notified of lifecycle events (job launched, completed,
// failed, deleted) and can react to them with logging, metrics or
// streaming.
//
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
package ext

import (
	"context"
	"time"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Job lifecycle hooks
// ──────────────────────────────────────────────────

// JobLaunched is called after the pending record of a background job is
// stored and before its worker starts.
type JobLaunched interface {
	OnJobLaunched(ctx context.Context, j *job.Job) error
}

// JobRejected is called when admission control refuses a launch.
type JobRejected interface {
	OnJobRejected(ctx context.Context, name string, reason error) error
}

// JobStarted is called when a worker has marked a job running.
type JobStarted interface {
	OnJobStarted(ctx context.Context, j *job.Job) error
}

// JobCompleted is called after a job finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error
}

// JobFailed is called when a job ends in the failed status.
type JobFailed interface {
	OnJobFailed(ctx context.Context, j *job.Job, err error) error
}

// JobDeleted is called after a job record is removed.
type JobDeleted interface {
	OnJobDeleted(ctx context.Context, jobID id.JobID) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
