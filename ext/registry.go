package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time.
type jobLaunchedEntry struct {
	name string
	hook JobLaunched
}

type jobRejectedEntry struct {
	name string
	hook JobRejected
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type jobDeletedEntry struct {
	name string
	hook JobDeleted
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
//
// Register is not safe for concurrent use with the emitters; register
// every extension before the first job is launched.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobLaunched  []jobLaunchedEntry
	jobRejected  []jobRejectedEntry
	jobStarted   []jobStartedEntry
	jobCompleted []jobCompletedEntry
	jobFailed    []jobFailedEntry
	jobDeleted   []jobDeletedEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobLaunched); ok {
		r.jobLaunched = append(r.jobLaunched, jobLaunchedEntry{name, h})
	}
	if h, ok := e.(JobRejected); ok {
		r.jobRejected = append(r.jobRejected, jobRejectedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(JobDeleted); ok {
		r.jobDeleted = append(r.jobDeleted, jobDeletedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Job event emitters
// ──────────────────────────────────────────────────

// EmitJobLaunched notifies all extensions that implement JobLaunched.
func (r *Registry) EmitJobLaunched(ctx context.Context, j *job.Job) {
	for _, e := range r.jobLaunched {
		if err := e.hook.OnJobLaunched(ctx, j); err != nil {
			r.logHookError("OnJobLaunched", e.name, err)
		}
	}
}

// EmitJobRejected notifies all extensions that implement JobRejected.
func (r *Registry) EmitJobRejected(ctx context.Context, name string, reason error) {
	for _, e := range r.jobRejected {
		if err := e.hook.OnJobRejected(ctx, name, reason); err != nil {
			r.logHookError("OnJobRejected", e.name, err)
		}
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, j *job.Job) {
	for _, e := range r.jobStarted {
		if err := e.hook.OnJobStarted(ctx, j); err != nil {
			r.logHookError("OnJobStarted", e.name, err)
		}
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		if err := e.hook.OnJobCompleted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobCompleted", e.name, err)
		}
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, j *job.Job, jobErr error) {
	for _, e := range r.jobFailed {
		if err := e.hook.OnJobFailed(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobFailed", e.name, err)
		}
	}
}

// EmitJobDeleted notifies all extensions that implement JobDeleted.
func (r *Registry) EmitJobDeleted(ctx context.Context, jobID id.JobID) {
	for _, e := range r.jobDeleted {
		if err := e.hook.OnJobDeleted(ctx, jobID); err != nil {
			r.logHookError("OnJobDeleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Hook errors are never propagated to the job pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
