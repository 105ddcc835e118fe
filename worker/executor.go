package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/ext"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/middleware"
)

// ExecutionError wraps the failure of a job callable. Only Err.Error() is
// stored on the record; the wrapper travels to extensions and logs.
type ExecutionError struct {
	JobID id.JobID
	Err   error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("job %s: %v", e.JobID, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Executor runs a single job: it marks the record running, invokes the
// callable through middleware and records the outcome.
type Executor struct {
	store      job.Store
	extensions *ext.Registry
	mw         middleware.Middleware
	logger     *slog.Logger
	pid        int
}

// NewExecutor creates an Executor with the given dependencies. Callables
// find their job logger with job.LoggerFromContext; what they log there
// is stored as the job's output.
func NewExecutor(
	store job.Store,
	extensions *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		store:      store,
		extensions: extensions,
		mw:         middleware.Chain(mws...),
		logger:     logger,
		pid:        os.Getpid(),
	}
}

// PID returns the process ID recorded on the jobs this executor runs.
func (e *Executor) PID() int { return e.pid }

// Execute runs fn for the pending record j. The returned error is for
// logging only: the outcome is already recorded on the job.
func (e *Executor) Execute(ctx context.Context, j *job.Job, params job.Parameters, fn job.Func) error {
	start := time.Now().UTC()
	running := job.Running(id.NewWorkerID(), e.pid, start)

	if err := e.store.UpdateJobStatus(ctx, j.ID, running); err != nil {
		if errors.Is(err, vmjobs.ErrJobNotFound) {
			e.logger.Warn("job deleted before start, skipping",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
			)
			return nil
		}
		e.logger.Error("failed to mark job running",
			slog.String("job_id", j.ID.String()),
			slog.String("error", err.Error()),
		)
		return e.handleFailure(ctx, j, fmt.Errorf("mark running: %w", err), "")
	}
	// Mirror the stored transition on the local copy.
	_ = running.Apply(j, start)
	e.extensions.EmitJobStarted(ctx, j)

	out := newOutputBuffer(MaxOutputBytes)
	jobCtx := job.ContextWithLogger(job.ContextWithID(ctx, j.ID), jobLogger(e.logger, j, out))
	result, err := e.invoke(jobCtx, j, params, fn)
	elapsed := time.Since(start)

	if err != nil {
		return e.handleFailure(ctx, j, err, out.String())
	}

	data, err := encodeResult(result)
	if err != nil {
		return e.handleFailure(ctx, j, fmt.Errorf("encode result: %w", err), out.String())
	}
	return e.handleSuccess(ctx, j, data, out.String(), elapsed)
}

// invoke calls fn through the middleware chain. A panic that no middleware
// recovered fails the job instead of the process.
func (e *Executor) invoke(ctx context.Context, j *job.Job, params job.Parameters, fn job.Func) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("job panicked",
				slog.String("job_id", j.ID.String()),
				slog.String("job_name", j.Name),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
			result, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()

	terminal := func(ctx context.Context) (any, error) {
		return fn(ctx, params)
	}
	return e.mw(ctx, j, terminal)
}

// handleSuccess marks the job completed and emits the lifecycle event.
func (e *Executor) handleSuccess(ctx context.Context, j *job.Job, result []byte, output string, elapsed time.Duration) error {
	now := time.Now().UTC()
	u := job.Completed(result, now).WithOutput(output)

	if err := e.store.UpdateJobStatus(ctx, j.ID, u); err != nil {
		e.logWriteError(j, job.StatusCompleted, err)
		return err
	}
	_ = u.Apply(j, now)

	e.extensions.EmitJobCompleted(ctx, j, elapsed)
	return nil
}

// handleFailure marks the job failed and emits the lifecycle event.
func (e *Executor) handleFailure(ctx context.Context, j *job.Job, cause error, output string) error {
	execErr := &ExecutionError{JobID: j.ID, Err: cause}

	info := cause.Error()
	if info == "" {
		info = "job failed"
	}
	now := time.Now().UTC()
	u := job.Failed(info, now).WithOutput(output)

	if err := e.store.UpdateJobStatus(ctx, j.ID, u); err != nil {
		e.logWriteError(j, job.StatusFailed, err)
		return execErr
	}
	_ = u.Apply(j, now)

	e.extensions.EmitJobFailed(ctx, j, execErr)
	return execErr
}

// logWriteError reports a terminal write that did not land. A deleted
// record is expected (deletion is allowed at any time) and the write is
// simply dropped.
func (e *Executor) logWriteError(j *job.Job, status job.Status, err error) {
	if errors.Is(err, vmjobs.ErrJobNotFound) {
		e.logger.Warn("job deleted while running, dropping status write",
			slog.String("job_id", j.ID.String()),
			slog.String("job_name", j.Name),
			slog.String("status", string(status)),
		)
		return
	}
	e.logger.Error("failed to record job status",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
		slog.String("status", string(status)),
		slog.String("error", err.Error()),
	)
}

// encodeResult serializes the callable's return value. nil stays nil.
func encodeResult(v any) ([]byte, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return r, nil
	}
	return json.Marshal(v)
}
