package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/ext"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// Launcher starts background jobs. Each accepted launch gets a durable
// pending record and its own goroutine.
type Launcher struct {
	store      job.Store
	executor   *Executor
	extensions *ext.Registry
	admission  *Admission
	logger     *slog.Logger

	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
}

// LauncherOption configures a Launcher.
type LauncherOption func(*Launcher)

// WithAdmission sets the admission control applied to every launch.
func WithAdmission(a *Admission) LauncherOption {
	return func(l *Launcher) { l.admission = a }
}

// NewLauncher creates a Launcher. Without WithAdmission every launch is
// admitted.
func NewLauncher(
	store job.Store,
	executor *Executor,
	extensions *ext.Registry,
	logger *slog.Logger,
	opts ...LauncherOption,
) *Launcher {
	l := &Launcher{
		store:      store,
		executor:   executor,
		extensions: extensions,
		admission:  NewAdmission(0, 0, 0),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch records a pending job named name and starts fn in the background.
// It returns as soon as the record is stored and the goroutine started.
// Admission rejections and store errors are returned; failures of fn are
// only recorded on the job.
func (l *Launcher) Launch(ctx context.Context, name string, params job.Parameters, fn job.Func) (id.JobID, error) {
	if !l.enter() {
		l.extensions.EmitJobRejected(ctx, name, vmjobs.ErrLauncherStopped)
		return id.JobID{}, vmjobs.ErrLauncherStopped
	}
	if err := l.admission.Acquire(); err != nil {
		l.wg.Done()
		l.logger.Warn("background job rejected",
			slog.String("job_name", name),
			slog.String("error", err.Error()),
		)
		l.extensions.EmitJobRejected(ctx, name, err)
		return id.JobID{}, err
	}
	// release gives back what this launch holds. The job goroutine calls it
	// when the job is done.
	release := func() {
		l.admission.Release()
		l.wg.Done()
	}

	payload, err := params.Marshal()
	if err != nil {
		release()
		return id.JobID{}, fmt.Errorf("%w: encode parameters: %v", vmjobs.ErrInvalidParameter, err)
	}

	j := job.New(name, payload)
	if err := l.store.InsertJob(ctx, j); err != nil {
		release()
		return id.JobID{}, fmt.Errorf("insert job: %w", err)
	}

	l.logger.Info("background job launched",
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", name),
	)
	l.extensions.EmitJobLaunched(ctx, j)

	runCtx := context.WithoutCancel(ctx)
	go func() {
		defer release()
		if err := l.executor.Execute(runCtx, j, params, fn); err != nil {
			l.logger.Debug("job execution failed",
				slog.String("job_id", j.ID.String()),
				slog.String("error", err.Error()),
			)
		}
	}()

	return j.ID, nil
}

// enter counts a launch in unless the launcher is stopped. The lock is
// held only for the check so a slow store never delays Stop.
func (l *Launcher) enter() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return false
	}
	l.wg.Add(1)
	return true
}

// PID returns the process ID recorded on launched jobs.
func (l *Launcher) PID() int { return l.executor.PID() }

// Active returns the number of jobs currently executing.
func (l *Launcher) Active() int { return l.admission.Active() }

// Stop refuses further launches and waits for running jobs to finish or
// ctx to expire. Running callables are not cancelled.
func (l *Launcher) Stop(ctx context.Context) error {
	l.mu.Lock()
	l.stopped = true
	l.mu.Unlock()

	l.logger.Info("launcher stopping", slog.Int("active_jobs", l.Active()))

	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		l.logger.Info("launcher stopped gracefully")
		return nil
	case <-ctx.Done():
		l.logger.Warn("launcher stop timed out with jobs still running",
			slog.Int("active_jobs", l.Active()),
		)
		return fmt.Errorf("worker: wait for running jobs: %w", ctx.Err())
	}
}
