// Package ext defines the extension system for background jobs.
//
// Extensions are notified of lifecycle events and can react to them by
// recording metrics, streaming events to subscribers or writing audit logs.
// Each lifecycle hook is a separate interface so extensions opt in only
// to the events they care about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	// Opt in to specific hooks by implementing their interfaces.
//	func (e *MyExtension) OnJobCompleted(ctx context.Context, j *job.Job, elapsed time.Duration) error {
//	    slog.Info("job completed", "id", j.ID, "elapsed", elapsed)
//	    return nil
//	}
//
// # Job Lifecycle Hooks
//
//   - [JobLaunched]: pending record stored, worker about to start
//   - [JobRejected]: admission control refused a launch
//   - [JobStarted]: worker marked the job running
//   - [JobCompleted]: job finished successfully
//   - [JobFailed]: job ended in the failed status
//   - [JobDeleted]: job record was removed
//   - [Shutdown]: the dispatcher is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never affect the job.
package ext
