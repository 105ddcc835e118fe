// Package worker runs background jobs. A Launcher records a pending job,
// passes admission control and hands the job to a goroutine; the Executor
// in that goroutine marks the record running, invokes the callable through
// the middleware chain and writes the terminal status.
//
// Callables never see the launching request's cancellation: the context
// they receive is detached with context.WithoutCancel and carries the job
// ID (see job.IDFromContext). Failures are recorded on the job and
// reported to extensions; they never propagate to the launcher's caller.
package worker
