package worker

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/darkh14/vmjobs"
)

// Admission decides whether a new background job may start. It enforces
// an optional bound on concurrently executing jobs and an optional
// token-bucket launch rate. Both reject instead of queueing.
// It is safe for concurrent use.
type Admission struct {
	sem     *semaphore.Weighted // nil when unbounded
	limiter *rate.Limiter       // nil when unlimited
	active  atomic.Int64
}

// NewAdmission returns an Admission. maxActive <= 0 means no concurrency
// bound; launchRate <= 0 disables rate limiting. A zero burst with a rate
// set is treated as 1.
func NewAdmission(maxActive int, launchRate float64, burst int) *Admission {
	a := &Admission{}
	if maxActive > 0 {
		a.sem = semaphore.NewWeighted(int64(maxActive))
	}
	if launchRate > 0 {
		if burst <= 0 {
			burst = 1
		}
		a.limiter = rate.NewLimiter(rate.Limit(launchRate), burst)
	}
	return a
}

// Acquire reserves a slot for one job. The caller MUST call Release once
// the job finishes or its launch is abandoned.
func (a *Admission) Acquire() error {
	if a.sem != nil && !a.sem.TryAcquire(1) {
		return vmjobs.ErrTooManyJobs
	}
	// The slot is taken first so a refused slot never burns a rate token.
	if a.limiter != nil && !a.limiter.Allow() {
		if a.sem != nil {
			a.sem.Release(1)
		}
		return vmjobs.ErrLaunchRateExceeded
	}
	a.active.Add(1)
	return nil
}

// Release frees a slot taken by Acquire.
func (a *Admission) Release() {
	a.active.Add(-1)
	if a.sem != nil {
		a.sem.Release(1)
	}
}

// Active returns the number of jobs currently holding a slot.
func (a *Admission) Active() int {
	return int(a.active.Load())
}
