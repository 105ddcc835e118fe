package action

import (
	"context"
	"fmt"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

const (
	// ParamBackground marks a request to run as a background job.
	ParamBackground = "background_job"
	// ParamJobID is injected into the parameters of a background run.
	ParamJobID = "job_id"
)

// Launcher starts background jobs. *worker.Launcher satisfies it.
type Launcher interface {
	Launch(ctx context.Context, name string, params job.Parameters, fn job.Func) (id.JobID, error)
	PID() int
}

// LaunchResult is returned in place of the handler's result when a request
// is launched in the background.
type LaunchResult struct {
	JobID       id.JobID `json:"job_id"`
	PID         int      `json:"pid"`
	Description string   `json:"description"`
}

// Background wraps h so that a request with background_job=true is
// launched through l under name. Other requests call h directly.
func Background(l Launcher, name string, h Handler) Handler {
	return func(ctx context.Context, params job.Parameters) (any, error) {
		if !params.Bool(ParamBackground) {
			return h(ctx, params)
		}

		fn := func(ctx context.Context, p job.Parameters) (any, error) {
			inner := p.Clone()
			inner[ParamBackground] = false
			if jobID, ok := job.IDFromContext(ctx); ok {
				inner[ParamJobID] = jobID.String()
			}
			return h(ctx, inner)
		}

		jobID, err := l.Launch(ctx, name, params, fn)
		if err != nil {
			return nil, err
		}
		return LaunchResult{
			JobID:       jobID,
			PID:         l.PID(),
			Description: fmt.Sprintf("background job %q - id %q is started", name, jobID.String()),
		}, nil
	}
}
