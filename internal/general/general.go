// Package general provides the service-level actions every deployment
// registers: a diagnostic "test" action and "get_version".
package general

import (
	"context"
	"errors"
	"time"

	"github.com/darkh14/vmjobs/action"
	"github.com/darkh14/vmjobs/job"
)

// Request types served by this package.
const (
	ActionTest       = "test"
	ActionGetVersion = "get_version"
)

// BackgroundActions returns the actions that may run as background jobs.
func BackgroundActions() []action.Action {
	return []action.Action{{Name: ActionTest, Handler: test}}
}

// Actions returns the actions always answered inline.
func Actions(version string) []action.Action {
	return []action.Action{{
		Name: ActionGetVersion,
		Handler: func(context.Context, job.Parameters) (any, error) {
			return map[string]any{"version": version}, nil
		},
	}}
}

// test echoes its parameters. "delay" (seconds) sleeps first and "fail"
// makes it return an error, which exercises background job failures.
func test(ctx context.Context, params job.Parameters) (any, error) {
	if secs, ok := params.Int("delay"); ok && secs > 0 {
		t := time.NewTimer(time.Duration(secs) * time.Second)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if params.Bool("fail") {
		msg, _ := params.String("message")
		if msg == "" {
			msg = "test failure requested"
		}
		return nil, errors.New(msg)
	}

	out := map[string]any{"message": "Test!"}
	if jobID, ok := params.String(action.ParamJobID); ok {
		out["job_id"] = jobID
	}
	if v, ok := params.String("echo"); ok {
		out["echo"] = v
	}
	return out, nil
}
