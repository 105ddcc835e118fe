package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/action"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/jobinfo"
)

// Launch runs requestType as a background job and returns as soon as the
// server accepted it.
func (c *Client) Launch(ctx context.Context, requestType string, params map[string]any) (*action.LaunchResult, error) {
	p := make(map[string]any, len(params)+1)
	for k, v := range params {
		p[k] = v
	}
	p[action.ParamBackground] = true

	raw, err := c.Do(ctx, requestType, p)
	if err != nil {
		return nil, err
	}
	var res action.LaunchResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("vmjobs/client: decode launch result: %w", err)
	}
	if res.JobID.IsNil() {
		return nil, fmt.Errorf("vmjobs/client: %s was not launched in the background", requestType)
	}
	return &res, nil
}

// JobsInfo returns the jobs matching filter. Filter keys are those the
// jobs_get_info action accepts: id, name, status, start/end date bounds,
// limit and offset.
func (c *Client) JobsInfo(ctx context.Context, filter map[string]any) ([]jobinfo.Info, error) {
	raw, err := c.Do(ctx, jobinfo.ActionGetInfo, map[string]any{"filter": filter})
	if err != nil {
		return nil, err
	}
	var res struct {
		Jobs []jobinfo.Info `json:"jobs"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("vmjobs/client: decode jobs: %w", err)
	}
	return res.Jobs, nil
}

// GetJob returns the job with jobID.
func (c *Client) GetJob(ctx context.Context, jobID id.JobID) (*jobinfo.Info, error) {
	jobs, err := c.JobsInfo(ctx, map[string]any{"id": jobID.String()})
	if err != nil {
		return nil, err
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("vmjobs/client: %w: %s", vmjobs.ErrJobNotFound, jobID)
	}
	return &jobs[0], nil
}

// DeleteJob removes the job record and returns the server's confirmation.
func (c *Client) DeleteJob(ctx context.Context, jobID id.JobID) (string, error) {
	raw, err := c.Do(ctx, jobinfo.ActionDelete, map[string]any{"id": jobID.String()})
	if err != nil {
		return "", err
	}
	var msg string
	if err := json.Unmarshal(raw, &msg); err != nil {
		return "", fmt.Errorf("vmjobs/client: decode delete result: %w", err)
	}
	return msg, nil
}

// WaitJob polls until the job reaches a terminal status or ctx is done.
func (c *Client) WaitJob(ctx context.Context, jobID id.JobID) (*jobinfo.Info, error) {
	for attempt := 1; ; attempt++ {
		info, err := c.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if info.Status.Terminal() {
			return info, nil
		}
		if err := sleep(ctx, c.poll.Delay(attempt)); err != nil {
			return info, err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
