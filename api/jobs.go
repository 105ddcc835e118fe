package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/jobinfo"
)

// ListJobsInput carries the job filter as query parameters.
type ListJobsInput struct {
	ID            string `query:"id" doc:"Job ID"`
	Name          string `query:"name" doc:"Job name"`
	Status        string `query:"status" doc:"pending, running, completed or failed"`
	StartDateFrom string `query:"start_date_from" doc:"Inclusive lower start date bound (RFC 3339 or YYYY-MM-DD)"`
	StartDateTo   string `query:"start_date_to" doc:"Inclusive upper start date bound"`
	EndDateFrom   string `query:"end_date_from" doc:"Inclusive lower end date bound"`
	EndDateTo     string `query:"end_date_to" doc:"Inclusive upper end date bound"`
	Limit         int    `query:"limit" minimum:"0" doc:"Max results, 0 for all"`
	Offset        int    `query:"offset" minimum:"0" doc:"Offset"`
}

// parameters converts the query into the shape jobinfo filters accept.
func (in *ListJobsInput) parameters() job.Parameters {
	p := job.Parameters{}
	set := func(key, v string) {
		if v != "" {
			p[key] = v
		}
	}
	set("id", in.ID)
	set("name", in.Name)
	set("status", in.Status)
	set("start_date_from", in.StartDateFrom)
	set("start_date_to", in.StartDateTo)
	set("end_date_from", in.EndDateFrom)
	set("end_date_to", in.EndDateTo)
	if in.Limit > 0 {
		p["limit"] = in.Limit
	}
	if in.Offset > 0 {
		p["offset"] = in.Offset
	}
	return p
}

// JobInfoBody is the list projection of a job.
type JobInfoBody struct {
	ID        string     `json:"id" doc:"Job ID"`
	Name      string     `json:"name" doc:"Job name"`
	Status    string     `json:"status" doc:"Job status"`
	StartDate *time.Time `json:"start_date,omitempty" doc:"When the job started running"`
	EndDate   *time.Time `json:"end_date,omitempty" doc:"When the job finished"`
	WorkerID  string     `json:"worker_id,omitempty" doc:"Executing worker"`
	PID       int        `json:"pid,omitempty" doc:"Executing process"`
	ErrorInfo string     `json:"error_info,omitempty" doc:"Failure message, failed jobs only"`
}

func newJobInfoBody(in jobinfo.Info) JobInfoBody {
	b := JobInfoBody{
		ID:        in.ID.String(),
		Name:      in.Name,
		Status:    string(in.Status),
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		PID:       in.PID,
		ErrorInfo: in.ErrorInfo,
	}
	if !in.WorkerID.IsNil() {
		b.WorkerID = in.WorkerID.String()
	}
	return b
}

// ListJobsOutput is the list response.
type ListJobsOutput struct {
	Body struct {
		Jobs []JobInfoBody `json:"jobs" doc:"Matching jobs in launch order"`
	}
}

// JobIDInput identifies one job.
type JobIDInput struct {
	JobID string `path:"jobId" doc:"Job ID"`
}

// JobBody is the full job record.
type JobBody struct {
	JobInfoBody
	Parameters json.RawMessage `json:"parameters,omitempty" doc:"Launch parameters"`
	Result     json.RawMessage `json:"result,omitempty" doc:"Callable result, completed jobs only"`
	Output     string          `json:"output,omitempty" doc:"Log output the job wrote while running"`
	CreatedAt  time.Time       `json:"created_at" doc:"When the job was launched"`
	UpdatedAt  time.Time       `json:"updated_at" doc:"Last status change"`
}

// JobOutput is the single job response.
type JobOutput struct {
	Body JobBody
}

// DeleteJobOutput confirms a deletion.
type DeleteJobOutput struct {
	Body struct {
		Message string `json:"message" doc:"Confirmation"`
	}
}

// StatsOutput reports counts per status.
type StatsOutput struct {
	Body struct {
		jobinfo.Stats
		ActiveJobs int `json:"active_jobs" doc:"Jobs executing in this process"`
	}
}

func (a *API) registerJobRoutes(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Description: "Returns job infos matching the filter in launch order.",
		Tags:        []string{"Jobs"},
	}, a.listJobs)

	huma.Register(api, huma.Operation{
		OperationID: "job-stats",
		Method:      http.MethodGet,
		Path:        "/jobs/stats",
		Summary:     "Job statistics",
		Description: "Returns the number of jobs in each status.",
		Tags:        []string{"Jobs"},
	}, a.jobStats)

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{jobId}",
		Summary:     "Get job",
		Description: "Returns the full record of a job including parameters and result.",
		Tags:        []string{"Jobs"},
	}, a.getJob)

	huma.Register(api, huma.Operation{
		OperationID: "delete-job",
		Method:      http.MethodDelete,
		Path:        "/jobs/{jobId}",
		Summary:     "Delete job",
		Description: "Removes a job record in any status. A running job keeps executing.",
		Tags:        []string{"Jobs"},
	}, a.deleteJob)
}

func (a *API) listJobs(ctx context.Context, in *ListJobsInput) (*ListJobsOutput, error) {
	f, err := jobinfo.FilterFromParameters(in.parameters())
	if err != nil {
		return nil, mapError(err)
	}
	infos, err := a.eng.Jobs().GetJobsInfo(ctx, f)
	if err != nil {
		return nil, mapError(err)
	}

	out := &ListJobsOutput{}
	out.Body.Jobs = make([]JobInfoBody, 0, len(infos))
	for _, info := range infos {
		out.Body.Jobs = append(out.Body.Jobs, newJobInfoBody(info))
	}
	return out, nil
}

func (a *API) getJob(ctx context.Context, in *JobIDInput) (*JobOutput, error) {
	jobID, err := id.ParseJobID(in.JobID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid job ID", err)
	}
	j, err := a.eng.Jobs().GetJob(ctx, jobID)
	if err != nil {
		return nil, mapError(err)
	}

	body := JobBody{
		JobInfoBody: newJobInfoBody(jobinfo.FromJob(j)),
		Output:      j.Output,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if len(j.Parameters) > 0 {
		body.Parameters = json.RawMessage(j.Parameters)
	}
	if len(j.Result) > 0 {
		body.Result = json.RawMessage(j.Result)
	}
	return &JobOutput{Body: body}, nil
}

func (a *API) deleteJob(ctx context.Context, in *JobIDInput) (*DeleteJobOutput, error) {
	jobID, err := id.ParseJobID(in.JobID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid job ID", err)
	}
	msg, err := a.eng.Jobs().DeleteBackgroundJob(ctx, jobID)
	if err != nil {
		return nil, mapError(err)
	}
	out := &DeleteJobOutput{}
	out.Body.Message = msg
	return out, nil
}

func (a *API) jobStats(ctx context.Context, _ *struct{}) (*StatsOutput, error) {
	st, err := a.eng.Jobs().Stats(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	out := &StatsOutput{}
	out.Body.Stats = st
	out.Body.ActiveJobs = a.eng.Launcher().Active()
	return out, nil
}
