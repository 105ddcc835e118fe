package jobinfo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/darkh14/vmjobs/ext"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// Info is the caller-facing projection of a job record. Parameters and
// result are not included.
type Info struct {
	ID        id.JobID    `json:"id"`
	Name      string      `json:"name"`
	Status    job.Status  `json:"status"`
	StartDate *time.Time  `json:"start_date"`
	EndDate   *time.Time  `json:"end_date"`
	WorkerID  id.WorkerID `json:"worker_id"`
	PID       int         `json:"pid"`
	ErrorInfo string      `json:"error_info,omitempty"`
}

// FromJob projects j. Error info is carried only for failed jobs.
func FromJob(j *job.Job) Info {
	info := Info{
		ID:        j.ID,
		Name:      j.Name,
		Status:    j.Status,
		StartDate: j.StartDate,
		EndDate:   j.EndDate,
		WorkerID:  j.WorkerID,
		PID:       j.PID,
	}
	if j.Status == job.StatusFailed {
		info.ErrorInfo = j.ErrorInfo
	}
	return info
}

// Service queries and deletes job records.
type Service struct {
	store      job.Store
	extensions *ext.Registry
	logger     *slog.Logger
}

// NewService creates a Service. extensions may be nil.
func NewService(store job.Store, extensions *ext.Registry, logger *slog.Logger) *Service {
	return &Service{store: store, extensions: extensions, logger: logger}
}

// GetJobsInfo returns the projections of all records matching f in
// launch order.
func (s *Service) GetJobsInfo(ctx context.Context, f job.Filter) ([]Info, error) {
	jobs, err := s.store.QueryJobs(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	out := make([]Info, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, FromJob(j))
	}
	return out, nil
}

// GetJob returns the full record for jobID.
func (s *Service) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.store.GetJob(ctx, jobID)
}

// DeleteBackgroundJob removes the record for jobID in any status. A job
// still executing keeps running; its later status writes are dropped.
func (s *Service) DeleteBackgroundJob(ctx context.Context, jobID id.JobID) (string, error) {
	if err := s.store.DeleteJob(ctx, jobID); err != nil {
		return "", err
	}
	s.logger.Info("background job deleted", slog.String("job_id", jobID.String()))
	if s.extensions != nil {
		s.extensions.EmitJobDeleted(ctx, jobID)
	}
	return fmt.Sprintf("background job %q is deleted", jobID.String()), nil
}

// Stats counts records per status.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// Stats returns the number of records in each status.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	jobs, err := s.store.QueryJobs(ctx, job.Filter{})
	if err != nil {
		return Stats{}, fmt.Errorf("query jobs: %w", err)
	}
	var st Stats
	for _, j := range jobs {
		st.Total++
		switch j.Status {
		case job.StatusPending:
			st.Pending++
		case job.StatusRunning:
			st.Running++
		case job.StatusCompleted:
			st.Completed++
		case job.StatusFailed:
			st.Failed++
		}
	}
	return st, nil
}
