package bunstore

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:vmjobs_jobs"`

	Seq        int64      `bun:"seq,pk,autoincrement"`
	ID         string     `bun:"id,notnull,unique"`
	Name       string     `bun:"name,notnull"`
	Status     string     `bun:"status,notnull"`
	Parameters string     `bun:"parameters,nullzero"`
	Result     string     `bun:"result,nullzero"`
	WorkerID   string     `bun:"worker_id,notnull"`
	PID        int        `bun:"pid,notnull"`
	ErrorInfo  string     `bun:"error_info,notnull"`
	Output     string     `bun:"output,notnull"`
	StartDate  *time.Time `bun:"start_date"`
	EndDate    *time.Time `bun:"end_date"`
	CreatedAt  time.Time  `bun:"created_at,notnull"`
	UpdatedAt  time.Time  `bun:"updated_at,notnull"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:         j.ID.String(),
		Name:       j.Name,
		Status:     string(j.Status),
		Parameters: string(j.Parameters),
		Result:     string(j.Result),
		WorkerID:   j.WorkerID.String(),
		PID:        j.PID,
		ErrorInfo:  j.ErrorInfo,
		Output:     j.Output,
		StartDate:  utc(j.StartDate),
		EndDate:    utc(j.EndDate),
		CreatedAt:  j.CreatedAt.UTC(),
		UpdatedAt:  j.UpdatedAt.UTC(),
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("vmjobs/bun: parse job id %q: %w", m.ID, err)
	}

	j := &job.Job{
		ID:        jobID,
		Name:      m.Name,
		Status:    job.Status(m.Status),
		PID:       m.PID,
		ErrorInfo: m.ErrorInfo,
		Output:    m.Output,
		StartDate: utc(m.StartDate),
		EndDate:   utc(m.EndDate),
		CreatedAt: m.CreatedAt.UTC(),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
	if m.Parameters != "" {
		j.Parameters = []byte(m.Parameters)
	}
	if m.Result != "" {
		j.Result = []byte(m.Result)
	}
	if m.WorkerID != "" {
		if j.WorkerID, err = id.ParseWorkerID(m.WorkerID); err != nil {
			return nil, fmt.Errorf("vmjobs/bun: parse worker id %q: %w", m.WorkerID, err)
		}
	}
	return j, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
