package mongo

import (
	"fmt"
	"time"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

type jobModel struct {
	ID         string     `bson:"_id"`
	Seq        int64      `bson:"seq"`
	Name       string     `bson:"name"`
	Status     string     `bson:"status"`
	Parameters []byte     `bson:"parameters,omitempty"`
	Result     []byte     `bson:"result,omitempty"`
	WorkerID   string     `bson:"worker_id,omitempty"`
	PID        int        `bson:"pid"`
	ErrorInfo  string     `bson:"error_info,omitempty"`
	Output     string     `bson:"output,omitempty"`
	StartDate  *time.Time `bson:"start_date,omitempty"`
	EndDate    *time.Time `bson:"end_date,omitempty"`
	CreatedAt  time.Time  `bson:"created_at"`
	UpdatedAt  time.Time  `bson:"updated_at"`
}

type counterModel struct {
	ID  string `bson:"_id"`
	Seq int64  `bson:"seq"`
}

func toJobModel(j *job.Job) *jobModel {
	m := &jobModel{
		ID:         j.ID.String(),
		Name:       j.Name,
		Status:     string(j.Status),
		Parameters: j.Parameters,
		Result:     j.Result,
		PID:        j.PID,
		ErrorInfo:  j.ErrorInfo,
		Output:     j.Output,
		StartDate:  j.StartDate,
		EndDate:    j.EndDate,
		CreatedAt:  j.CreatedAt.UTC(),
		UpdatedAt:  j.UpdatedAt.UTC(),
	}
	if !j.WorkerID.IsNil() {
		m.WorkerID = j.WorkerID.String()
	}
	return m
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	jobID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse job id %q: %w", m.ID, err)
	}
	j := &job.Job{
		ID:         jobID,
		Name:       m.Name,
		Status:     job.Status(m.Status),
		Parameters: m.Parameters,
		Result:     m.Result,
		PID:        m.PID,
		ErrorInfo:  m.ErrorInfo,
		Output:     m.Output,
		StartDate:  utcPtr(m.StartDate),
		EndDate:    utcPtr(m.EndDate),
		CreatedAt:  m.CreatedAt.UTC(),
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
	if m.WorkerID != "" {
		if j.WorkerID, err = id.ParseWorkerID(m.WorkerID); err != nil {
			return nil, fmt.Errorf("parse worker id %q: %w", m.WorkerID, err)
		}
	}
	return j, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
