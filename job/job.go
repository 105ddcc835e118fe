package job

import (
	"time"

	"github.com/darkh14/vmjobs/id"
)

// Status represents the lifecycle status of a job.
type Status string

const (
	// StatusPending means the record exists but execution has not begun.
	StatusPending Status = "pending"
	// StatusRunning means a worker is executing the job.
	StatusRunning Status = "running"
	// StatusCompleted means the job finished successfully.
	StatusCompleted Status = "completed"
	// StatusFailed means the job's callable returned an error or panicked.
	StatusFailed Status = "failed"
)

// Statuses lists every status in lifecycle order.
var Statuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

// transitions maps each status to the statuses it may move to.
var transitions = map[Status][]Status{
	StatusPending: {StatusRunning, StatusFailed},
	StatusRunning: {StatusCompleted, StatusFailed},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether a record in status from may move to to.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Sources returns the statuses from which to is reachable.
func Sources(to Status) []Status {
	var out []Status
	for _, from := range Statuses {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}

// Job is the durable record of one background execution.
type Job struct {
	ID         id.JobID    `json:"id"`
	Name       string      `json:"name"`
	Status     Status      `json:"status"`
	Parameters []byte      `json:"parameters,omitempty"`
	Result     []byte      `json:"result,omitempty"`
	WorkerID   id.WorkerID `json:"worker_id,omitempty"`
	PID        int         `json:"pid,omitempty"`
	ErrorInfo  string      `json:"error_info,omitempty"`
	Output     string      `json:"output,omitempty"`
	StartDate  *time.Time  `json:"start_date,omitempty"`
	EndDate    *time.Time  `json:"end_date,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// New returns a pending record for a job named name. params is the
// JSON encoding of the launch parameters.
func New(name string, params []byte) *Job {
	now := time.Now().UTC()
	return &Job{
		ID:         id.NewJobID(),
		Name:       name,
		Status:     StatusPending,
		Parameters: params,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy of j.
func (j *Job) Clone() *Job {
	c := *j
	if j.Parameters != nil {
		c.Parameters = append([]byte(nil), j.Parameters...)
	}
	if j.Result != nil {
		c.Result = append([]byte(nil), j.Result...)
	}
	if j.StartDate != nil {
		t := *j.StartDate
		c.StartDate = &t
	}
	if j.EndDate != nil {
		t := *j.EndDate
		c.EndDate = &t
	}
	return &c
}
