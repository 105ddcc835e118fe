package job

import (
	"fmt"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
)

// Update describes a status change and the fields that travel with it.
// Zero-valued optional fields are left untouched on the record.
type Update struct {
	Status    Status
	StartDate *time.Time
	EndDate   *time.Time
	WorkerID  id.WorkerID
	PID       int
	ErrorInfo string
	Result    []byte
	Output    string
}

// Running returns the update a worker applies right before it invokes the
// job's callable.
func Running(workerID id.WorkerID, pid int, at time.Time) Update {
	at = at.UTC()
	return Update{Status: StatusRunning, StartDate: &at, WorkerID: workerID, PID: pid}
}

// Completed returns the update for a job whose callable returned normally.
func Completed(result []byte, at time.Time) Update {
	at = at.UTC()
	return Update{Status: StatusCompleted, EndDate: &at, Result: result}
}

// Failed returns the update for a job whose callable failed.
func Failed(errorInfo string, at time.Time) Update {
	at = at.UTC()
	return Update{Status: StatusFailed, EndDate: &at, ErrorInfo: errorInfo}
}

// WithOutput returns u carrying the job's captured log output.
func (u Update) WithOutput(output string) Update {
	u.Output = output
	return u
}

// Validate checks the update against the record invariants that do not
// depend on the current record.
func (u Update) Validate() error {
	if !u.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", vmjobs.ErrInvalidUpdate, u.Status)
	}
	switch u.Status {
	case StatusPending:
		return fmt.Errorf("%w: cannot move a job back to pending", vmjobs.ErrInvalidTransition)
	case StatusRunning:
		if u.StartDate == nil {
			return fmt.Errorf("%w: running requires a start date", vmjobs.ErrInvalidUpdate)
		}
		if u.EndDate != nil || u.ErrorInfo != "" || u.Output != "" {
			return fmt.Errorf("%w: running job cannot carry an end date, error or output", vmjobs.ErrInvalidUpdate)
		}
	case StatusCompleted:
		if u.EndDate == nil {
			return fmt.Errorf("%w: completed requires an end date", vmjobs.ErrInvalidUpdate)
		}
		if u.ErrorInfo != "" {
			return fmt.Errorf("%w: completed job cannot carry an error", vmjobs.ErrInvalidUpdate)
		}
	case StatusFailed:
		if u.EndDate == nil {
			return fmt.Errorf("%w: failed requires an end date", vmjobs.ErrInvalidUpdate)
		}
		if u.ErrorInfo == "" {
			return fmt.Errorf("%w: failed requires error info", vmjobs.ErrInvalidUpdate)
		}
	}
	return nil
}

// Apply checks that j may move to u.Status and, if so, mutates j in place.
// End dates earlier than the recorded start date are clamped to it.
func (u Update) Apply(j *Job, now time.Time) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if !CanTransition(j.Status, u.Status) {
		return fmt.Errorf("%w: %s -> %s", vmjobs.ErrInvalidTransition, j.Status, u.Status)
	}

	j.Status = u.Status
	if u.StartDate != nil {
		t := u.StartDate.UTC()
		j.StartDate = &t
	}
	if u.EndDate != nil {
		t := u.EndDate.UTC()
		if j.StartDate != nil && t.Before(*j.StartDate) {
			t = *j.StartDate
		}
		j.EndDate = &t
	}
	if !u.WorkerID.IsNil() {
		j.WorkerID = u.WorkerID
	}
	if u.PID != 0 {
		j.PID = u.PID
	}
	if u.ErrorInfo != "" {
		j.ErrorInfo = u.ErrorInfo
	}
	if u.Output != "" {
		j.Output = u.Output
	}
	if u.Result != nil {
		j.Result = append([]byte(nil), u.Result...)
	}
	j.UpdatedAt = now.UTC()
	return nil
}
