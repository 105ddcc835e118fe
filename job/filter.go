package job

import (
	"time"

	"github.com/darkh14/vmjobs/id"
)

// Filter selects job records. Every field is optional and the zero Filter
// matches all records. Time bounds are inclusive; a record without the
// bounded date never matches a bound on that date.
type Filter struct {
	ID        id.JobID
	Name      string
	Status    Status
	StartFrom *time.Time
	StartTo   *time.Time
	EndFrom   *time.Time
	EndTo     *time.Time

	// Limit is the maximum number of records to return. Zero means no limit.
	Limit int
	// Offset is the number of matching records to skip.
	Offset int
}

// Matches reports whether j satisfies every predicate of f. Limit and
// Offset are not considered.
func (f Filter) Matches(j *Job) bool {
	if !f.ID.IsNil() && f.ID.String() != j.ID.String() {
		return false
	}
	if f.Name != "" && f.Name != j.Name {
		return false
	}
	if f.Status != "" && f.Status != j.Status {
		return false
	}
	if !inRange(j.StartDate, f.StartFrom, f.StartTo) {
		return false
	}
	return inRange(j.EndDate, f.EndFrom, f.EndTo)
}

// Page applies Offset and Limit to an already filtered, ordered slice.
func (f Filter) Page(jobs []*Job) []*Job {
	if f.Offset > 0 {
		if f.Offset >= len(jobs) {
			return nil
		}
		jobs = jobs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(jobs) {
		jobs = jobs[:f.Limit]
	}
	return jobs
}

func inRange(t, from, to *time.Time) bool {
	if from == nil && to == nil {
		return true
	}
	if t == nil {
		return false
	}
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && t.After(*to) {
		return false
	}
	return true
}
