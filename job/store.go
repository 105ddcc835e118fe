package job

import (
	"context"

	"github.com/darkh14/vmjobs/id"
)

// Store defines the persistence contract for job records. Implementations
// must be safe for concurrent use, and every mutation must be durable when
// the call returns.
type Store interface {
	// InsertJob persists a new record. It returns vmjobs.ErrJobAlreadyExists
	// if a record with the same ID exists.
	InsertJob(ctx context.Context, j *Job) error

	// UpdateJobStatus moves a record to u.Status and applies the fields
	// carried by u. The transition check and the write are atomic per
	// record. It returns vmjobs.ErrJobNotFound, vmjobs.ErrInvalidTransition
	// or vmjobs.ErrInvalidUpdate. Compare-and-swap backends that lose every
	// retry return vmjobs.ErrUpdateContention.
	UpdateJobStatus(ctx context.Context, jobID id.JobID, u Update) error

	// QueryJobs returns the records matching f in insertion order.
	QueryJobs(ctx context.Context, f Filter) ([]*Job, error)

	// GetJob retrieves a record by ID.
	GetJob(ctx context.Context, jobID id.JobID) (*Job, error)

	// DeleteJob removes a record in any status. It returns
	// vmjobs.ErrJobNotFound if the record does not exist.
	DeleteJob(ctx context.Context, jobID id.JobID) error
}
