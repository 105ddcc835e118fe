package bunstore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/uptrace/bun"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// maxUpdateAttempts bounds the compare-and-swap loop. A record accepts at
// most two transitions, so a third lost race cannot happen.
const maxUpdateAttempts = 3

// InsertJob persists a new record.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return vmjobs.ErrJobAlreadyExists
		}
		return fmt.Errorf("vmjobs/bun: insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus applies u with a compare-and-swap on the current status.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID id.JobID, u job.Update) error {
	for range maxUpdateAttempts {
		m, err := s.getModel(ctx, jobID)
		if err != nil {
			return err
		}
		j, err := fromJobModel(m)
		if err != nil {
			return err
		}

		from := j.Status
		if err := u.Apply(j, time.Now()); err != nil {
			return err
		}

		next := toJobModel(j)
		res, err := s.db.NewUpdate().
			Model(next).
			Column("status", "result", "worker_id", "pid", "error_info", "output", "start_date", "end_date", "updated_at").
			Where("id = ?", jobID.String()).
			Where("status = ?", string(from)).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("vmjobs/bun: update job status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("vmjobs/bun: update job status rows: %w", err)
		}
		if n > 0 {
			return nil
		}
		s.logger.Debug("job status changed concurrently, retrying",
			slog.String("job_id", jobID.String()),
			slog.String("from", string(from)),
		)
	}
	return fmt.Errorf("%w: job %s", vmjobs.ErrUpdateContention, jobID)
}

// QueryJobs returns matching records in insertion order.
func (s *Store) QueryJobs(ctx context.Context, f job.Filter) ([]*job.Job, error) {
	var models []jobModel
	q := s.db.NewSelect().Model(&models).Apply(filterQuery(f)).Order("seq ASC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		if f.Limit <= 0 {
			// MySQL and SQLite reject OFFSET without LIMIT.
			q = q.Limit(1 << 31)
		}
		q = q.Offset(f.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("vmjobs/bun: query jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, err := fromJobModel(&models[i])
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m, err := s.getModel(ctx, jobID)
	if err != nil {
		return nil, err
	}
	return fromJobModel(m)
}

// DeleteJob removes a record in any status.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.NewDelete().
		Model((*jobModel)(nil)).
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("vmjobs/bun: delete job: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("vmjobs/bun: delete job rows: %w", err)
	}
	if n == 0 {
		return vmjobs.ErrJobNotFound
	}
	return nil
}

func (s *Store) getModel(ctx context.Context, jobID id.JobID) (*jobModel, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).Where("id = ?", jobID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, vmjobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("vmjobs/bun: get job: %w", err)
	}
	return m, nil
}

// filterQuery renders the filter predicates onto a select query.
func filterQuery(f job.Filter) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		if !f.ID.IsNil() {
			q = q.Where("id = ?", f.ID.String())
		}
		if f.Name != "" {
			q = q.Where("name = ?", f.Name)
		}
		if f.Status != "" {
			q = q.Where("status = ?", string(f.Status))
		}
		if f.StartFrom != nil {
			q = q.Where("start_date >= ?", f.StartFrom.UTC())
		}
		if f.StartTo != nil {
			q = q.Where("start_date <= ?", f.StartTo.UTC())
		}
		if f.EndFrom != nil {
			q = q.Where("end_date >= ?", f.EndFrom.UTC())
		}
		if f.EndTo != nil {
			q = q.Where("end_date <= ?", f.EndTo.UTC())
		}
		return q
	}
}
