package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

const jobColumns = `id, name, status, parameters, result, worker_id, pid, error_info,
	output, start_date, end_date, created_at, updated_at`

// InsertJob persists a new record.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vmjobs_jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		j.ID.String(), j.Name, string(j.Status), j.Parameters, j.Result,
		j.WorkerID.String(), j.PID, j.ErrorInfo, j.Output,
		j.StartDate, j.EndDate, j.CreatedAt, j.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return vmjobs.ErrJobAlreadyExists
		}
		return fmt.Errorf("vmjobs/postgres: insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus locks the row, applies u and writes it back in one
// transaction.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID id.JobID, u job.Update) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx,
			`SELECT `+jobColumns+` FROM vmjobs_jobs WHERE id = $1 FOR UPDATE`,
			jobID.String(),
		)
		j, err := scanJob(row)
		if err != nil {
			if isNoRows(err) {
				return vmjobs.ErrJobNotFound
			}
			return fmt.Errorf("vmjobs/postgres: lock job: %w", err)
		}

		if err := u.Apply(j, time.Now()); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE vmjobs_jobs SET
				status = $2, result = $3, worker_id = $4, pid = $5, error_info = $6,
				output = $7, start_date = $8, end_date = $9, updated_at = $10
			WHERE id = $1`,
			jobID.String(), string(j.Status), j.Result, j.WorkerID.String(), j.PID,
			j.ErrorInfo, j.Output, j.StartDate, j.EndDate, j.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("vmjobs/postgres: update job status: %w", err)
		}
		return nil
	})
}

// QueryJobs returns matching records ordered by insertion sequence.
func (s *Store) QueryJobs(ctx context.Context, f job.Filter) ([]*job.Job, error) {
	where, args := buildWhere(f)

	q := `SELECT ` + jobColumns + ` FROM vmjobs_jobs` + where + ` ORDER BY seq ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("vmjobs/postgres: query jobs: %w", err)
	}
	defer rows.Close()

	return collectJobs(rows)
}

// GetJob retrieves a record by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM vmjobs_jobs WHERE id = $1`,
		jobID.String(),
	)
	j, err := scanJob(row)
	if err != nil {
		if isNoRows(err) {
			return nil, vmjobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("vmjobs/postgres: get job: %w", err)
	}
	return j, nil
}

// DeleteJob removes a record in any status.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vmjobs_jobs WHERE id = $1`, jobID.String())
	if err != nil {
		return fmt.Errorf("vmjobs/postgres: delete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return vmjobs.ErrJobNotFound
	}
	return nil
}

// buildWhere renders the filter predicates as a WHERE clause with
// positional arguments.
func buildWhere(f job.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, strings.ReplaceAll(cond, "?", "$"+strconv.Itoa(len(args))))
	}

	if !f.ID.IsNil() {
		add("id = ?", f.ID.String())
	}
	if f.Name != "" {
		add("name = ?", f.Name)
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.StartFrom != nil {
		add("start_date >= ?", *f.StartFrom)
	}
	if f.StartTo != nil {
		add("start_date <= ?", *f.StartTo)
	}
	if f.EndFrom != nil {
		add("end_date >= ?", *f.EndFrom)
	}
	if f.EndTo != nil {
		add("end_date <= ?", *f.EndTo)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(row scanner) (*job.Job, error) {
	var (
		j         job.Job
		jobID     string
		status    string
		workerID  string
		startDate *time.Time
		endDate   *time.Time
	)
	err := row.Scan(
		&jobID, &j.Name, &status, &j.Parameters, &j.Result, &workerID, &j.PID, &j.ErrorInfo,
		&j.Output, &startDate, &endDate, &j.CreatedAt, &j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if j.ID, err = id.ParseJobID(jobID); err != nil {
		return nil, fmt.Errorf("vmjobs/postgres: scan job id: %w", err)
	}
	if workerID != "" {
		if j.WorkerID, err = id.ParseWorkerID(workerID); err != nil {
			return nil, fmt.Errorf("vmjobs/postgres: scan worker id: %w", err)
		}
	}
	j.Status = job.Status(status)
	j.StartDate = utc(startDate)
	j.EndDate = utc(endDate)
	j.CreatedAt = j.CreatedAt.UTC()
	j.UpdatedAt = j.UpdatedAt.UTC()
	return &j, nil
}

func collectJobs(rows pgx.Rows) ([]*job.Job, error) {
	var jobs []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("vmjobs/postgres: scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("vmjobs/postgres: iterate jobs: %w", err)
	}
	return jobs, nil
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
