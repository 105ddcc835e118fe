package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// maxUpdateAttempts bounds the read-apply-CAS loop in UpdateJobStatus.
const maxUpdateAttempts = 3

// insertScript creates the job hash only if it does not exist and appends
// its ID to the ordering set.
//
// KEYS[1] job hash, KEYS[2] order zset, KEYS[3] sequence counter.
// ARGV[1] job ID, ARGV[2:] field/value pairs.
var insertScript = goredis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
local seq = redis.call('INCR', KEYS[3])
redis.call('ZADD', KEYS[2], seq, ARGV[1])
return 1
`)

// casScript writes the given fields only while the stored status still
// equals ARGV[1]. Returns -1 when the hash is gone, 0 on a lost race.
//
// KEYS[1] job hash. ARGV[1] expected status, ARGV[2:] field/value pairs.
var casScript = goredis.NewScript(`
local cur = redis.call('HGET', KEYS[1], 'status')
if not cur then
	return -1
end
if cur ~= ARGV[1] then
	return 0
end
redis.call('HSET', KEYS[1], unpack(ARGV, 2))
return 1
`)

// InsertJob persists a new job record.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	jobID := j.ID.String()
	args := append([]any{jobID}, jobToArgs(j)...)
	res, err := insertScript.Run(ctx, s.client,
		[]string{s.jobKey(jobID), s.orderKey(), s.seqKey()}, args...).Int()
	if err != nil {
		return fmt.Errorf("vmjobs/redis: insert job: %w", err)
	}
	if res == 0 {
		return vmjobs.ErrJobAlreadyExists
	}
	return nil
}

// UpdateJobStatus applies u to the stored record. The record is read,
// transformed in Go and written back only if its status did not change in
// the meantime.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID id.JobID, u job.Update) error {
	if err := u.Validate(); err != nil {
		return err
	}
	key := s.jobKey(jobID.String())

	for attempt := 1; ; attempt++ {
		j, err := s.getJobByKey(ctx, key)
		if err != nil {
			return err
		}
		prev := j.Status
		if err := u.Apply(j, time.Now()); err != nil {
			return err
		}

		args := append([]any{string(prev)}, jobToArgs(j)...)
		res, err := casScript.Run(ctx, s.client, []string{key}, args...).Int()
		if err != nil {
			return fmt.Errorf("vmjobs/redis: update job status: %w", err)
		}
		switch res {
		case 1:
			return nil
		case -1:
			return vmjobs.ErrJobNotFound
		}
		if attempt >= maxUpdateAttempts {
			return fmt.Errorf("%w: job %s", vmjobs.ErrUpdateContention, jobID)
		}
		s.logger.Debug("job status changed concurrently, retrying",
			"job_id", jobID.String(),
			"attempt", attempt,
		)
	}
}

// QueryJobs returns matching records in insertion order.
func (s *Store) QueryJobs(ctx context.Context, f job.Filter) ([]*job.Job, error) {
	if !f.ID.IsNil() {
		j, err := s.GetJob(ctx, f.ID)
		if errors.Is(err, vmjobs.ErrJobNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if !f.Matches(j) {
			return nil, nil
		}
		return f.Page([]*job.Job{j}), nil
	}

	ids, err := s.client.ZRange(ctx, s.orderKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("vmjobs/redis: query jobs: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	for i, jobID := range ids {
		cmds[i] = pipe.HGetAll(ctx, s.jobKey(jobID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("vmjobs/redis: query jobs: %w", err)
	}

	var out []*job.Job
	for _, cmd := range cmds {
		vals := cmd.Val()
		// Deleted between ZRANGE and HGETALL.
		if len(vals) == 0 {
			continue
		}
		j, err := mapToJob(vals)
		if err != nil {
			return nil, err
		}
		if f.Matches(j) {
			out = append(out, j)
		}
	}
	return f.Page(out), nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	return s.getJobByKey(ctx, s.jobKey(jobID.String()))
}

// DeleteJob removes a job record in any status.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	key := s.jobKey(jobID.String())
	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, key)
	pipe.ZRem(ctx, s.orderKey(), jobID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("vmjobs/redis: delete job: %w", err)
	}
	if del.Val() == 0 {
		return vmjobs.ErrJobNotFound
	}
	return nil
}

func (s *Store) getJobByKey(ctx context.Context, key string) (*job.Job, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("vmjobs/redis: get job: %w", err)
	}
	if len(vals) == 0 {
		return nil, vmjobs.ErrJobNotFound
	}
	return mapToJob(vals)
}

// ── Hash encoding ───────────────────────────────────

func jobToArgs(j *job.Job) []any {
	args := []any{
		"id", j.ID.String(),
		"name", j.Name,
		"status", string(j.Status),
		"parameters", string(j.Parameters),
		"result", string(j.Result),
		"pid", strconv.Itoa(j.PID),
		"error_info", j.ErrorInfo,
		"output", j.Output,
		"created_at", j.CreatedAt.UTC().Format(time.RFC3339Nano),
		"updated_at", j.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if !j.WorkerID.IsNil() {
		args = append(args, "worker_id", j.WorkerID.String())
	}
	if j.StartDate != nil {
		args = append(args, "start_date", j.StartDate.UTC().Format(time.RFC3339Nano))
	}
	if j.EndDate != nil {
		args = append(args, "end_date", j.EndDate.UTC().Format(time.RFC3339Nano))
	}
	return args
}

func mapToJob(vals map[string]string) (*job.Job, error) {
	jobID, err := id.ParseJobID(vals["id"])
	if err != nil {
		return nil, fmt.Errorf("vmjobs/redis: parse job id: %w", err)
	}
	j := &job.Job{
		ID:        jobID,
		Name:      vals["name"],
		Status:    job.Status(vals["status"]),
		ErrorInfo: vals["error_info"],
		Output:    vals["output"],
	}
	if v := vals["parameters"]; v != "" {
		j.Parameters = []byte(v)
	}
	if v := vals["result"]; v != "" {
		j.Result = []byte(v)
	}
	if v := vals["pid"]; v != "" {
		if j.PID, err = strconv.Atoi(v); err != nil {
			return nil, fmt.Errorf("vmjobs/redis: job %s: parse pid: %w", jobID, err)
		}
	}
	if v := vals["worker_id"]; v != "" {
		if j.WorkerID, err = id.ParseWorkerID(v); err != nil {
			return nil, fmt.Errorf("vmjobs/redis: parse worker id: %w", err)
		}
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, vals["created_at"]); err != nil {
		return nil, fmt.Errorf("vmjobs/redis: job %s: parse created_at: %w", jobID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339Nano, vals["updated_at"]); err != nil {
		return nil, fmt.Errorf("vmjobs/redis: job %s: parse updated_at: %w", jobID, err)
	}
	if j.StartDate, err = parseOptionalTime(vals["start_date"]); err != nil {
		return nil, fmt.Errorf("vmjobs/redis: job %s: parse start_date: %w", jobID, err)
	}
	if j.EndDate, err = parseOptionalTime(vals["end_date"]); err != nil {
		return nil, fmt.Errorf("vmjobs/redis: job %s: parse end_date: %w", jobID, err)
	}
	return j, nil
}

func parseOptionalTime(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
