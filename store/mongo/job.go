package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// maxUpdateAttempts bounds the read-apply-CAS loop in UpdateJobStatus.
const maxUpdateAttempts = 3

// InsertJob persists a new job record.
func (s *Store) InsertJob(ctx context.Context, j *job.Job) error {
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return err
	}
	m := toJobModel(j)
	m.Seq = seq

	if _, err := s.db.Collection(colJobs).InsertOne(ctx, m); err != nil {
		if mongod.IsDuplicateKeyError(err) {
			return vmjobs.ErrJobAlreadyExists
		}
		return fmt.Errorf("vmjobs/mongo: insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus applies u to the stored record. The write is filtered on
// the status that was read, so a concurrent transition makes it miss and
// the loop re-reads the record.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID id.JobID, u job.Update) error {
	if err := u.Validate(); err != nil {
		return err
	}
	col := s.db.Collection(colJobs)

	for attempt := 1; ; attempt++ {
		j, err := s.GetJob(ctx, jobID)
		if err != nil {
			return err
		}
		prev := j.Status
		if err := u.Apply(j, time.Now()); err != nil {
			return err
		}

		m := toJobModel(j)
		set := bson.M{
			"status":     m.Status,
			"pid":        m.PID,
			"updated_at": m.UpdatedAt,
		}
		if m.Result != nil {
			set["result"] = m.Result
		}
		if m.WorkerID != "" {
			set["worker_id"] = m.WorkerID
		}
		if m.ErrorInfo != "" {
			set["error_info"] = m.ErrorInfo
		}
		if m.Output != "" {
			set["output"] = m.Output
		}
		if m.StartDate != nil {
			set["start_date"] = *m.StartDate
		}
		if m.EndDate != nil {
			set["end_date"] = *m.EndDate
		}

		res, err := col.UpdateOne(ctx,
			bson.M{"_id": m.ID, "status": string(prev)},
			bson.M{"$set": set},
		)
		if err != nil {
			return fmt.Errorf("vmjobs/mongo: update job status: %w", err)
		}
		if res.MatchedCount == 1 {
			return nil
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
	findOpts := options.Find().SetSort(bson.D{{Key: "seq", Value: 1}})
	if f.Limit > 0 {
		findOpts.SetLimit(int64(f.Limit))
	}
	if f.Offset > 0 {
		findOpts.SetSkip(int64(f.Offset))
	}

	cursor, err := s.db.Collection(colJobs).Find(ctx, filterDoc(f), findOpts)
	if err != nil {
		return nil, fmt.Errorf("vmjobs/mongo: query jobs: %w", err)
	}
	defer cursor.Close(ctx)

	var models []jobModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("vmjobs/mongo: query jobs decode: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("vmjobs/mongo: query jobs convert: %w", convErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	var m jobModel
	err := s.db.Collection(colJobs).FindOne(ctx, bson.M{"_id": jobID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, vmjobs.ErrJobNotFound
		}
		return nil, fmt.Errorf("vmjobs/mongo: get job: %w", err)
	}
	j, err := fromJobModel(&m)
	if err != nil {
		return nil, fmt.Errorf("vmjobs/mongo: get job convert: %w", err)
	}
	return j, nil
}

// DeleteJob removes a job by ID in any status.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	res, err := s.db.Collection(colJobs).DeleteOne(ctx, bson.M{"_id": jobID.String()})
	if err != nil {
		return fmt.Errorf("vmjobs/mongo: delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return vmjobs.ErrJobNotFound
	}
	return nil
}

// nextSeq atomically increments the job sequence counter.
func (s *Store) nextSeq(ctx context.Context) (int64, error) {
	var c counterModel
	err := s.db.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": colJobs},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("vmjobs/mongo: next sequence: %w", err)
	}
	return c.Seq, nil
}

func filterDoc(f job.Filter) bson.M {
	doc := bson.M{}
	if !f.ID.IsNil() {
		doc["_id"] = f.ID.String()
	}
	if f.Name != "" {
		doc["name"] = f.Name
	}
	if f.Status != "" {
		doc["status"] = string(f.Status)
	}
	if r := rangeDoc(f.StartFrom, f.StartTo); r != nil {
		doc["start_date"] = r
	}
	if r := rangeDoc(f.EndFrom, f.EndTo); r != nil {
		doc["end_date"] = r
	}
	return doc
}

func rangeDoc(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	// $type excludes records where the date is absent.
	r := bson.M{"$type": "date"}
	if from != nil {
		r["$gte"] = from.UTC()
	}
	if to != nil {
		r["$lte"] = to.UTC()
	}
	return r
}
