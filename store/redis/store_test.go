package redis_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
	redisstore "github.com/darkh14/vmjobs/store/redis"
	"github.com/darkh14/vmjobs/store/storetest"
)

func newStore(t *testing.T, opts ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisstore.New(client, opts...), mr
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) job.Store {
		s, _ := newStore(t)
		return s
	})
}

func TestKeyPrefix(t *testing.T) {
	s, mr := newStore(t, redisstore.WithKeyPrefix("test:"))
	ctx := context.Background()

	j := job.New("prefixed", []byte(`{}`))
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}

	if !mr.Exists("test:job:" + j.ID.String()) {
		t.Fatalf("expected hash under custom prefix, keys = %v", mr.Keys())
	}
	if !mr.Exists("test:jobs") {
		t.Fatalf("expected order set under custom prefix, keys = %v", mr.Keys())
	}
}

func TestDeleteRemovesIndex(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	j := job.New("deleted", nil)
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	if err := s.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}

	members, err := mr.ZMembers("vmjobs:jobs")
	if err != nil && err != miniredis.ErrKeyNotFound {
		t.Fatalf("ZMembers: %v", err)
	}
	if len(members) != 0 {
		t.Fatalf("order set still holds %v", members)
	}
}

func TestLifecycle(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestCorruptFieldsAreReported(t *testing.T) {
	tests := []struct {
		field string
		value string
	}{
		{"pid", "not-a-number"},
		{"created_at", "yesterday"},
		{"updated_at", ""},
		{"start_date", "2024-13-45"},
		{"end_date", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			s, mr := newStore(t)
			ctx := context.Background()

			j := job.New("corrupt", []byte(`{}`))
			if err := s.InsertJob(ctx, j); err != nil {
				t.Fatalf("InsertJob: %v", err)
			}
			mr.HSet("vmjobs:job:"+j.ID.String(), tt.field, tt.value)

			_, err := s.GetJob(ctx, j.ID)
			if err == nil {
				t.Fatalf("GetJob accepted %s = %q", tt.field, tt.value)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("error %q does not name field %s", err, tt.field)
			}
			if _, err := s.QueryJobs(ctx, job.Filter{}); err == nil {
				t.Errorf("QueryJobs accepted %s = %q", tt.field, tt.value)
			}
		})
	}
}

func TestOutputStored(t *testing.T) {
	s, mr := newStore(t)
	ctx := context.Background()

	j := job.New("noisy", []byte(`{}`))
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatalf("InsertJob: %v", err)
	}
	if err := s.UpdateJobStatus(ctx, j.ID, job.Running(id.NewWorkerID(), 7, time.Now())); err != nil {
		t.Fatalf("running: %v", err)
	}
	if err := s.UpdateJobStatus(ctx, j.ID, job.Completed([]byte(`1`), time.Now()).WithOutput("line one\n")); err != nil {
		t.Fatalf("completed: %v", err)
	}
	if got := mr.HGet("vmjobs:job:"+j.ID.String(), "output"); got != "line one\n" {
		t.Fatalf("output field = %q", got)
	}
}
