package memory_test

import (
	"context"
	"testing"

	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/store/memory"
	"github.com/darkh14/vmjobs/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) job.Store { return memory.New() })
}

func TestLifecycle(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

func TestCopyIsolation(t *testing.T) {
	s := memory.New()
	ctx := context.Background()

	j := job.New("fit", []byte(`{"a":1}`))
	if err := s.InsertJob(ctx, j); err != nil {
		t.Fatal(err)
	}
	j.Name = "mutated"

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "fit" {
		t.Errorf("caller mutation reached the store: %q", got.Name)
	}

	got.Status = job.StatusCompleted
	again, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatal(err)
	}
	if again.Status != job.StatusPending {
		t.Errorf("returned record shares state with the store: %s", again.Status)
	}
}
