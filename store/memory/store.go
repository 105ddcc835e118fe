// Package memory implements store.Store in process memory. It is safe for
// concurrent access and intended for tests, development and single-process
// deployments that accept losing job history on restart.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/store"
)

var _ store.Store = (*Store)(nil)

// Store keeps job records in a map plus an insertion-ordered index.
// Records are copied on the way in and out.
type Store struct {
	mu sync.RWMutex

	jobs  map[string]*job.Job
	order []string
}

// New returns a new empty Store.
func New() *Store {
	return &Store{jobs: make(map[string]*job.Job)}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// InsertJob persists a new record.
func (m *Store) InsertJob(_ context.Context, j *job.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := j.ID.String()
	if _, exists := m.jobs[key]; exists {
		return vmjobs.ErrJobAlreadyExists
	}
	m.jobs[key] = j.Clone()
	m.order = append(m.order, key)
	return nil
}

// UpdateJobStatus applies u to the record under the write lock.
func (m *Store) UpdateJobStatus(_ context.Context, jobID id.JobID, u job.Update) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return vmjobs.ErrJobNotFound
	}
	next := j.Clone()
	if err := u.Apply(next, time.Now()); err != nil {
		return err
	}
	m.jobs[jobID.String()] = next
	return nil
}

// QueryJobs returns matching records in insertion order.
func (m *Store) QueryJobs(_ context.Context, f job.Filter) ([]*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*job.Job
	for _, key := range m.order {
		j := m.jobs[key]
		if f.Matches(j) {
			out = append(out, j.Clone())
		}
	}
	return f.Page(out), nil
}

// GetJob retrieves a record by ID.
func (m *Store) GetJob(_ context.Context, jobID id.JobID) (*job.Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	j, ok := m.jobs[jobID.String()]
	if !ok {
		return nil, vmjobs.ErrJobNotFound
	}
	return j.Clone(), nil
}

// DeleteJob removes a record in any status.
func (m *Store) DeleteJob(_ context.Context, jobID id.JobID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := jobID.String()
	if _, ok := m.jobs[key]; !ok {
		return vmjobs.ErrJobNotFound
	}
	delete(m.jobs, key)
	if i := slices.Index(m.order, key); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
	return nil
}
