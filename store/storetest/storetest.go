// Package storetest provides a conformance suite for job.Store
// implementations. Backend packages call Run from their own tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// Factory returns an empty store for one subtest.
type Factory func(t *testing.T) job.Store

// timeTolerance covers backends that truncate timestamps (MongoDB keeps
// milliseconds, MySQL DATETIME(6) microseconds).
const timeTolerance = time.Millisecond

// Run executes every conformance test against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s job.Store)
	}{
		{"InsertAndGet", testInsertAndGet},
		{"InsertDuplicate", testInsertDuplicate},
		{"GetNotFound", testGetNotFound},
		{"CompleteLifecycle", testCompleteLifecycle},
		{"FailFromPending", testFailFromPending},
		{"UpdateNotFound", testUpdateNotFound},
		{"TerminalIsFinal", testTerminalIsFinal},
		{"SkipRunningRejected", testSkipRunningRejected},
		{"InvalidUpdateRejected", testInvalidUpdateRejected},
		{"OutputOnCompletion", testOutputOnCompletion},
		{"OutputOnFailure", testOutputOnFailure},
		{"OutputWhileRunningRejected", testOutputWhileRunningRejected},
		{"QueryInsertionOrder", testQueryInsertionOrder},
		{"QueryByStatus", testQueryByStatus},
		{"QueryByID", testQueryByID},
		{"QueryByDateRange", testQueryByDateRange},
		{"QueryPaging", testQueryPaging},
		{"Delete", testDelete},
		{"DeleteNotFound", testDeleteNotFound},
		{"DeleteRunning", testDeleteRunning},
		{"ConcurrentTransition", testConcurrentTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newJob(name string, created time.Time) *job.Job {
	j := job.New(name, []byte(`{"model_id":"m1"}`))
	j.CreatedAt = created.UTC()
	j.UpdatedAt = j.CreatedAt
	return j
}

func base() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func insert(t *testing.T, s job.Store, j *job.Job) {
	t.Helper()
	if err := s.InsertJob(context.Background(), j); err != nil {
		t.Fatalf("insert %s: %v", j.ID, err)
	}
}

func update(t *testing.T, s job.Store, jobID id.JobID, u job.Update) {
	t.Helper()
	if err := s.UpdateJobStatus(context.Background(), jobID, u); err != nil {
		t.Fatalf("update %s to %s: %v", jobID, u.Status, err)
	}
}

func get(t *testing.T, s job.Store, jobID id.JobID) *job.Job {
	t.Helper()
	j, err := s.GetJob(context.Background(), jobID)
	if err != nil {
		t.Fatalf("get %s: %v", jobID, err)
	}
	return j
}

func query(t *testing.T, s job.Store, f job.Filter) []*job.Job {
	t.Helper()
	jobs, err := s.QueryJobs(context.Background(), f)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	return jobs
}

func sameTime(a, b time.Time) bool {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return d < timeTolerance
}

func ids(jobs []*job.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.ID.String()
	}
	return out
}

func expectIDs(t *testing.T, got []*job.Job, want ...*job.Job) {
	t.Helper()
	g := ids(got)
	w := ids(want)
	if fmt.Sprint(g) != fmt.Sprint(w) {
		t.Fatalf("ids = %v, want %v", g, w)
	}
}

func testInsertAndGet(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)

	got := get(t, s, j.ID)
	if got.ID.String() != j.ID.String() {
		t.Errorf("id = %q, want %q", got.ID, j.ID)
	}
	if got.Name != "fit" || got.Status != job.StatusPending {
		t.Errorf("name/status = %q/%q", got.Name, got.Status)
	}
	if string(got.Parameters) != `{"model_id":"m1"}` {
		t.Errorf("parameters = %s", got.Parameters)
	}
	if got.StartDate != nil || got.EndDate != nil || got.ErrorInfo != "" || !got.WorkerID.IsNil() {
		t.Errorf("pending record carries execution fields: %+v", got)
	}
	if !sameTime(got.CreatedAt, j.CreatedAt) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, j.CreatedAt)
	}
}

func testInsertDuplicate(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)

	err := s.InsertJob(context.Background(), j)
	if !errors.Is(err, vmjobs.ErrJobAlreadyExists) {
		t.Fatalf("expected ErrJobAlreadyExists, got %v", err)
	}
}

func testGetNotFound(t *testing.T, s job.Store) {
	_, err := s.GetJob(context.Background(), id.NewJobID())
	if !errors.Is(err, vmjobs.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func testCompleteLifecycle(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)

	start := base()
	workerID := id.NewWorkerID()
	update(t, s, j.ID, job.Running(workerID, 1234, start))

	got := get(t, s, j.ID)
	if got.Status != job.StatusRunning {
		t.Fatalf("status = %s, want running", got.Status)
	}
	if got.StartDate == nil || !sameTime(*got.StartDate, start) {
		t.Errorf("start_date = %v, want %v", got.StartDate, start)
	}
	if got.WorkerID.String() != workerID.String() || got.PID != 1234 {
		t.Errorf("worker = %q pid = %d", got.WorkerID, got.PID)
	}
	if got.EndDate != nil {
		t.Error("running record has an end date")
	}

	end := start.Add(250 * time.Millisecond)
	update(t, s, j.ID, job.Completed([]byte(`{"score":0.9}`), end))

	got = get(t, s, j.ID)
	if got.Status != job.StatusCompleted {
		t.Fatalf("status = %s, want completed", got.Status)
	}
	if got.EndDate == nil || !sameTime(*got.EndDate, end) {
		t.Errorf("end_date = %v, want %v", got.EndDate, end)
	}
	if got.EndDate.Before(*got.StartDate) {
		t.Error("end_date before start_date")
	}
	if string(got.Result) != `{"score":0.9}` {
		t.Errorf("result = %s", got.Result)
	}
	if got.WorkerID.String() != workerID.String() {
		t.Error("worker id changed after start")
	}
}

func testFailFromPending(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)

	update(t, s, j.ID, job.Failed("store unavailable", base()))

	got := get(t, s, j.ID)
	if got.Status != job.StatusFailed || got.ErrorInfo != "store unavailable" {
		t.Fatalf("status/error = %s/%q", got.Status, got.ErrorInfo)
	}
	if got.EndDate == nil {
		t.Error("failed record without end date")
	}
}

func testUpdateNotFound(t *testing.T, s job.Store) {
	err := s.UpdateJobStatus(context.Background(), id.NewJobID(), job.Running(id.NewWorkerID(), 1, base()))
	if !errors.Is(err, vmjobs.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}

func testTerminalIsFinal(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)
	update(t, s, j.ID, job.Running(id.NewWorkerID(), 1, base()))
	update(t, s, j.ID, job.Failed("disk full", base()))

	for _, u := range []job.Update{
		job.Running(id.NewWorkerID(), 2, base()),
		job.Completed(nil, base()),
		job.Failed("again", base()),
	} {
		err := s.UpdateJobStatus(context.Background(), j.ID, u)
		if !errors.Is(err, vmjobs.ErrInvalidTransition) {
			t.Errorf("failed -> %s: expected ErrInvalidTransition, got %v", u.Status, err)
		}
	}

	got := get(t, s, j.ID)
	if got.Status != job.StatusFailed || got.ErrorInfo != "disk full" {
		t.Errorf("terminal record mutated: %s/%q", got.Status, got.ErrorInfo)
	}
}

func testSkipRunningRejected(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)

	err := s.UpdateJobStatus(context.Background(), j.ID, job.Completed(nil, base()))
	if !errors.Is(err, vmjobs.ErrInvalidTransition) {
		t.Fatalf("pending -> completed: expected ErrInvalidTransition, got %v", err)
	}
	if got := get(t, s, j.ID); got.Status != job.StatusPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func testInvalidUpdateRejected(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)
	update(t, s, j.ID, job.Running(id.NewWorkerID(), 1, base()))

	end := base()
	err := s.UpdateJobStatus(context.Background(), j.ID, job.Update{Status: job.StatusFailed, EndDate: &end})
	if !errors.Is(err, vmjobs.ErrInvalidUpdate) {
		t.Fatalf("expected ErrInvalidUpdate, got %v", err)
	}
}

func testOutputOnCompletion(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)
	update(t, s, j.ID, job.Running(id.NewWorkerID(), 1, base()))

	output := "level=INFO msg=\"epoch done\" epoch=1\nlevel=INFO msg=\"epoch done\" epoch=2\n"
	update(t, s, j.ID, job.Completed([]byte(`{}`), base()).WithOutput(output))

	if got := get(t, s, j.ID); got.Output != output {
		t.Fatalf("output = %q, want %q", got.Output, output)
	}
}

func testOutputOnFailure(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)
	update(t, s, j.ID, job.Running(id.NewWorkerID(), 1, base()))
	update(t, s, j.ID, job.Failed("boom", base()).WithOutput("level=WARN msg=retrying\n"))

	got := get(t, s, j.ID)
	if got.ErrorInfo != "boom" || got.Output != "level=WARN msg=retrying\n" {
		t.Fatalf("error/output = %q/%q", got.ErrorInfo, got.Output)
	}
}

func testOutputWhileRunningRejected(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)

	err := s.UpdateJobStatus(context.Background(), j.ID,
		job.Running(id.NewWorkerID(), 1, base()).WithOutput("early"))
	if !errors.Is(err, vmjobs.ErrInvalidUpdate) {
		t.Fatalf("expected ErrInvalidUpdate, got %v", err)
	}
	got := get(t, s, j.ID)
	if got.Status != job.StatusPending || got.Output != "" {
		t.Errorf("record mutated: %s/%q", got.Status, got.Output)
	}
}

func testQueryInsertionOrder(t *testing.T, s job.Store) {
	b := base()
	var jobs []*job.Job
	for i := range 5 {
		j := newJob(fmt.Sprintf("job-%d", i), b.Add(time.Duration(i)*10*time.Millisecond))
		insert(t, s, j)
		jobs = append(jobs, j)
	}

	expectIDs(t, query(t, s, job.Filter{}), jobs...)
}

func testQueryByStatus(t *testing.T, s job.Store) {
	b := base()
	a := newJob("a", b)
	c := newJob("c", b.Add(10*time.Millisecond))
	p := newJob("p", b.Add(20*time.Millisecond))
	d := newJob("d", b.Add(30*time.Millisecond))
	for _, j := range []*job.Job{a, c, p, d} {
		insert(t, s, j)
	}
	for _, j := range []*job.Job{d, a} {
		update(t, s, j.ID, job.Running(id.NewWorkerID(), 1, base()))
		update(t, s, j.ID, job.Completed(nil, base()))
	}
	update(t, s, c.ID, job.Running(id.NewWorkerID(), 1, base()))

	expectIDs(t, query(t, s, job.Filter{Status: job.StatusCompleted}), a, d)
	expectIDs(t, query(t, s, job.Filter{Status: job.StatusRunning}), c)
	expectIDs(t, query(t, s, job.Filter{Status: job.StatusPending}), p)
	expectIDs(t, query(t, s, job.Filter{Status: job.StatusFailed}))
}

func testQueryByID(t *testing.T, s job.Store) {
	a := newJob("a", base())
	b := newJob("b", base().Add(10*time.Millisecond))
	insert(t, s, a)
	insert(t, s, b)

	expectIDs(t, query(t, s, job.Filter{ID: b.ID}), b)
	expectIDs(t, query(t, s, job.Filter{ID: id.NewJobID()}))
	expectIDs(t, query(t, s, job.Filter{ID: a.ID, Status: job.StatusRunning}))
	expectIDs(t, query(t, s, job.Filter{Name: "a"}), a)
}

func testQueryByDateRange(t *testing.T, s job.Store) {
	b := base()
	early := newJob("early", b)
	late := newJob("late", b.Add(10*time.Millisecond))
	never := newJob("never", b.Add(20*time.Millisecond))
	for _, j := range []*job.Job{early, late, never} {
		insert(t, s, j)
	}

	t0 := b.Add(-time.Hour)
	t1 := b.Add(time.Hour)
	update(t, s, early.ID, job.Running(id.NewWorkerID(), 1, t0))
	update(t, s, early.ID, job.Completed(nil, t0.Add(time.Minute)))
	update(t, s, late.ID, job.Running(id.NewWorkerID(), 1, t1))

	mid := b
	expectIDs(t, query(t, s, job.Filter{StartTo: &mid}), early)
	expectIDs(t, query(t, s, job.Filter{StartFrom: &mid}), late)

	from := t0.Add(-time.Second)
	expectIDs(t, query(t, s, job.Filter{StartFrom: &from}), early, late)
	expectIDs(t, query(t, s, job.Filter{EndFrom: &from}), early)

	to := t0.Add(2 * time.Minute)
	expectIDs(t, query(t, s, job.Filter{EndFrom: &from, EndTo: &to}), early)
}

func testQueryPaging(t *testing.T, s job.Store) {
	b := base()
	var jobs []*job.Job
	for i := range 4 {
		j := newJob("page", b.Add(time.Duration(i)*10*time.Millisecond))
		insert(t, s, j)
		jobs = append(jobs, j)
	}

	expectIDs(t, query(t, s, job.Filter{Limit: 2}), jobs[0], jobs[1])
	expectIDs(t, query(t, s, job.Filter{Limit: 2, Offset: 2}), jobs[2], jobs[3])
	expectIDs(t, query(t, s, job.Filter{Offset: 3}), jobs[3])
}

func testDelete(t *testing.T, s job.Store) {
	a := newJob("a", base())
	b := newJob("b", base().Add(10*time.Millisecond))
	insert(t, s, a)
	insert(t, s, b)

	if err := s.DeleteJob(context.Background(), a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetJob(context.Background(), a.ID); !errors.Is(err, vmjobs.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound after delete, got %v", err)
	}
	expectIDs(t, query(t, s, job.Filter{ID: a.ID}))
	expectIDs(t, query(t, s, job.Filter{}), b)
}

func testDeleteNotFound(t *testing.T, s job.Store) {
	a := newJob("a", base())
	insert(t, s, a)

	err := s.DeleteJob(context.Background(), id.NewJobID())
	if !errors.Is(err, vmjobs.ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
	expectIDs(t, query(t, s, job.Filter{}), a)
}

func testDeleteRunning(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)
	update(t, s, j.ID, job.Running(id.NewWorkerID(), 1, base()))

	if err := s.DeleteJob(context.Background(), j.ID); err != nil {
		t.Fatalf("delete running: %v", err)
	}
	err := s.UpdateJobStatus(context.Background(), j.ID, job.Completed(nil, base()))
	if !errors.Is(err, vmjobs.ErrJobNotFound) {
		t.Fatalf("update after delete: expected ErrJobNotFound, got %v", err)
	}
}

func testConcurrentTransition(t *testing.T, s job.Store) {
	j := newJob("fit", base())
	insert(t, s, j)

	const n = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
		invalid int
	)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.UpdateJobStatus(context.Background(), j.ID, job.Running(id.NewWorkerID(), i+1, base()))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, vmjobs.ErrInvalidTransition):
				invalid++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 || invalid != n-1 {
		t.Fatalf("success = %d, invalid = %d; want 1 and %d", success, invalid, n-1)
	}
}
