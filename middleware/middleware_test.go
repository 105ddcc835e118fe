package middleware_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/middleware"
)

func TestChain_ExecutionOrder(t *testing.T) {
	var order []string

	mw1 := func(ctx context.Context, _ *job.Job, next middleware.Handler) (any, error) {
		order = append(order, "mw1-before")
		res, err := next(ctx)
		order = append(order, "mw1-after")
		return res, err
	}

	mw2 := func(ctx context.Context, _ *job.Job, next middleware.Handler) (any, error) {
		order = append(order, "mw2-before")
		res, err := next(ctx)
		order = append(order, "mw2-after")
		return res, err
	}

	chain := middleware.Chain(mw1, mw2)
	j := &job.Job{Name: "test", ID: id.NewJobID()}
	handler := func(_ context.Context) (any, error) {
		order = append(order, "handler")
		return "done", nil
	}

	res, err := chain(context.Background(), j, handler)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != "done" {
		t.Fatalf("result = %v, want %q", res, "done")
	}

	expected := []string{"mw1-before", "mw2-before", "handler", "mw2-after", "mw1-after"}
	if len(order) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(order), order)
	}
	for i, want := range expected {
		if order[i] != want {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	handler := func(_ context.Context) (any, error) {
		called = true
		return nil, nil
	}

	if _, err := chain(context.Background(), &job.Job{ID: id.NewJobID()}, handler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called with empty chain")
	}
}

func TestChain_PropagatesError(t *testing.T) {
	mw := func(ctx context.Context, _ *job.Job, next middleware.Handler) (any, error) {
		return next(ctx)
	}
	chain := middleware.Chain(mw)
	want := errors.New("handler error")

	_, err := chain(context.Background(), &job.Job{ID: id.NewJobID()}, func(_ context.Context) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestRecover_CatchesPanic(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	j := &job.Job{Name: "panicky", ID: id.NewJobID()}

	res, err := mw(context.Background(), j, func(_ context.Context) (any, error) {
		panic("test panic")
	})
	if err == nil {
		t.Fatal("expected error from panic recovery")
	}
	if got := err.Error(); got != "panic in job panicky: test panic" {
		t.Errorf("unexpected error message: %q", got)
	}
	if res != nil {
		t.Errorf("expected nil result after panic, got %v", res)
	}
}

func TestRecover_PassesThrough(t *testing.T) {
	mw := middleware.Recover(slog.Default())
	j := &job.Job{Name: "normal", ID: id.NewJobID()}

	res, err := mw(context.Background(), j, func(_ context.Context) (any, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res != 42 {
		t.Fatalf("result = %v, want 42", res)
	}
}

func TestLogging_Success(t *testing.T) {
	mw := middleware.Logging(slog.Default())
	j := &job.Job{Name: "log-test", ID: id.NewJobID()}

	called := false
	_, err := mw(context.Background(), j, func(_ context.Context) (any, error) {
		called = true
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("handler not called")
	}
}

func TestLogging_Error(t *testing.T) {
	mw := middleware.Logging(slog.Default())
	j := &job.Job{Name: "log-test", ID: id.NewJobID()}
	want := errors.New("fail")

	_, err := mw(context.Background(), j, func(_ context.Context) (any, error) {
		return nil, want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected %v, got %v", want, err)
	}
}

func TestTimeout_SetsDeadline(t *testing.T) {
	mw := middleware.Timeout(50*time.Millisecond, slog.Default())
	j := &job.Job{Name: "slow", ID: id.NewJobID()}

	_, err := mw(context.Background(), j, func(ctx context.Context) (any, error) {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("expected deadline on context")
		}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestTimeout_ZeroDisables(t *testing.T) {
	mw := middleware.Timeout(0, slog.Default())
	j := &job.Job{Name: "unbounded", ID: id.NewJobID()}

	_, err := mw(context.Background(), j, func(ctx context.Context) (any, error) {
		if _, ok := ctx.Deadline(); ok {
			t.Error("expected no deadline on context")
		}
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
