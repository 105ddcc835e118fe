package jobinfo_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/action"
	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/jobinfo"
	"github.com/darkh14/vmjobs/store/memory"
)

func TestActions(t *testing.T) {
	s := memory.New()
	jobs := seed(t, s)
	svc := jobinfo.NewService(s, nil, slog.Default())

	tbl := action.NewTable()
	if err := tbl.Register(svc.Actions()...); err != nil {
		t.Fatalf("Register: %v", err)
	}
	ctx := context.Background()

	got, err := tbl.Dispatch(ctx, jobinfo.ActionGetInfo, job.Parameters{"filter": map[string]any{"status": "pending"}})
	if err != nil {
		t.Fatalf("jobs_get_info: %v", err)
	}
	res, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("result type = %T", got)
	}
	infos, ok := res["jobs"].([]jobinfo.Info)
	if !ok || len(infos) != 1 {
		t.Fatalf("jobs = %#v, want one info", res["jobs"])
	}

	if _, err := tbl.Dispatch(ctx, jobinfo.ActionDelete, job.Parameters{}); !errors.Is(err, vmjobs.ErrParameterNotFound) {
		t.Fatalf("jobs_delete without id err = %v, want ErrParameterNotFound", err)
	}
	if _, err := tbl.Dispatch(ctx, jobinfo.ActionDelete, job.Parameters{"id": "garbage"}); !errors.Is(err, vmjobs.ErrInvalidParameter) {
		t.Fatalf("jobs_delete bad id err = %v, want ErrInvalidParameter", err)
	}

	target := jobs[job.StatusFailed].ID.String()
	msg, err := tbl.Dispatch(ctx, jobinfo.ActionDelete, job.Parameters{"id": target})
	if err != nil {
		t.Fatalf("jobs_delete: %v", err)
	}
	if msg != `background job "`+target+`" is deleted` {
		t.Errorf("msg = %v", msg)
	}
}
