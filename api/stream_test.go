package api_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/stream"
)

func TestStreamJobs(t *testing.T) {
	tests := []struct {
		codec string
		op    ws.OpCode
	}{
		{stream.CodecNameJSON, ws.OpText},
		{stream.CodecNameMsgpack, ws.OpBinary},
	}

	for _, tt := range tests {
		t.Run(tt.codec, func(t *testing.T) {
			env := newTestEnv(t)
			srv := httptest.NewServer(env.handler)
			defer srv.Close()

			url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/jobs/stream?codec=" + tt.codec
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			conn, _, _, err := ws.Dial(ctx, url)
			if err != nil {
				t.Fatalf("Dial: %v", err)
			}
			defer conn.Close()

			// Wait until the server registered the subscriber.
			deadline := time.Now().Add(2 * time.Second)
			for env.eng.Broker().Stats().SubscriberCount == 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}

			jobID, err := env.eng.Launch(context.Background(), "fit", nil, func(context.Context, job.Parameters) (any, error) {
				return nil, nil
			})
			if err != nil {
				t.Fatalf("Launch: %v", err)
			}

			codec := stream.GetCodec(tt.codec)
			_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			want := []stream.EventType{stream.EventJobLaunched, stream.EventJobStarted, stream.EventJobCompleted}
			for _, wantType := range want {
				data, op, err := wsutil.ReadServerData(conn)
				if err != nil {
					t.Fatalf("ReadServerData: %v", err)
				}
				if op != tt.op {
					t.Errorf("opcode = %v, want %v", op, tt.op)
				}
				evt, err := codec.Decode(data)
				if err != nil {
					t.Fatalf("Decode: %v", err)
				}
				if evt.Type != wantType {
					t.Fatalf("event type = %q, want %q", evt.Type, wantType)
				}
				if evt.Data.JobID != jobID.String() {
					t.Errorf("event job id = %q, want %q", evt.Data.JobID, jobID)
				}
			}
		})
	}
}

func TestStreamRejectsBadTopic(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/v1/jobs/stream?topic=workflows", "")
	if rec.Code != 400 {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestStreamRejectsBadType(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, "GET", "/v1/jobs/stream?type=job.exploded", "")
	if rec.Code != 400 {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestStreamSelectsTypes(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/jobs/stream?type=job.completed&type=job.failed"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, _, err := ws.Dial(ctx, url)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for env.eng.Broker().Stats().SubscriberCount == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	jobID, err := env.eng.Launch(context.Background(), "fit", nil, func(context.Context, job.Parameters) (any, error) {
		return nil, nil
	})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	data, _, err := wsutil.ReadServerData(conn)
	if err != nil {
		t.Fatalf("ReadServerData: %v", err)
	}
	evt, err := stream.JSONCodec{}.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if evt.Type != stream.EventJobCompleted {
		t.Fatalf("first event = %q, want %q (launched and started not selected)", evt.Type, stream.EventJobCompleted)
	}
	if evt.Data.JobID != jobID.String() {
		t.Errorf("event job id = %q, want %q", evt.Data.JobID, jobID)
	}
}
