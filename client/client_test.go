package client_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/action"
	"github.com/darkh14/vmjobs/api"
	"github.com/darkh14/vmjobs/backoff"
	"github.com/darkh14/vmjobs/client"
	"github.com/darkh14/vmjobs/engine"
	"github.com/darkh14/vmjobs/job"
	"github.com/darkh14/vmjobs/store/memory"
	"github.com/darkh14/vmjobs/stream"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupClientTest serves a memory-backed engine with a "fit" background
// action and a plain "echo" action, and returns a client pointed at it.
func setupClientTest(t *testing.T, opts ...client.Option) (*client.Client, *engine.Engine, *httptest.Server) {
	t.Helper()

	d, err := vmjobs.New(
		vmjobs.WithStore(memory.New()),
		vmjobs.WithLogger(testLogger()),
		vmjobs.WithServiceName("vm"),
	)
	if err != nil {
		t.Fatalf("vmjobs.New: %v", err)
	}
	eng, err := engine.Build(d)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	release := make(chan struct{})
	err = eng.RegisterBackground(action.Action{
		Name: "fit",
		Handler: func(ctx context.Context, p job.Parameters) (any, error) {
			if p.Bool("wait") {
				select {
				case <-release:
				case <-ctx.Done():
					return nil, ctx.Err()
				}
			}
			if p.Bool("fail") {
				return nil, errors.New("fit failed")
			}
			return map[string]any{"ok": true}, nil
		},
	})
	if err != nil {
		t.Fatalf("RegisterBackground: %v", err)
	}
	err = eng.Register(action.Action{
		Name:     "echo",
		Required: []string{"value"},
		Handler: func(_ context.Context, p job.Parameters) (any, error) {
			return p["value"], nil
		},
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	srv := httptest.NewServer(api.New(eng).Handler())
	t.Cleanup(func() {
		close(release)
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = eng.Stop(ctx)
	})

	base := []client.Option{
		client.WithServiceName("vm"),
		client.WithLogger(testLogger()),
		client.WithPoll(backoff.NewConstant(5 * time.Millisecond)),
	}
	return client.New(srv.URL, append(base, opts...)...), eng, srv
}

func TestDo(t *testing.T) {
	c, _, _ := setupClientTest(t)
	ctx := context.Background()

	raw, err := c.Do(ctx, "echo", map[string]any{"value": "hello"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if string(raw) != `"hello"` {
		t.Errorf("result = %s, want %q", raw, "hello")
	}
}

func TestDoRemoteErrors(t *testing.T) {
	c, _, _ := setupClientTest(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		requestType string
		params      map[string]any
		wantText    string
	}{
		{"unknown action", "nope", nil, `request type "nope" is not supported`},
		{"missing parameter", "echo", nil, `parameter "value" is not found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Do(ctx, tt.requestType, tt.params)
			var remote *client.RemoteError
			if !errors.As(err, &remote) {
				t.Fatalf("Do error = %v, want *RemoteError", err)
			}
			if remote.RequestType != tt.requestType {
				t.Errorf("RequestType = %q, want %q", remote.RequestType, tt.requestType)
			}
			if !strings.Contains(remote.Text, tt.wantText) {
				t.Errorf("Text = %q, want it to contain %q", remote.Text, tt.wantText)
			}
		})
	}
}

func TestDoWrongServiceName(t *testing.T) {
	_, _, srv := setupClientTest(t)
	c := client.New(srv.URL, client.WithServiceName("other"), client.WithLogger(testLogger()))

	_, err := c.Do(context.Background(), "echo", map[string]any{"value": 1})
	var remote *client.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("Do error = %v, want *RemoteError", err)
	}
	if !strings.Contains(remote.Text, `correct service name is "vm"`) {
		t.Errorf("Text = %q", remote.Text)
	}
}

func TestLaunchAndWait(t *testing.T) {
	c, _, _ := setupClientTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tests := []struct {
		name       string
		params     map[string]any
		wantStatus job.Status
		wantError  string
	}{
		{"completed", nil, job.StatusCompleted, ""},
		{"failed", map[string]any{"fail": true}, job.StatusFailed, "fit failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := c.Launch(ctx, "fit", tt.params)
			if err != nil {
				t.Fatalf("Launch: %v", err)
			}
			if res.PID == 0 {
				t.Error("PID = 0, want the server process id")
			}

			info, err := c.WaitJob(ctx, res.JobID)
			if err != nil {
				t.Fatalf("WaitJob: %v", err)
			}
			if info.ID.String() != res.JobID.String() {
				t.Errorf("ID = %s, want %s", info.ID, res.JobID)
			}
			if info.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", info.Status, tt.wantStatus)
			}
			if info.ErrorInfo != tt.wantError {
				t.Errorf("ErrorInfo = %q, want %q", info.ErrorInfo, tt.wantError)
			}
		})
	}
}

func TestLaunchNonBackgroundAction(t *testing.T) {
	c, _, _ := setupClientTest(t)
	if _, err := c.Launch(context.Background(), "echo", map[string]any{"value": 1}); err == nil {
		t.Fatal("Launch of an inline action succeeded, want error")
	}
}

func TestJobsInfoAndDelete(t *testing.T) {
	c, _, _ := setupClientTest(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	res, err := c.Launch(ctx, "fit", nil)
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}
	if _, err := c.WaitJob(ctx, res.JobID); err != nil {
		t.Fatalf("WaitJob: %v", err)
	}

	jobs, err := c.JobsInfo(ctx, map[string]any{"name": "fit", "status": "completed"})
	if err != nil {
		t.Fatalf("JobsInfo: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("JobsInfo returned %d jobs, want 1", len(jobs))
	}

	msg, err := c.DeleteJob(ctx, res.JobID)
	if err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if !strings.Contains(msg, res.JobID.String()) {
		t.Errorf("DeleteJob message = %q, want it to name the job", msg)
	}

	if _, err := c.GetJob(ctx, res.JobID); !errors.Is(err, vmjobs.ErrJobNotFound) {
		t.Errorf("GetJob after delete error = %v, want ErrJobNotFound", err)
	}
}

func TestWaitJobHonoursContext(t *testing.T) {
	c, _, _ := setupClientTest(t)

	res, err := c.Launch(context.Background(), "fit", map[string]any{"wait": true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := c.WaitJob(ctx, res.JobID); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitJob error = %v, want DeadlineExceeded", err)
	}
}

func TestWatch(t *testing.T) {
	for _, codec := range []string{stream.CodecNameJSON, stream.CodecNameMsgpack} {
		t.Run(codec, func(t *testing.T) {
			c, eng, _ := setupClientTest(t, client.WithCodec(codec))
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			events, err := c.Watch(ctx, stream.NameTopic("fit"))
			if err != nil {
				t.Fatalf("Watch: %v", err)
			}
			waitSubscribed(t, eng)

			res, err := c.Launch(ctx, "fit", nil)
			if err != nil {
				t.Fatalf("Launch: %v", err)
			}

			want := []stream.EventType{stream.EventJobLaunched, stream.EventJobStarted, stream.EventJobCompleted}
			for _, wantType := range want {
				select {
				case evt, ok := <-events:
					if !ok {
						t.Fatal("event channel closed early")
					}
					if evt.Type != wantType {
						t.Fatalf("event type = %q, want %q", evt.Type, wantType)
					}
					if evt.Data.JobID != res.JobID.String() {
						t.Errorf("event job id = %q, want %q", evt.Data.JobID, res.JobID)
					}
				case <-ctx.Done():
					t.Fatalf("timed out waiting for %q", wantType)
				}
			}

			cancel()
			for range events {
			}
		})
	}
}

func TestWatchEventTypes(t *testing.T) {
	c, eng, _ := setupClientTest(t, client.WithEventTypes(stream.EventJobFailed))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events, err := c.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitSubscribed(t, eng)

	if _, err := c.Launch(ctx, "fit", nil); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	failed, err := c.Launch(ctx, "fit", map[string]any{"fail": true})
	if err != nil {
		t.Fatalf("Launch: %v", err)
	}

	select {
	case evt := <-events:
		if evt.Type != stream.EventJobFailed {
			t.Fatalf("event type = %q, want only %q", evt.Type, stream.EventJobFailed)
		}
		if evt.Data.JobID != failed.JobID.String() {
			t.Errorf("event job id = %q, want %q", evt.Data.JobID, failed.JobID)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for the failed event")
	}
}

func TestWatchInvalidTopic(t *testing.T) {
	c, _, _ := setupClientTest(t)
	if _, err := c.Watch(context.Background(), "queue:x"); err == nil {
		t.Fatal("Watch with an invalid topic succeeded, want error")
	}
}

func TestWatchStopsOnCancel(t *testing.T) {
	c, eng, _ := setupClientTest(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := c.Watch(ctx)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	waitSubscribed(t, eng)
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatal("received an event, want the channel to close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event channel not closed after cancel")
	}
}

func waitSubscribed(t *testing.T, eng *engine.Engine) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for eng.Broker().Stats().SubscriberCount == 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream subscriber was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
