package worker

import (
	"bytes"
	"log/slog"
	"sync"

	slogmulti "github.com/samber/slog-multi"

	"github.com/darkh14/vmjobs/job"
)

// MaxOutputBytes bounds the log output kept on a job record. Later
// records are discarded and the output is marked truncated.
const MaxOutputBytes = 1 << 20

const truncatedMarker = "... output truncated\n"

// outputBuffer collects a job's log lines. Jobs may log from several
// goroutines.
type outputBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newOutputBuffer(limit int) *outputBuffer {
	return &outputBuffer{limit: limit}
}

// Write keeps whole records only; a record that does not fit is dropped.
func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated || b.buf.Len()+len(p) > b.limit {
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.truncated {
		return b.buf.String() + truncatedMarker
	}
	return b.buf.String()
}

// jobLogger returns the logger handed to j's callable: every record goes
// to out at debug level and above, and to parent with the job attributes.
func jobLogger(parent *slog.Logger, j *job.Job, out *outputBuffer) *slog.Logger {
	capture := slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug})
	process := parent.With(
		slog.String("job_id", j.ID.String()),
		slog.String("job_name", j.Name),
	).Handler()
	return slog.New(slogmulti.Fanout(capture, process))
}
