package job

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/darkh14/vmjobs/id"
)

// Func is a callable a job executes. A non-nil error marks the job failed.
type Func func(ctx context.Context, params Parameters) (any, error)

// Parameters is the request parameter mapping passed to handlers.
type Parameters map[string]any

// Has reports whether key is present.
func (p Parameters) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value under key as a string. Numbers and booleans are
// formatted; other types report false.
func (p Parameters) String(key string) (string, bool) {
	switch v := p[key].(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case bool:
		return strconv.FormatBool(v), true
	}
	return "", false
}

// Bool reports whether the value under key is truthy: true, a non-zero
// number, or one of "true", "1", "yes", "on".
func (p Parameters) Bool(key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case int64:
		return v != 0
	case json.Number:
		f, err := v.Float64()
		return err == nil && f != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes", "on":
			return true
		}
	}
	return false
}

// Int returns the value under key as an int. Numbers with a fractional
// part, or outside the int range, report false.
func (p Parameters) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return floatToInt(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return int(n), true
		}
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int(f), true
}

// Map returns the nested mapping under key.
func (p Parameters) Map(key string) (Parameters, bool) {
	switch v := p[key].(type) {
	case Parameters:
		return v, true
	case map[string]any:
		return Parameters(v), true
	}
	return nil, false
}

// Clone returns a shallow copy of p. Nested values are shared.
func (p Parameters) Clone() Parameters {
	c := make(Parameters, len(p))
	for k, v := range p {
		c[k] = v
	}
	return c
}

// Marshal returns the JSON encoding of p.
func (p Parameters) Marshal() ([]byte, error) {
	if p == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p)
}

type (
	ctxKey       struct{}
	loggerCtxKey struct{}
)

// ContextWithID returns a copy of ctx carrying the executing job's ID.
func ContextWithID(ctx context.Context, jobID id.JobID) context.Context {
	return context.WithValue(ctx, ctxKey{}, jobID)
}

// IDFromContext returns the ID of the job executing under ctx.
func IDFromContext(ctx context.Context) (id.JobID, bool) {
	jobID, ok := ctx.Value(ctxKey{}).(id.JobID)
	return jobID, ok
}

// ContextWithLogger returns a copy of ctx carrying the job's logger.
func ContextWithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// LoggerFromContext returns the logger of the job executing under ctx.
// Records written to it become the job's output. Outside a job it
// returns slog.Default().
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
