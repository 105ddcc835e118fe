package jobinfo

import (
	"fmt"
	"strings"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

const dateLayout = "2006-01-02"

// FilterFromParameters builds a job.Filter from request parameters. Keys
// are read from a nested "filter" mapping when present, otherwise from the
// top level. Dates are RFC 3339 or YYYY-MM-DD; a date-only upper bound
// covers the whole day.
func FilterFromParameters(params job.Parameters) (job.Filter, error) {
	src := params
	if nested, ok := params.Map("filter"); ok {
		src = nested
	}

	var f job.Filter

	if s, ok := src.String("id"); ok && s != "" {
		jobID, err := id.ParseJobID(s)
		if err != nil {
			return f, fmt.Errorf("%w: id: %v", vmjobs.ErrInvalidParameter, err)
		}
		f.ID = jobID
	}
	if s, ok := src.String("name"); ok {
		f.Name = s
	}
	if s, ok := src.String("status"); ok && s != "" {
		st := job.Status(strings.ToLower(s))
		if !st.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", vmjobs.ErrInvalidParameter, s)
		}
		f.Status = st
	}

	bounds := []struct {
		key   string
		dst   **time.Time
		upper bool
	}{
		{"start_date_from", &f.StartFrom, false},
		{"start_date_to", &f.StartTo, true},
		{"end_date_from", &f.EndFrom, false},
		{"end_date_to", &f.EndTo, true},
	}
	for _, b := range bounds {
		s, ok := src.String(b.key)
		if !ok || s == "" {
			continue
		}
		t, err := parseDate(s, b.upper)
		if err != nil {
			return f, fmt.Errorf("%w: %s: %v", vmjobs.ErrInvalidParameter, b.key, err)
		}
		*b.dst = &t
	}

	for _, p := range []struct {
		key string
		dst *int
	}{{"limit", &f.Limit}, {"offset", &f.Offset}} {
		if !src.Has(p.key) {
			continue
		}
		n, ok := src.Int(p.key)
		if !ok || n < 0 {
			return f, fmt.Errorf("%w: %s must be a non-negative integer", vmjobs.ErrInvalidParameter, p.key)
		}
		*p.dst = n
	}

	return f, nil
}

func parseDate(s string, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or %s, got %q", dateLayout, s)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}
