package backoff_test

import (
	"testing"
	"time"

	"github.com/darkh14/vmjobs/backoff"
)

func TestConstant(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for attempt := 1; attempt <= 5; attempt++ {
		if got := c.Delay(attempt); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want 5s", attempt, got)
		}
	}
}

func TestExponential(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{60, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponentialUncapped(t *testing.T) {
	e := backoff.NewExponential(time.Millisecond, 0)
	if got := e.Delay(11); got != 1024*time.Millisecond {
		t.Errorf("Delay(11) = %v, want 1.024s", got)
	}
}

func TestJitterBounds(t *testing.T) {
	j := backoff.NewJitter(100*time.Millisecond, time.Second)
	for attempt := 1; attempt <= 8; attempt++ {
		upper := backoff.NewExponential(100*time.Millisecond, time.Second).Delay(attempt)
		for range 50 {
			got := j.Delay(attempt)
			if got < 0 || got > upper {
				t.Fatalf("Delay(%d) = %v, want within [0, %v]", attempt, got, upper)
			}
		}
	}
}

func TestDefaults(t *testing.T) {
	if got := backoff.DefaultPoll().Delay(1); got != 100*time.Millisecond {
		t.Errorf("DefaultPoll().Delay(1) = %v, want 100ms", got)
	}
	if got := backoff.DefaultReconnect().Delay(100); got > 30*time.Second {
		t.Errorf("DefaultReconnect().Delay(100) = %v, want <= 30s", got)
	}
}
