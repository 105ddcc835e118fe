package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/darkh14/vmjobs/internal/config"
	"github.com/darkh14/vmjobs/store/memory"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.LogConfig
		wantJSON bool
		wantInfo bool
	}{
		{"json info", config.LogConfig{Level: "info", Format: "json"}, true, true},
		{"json warn drops info", config.LogConfig{Level: "warn", Format: "json"}, true, false},
		{"bad level falls back to info", config.LogConfig{Level: "loud", Format: "json"}, true, true},
		{"pretty", config.LogConfig{Level: "debug", Format: "pretty"}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			newLogger(&buf, tt.cfg).Info("hello", "k", "v")

			out := buf.String()
			if got := strings.Contains(out, "hello"); got != tt.wantInfo {
				t.Fatalf("info logged = %v, want %v (output %q)", got, tt.wantInfo, out)
			}
			if tt.wantInfo && strings.HasPrefix(out, "{") != tt.wantJSON {
				t.Errorf("json output = %v, want %v (output %q)", !tt.wantJSON, tt.wantJSON, out)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	logger := newLogger(io.Discard, config.LogConfig{Level: "error", Format: "json"})

	s, closeExtra, err := openStore(context.Background(), config.StoreConfig{Driver: "memory"}, logger)
	if err != nil {
		t.Fatalf("openStore(memory): %v", err)
	}
	if _, ok := s.(*memory.Store); !ok {
		t.Errorf("store = %T, want *memory.Store", s)
	}
	if err := closeExtra(); err != nil {
		t.Errorf("closeExtra: %v", err)
	}

	if _, _, err := openStore(context.Background(), config.StoreConfig{Driver: "cassandra"}, logger); err == nil {
		t.Error("openStore(cassandra) succeeded, want error")
	}
}

func TestVersionCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := app()
	cmd.Writer = &buf
	if err := cmd.Run(context.Background(), []string{"vmjobs", "version"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(buf.String()) != version {
		t.Errorf("output = %q, want %q", buf.String(), version)
	}
}
