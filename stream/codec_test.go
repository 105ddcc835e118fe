package stream

import (
	"testing"
	"time"
)

func TestCodecs(t *testing.T) {
	t.Parallel()

	evt := &Event{
		Type:      EventJobFailed,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Topic:     JobTopic("job_01"),
		Data: JobEventData{
			JobID:   "job_01",
			JobName: "train",
			Status:  "failed",
			PID:     77,
			Error:   "boom",
		},
	}

	tests := []struct {
		name   string
		binary bool
	}{
		{CodecNameJSON, false},
		{CodecNameMsgpack, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := GetCodec(tt.name)
			if c.Name() != tt.name {
				t.Fatalf("Name = %q, want %q", c.Name(), tt.name)
			}
			if c.Binary() != tt.binary {
				t.Fatalf("Binary = %v, want %v", c.Binary(), tt.binary)
			}

			data, err := c.Encode(evt)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := c.Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Type != evt.Type || got.Topic != evt.Topic || got.Data != evt.Data {
				t.Errorf("decoded %+v, want %+v", got, evt)
			}
			if !got.Timestamp.Equal(evt.Timestamp) {
				t.Errorf("Timestamp = %v, want %v", got.Timestamp, evt.Timestamp)
			}
		})
	}
}

func TestGetCodecFallback(t *testing.T) {
	t.Parallel()

	if got := GetCodec("protobuf").Name(); got != CodecNameJSON {
		t.Errorf("unknown codec fell back to %q, want %q", got, CodecNameJSON)
	}
}
