// Package stream provides a real-time event broker for job lifecycle events.
// It bridges the ext.Extension system to connected clients via topic-based
// pub/sub.
package stream

import (
	"fmt"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	EventJobLaunched  EventType = "job.launched"
	EventJobRejected  EventType = "job.rejected"
	EventJobStarted   EventType = "job.started"
	EventJobCompleted EventType = "job.completed"
	EventJobFailed    EventType = "job.failed"
	EventJobDeleted   EventType = "job.deleted"
)

// ParseEventType validates s as one of the lifecycle event types.
func ParseEventType(s string) (EventType, error) {
	switch t := EventType(s); t {
	case EventJobLaunched, EventJobRejected, EventJobStarted,
		EventJobCompleted, EventJobFailed, EventJobDeleted:
		return t, nil
	}
	return "", fmt.Errorf("stream: unknown event type %q", s)
}

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type" msgpack:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts" msgpack:"ts"`

	// Topic is the entity channel this event was published on.
	Topic string `json:"topic" msgpack:"topic"`

	// Data is the event payload.
	Data JobEventData `json:"data" msgpack:"data"`
}

// JobEventData is the payload for job lifecycle events.
type JobEventData struct {
	JobID     string `json:"job_id,omitempty"     msgpack:"job_id,omitempty"`
	JobName   string `json:"job_name,omitempty"   msgpack:"job_name,omitempty"`
	Status    string `json:"status,omitempty"     msgpack:"status,omitempty"`
	WorkerID  string `json:"worker_id,omitempty"  msgpack:"worker_id,omitempty"`
	PID       int    `json:"pid,omitempty"        msgpack:"pid,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty" msgpack:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"      msgpack:"error,omitempty"`
}
