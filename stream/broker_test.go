package stream

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/darkh14/vmjobs"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testJob() *job.Job {
	return &job.Job{ID: id.NewJobID(), Name: "train", Status: job.StatusRunning}
}

func receive(t *testing.T, sub *Subscriber) *Event {
	t.Helper()
	select {
	case evt := <-sub.C():
		return evt
	case <-time.After(time.Second):
		t.Fatalf("subscriber %s timed out", sub.ID())
		return nil
	}
}

func expectNone(t *testing.T, sub *Subscriber) {
	t.Helper()
	select {
	case evt := <-sub.C():
		t.Fatalf("subscriber %s got unexpected event %v", sub.ID(), evt.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBrokerSubscribeAndPublish(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	sub := b.Subscribe("sub-1", TopicJobs)

	j := testJob()
	if err := b.OnJobLaunched(context.Background(), j); err != nil {
		t.Fatalf("OnJobLaunched: %v", err)
	}

	evt := receive(t, sub)
	if evt.Type != EventJobLaunched {
		t.Errorf("Type = %q, want %q", evt.Type, EventJobLaunched)
	}
	if evt.Topic != JobTopic(j.ID.String()) {
		t.Errorf("Topic = %q, want %q", evt.Topic, JobTopic(j.ID.String()))
	}
	if evt.Data.JobID != j.ID.String() || evt.Data.JobName != "train" {
		t.Errorf("unexpected data %+v", evt.Data)
	}
}

func TestBrokerEntityTopics(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	j := testJob()
	other := testJob()
	other.Name = "other"

	byID := b.Subscribe("by-id", JobTopic(j.ID.String()))
	byName := b.Subscribe("by-name", NameTopic("train"))

	ctx := context.Background()
	_ = b.OnJobStarted(ctx, j)
	_ = b.OnJobStarted(ctx, other)

	if evt := receive(t, byID); evt.Data.JobID != j.ID.String() {
		t.Errorf("by-id got job %q", evt.Data.JobID)
	}
	expectNone(t, byID)

	if evt := receive(t, byName); evt.Data.JobName != "train" {
		t.Errorf("by-name got job name %q", evt.Data.JobName)
	}
	expectNone(t, byName)
}

func TestBrokerLifecyclePayloads(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	sub := b.Subscribe("all", TopicJobs)
	ctx := context.Background()
	j := testJob()

	_ = b.OnJobCompleted(ctx, j, 1500*time.Millisecond)
	if evt := receive(t, sub); evt.Type != EventJobCompleted || evt.Data.ElapsedMs != 1500 {
		t.Errorf("completed event = %+v", evt)
	}

	_ = b.OnJobFailed(ctx, j, errors.New("boom"))
	if evt := receive(t, sub); evt.Type != EventJobFailed || evt.Data.Error != "boom" {
		t.Errorf("failed event = %+v", evt)
	}

	_ = b.OnJobRejected(ctx, "train", vmjobs.ErrTooManyJobs)
	if evt := receive(t, sub); evt.Type != EventJobRejected || evt.Data.Error != vmjobs.ErrTooManyJobs.Error() {
		t.Errorf("rejected event = %+v", evt)
	}

	_ = b.OnJobDeleted(ctx, j.ID)
	if evt := receive(t, sub); evt.Type != EventJobDeleted || evt.Data.JobID != j.ID.String() {
		t.Errorf("deleted event = %+v", evt)
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	sub := b.Subscribe("sub-rm", TopicJobs)
	b.RemoveSubscriber("sub-rm")

	_ = b.OnJobLaunched(context.Background(), testJob())

	select {
	case _, ok := <-sub.C():
		if ok {
			t.Fatal("channel should be closed after RemoveSubscriber")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("channel was not closed")
	}
}

func TestBrokerResubscribeReplaces(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	first := b.Subscribe("dup", TopicJobs)
	second := b.Subscribe("dup", TopicJobs)

	if _, ok := <-first.C(); ok {
		t.Fatal("replaced subscriber should be closed")
	}

	_ = b.OnJobLaunched(context.Background(), testJob())
	receive(t, second)
}

func TestBrokerStats(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger(), WithBufferSize(1))
	_ = b.Subscribe("s1", TopicJobs)
	_ = b.Subscribe("s2", TopicJobs, NameTopic("train"))

	// s1 and s2 get the first event; their buffers are then full.
	ctx := context.Background()
	_ = b.OnJobLaunched(ctx, testJob())
	_ = b.OnJobLaunched(ctx, testJob())

	stats := b.Stats()
	if stats.SubscriberCount != 2 {
		t.Errorf("SubscriberCount = %d, want 2", stats.SubscriberCount)
	}
	if stats.TopicCount != 2 {
		t.Errorf("TopicCount = %d, want 2", stats.TopicCount)
	}
	if stats.TotalPublished != 2 {
		t.Errorf("TotalPublished = %d, want 2", stats.TotalPublished)
	}
	if stats.TotalDropped != 2 {
		t.Errorf("TotalDropped = %d, want 2", stats.TotalDropped)
	}
}

func TestBrokerShutdownClosesSubscribers(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	sub := b.Subscribe("s", TopicJobs)

	if err := b.OnShutdown(context.Background()); err != nil {
		t.Fatalf("OnShutdown: %v", err)
	}
	if _, ok := <-sub.C(); ok {
		t.Fatal("channel should be closed after shutdown")
	}
	if got := b.Stats().SubscriberCount; got != 0 {
		t.Errorf("SubscriberCount = %d, want 0", got)
	}
}

func TestSubscriberCredits(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("credit-sub", 10, 2)
	evt := &Event{Type: EventJobLaunched, Timestamp: time.Now().UTC()}

	if got := sub.send(evt); got != sendDelivered {
		t.Fatalf("first send = %v, want delivered", got)
	}
	if got := sub.send(evt); got != sendDelivered {
		t.Fatalf("second send = %v, want delivered", got)
	}
	if got := sub.send(evt); got != sendDropped {
		t.Fatalf("third send = %v, want dropped (no credits)", got)
	}

	sub.AddCredits(5)
	if sub.Credits() != 5 {
		t.Errorf("Credits = %d, want 5", sub.Credits())
	}
	if got := sub.send(evt); got != sendDelivered {
		t.Fatalf("send after credit replenishment = %v, want delivered", got)
	}
	if got := sub.Stats(); got != (SubscriberStats{Delivered: 3, Dropped: 1}) {
		t.Errorf("Stats = %+v, want 3 delivered, 1 dropped", got)
	}
}

func TestSubscriberFullBufferKeepsCredit(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("full-sub", 1, 10)
	evt := &Event{Type: EventJobLaunched, Timestamp: time.Now().UTC()}

	if got := sub.send(evt); got != sendDelivered {
		t.Fatalf("first send = %v, want delivered", got)
	}
	if got := sub.send(evt); got != sendDropped {
		t.Fatalf("send into full buffer = %v, want dropped", got)
	}
	if sub.Credits() != 9 {
		t.Errorf("Credits = %d, want 9 (credit restored on full buffer)", sub.Credits())
	}
}

func TestSubscriberAcceptTypes(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("types-sub", 10, 100)
	sub.AcceptTypes(EventJobFailed, EventJobCompleted)

	tests := []struct {
		typ  EventType
		want sendResult
	}{
		{EventJobLaunched, sendSkipped},
		{EventJobStarted, sendSkipped},
		{EventJobCompleted, sendDelivered},
		{EventJobFailed, sendDelivered},
	}
	for _, tt := range tests {
		if got := sub.send(&Event{Type: tt.typ}); got != tt.want {
			t.Errorf("send(%s) = %v, want %v", tt.typ, got, tt.want)
		}
	}
	if got := sub.Stats(); got.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0 (skipped events are not drops)", got.Dropped)
	}

	sub.AcceptTypes()
	if !sub.Accepts(EventJobLaunched) {
		t.Error("AcceptTypes() should accept every type again")
	}
}

func TestSubscriberSendAfterClose(t *testing.T) {
	t.Parallel()

	sub := NewSubscriber("closed-sub", 10, 10)
	sub.Close()
	sub.Close()
	if got := sub.send(&Event{Type: EventJobLaunched}); got != sendDropped {
		t.Errorf("send after Close = %v, want dropped", got)
	}
}

func TestBroadcastSkipsUnacceptedTypes(t *testing.T) {
	t.Parallel()

	b := NewBroker(testLogger())
	all := b.Subscribe("all", TopicJobs)
	failures := b.Subscribe("failures", TopicJobs)
	failures.AcceptTypes(EventJobFailed)

	j := testJob()
	if err := b.OnJobLaunched(context.Background(), j); err != nil {
		t.Fatalf("OnJobLaunched: %v", err)
	}
	if err := b.OnJobFailed(context.Background(), j, errors.New("boom")); err != nil {
		t.Fatalf("OnJobFailed: %v", err)
	}

	if got := len(all.C()); got != 2 {
		t.Errorf("all subscriber queued %d events, want 2", got)
	}
	if got := len(failures.C()); got != 1 {
		t.Fatalf("failures subscriber queued %d events, want 1", got)
	}
	if evt := <-failures.C(); evt.Type != EventJobFailed {
		t.Errorf("failures subscriber got %q, want %q", evt.Type, EventJobFailed)
	}
	if got := b.Stats().TotalDropped; got != 0 {
		t.Errorf("TotalDropped = %d, want 0", got)
	}
}

func TestParseEventType(t *testing.T) {
	t.Parallel()

	if got, err := ParseEventType("job.failed"); err != nil || got != EventJobFailed {
		t.Errorf("ParseEventType(job.failed) = %q, %v", got, err)
	}
	if _, err := ParseEventType("job.exploded"); err == nil {
		t.Error("ParseEventType(job.exploded) succeeded, want error")
	}
}

func TestTopicValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		topic string
		valid bool
	}{
		{TopicJobs, true},
		{"job:job_123", true},
		{"name:train", true},
		{"invalid", false},
		{"workflow:run-abc", false},
		{"job:", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := ValidateTopic(tt.topic)
			if tt.valid && err != nil {
				t.Errorf("ValidateTopic(%q) returned error: %v", tt.topic, err)
			}
			if !tt.valid && err == nil {
				t.Errorf("ValidateTopic(%q) should return error", tt.topic)
			}
		})
	}
}

func TestTopicRegistry(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()

	sub1 := NewSubscriber("s1", 10, 100)
	sub2 := NewSubscriber("s2", 10, 100)

	tr.Subscribe("topic-a", sub1)
	tr.Subscribe("topic-a", sub2)
	tr.Subscribe("topic-b", sub1)

	if tr.TopicCount() != 2 {
		t.Errorf("TopicCount = %d, want 2", tr.TopicCount())
	}
	if tr.SubscriberCount("topic-a") != 2 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 2", tr.SubscriberCount("topic-a"))
	}

	tr.Unsubscribe("topic-a", "s2")
	if tr.SubscriberCount("topic-a") != 1 {
		t.Errorf("SubscriberCount(topic-a) = %d, want 1", tr.SubscriberCount("topic-a"))
	}

	tr.UnsubscribeAll("s1")
	if tr.TopicCount() != 0 {
		t.Errorf("TopicCount after UnsubscribeAll = %d, want 0", tr.TopicCount())
	}
}

func TestBroadcastDeduplication(t *testing.T) {
	t.Parallel()

	tr := NewTopicRegistry()
	sub := NewSubscriber("dedup-sub", 10, 100)
	tr.Subscribe("topic-x", sub)
	tr.Subscribe("topic-y", sub)

	evt := &Event{Type: EventJobLaunched, Timestamp: time.Now().UTC()}

	delivered, dropped := tr.Broadcast([]string{"topic-x", "topic-y"}, evt)
	if delivered != 1 || dropped != 0 {
		t.Errorf("Broadcast = (%d, %d), want (1, 0)", delivered, dropped)
	}
}

func TestResolveTopics(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		evt      *Event
		expected []string
	}{
		{
			name:     "job",
			evt:      &Event{Type: EventJobLaunched, Topic: "job:j1", Data: JobEventData{JobName: "train"}},
			expected: []string{TopicJobs, "job:j1", "name:train"},
		},
		{
			name:     "rejected",
			evt:      &Event{Type: EventJobRejected, Data: JobEventData{JobName: "train"}},
			expected: []string{TopicJobs, "name:train"},
		},
		{
			name:     "deleted",
			evt:      &Event{Type: EventJobDeleted, Topic: "job:j1"},
			expected: []string{TopicJobs, "job:j1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			topics := resolveTopics(tt.evt)
			if len(topics) != len(tt.expected) {
				t.Fatalf("got %d topics, want %d: %v", len(topics), len(tt.expected), topics)
			}
			for i, topic := range topics {
				if topic != tt.expected[i] {
					t.Errorf("topic[%d] = %q, want %q", i, topic, tt.expected[i])
				}
			}
		})
	}
}
