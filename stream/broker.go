package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/darkh14/vmjobs/ext"
	"github.com/darkh14/vmjobs/id"
	"github.com/darkh14/vmjobs/job"
)

// Compile-time interface checks.
var (
	_ ext.Extension    = (*Broker)(nil)
	_ ext.JobLaunched  = (*Broker)(nil)
	_ ext.JobRejected  = (*Broker)(nil)
	_ ext.JobStarted   = (*Broker)(nil)
	_ ext.JobCompleted = (*Broker)(nil)
	_ ext.JobFailed    = (*Broker)(nil)
	_ ext.JobDeleted   = (*Broker)(nil)
	_ ext.Shutdown     = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the ext.Extension
// interface to receive lifecycle events and fans them out to subscribers
// via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64
	totalDropped   atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use.
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics. A subscriber
// already registered under subscriberID is closed and replaced.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	return b.SubscribeTypes(subscriberID, nil, topics...)
}

// SubscribeTypes is Subscribe limited to events of the given types. An
// empty types accepts every type.
func (b *Broker) SubscribeTypes(subscriberID string, types []EventType, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	sub.AcceptTypes(types...)
	if old, loaded := b.subscribers.Swap(subscriberID, sub); loaded {
		b.topics.UnsubscribeAll(subscriberID)
		old.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	sub, ok := b.GetSubscriber(subscriberID)
	if !ok {
		return
	}
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
		TotalDropped:    b.totalDropped.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
	TotalDropped    int64 `json:"total_dropped"`
}

// publish broadcasts evt to every topic it resolves to.
func (b *Broker) publish(evt *Event) {
	delivered, dropped := b.topics.Broadcast(resolveTopics(evt), evt)
	b.totalPublished.Add(int64(delivered))
	b.totalDropped.Add(int64(dropped))
}

// publishJob builds and publishes an event about j.
func (b *Broker) publishJob(typ EventType, j *job.Job, data JobEventData) {
	data.JobID = j.ID.String()
	data.JobName = j.Name
	data.Status = string(j.Status)
	if !j.WorkerID.IsNil() {
		data.WorkerID = j.WorkerID.String()
	}
	data.PID = j.PID
	b.publish(&Event{
		Type:      typ,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(data.JobID),
		Data:      data,
	})
}

// ── Job lifecycle hooks ─────────────────────────────

func (b *Broker) OnJobLaunched(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobLaunched, j, JobEventData{})
	return nil
}

func (b *Broker) OnJobRejected(_ context.Context, name string, reason error) error {
	b.publish(&Event{
		Type:      EventJobRejected,
		Timestamp: time.Now().UTC(),
		Data:      JobEventData{JobName: name, Error: reason.Error()},
	})
	return nil
}

func (b *Broker) OnJobStarted(_ context.Context, j *job.Job) error {
	b.publishJob(EventJobStarted, j, JobEventData{})
	return nil
}

func (b *Broker) OnJobCompleted(_ context.Context, j *job.Job, elapsed time.Duration) error {
	b.publishJob(EventJobCompleted, j, JobEventData{ElapsedMs: elapsed.Milliseconds()})
	return nil
}

func (b *Broker) OnJobFailed(_ context.Context, j *job.Job, jobErr error) error {
	b.publishJob(EventJobFailed, j, JobEventData{Error: jobErr.Error()})
	return nil
}

func (b *Broker) OnJobDeleted(_ context.Context, jobID id.JobID) error {
	b.publish(&Event{
		Type:      EventJobDeleted,
		Timestamp: time.Now().UTC(),
		Topic:     JobTopic(jobID.String()),
		Data:      JobEventData{JobID: jobID.String()},
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		b.topics.UnsubscribeAll(sub.ID())
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
