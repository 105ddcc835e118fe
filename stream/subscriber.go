package stream

import (
	"sync"
	"sync/atomic"
)

// Subscriber is one consumer of job events, usually a websocket
// connection. Delivery is credit based: every delivered event spends a
// credit and nothing is sent while credits are exhausted, so a slow reader
// loses events instead of stalling the broker.
type Subscriber struct {
	id string
	ch chan *Event

	credits   atomic.Int64
	delivered atomic.Int64
	dropped   atomic.Int64

	mu     sync.RWMutex
	topics map[string]struct{}
	types  map[EventType]struct{} // nil accepts every type
	closed bool
}

// SubscriberStats counts what happened to events routed to a subscriber.
// Events skipped by type selection are not counted.
type SubscriberStats struct {
	Delivered int64 `json:"delivered"`
	Dropped   int64 `json:"dropped"`
}

type sendResult int

const (
	sendDelivered sendResult = iota
	sendSkipped
	sendDropped
)

// NewSubscriber creates a subscriber with bufferSize queued events and
// initialCredits credits.
func NewSubscriber(id string, bufferSize int, initialCredits int64) *Subscriber {
	s := &Subscriber{
		id:     id,
		ch:     make(chan *Event, bufferSize),
		topics: make(map[string]struct{}),
	}
	s.credits.Store(initialCredits)
	return s
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the event channel. It is closed when the subscriber is removed
// or the broker shuts down.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// AddCredits grants n more deliveries.
func (s *Subscriber) AddCredits(n int64) { s.credits.Add(n) }

// Credits returns the remaining credits.
func (s *Subscriber) Credits() int64 { return s.credits.Load() }

// AcceptTypes limits delivery to events of the given types. Calling it
// with no types accepts every type again.
func (s *Subscriber) AcceptTypes(types ...EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(types) == 0 {
		s.types = nil
		return
	}
	s.types = make(map[EventType]struct{}, len(types))
	for _, t := range types {
		s.types[t] = struct{}{}
	}
}

// Accepts reports whether events of type t are delivered.
func (s *Subscriber) Accepts(t EventType) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accepts(t)
}

func (s *Subscriber) accepts(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// Stats returns the delivery counters.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{Delivered: s.delivered.Load(), Dropped: s.dropped.Load()}
}

func (s *Subscriber) addTopic(topic string) {
	s.mu.Lock()
	s.topics[topic] = struct{}{}
	s.mu.Unlock()
}

func (s *Subscriber) removeTopic(topic string) {
	s.mu.Lock()
	delete(s.topics, topic)
	s.mu.Unlock()
}

// Topics returns the subscribed topic names.
func (s *Subscriber) Topics() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.topics))
	for t := range s.topics {
		out = append(out, t)
	}
	return out
}

// send queues evt without blocking. The read lock keeps Close from closing
// the channel mid-send.
func (s *Subscriber) send(evt *Event) sendResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sendDropped
	}
	if !s.accepts(evt.Type) {
		return sendSkipped
	}
	if !s.spendCredit() {
		s.dropped.Add(1)
		return sendDropped
	}

	select {
	case s.ch <- evt:
		s.delivered.Add(1)
		return sendDelivered
	default:
		s.credits.Add(1)
		s.dropped.Add(1)
		return sendDropped
	}
}

func (s *Subscriber) spendCredit() bool {
	for {
		current := s.credits.Load()
		if current <= 0 {
			return false
		}
		if s.credits.CompareAndSwap(current, current-1) {
			return true
		}
	}
}

// Close closes the event channel. Safe to call more than once.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
