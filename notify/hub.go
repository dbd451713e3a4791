package notify

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueSize is the per-subscriber queue bound.
const DefaultQueueSize = 4096

// ErrClosed is returned by Next after the subscription has been closed.
var ErrClosed = errors.New("subscription closed")

// Hub fans published events out to every live subscription. Each subscriber
// owns a bounded FIFO queue, so a slow consumer never blocks Publish.
type Hub struct {
	mu        sync.RWMutex
	subs      map[string]*Subscription
	queueSize int
	published atomic.Uint64
}

// NewHub creates a hub whose subscriber queues hold up to queueSize events.
// A non-positive queueSize uses DefaultQueueSize.
func NewHub(queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		subs:      make(map[string]*Subscription),
		queueSize: queueSize,
	}
}

// Publish appends events, in order, to every subscriber's queue.
func (h *Hub) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}
	now := time.Now()
	for i := range events {
		if events[i].Time.IsZero() {
			events[i].Time = now
		}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		sub.push(events)
	}
	h.published.Add(uint64(len(events)))
}

// Subscribe registers a new subscriber that receives every event published
// from now on.
func (h *Hub) Subscribe() *Subscription {
	sub := &Subscription{
		id:     uuid.NewString(),
		hub:    h,
		limit:  h.queueSize,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.subs[sub.id] = sub
	h.mu.Unlock()
	return sub
}

// Subscribers returns the number of live subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Published returns the total number of events published since creation.
func (h *Hub) Published() uint64 {
	return h.published.Load()
}

func (h *Hub) remove(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

// Subscription is one consumer's view of the hub.
type Subscription struct {
	id    string
	hub   *Hub
	limit int

	mu      sync.Mutex
	queue   []Event
	dropped atomic.Uint64

	signal    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string {
	return s.id
}

// Dropped returns how many events were discarded because the queue was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Pending returns the number of queued, undelivered events.
func (s *Subscription) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// push enqueues events, discarding the oldest ones once the bound is reached.
func (s *Subscription) push(events []Event) {
	s.mu.Lock()
	s.queue = append(s.queue, events...)
	if over := len(s.queue) - s.limit; over > 0 {
		s.queue = append(s.queue[:0], s.queue[over:]...)
		s.dropped.Add(uint64(over))
	}
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscription) pop() (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return Event{}, false
	}
	event := s.queue[0]
	s.queue[0] = Event{}
	s.queue = s.queue[1:]
	return event, true
}

// Next returns the oldest queued event, blocking for at most timeout. When the
// timeout elapses with nothing queued it returns ok=false and a nil error. It
// returns ctx.Err() when ctx is done and ErrClosed once Close has been called.
// A non-positive timeout waits without limit.
func (s *Subscription) Next(ctx context.Context, timeout time.Duration) (Event, bool, error) {
	var timeoutC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutC = timer.C
	}

	for {
		select {
		case <-s.done:
			return Event{}, false, ErrClosed
		default:
		}
		if event, ok := s.pop(); ok {
			return event, true, nil
		}

		select {
		case <-s.signal:
		case <-s.done:
			return Event{}, false, ErrClosed
		case <-ctx.Done():
			return Event{}, false, ctx.Err()
		case <-timeoutC:
			return Event{}, false, nil
		}
	}
}

// Close unregisters the subscription and wakes any blocked Next call.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.hub.remove(s.id)
		close(s.done)
	})
}
