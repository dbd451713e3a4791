package watcher

import (
	"sync"
	"time"
)

// Debouncer collects keyed values and emits them as one batch after a quiet period.
// Multiple values for the same key within the debounce window are collapsed into
// the latest one. Batches preserve the order in which keys were first seen.
type Debouncer[T any] struct {
	interval time.Duration
	mu       sync.Mutex
	keys     []string
	values   map[string]T
	timer    *time.Timer
	stopped  bool
	output   chan []T
	done     chan struct{}
}

// NewDebouncer creates a debouncer with the specified quiet interval.
func NewDebouncer[T any](interval time.Duration) *Debouncer[T] {
	return &Debouncer[T]{
		interval: interval,
		values:   make(map[string]T),
		output:   make(chan []T, 16),
		done:     make(chan struct{}),
	}
}

// Output returns the channel that receives batched values.
func (d *Debouncer[T]) Output() <-chan []T {
	return d.output
}

// Add records value under key. If a value for the same key is already
// pending, it is replaced.
func (d *Debouncer[T]) Add(key string, value T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value

	// Reset the timer each time a new value arrives
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.flush)
}

// Stop discards pending values. Batches already emitted stay readable.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.keys = nil
	d.values = nil
	close(d.done)
}

// flush sends the accumulated values to the output channel and resets the buffer.
func (d *Debouncer[T]) flush() {
	d.mu.Lock()
	if d.stopped || len(d.keys) == 0 {
		d.mu.Unlock()
		return
	}

	batch := make([]T, 0, len(d.keys))
	for _, key := range d.keys {
		batch = append(batch, d.values[key])
	}
	d.keys = nil
	d.values = make(map[string]T)
	d.mu.Unlock()

	select {
	case d.output <- batch:
	case <-d.done:
	}
}
