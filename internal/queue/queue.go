// Package queue implements the bounded and drop-oldest queues that
// separate pipeline stages (spec §5). Every stage-to-stage queue
// implements the same Queue[T] interface; only the queue's internal
// discipline (block-on-full vs. clear-then-push) differs, per spec §9's
// "isolate behind a DropOldestQueue abstraction" guidance.
package queue

import (
	"context"

	"github.com/warpcomdev/inferpipe/internal/metrics"
)

// Queue is a bounded channel-like handoff between two pool stages.
type Queue[T any] interface {
	// Put enqueues an item, respecting ctx cancellation.
	Put(ctx context.Context, item T) error
	// Get dequeues an item, respecting ctx cancellation. ok is false
	// once the queue has been closed and drained.
	Get(ctx context.Context) (item T, ok bool)
	// Close marks the queue closed; no more Puts are accepted and Gets
	// drain whatever remains before reporting !ok.
	Close()
	// Len reports the number of items currently resident, used by the
	// Supervisor's quiescence accounting (spec §5).
	Len() int
}

// Bounded is the default, backpressure-exerting queue: Put blocks when
// full. This is the mechanism that throttles the Reader against the
// slowest downstream pool and bounds memory (spec §5).
type Bounded[T any] struct {
	ch chan T
}

// NewBounded creates a Bounded queue with the given capacity.
func NewBounded[T any](capacity int) *Bounded[T] {
	return &Bounded[T]{ch: make(chan T, capacity)}
}

func (q *Bounded[T]) Put(ctx context.Context, item T) error {
	select {
	case q.ch <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Bounded[T]) Get(ctx context.Context) (item T, ok bool) {
	select {
	case item, ok = <-q.ch:
		return item, ok
	case <-ctx.Done():
		return item, false
	}
}

func (q *Bounded[T]) Close() { close(q.ch) }

func (q *Bounded[T]) Len() int { return len(q.ch) }

// DropOldest is used only for infinite inputs (streams/devices, spec
// §5): the glossary defines it literally — "a bounded queue whose
// producer clears the contents before enqueueing" — so the queue never
// holds more than the single most recently produced item. Every Put
// clears whatever is currently resident (dropping it) before storing
// the new item, giving LIFO-plus-clear semantics: the pipeline never
// blocks the Reader against a slow downstream, and a slow consumer
// only ever sees the newest frame (spec §5: "the only place where the
// pipeline drops data").
type DropOldest[T any] struct {
	mu       chan struct{} // binary semaphore; buffered cap=1
	item     T
	occupied bool
	closed   bool
	notify   chan struct{} // signalled on every Put/Close, size 1
	name     string        // metrics.FramesDropped label
}

// NewDropOldest creates a drop-oldest queue. name labels the
// metrics.FramesDropped counter so the dashboard and /metrics can
// attribute evictions to the queue that dropped them.
func NewDropOldest[T any](name string) *DropOldest[T] {
	q := &DropOldest[T]{
		mu:     make(chan struct{}, 1),
		notify: make(chan struct{}, 1),
		name:   name,
	}
	q.mu <- struct{}{}
	return q
}

func (q *DropOldest[T]) lock()   { <-q.mu }
func (q *DropOldest[T]) unlock() { q.mu <- struct{}{} }

// Put always succeeds immediately (modulo ctx cancellation): any item
// currently resident is cleared and dropped before item takes its
// place. This is the only place in the pipeline that drops data (spec
// §5).
func (q *DropOldest[T]) Put(ctx context.Context, item T) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	q.lock()
	if q.closed {
		q.unlock()
		return ctx.Err()
	}
	evicted := q.occupied
	q.item = item
	q.occupied = true
	q.unlock()
	if evicted {
		metrics.FramesDropped.WithLabelValues(q.name).Inc()
	}
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

func (q *DropOldest[T]) Get(ctx context.Context) (item T, ok bool) {
	for {
		q.lock()
		if q.occupied {
			v := q.item
			var zero T
			q.item = zero
			q.occupied = false
			q.unlock()
			return v, true
		}
		closed := q.closed
		q.unlock()
		if closed {
			return item, false
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			return item, false
		}
	}
}

func (q *DropOldest[T]) Close() {
	q.lock()
	q.closed = true
	q.unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *DropOldest[T]) Len() int {
	q.lock()
	defer q.unlock()
	if q.occupied {
		return 1
	}
	return 0
}
