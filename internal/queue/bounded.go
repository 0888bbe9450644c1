// Package queue provides the bounded FIFO shared between capture and the turn loop.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Push after Close.
var ErrClosed = errors.New("queue closed")

// Bounded is a goroutine-safe FIFO with fixed capacity.
type Bounded[T any] struct {
	items chan T

	closeOnce sync.Once
	closed    chan struct{}
}

// NewBounded returns a queue holding at most capacity items (minimum 1).
func NewBounded[T any](capacity int) *Bounded[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[T]{
		items:  make(chan T, capacity),
		closed: make(chan struct{}),
	}
}

// TryPush enqueues without waiting and reports false when the queue is full or closed.
func (q *Bounded[T]) TryPush(item T) bool {
	select {
	case <-q.closed:
		return false
	default:
	}

	select {
	case q.items <- item:
		return true
	default:
		return false
	}
}

// Push enqueues, waiting for space until ctx ends or the queue is closed.
func (q *Bounded[T]) Push(ctx context.Context, item T) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}

	select {
	case q.items <- item:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pull dequeues the oldest item, waiting at most timeout.
//
// The boolean is false on timeout, cancellation, or when the queue is closed and drained.
// A timeout <= 0 waits only on ctx.
func (q *Bounded[T]) Pull(ctx context.Context, timeout time.Duration) (T, bool) {
	var zero T

	select {
	case item := <-q.items:
		return item, true
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case item := <-q.items:
		return item, true
	case <-q.closed:
		select {
		case item := <-q.items:
			return item, true
		default:
			return zero, false
		}
	case <-expired:
		return zero, false
	case <-ctx.Done():
		return zero, false
	}
}

// Len reports queued items.
func (q *Bounded[T]) Len() int {
	return len(q.items)
}

// Cap reports capacity.
func (q *Bounded[T]) Cap() int {
	return cap(q.items)
}

// Close releases waiters. Further pushes fail; queued items remain pullable.
func (q *Bounded[T]) Close() {
	q.closeOnce.Do(func() { close(q.closed) })
}
