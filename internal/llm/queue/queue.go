// Package queue runs submitted tasks one at a time in submission order.
package queue

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned by futures submitted after Close.
var ErrClosed = errors.New("queue closed")

// Queue is a FIFO work queue with a single worker. At most one task is
// executing at any time. Submitted tasks are never cancelled.
type Queue struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	stopped chan struct{}
}

// New creates a queue and starts its worker.
func New() *Queue {
	q := &Queue{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.run()
	return q
}

// Future is the pending result of a submitted task.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Wait blocks until the task finishes or ctx is done. Giving up on the wait
// does not stop the task.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the task has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Submit enqueues task behind everything submitted before it. The task receives
// a context carrying ctx's values but not its cancellation.
func Submit[T any](q *Queue, ctx context.Context, task func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	taskCtx := context.WithoutCancel(ctx)

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		f.err = ErrClosed
		close(f.done)
		return f
	}
	q.pending = append(q.pending, func() {
		defer close(f.done)
		f.val, f.err = task(taskCtx)
	})
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return f
}

// Do submits task and waits for its result.
func Do[T any](q *Queue, ctx context.Context, task func(context.Context) (T, error)) (T, error) {
	return Submit(q, ctx, task).Wait(ctx)
}

// Len returns the number of tasks waiting to start.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Close stops accepting tasks and blocks until queued tasks have run.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.stopped
		return
	}
	q.closed = true
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	<-q.stopped
}

func (q *Queue) run() {
	defer close(q.stopped)
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				return
			}
			<-q.wake
			continue
		}
		next := q.pending[0]
		q.pending[0] = nil
		q.pending = q.pending[1:]
		q.mu.Unlock()

		next()
	}
}
