// Package queue provides the unbounded FIFO queues that carry audio frames
// from the capture tick loop to the recognition goroutine and result text
// back out. Each queue is written by exactly one producer and drained by
// exactly one consumer; Enqueue never blocks and TryDequeue never waits.
//
// There is no backpressure: if the consumer falls behind, memory grows with
// the backlog. That is acceptable for bounded-duration recordings and is the
// documented trade-off for keeping the capture path free of stalls.
package queue

import "sync"

type FIFO[T any] struct {
	mu    sync.Mutex
	items []T
}

func New[T any]() *FIFO[T] {
	return &FIFO[T]{}
}

// Enqueue appends an item. Ownership transfers to the queue: the producer
// must not mutate the item after publishing.
func (q *FIFO[T]) Enqueue(item T) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
}

// TryDequeue removes and returns the oldest item, or reports false
// immediately when the queue is empty.
func (q *FIFO[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero // release for GC
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil // reset backing array once drained
	}
	return item, true
}

func (q *FIFO[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Reset discards all queued items.
func (q *FIFO[T]) Reset() {
	q.mu.Lock()
	q.items = nil
	q.mu.Unlock()
}
