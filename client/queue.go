package client

import (
	"sync"

	"github.com/gammazero/deque"
)

// queue is an unbounded FIFO with a single consumer.  Producers never block.
type queue[T any] struct {
	mu     sync.Mutex
	items  deque.Deque[T]
	closed bool

	// Holds a token when items may be available.
	ready chan struct{}
}

func newQueue[T any]() *queue[T] {
	return &queue[T]{ready: make(chan struct{}, 1)}
}

// push appends v to the queue.  Returns false if the queue is closed.
func (q *queue[T]) push(v T) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.items.PushBack(v)
	q.mu.Unlock()
	q.signal()
	return true
}

// next removes and returns the item at the front of the queue, waiting for
// one if the queue is empty.  Returns false once the queue is closed and all
// items queued before closing have been returned.
func (q *queue[T]) next() (T, bool) {
	for {
		q.mu.Lock()
		if q.items.Len() != 0 {
			v := q.items.PopFront()
			q.mu.Unlock()
			return v, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			var zero T
			return zero, false
		}
		<-q.ready
	}
}

// close stops the queue from accepting items.  Items already in the queue are
// still returned by next.
func (q *queue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

func (q *queue[T]) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
