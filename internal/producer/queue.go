package producer

import (
	"sync"

	"github.com/rickgao/signal-bridge/internal/protocol"
)

// requestQueue is an unbounded FIFO of requests awaiting a worker. The ring
// doubles once it is 70% full, so the reader never blocks on slow queries.
type requestQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []protocol.Request
	head   int
	tail   int
	count  int
	closed bool

	pushed  int64
	resizes int
}

func newRequestQueue(capacity int) *requestQueue {
	if capacity < 2 {
		capacity = 2
	}
	q := &requestQueue{buf: make([]protocol.Request, capacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues req. It returns false once the queue is closed.
func (q *requestQueue) Push(req protocol.Request) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	threshold := len(q.buf) * 70 / 100
	if threshold < 1 {
		threshold = 1
	}
	if q.count+1 >= threshold {
		q.grow()
	}

	q.buf[q.tail] = req
	q.tail = (q.tail + 1) % len(q.buf)
	q.count++
	q.pushed++

	q.cond.Signal()
	return true
}

// Pop blocks until a request is available. It returns false when the queue
// is closed, even if items remain: a closed queue belongs to a dead session
// whose requests the relay has already failed.
func (q *requestQueue) Pop() (protocol.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return protocol.Request{}, false
	}

	req := q.buf[q.head]
	q.buf[q.head] = protocol.Request{}
	q.head = (q.head + 1) % len(q.buf)
	q.count--
	return req, true
}

// Close wakes all waiters and returns how many requests were abandoned.
func (q *requestQueue) Close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0
	}
	q.closed = true
	q.cond.Broadcast()
	return q.count
}

// Len returns the number of queued requests.
func (q *requestQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// grow doubles the ring. Must be called with lock held.
func (q *requestQueue) grow() {
	next := make([]protocol.Request, len(q.buf)*2)
	if q.count > 0 {
		if q.head < q.tail {
			copy(next, q.buf[q.head:q.tail])
		} else {
			n := copy(next, q.buf[q.head:])
			copy(next[n:], q.buf[:q.tail])
		}
	}
	q.buf = next
	q.head = 0
	q.tail = q.count
	q.resizes++
}

// Stats returns the total pushed and how often the ring grew.
func (q *requestQueue) Stats() (pushed int64, resizes int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pushed, q.resizes
}
