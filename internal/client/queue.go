package client

import "sync"

// requestQueue is an unbounded FIFO. push never blocks; the worker waits
// on wake instead of polling.
type requestQueue struct {
	mu     sync.Mutex
	items  []*Request
	closed bool

	wake chan struct{}
}

func newRequestQueue() *requestQueue {
	return &requestQueue{wake: make(chan struct{}, 1)}
}

// push appends r. A Disconnect request seals the queue.
func (q *requestQueue) push(r *Request) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrSessionClosed
	}
	q.items = append(q.items, r)
	if r.kind == KindDisconnect {
		q.closed = true
	}
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *requestQueue) pop() *Request {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil
	}
	r := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return r
}

func (q *requestQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// close seals the queue and drops pending requests, returning how many
func (q *requestQueue) close() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	n := len(q.items)
	q.items = nil
	return n
}

func (q *requestQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
