package broadcast

import "sync"

// DefaultQueueSize is the outbound buffer of a connection.
const DefaultQueueSize = 256

// Queue is a bounded Sink. A transport drains Frames and calls Close once
// the connection is gone; Send after Close drops the frame.
type Queue struct {
	id string

	mu     sync.RWMutex
	ch     chan []byte
	closed bool
}

// NewQueue returns an open queue; size <= 0 means DefaultQueueSize.
func NewQueue(id string, size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{id: id, ch: make(chan []byte, size)}
}

func (q *Queue) ID() string { return q.id }

// Send enqueues frame without blocking. It reports false when the queue is
// full or closed.
func (q *Queue) Send(frame []byte) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- frame:
		return true
	default:
		return false
	}
}

// Frames is closed by Close.
func (q *Queue) Frames() <-chan []byte { return q.ch }

// Close stops the queue. Calling it more than once is safe.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
}
