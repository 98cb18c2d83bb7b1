package xeno

import (
	"github.com/eapache/queue"
)

// Queue is a bounded FIFO of Messages on top of a ring buffer.
// It is not safe for concurrent use.
type Queue struct {
	ring     *queue.Queue
	capacity int
}

// NewQueue creates a Queue holding at most capacity messages.
func NewQueue(capacity int) *Queue {
	return &Queue{ring: queue.New(), capacity: capacity}
}

// Len returns the number of queued messages.
func (q *Queue) Len() int {
	return q.ring.Length()
}

// Cap returns the capacity.
func (q *Queue) Cap() int {
	return q.capacity
}

// PushBack appends a message.
func (q *Queue) PushBack(m *Message) error {
	if q.ring.Length() >= q.capacity {
		return ErrQueueFull
	}
	q.ring.Add(m)
	return nil
}

// PushFront puts a message ahead of everything queued.
func (q *Queue) PushFront(m *Message) error {
	if err := q.PushBack(m); err != nil {
		return err
	}
	for n := q.ring.Length() - 1; n > 0; n-- {
		q.ring.Add(q.ring.Remove())
	}
	return nil
}

// Front returns the first message or nil.
func (q *Queue) Front() *Message {
	if q.ring.Length() == 0 {
		return nil
	}
	return q.ring.Peek().(*Message)
}

// PopFront removes and returns the first message or nil.
func (q *Queue) PopFront() *Message {
	if q.ring.Length() == 0 {
		return nil
	}
	return q.ring.Remove().(*Message)
}

// At returns the i-th message.
func (q *Queue) At(i int) *Message {
	return q.ring.Get(i).(*Message)
}

// Remove removes the first message matching pred, keeping the order of
// the others.
func (q *Queue) Remove(pred func(*Message) bool) *Message {
	var found *Message
	for n := q.ring.Length(); n > 0; n-- {
		m := q.ring.Remove().(*Message)
		if found == nil && pred(m) {
			found = m
			continue
		}
		q.ring.Add(m)
	}
	return found
}

// Drain removes all messages in order, passing each to fn.
func (q *Queue) Drain(fn func(*Message)) {
	for q.ring.Length() > 0 {
		fn(q.ring.Remove().(*Message))
	}
}
