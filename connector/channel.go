package connector

import (
	"sync"
)

// Channel implements a [Connector] using a buffered channel.
type Channel[T any] struct {
	buffer chan T

	// writeMux is held for reading by every Write and for writing by Close,
	// so Close returns only once in flight writes are done.
	writeMux  *sync.RWMutex
	closeCh   chan struct{}
	closeOnce *sync.Once
}

// NewChannel creates a new [Channel] with the given capacity.
func NewChannel[T any](size int) *Channel[T] {
	return &Channel[T]{
		buffer: make(chan T, size),

		writeMux:  &sync.RWMutex{},
		closeCh:   make(chan struct{}),
		closeOnce: &sync.Once{},
	}
}

// Write queues the item, blocking while the channel is full.
//
// Returns [ErrClosed] if the [Channel] is closed. Every Write started
// after Close has returned fails, and a Write blocked on a full channel
// is woken up by Close.
func (c *Channel[T]) Write(item T) error {
	c.writeMux.RLock()
	defer c.writeMux.RUnlock()

	select {
	case <-c.closeCh:
		return ErrClosed
	default:
	}

	select {
	case c.buffer <- item:
		return nil
	case <-c.closeCh:
		return ErrClosed
	}
}

// Read returns the oldest item, blocking while the channel is empty.
//
// Returns [ErrClosed] if the [Channel] is closed and drained.
func (c *Channel[T]) Read() (T, error) {
	// Fast path, also drains a closed channel
	select {
	case item := <-c.buffer:
		return item, nil
	default:
	}

	select {
	case item := <-c.buffer:
		return item, nil

	case <-c.closeCh:
		select {
		case item := <-c.buffer:
			return item, nil
		default:
			var zero T
			return zero, ErrClosed
		}
	}
}

// Len returns the number of queued items.
func (c *Channel[T]) Len() int {
	return len(c.buffer)
}

// Close closes the [Channel] connector.
func (c *Channel[T]) Close() {
	c.closeOnce.Do(func() {
		// Wake up blocked writers before waiting for them
		close(c.closeCh)

		c.writeMux.Lock()
		defer c.writeMux.Unlock()
	})
}
