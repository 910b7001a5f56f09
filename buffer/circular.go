// Package buffer contains the sinks decoded values are written into
// and the plotting side reads from.
package buffer

import (
	"iter"
	"sync"
)

// Circular is a fixed length sliding window over the last values put into it.
//
// Every value is stored twice, length+1 slots apart, so the window is always
// a contiguous slice of the backing storage and reading it never wraps around.
// Put and the read methods are guarded by a read/write mutex, so a single writer
// and any number of readers can use the buffer concurrently.
type Circular[T any] struct {
	mux *sync.RWMutex

	buffer []T
	length int

	writeIdx int
	viewIdx  int
}

// NewCircular returns a circular buffer with a window of the given length.
// It panics if length is not positive.
func NewCircular[T any](length int) *Circular[T] {
	if length < 1 {
		panic("buffer: circular length must be positive")
	}

	return &Circular[T]{
		mux: &sync.RWMutex{},

		buffer: make([]T, 2*(length+1)),
		length: length,

		writeIdx: length,
		viewIdx:  0,
	}
}

// Put appends a value to the window, dropping the oldest one.
func (c *Circular[T]) Put(item T) {
	c.mux.Lock()
	defer c.mux.Unlock()

	c.put(item)
}

// PutMany appends the values in order while holding the lock once.
func (c *Circular[T]) PutMany(items ...T) {
	c.mux.Lock()
	defer c.mux.Unlock()

	for _, item := range items {
		c.put(item)
	}
}

func (c *Circular[T]) put(item T) {
	c.buffer[c.writeIdx] = item
	c.buffer[c.writeIdx+c.length+1] = item

	c.writeIdx++
	if c.writeIdx == c.length+1 {
		c.writeIdx = 0
	}

	// The window follows the writes: it always starts
	// one slot after the next write position.
	c.viewIdx++
	if c.viewIdx == c.length+1 {
		c.viewIdx = 0
	}
}

// View returns the window, oldest value first.
// The returned slice aliases the storage of the buffer: it must not be modified
// and it is only stable until the next Put. Use [Circular.Read] or
// [Circular.Snapshot] when the writer runs in another goroutine.
func (c *Circular[T]) View() []T {
	c.mux.RLock()
	defer c.mux.RUnlock()

	return c.view()
}

func (c *Circular[T]) view() []T {
	return c.buffer[c.viewIdx : c.viewIdx+c.length : c.viewIdx+c.length]
}

// Read calls fn with the window while holding the read lock.
// fn must not retain the slice.
func (c *Circular[T]) Read(fn func(view []T)) {
	c.mux.RLock()
	defer c.mux.RUnlock()

	fn(c.view())
}

// Snapshot copies the window into dst, growing it if needed, and returns it.
func (c *Circular[T]) Snapshot(dst []T) []T {
	c.mux.RLock()
	defer c.mux.RUnlock()

	if cap(dst) < c.length {
		dst = make([]T, c.length)
	}
	dst = dst[:c.length]

	copy(dst, c.view())

	return dst
}

// All iterates over the window, oldest value first.
// The read lock is held for the whole iteration.
func (c *Circular[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		c.mux.RLock()
		defer c.mux.RUnlock()

		for _, item := range c.view() {
			if !yield(item) {
				return
			}
		}
	}
}

// Len returns the length of the window.
func (c *Circular[T]) Len() int {
	return c.length
}
