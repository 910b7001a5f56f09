package connector

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// RingBuffer implements a [Connector] over a power of 2 sized ring.
// The head and tail counters are atomics on their own cache lines,
// so Len can be polled by metrics without taking the lock.
type RingBuffer[T any] struct {
	// head is the number of items ever written.
	head atomic.Uint64

	_ cpu.CacheLinePad

	// tail is the number of items ever read.
	tail atomic.Uint64

	_ cpu.CacheLinePad

	capacity uint64
	capMask  uint64

	closed bool

	// notEmpty and notFull are used to signal that the buffer is not empty or full
	notEmpty *sync.Cond
	notFull  *sync.Cond
	mux      *sync.Mutex

	buffer []T
}

// NewRingBuffer creates a new [RingBuffer].
// The capacity is rounded up to the next power of 2.
func NewRingBuffer[T any](capacity uint32) *RingBuffer[T] {
	parsedCapacity := uint64(roundToPowerOf2(capacity))

	mux := &sync.Mutex{}

	return &RingBuffer[T]{
		capacity: parsedCapacity,
		capMask:  parsedCapacity - 1,

		buffer: make([]T, parsedCapacity),

		mux:      mux,
		notEmpty: sync.NewCond(mux),
		notFull:  sync.NewCond(mux),
	}
}

func roundToPowerOf2(n uint32) uint32 {
	if n < 2 {
		return 1
	}

	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n++

	return n
}

// Write adds an item to the [RingBuffer].
// It blocks until the buffer is not full.
//
// Returns [ErrClosed] if the [RingBuffer] is closed.
func (rb *RingBuffer[T]) Write(item T) error {
	rb.mux.Lock()
	defer rb.mux.Unlock()

	for !rb.closed && rb.head.Load()-rb.tail.Load() >= rb.capacity {
		rb.notFull.Wait()
	}

	if rb.closed {
		return ErrClosed
	}

	head := rb.head.Load()
	rb.buffer[head&rb.capMask] = item
	rb.head.Store(head + 1)

	rb.notEmpty.Signal()

	return nil
}

// Read retrieves an item from the [RingBuffer].
// It blocks until the buffer is not empty.
//
// Returns [ErrClosed] if the [RingBuffer] is closed and drained.
func (rb *RingBuffer[T]) Read() (T, error) {
	rb.mux.Lock()
	defer rb.mux.Unlock()

	for !rb.closed && rb.head.Load() == rb.tail.Load() {
		rb.notEmpty.Wait()
	}

	var zero T

	tail := rb.tail.Load()
	if tail == rb.head.Load() {
		return zero, ErrClosed
	}

	slotIdx := tail & rb.capMask
	item := rb.buffer[slotIdx]

	// Drop the reference so the slot does not keep the item alive
	rb.buffer[slotIdx] = zero
	rb.tail.Store(tail + 1)

	rb.notFull.Signal()

	return item, nil
}

// Len returns the number of queued items.
func (rb *RingBuffer[T]) Len() int {
	tail := rb.tail.Load()
	return int(rb.head.Load() - tail)
}

// Cap returns the capacity of the [RingBuffer].
func (rb *RingBuffer[T]) Cap() int {
	return int(rb.capacity)
}

// Close marks the [RingBuffer] as closed.
func (rb *RingBuffer[T]) Close() {
	rb.mux.Lock()
	defer rb.mux.Unlock()

	if rb.closed {
		return
	}
	rb.closed = true

	rb.notEmpty.Broadcast()
	rb.notFull.Broadcast()
}
