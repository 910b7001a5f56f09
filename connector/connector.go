// Package connector contains the queues that move raw packets
// from a transport into a device session.
package connector

import "errors"

// ErrClosed is returned when reading from a closed and drained connector,
// or when writing into a closed one.
var ErrClosed = errors.New("connector: closed")

// Connector is a blocking FIFO queue between two stages.
type Connector[T any] interface {
	// Write blocks until the item is queued or the connector is closed.
	Write(item T) error
	// Read blocks until an item is available or the connector
	// is closed and drained.
	Read() (T, error)
	// Close wakes up every blocked reader and writer.
	// Items already queued can still be read.
	Close()
}
