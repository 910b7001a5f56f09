package internal

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats counts the packets handled by a component
// and logs the per second rates.
type Stats struct {
	l *Logger

	packetCount    atomic.Uint64
	byteCount      atomic.Uint64
	malformedCount atomic.Uint64
}

func NewStats(l *Logger) *Stats {
	return &Stats{
		l: l,
	}
}

// RunStats logs the rates every second until ctx is done.
// Nothing is logged for idle seconds.
func (s *Stats) RunStats(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

func (s *Stats) flush() bool {
	packetCount := s.packetCount.Swap(0)
	byteCount := s.byteCount.Swap(0)
	malformedCount := s.malformedCount.Swap(0)

	if packetCount == 0 && byteCount == 0 && malformedCount == 0 {
		return false
	}

	s.l.Info("stats",
		"packets_per_sec", packetCount,
		"bytes_per_sec", byteCount,
		"malformed_per_sec", malformedCount,
	)

	return true
}

func (s *Stats) IncrementPacketCount() {
	s.packetCount.Add(1)
}

func (s *Stats) IncrementByteCountBy(n int) {
	s.byteCount.Add(uint64(n))
}

func (s *Stats) IncrementMalformedCount() {
	s.malformedCount.Add(1)
}
