// Package router pulls raw packets from a connector, decodes them
// and routes the decoded values to the sinks of their signals.
package router

import (
	"context"
	"encoding/hex"
	"errors"
	"sync/atomic"
	"time"

	"github.com/squadracorsepolito/bletel/connector"
	"github.com/squadracorsepolito/bletel/decoder"
	"github.com/squadracorsepolito/bletel/internal"
	"github.com/squadracorsepolito/bletel/layout"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

// EventKind is the outcome of a single [Router.Poll].
type EventKind uint8

const (
	// EventDecoded means the packet was decoded and its values routed.
	EventDecoded EventKind = iota
	// EventDisconnected means an empty buffer was received.
	EventDisconnected
	// EventMalformed means the packet length did not match the plan.
	EventMalformed
	// EventClosed means the context was cancelled or the input was closed.
	EventClosed
)

func (ek EventKind) String() string {
	switch ek {
	case EventDecoded:
		return "decoded"
	case EventDisconnected:
		return "disconnected"
	case EventMalformed:
		return "malformed"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is returned by [Router.Poll].
type Event struct {
	Kind EventKind

	// Packet is set for decoded events.
	Packet *decoder.Packet
	// Err is a [*decoder.LengthMismatchError] for malformed events
	// and the cause for closed events.
	Err error
}

// Mismatch returns the length mismatch of a malformed event.
func (e Event) Mismatch() (*decoder.LengthMismatchError, bool) {
	var lenErr *decoder.LengthMismatchError
	if errors.As(e.Err, &lenErr) {
		return lenErr, true
	}
	return nil, false
}

// Router decodes the packets of a single device.
// Poll must be called from a single goroutine.
type Router struct {
	tel   *internal.Telemetry
	stats *internal.Stats

	input   connector.Connector[[]byte]
	decoder *decoder.Decoder
	sinks   *Sinks

	// Telemetry metrics
	decodedCount      atomic.Int64
	malformedCount    atomic.Int64
	disconnectedCount atomic.Int64
	receivedBytes     atomic.Int64
	decodeDuration    metric.Int64Histogram
}

// New returns a router reading from input. It panics if a dependency is nil.
func New(name string, plan *layout.Plan, sinks *Sinks, input connector.Connector[[]byte]) *Router {
	if sinks == nil || input == nil {
		panic("router: nil sinks or input")
	}

	tel := internal.NewTelemetry(string(internal.StageKindRouter), name)

	r := &Router{
		tel:   tel,
		stats: internal.NewStats(tel.Logger()),

		input:   input,
		decoder: decoder.New(plan),
		sinks:   sinks,
	}

	r.initMetrics()

	return r
}

func (r *Router) initMetrics() {
	r.tel.NewObservableCounter("decoded_packets", func() int64 { return r.decodedCount.Load() })
	r.tel.NewObservableCounter("malformed_packets", func() int64 { return r.malformedCount.Load() })
	r.tel.NewObservableCounter("disconnections", func() int64 { return r.disconnectedCount.Load() })
	r.tel.NewObservableCounter("received_bytes", func() int64 { return r.receivedBytes.Load() })

	r.decodeDuration = r.tel.NewHistogram("decode_duration", metric.WithUnit("us"))
}

// Counts is a snapshot of the counters of a router.
type Counts struct {
	Decoded       int64
	Malformed     int64
	Disconnected  int64
	ReceivedBytes int64
}

// Counts returns the number of packets handled so far.
func (r *Router) Counts() Counts {
	return Counts{
		Decoded:       r.decodedCount.Load(),
		Malformed:     r.malformedCount.Load(),
		Disconnected:  r.disconnectedCount.Load(),
		ReceivedBytes: r.receivedBytes.Load(),
	}
}

// Sinks returns the sinks the router writes into.
func (r *Router) Sinks() *Sinks {
	return r.sinks
}

// RunStats logs the per second rates of the router until ctx is done.
func (r *Router) RunStats(ctx context.Context) {
	r.stats.RunStats(ctx)
}

// Poll pulls one raw packet from the input and handles it.
// It blocks until a packet is available or the input is closed.
func (r *Router) Poll(ctx context.Context) Event {
	if err := ctx.Err(); err != nil {
		return Event{Kind: EventClosed, Err: err}
	}

	raw, err := r.input.Read()
	if err != nil {
		return Event{Kind: EventClosed, Err: err}
	}

	recvTime := time.Now()

	r.receivedBytes.Add(int64(len(raw)))
	r.stats.IncrementByteCountBy(len(raw))

	if len(raw) == 0 {
		r.disconnectedCount.Add(1)
		r.tel.LogInfo("device disconnected")
		return Event{Kind: EventDisconnected}
	}

	return r.handleRaw(ctx, raw, recvTime)
}

func (r *Router) handleRaw(ctx context.Context, raw []byte, recvTime time.Time) Event {
	ctx, span := r.tel.NewTrace(ctx, "decode packet")
	defer span.End()

	span.SetAttributes(attribute.Int("packet_size", len(raw)))

	pkt, err := r.decoder.Decode(raw)
	if err != nil {
		r.malformedCount.Add(1)
		r.stats.IncrementMalformedCount()

		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed packet")

		args := []any{"content", hex.EncodeToString(raw)}
		var lenErr *decoder.LengthMismatchError
		if errors.As(err, &lenErr) {
			args = append(args, "got", lenErr.Got, "expected", lenErr.Expected)
		}
		r.tel.LogWarn("malformed packet", args...)

		return Event{Kind: EventMalformed, Err: err}
	}

	pkt.SetReceiveTime(recvTime)
	pkt.SaveSpan(span)

	if err := r.sinks.route(pkt); err != nil {
		r.tel.LogError("failed to route packet", err)
	}

	r.decodedCount.Add(1)
	r.stats.IncrementPacketCount()

	r.decodeDuration.Record(ctx, time.Since(recvTime).Microseconds())

	return Event{Kind: EventDecoded, Packet: pkt}
}
