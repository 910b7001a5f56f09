// Package message contains the metadata shared by the messages
// flowing through the pipeline.
package message

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Base is embedded in every message type.
type Base struct {
	receiveTime time.Time
	span        trace.SpanContext
}

// SetReceiveTime sets the time the raw packet was pulled from the input.
func (b *Base) SetReceiveTime(receiveTime time.Time) {
	b.receiveTime = receiveTime
}

// GetReceiveTime returns the time the raw packet was pulled from the input.
func (b *Base) GetReceiveTime() time.Time {
	return b.receiveTime
}

// SaveSpan saves the trace span for the message.
func (b *Base) SaveSpan(span trace.Span) {
	b.span = span.SpanContext()
}

// LoadSpanContext loads the trace of the message
// into the provided context.
func (b *Base) LoadSpanContext(ctx context.Context) context.Context {
	return trace.ContextWithSpanContext(ctx, b.span)
}
