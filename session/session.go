// Package session runs the decoding pipeline of a single device.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/squadracorsepolito/bletel/connector"
	"github.com/squadracorsepolito/bletel/internal"
	"github.com/squadracorsepolito/bletel/layout"
	"github.com/squadracorsepolito/bletel/router"
	"github.com/squadracorsepolito/bletel/schema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Session owns the schema, the alignment plan, the sinks and the router
// of a device. It is built once and never reconfigured.
type Session struct {
	id  uuid.UUID
	tel *internal.Telemetry

	schema *schema.Schema
	plan   *layout.Plan
	sinks  *router.Sinks
	router *router.Router

	input            connector.Connector[[]byte]
	stopOnDisconnect bool

	onEvent func(router.Event)

	running   metric.Int64UpDownCounter
	delivered metric.Int64Counter

	wg *sync.WaitGroup
}

// New validates the configured schema, derives its alignment plan
// and creates the sinks of the device. Any schema error aborts the session.
func New(input connector.Connector[[]byte], cfg *Config) (*Session, error) {
	sch, err := schema.New(cfg.Signals...)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.Name, err)
	}

	plan, err := layout.Build(sch, cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.Name, err)
	}

	sinks, err := router.NewSinks(sch, plan, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", cfg.Name, err)
	}

	tel := internal.NewTelemetry(string(internal.StageKindSession), cfg.Name)

	return &Session{
		id:  uuid.New(),
		tel: tel,

		schema: sch,
		plan:   plan,
		sinks:  sinks,
		router: router.New(cfg.Name, plan, sinks, input),

		input:            input,
		stopOnDisconnect: cfg.StopOnDisconnect,

		running:   tel.NewUpDownCounter("running"),
		delivered: tel.NewCounter("delivered_events"),

		wg: &sync.WaitGroup{},
	}, nil
}

// OnEvent sets a function called with every event of the router.
// It must be set before Run.
func (s *Session) OnEvent(fn func(router.Event)) {
	s.onEvent = fn
}

func (s *Session) ID() uuid.UUID {
	return s.id
}

func (s *Session) Name() string {
	return s.tel.Name()
}

func (s *Session) Schema() *schema.Schema {
	return s.schema
}

func (s *Session) Plan() *layout.Plan {
	return s.plan
}

func (s *Session) Sinks() *router.Sinks {
	return s.sinks
}

// Counts returns the packet counters of the session router.
func (s *Session) Counts() router.Counts {
	return s.router.Counts()
}

func (s *Session) Init(ctx context.Context) error {
	_, span := s.tel.NewTrace(ctx, "init session")
	defer span.End()

	span.SetAttributes(
		attribute.String("session.id", s.id.String()),
		attribute.Int("session.expected_raw_length", s.plan.ExpectedRawLength()),
	)

	if l, ok := s.input.(interface{ Len() int }); ok {
		s.tel.NewGauge("queued_packets", func() int64 { return int64(l.Len()) })
	}

	s.tel.LogInfo("initialized",
		"session_id", s.id.String(),
		"signals", s.schema.Len(),
		"expected_raw_length", s.plan.ExpectedRawLength(),
		"aligned_size", s.plan.AlignedSize(),
		"line_sinks", s.sinks.LineCount(),
		"heatmap_sinks", s.sinks.HeatmapCount(),
	)

	return nil
}

// Run polls the router until the context is done, the input is closed
// or, when configured, the device disconnects.
// The input is closed on return, so the upstream source stops writing.
func (s *Session) Run(ctx context.Context) {
	defer s.input.Close()

	s.tel.LogInfo("running", "session_id", s.id.String())

	s.running.Add(ctx, 1)
	defer s.running.Add(context.WithoutCancel(ctx), -1)

	statsCtx, cancelStats := context.WithCancel(ctx)
	defer cancelStats()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.router.RunStats(statsCtx)
	}()

	for {
		ev := s.router.Poll(ctx)

		s.deliver(ctx, ev)

		switch ev.Kind {
		case router.EventClosed:
			if !errors.Is(ev.Err, context.Canceled) && !errors.Is(ev.Err, connector.ErrClosed) {
				s.tel.LogError("input closed", ev.Err)
			}
			s.tel.LogInfo("stopped", "reason", "closed")
			return

		case router.EventDisconnected:
			if s.stopOnDisconnect {
				s.tel.LogInfo("stopped", "reason", "disconnected")
				return
			}
		}
	}
}

func (s *Session) deliver(ctx context.Context, ev router.Event) {
	if s.onEvent == nil {
		return
	}

	// Decoded packets carry the span of their decoding
	if ev.Packet != nil {
		ctx = ev.Packet.LoadSpanContext(ctx)
	}

	ctx, span := s.tel.NewTrace(ctx, "deliver event")
	defer span.End()

	span.SetAttributes(attribute.String("event.kind", ev.Kind.String()))

	s.onEvent(ev)

	s.delivered.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", ev.Kind.String())))
}

// Stop closes the input of the session, which unblocks a pending poll,
// and waits for the background goroutines.
func (s *Session) Stop() {
	s.input.Close()
	s.wg.Wait()

	counts := s.router.Counts()
	s.tel.LogInfo("closed",
		"decoded", counts.Decoded,
		"malformed", counts.Malformed,
		"disconnections", counts.Disconnected,
	)
}
