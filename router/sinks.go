package router

import (
	"errors"
	"fmt"

	"github.com/squadracorsepolito/bletel/buffer"
	"github.com/squadracorsepolito/bletel/decoder"
	"github.com/squadracorsepolito/bletel/layout"
	"github.com/squadracorsepolito/bletel/schema"
)

// ErrInvalidLineWindow is returned by [NewSinks] when the line window is not positive.
var ErrInvalidLineWindow = errors.New("router: line window must be positive")

// Sinks holds the buffers decoded values are routed to.
// Signals without a plot directive have no sink.
type Sinks struct {
	lines    map[string]*buffer.Circular[float64]
	heatmaps map[string]*buffer.Grid
}

// NewSinks creates a sink for every plotted signal carried by the plan.
// A line sink keeps cfg.LineWindow values per occurrence of its signal,
// a heatmap sink has the shape of its plot directive.
func NewSinks(sch *schema.Schema, plan *layout.Plan, cfg *Config) (*Sinks, error) {
	if cfg.LineWindow < 1 {
		return nil, ErrInvalidLineWindow
	}

	s := &Sinks{
		lines:    make(map[string]*buffer.Circular[float64]),
		heatmaps: make(map[string]*buffer.Grid),
	}

	for _, sig := range sch.Signals() {
		if sig.Plot == nil {
			continue
		}

		field, ok := plan.Field(sig.Name)
		if !ok || field.Count == 0 {
			continue
		}

		switch sig.Plot.Kind {
		case schema.PlotLine:
			s.lines[sig.Name] = buffer.NewCircular[float64](cfg.LineWindow * field.Count)

		case schema.PlotHeatmap:
			if sig.Plot.Rows*sig.Plot.Cols != field.Count {
				return nil, fmt.Errorf("router: heatmap %q is %dx%d but the packet carries %d values",
					sig.Name, sig.Plot.Rows, sig.Plot.Cols, field.Count)
			}
			s.heatmaps[sig.Name] = buffer.NewGrid(sig.Plot.Rows, sig.Plot.Cols)
		}
	}

	return s, nil
}

// Line returns the line sink of the named signal.
func (s *Sinks) Line(name string) (*buffer.Circular[float64], bool) {
	c, ok := s.lines[name]
	return c, ok
}

// Heatmap returns the heatmap sink of the named signal.
func (s *Sinks) Heatmap(name string) (*buffer.Grid, bool) {
	g, ok := s.heatmaps[name]
	return g, ok
}

// LineCount returns the number of line sinks.
func (s *Sinks) LineCount() int {
	return len(s.lines)
}

// HeatmapCount returns the number of heatmap sinks.
func (s *Sinks) HeatmapCount() int {
	return len(s.heatmaps)
}

func (s *Sinks) route(pkt *decoder.Packet) error {
	for _, values := range pkt.Values() {
		if line, ok := s.lines[values.Name]; ok {
			line.PutMany(values.Float64s()...)
			continue
		}

		if grid, ok := s.heatmaps[values.Name]; ok {
			if err := grid.Write(values.Float64s()); err != nil {
				return err
			}
		}
	}

	return nil
}
