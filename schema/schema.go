// Package schema describes the signals carried by a telemetry packet
// and the wire template that lays them out.
//
// A [Schema] and a [Template] are built once per device session
// and never mutated afterwards.
package schema

import (
	"fmt"
	"strings"
)

// MaxLength is the widest raw field accepted on the wire.
// Every decoded value is a 32 bit word.
const MaxLength = 4

// Datatype is the numeric type a signal decodes to.
type Datatype uint8

const (
	DatatypeFloat32 Datatype = iota
	DatatypeInt32
	DatatypeUint32
)

func (d Datatype) String() string {
	switch d {
	case DatatypeFloat32:
		return "float32"
	case DatatypeInt32:
		return "int32"
	case DatatypeUint32:
		return "uint32"
	default:
		return "unknown"
	}
}

// IsSigned states whether narrow values of the datatype
// have to be sign extended.
func (d Datatype) IsSigned() bool {
	return d == DatatypeInt32
}

func (d Datatype) valid() bool {
	switch d {
	case DatatypeFloat32, DatatypeInt32, DatatypeUint32:
		return true
	default:
		return false
	}
}

// ParseDatatype returns the datatype matching the given name.
// Accepted names are float32, int32 and uint32 (case insensitive),
// plus the float, signed and unsigned aliases.
func ParseDatatype(name string) (Datatype, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "float32", "float":
		return DatatypeFloat32, nil
	case "int32", "int", "signed":
		return DatatypeInt32, nil
	case "uint32", "uint", "unsigned":
		return DatatypeUint32, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrInvalidDatatype, name)
}

// PlotKind selects the sink a signal is routed to.
type PlotKind uint8

const (
	// PlotLine routes every value into a sliding window.
	PlotLine PlotKind = iota
	// PlotHeatmap overwrites a fixed rows x cols grid on every packet.
	PlotHeatmap
)

func (pk PlotKind) String() string {
	switch pk {
	case PlotLine:
		return "line"
	case PlotHeatmap:
		return "heatmap"
	default:
		return "unknown"
	}
}

// Range is the value range a plot is scaled to.
type Range struct {
	Min float64
	Max float64
}

// DefaultRange is used by plot directives without a range.
var DefaultRange = Range{Min: -1, Max: 1}

// PlotDirective tells the plotting collaborator how to show a signal.
type PlotDirective struct {
	Kind PlotKind

	// Rows and Cols are only meaningful for heatmaps.
	Rows int
	Cols int

	// Color is nil when the palette should pick one.
	Color *Color
	Range *Range
}

// GetRange returns the directive range or [DefaultRange].
func (pd *PlotDirective) GetRange() Range {
	if pd.Range == nil {
		return DefaultRange
	}
	return *pd.Range
}

// Signal is a named field of the packet.
type Signal struct {
	Name string
	// Length is the number of bytes a single occurrence takes on the wire.
	Length   int
	Datatype Datatype

	// Plot is nil for signals that are decoded but not routed to a sink.
	Plot *PlotDirective
}

// Schema is the ordered set of signals of a device.
type Schema struct {
	signals []Signal
	index   map[string]int
}

// New creates a schema from the given signals and validates it.
// The signals are copied, so later changes to the slice are not seen.
func New(signals ...Signal) (*Schema, error) {
	s := &Schema{
		signals: make([]Signal, len(signals)),
		index:   make(map[string]int, len(signals)),
	}

	copy(s.signals, signals)

	if err := s.Validate(); err != nil {
		return nil, err
	}

	for idx, sig := range s.signals {
		s.index[sig.Name] = idx
	}

	return s, nil
}

// Validate checks every signal descriptor.
func (s *Schema) Validate() error {
	seen := make(map[string]struct{}, len(s.signals))

	for _, sig := range s.signals {
		if sig.Name == "" {
			return newError("", ErrEmptyName)
		}

		if _, ok := seen[sig.Name]; ok {
			return newError(sig.Name, ErrDuplicateSignal)
		}
		seen[sig.Name] = struct{}{}

		if !sig.Datatype.valid() {
			return newError(sig.Name, ErrInvalidDatatype)
		}

		if sig.Length < 1 || sig.Length > MaxLength {
			return newErrorf(sig.Name, ErrInvalidLength, "length %d not in [1, %d]", sig.Length, MaxLength)
		}

		if sig.Datatype == DatatypeFloat32 && sig.Length != MaxLength {
			return newErrorf(sig.Name, ErrInvalidLength, "float32 needs %d bytes, got %d", MaxLength, sig.Length)
		}

		if sig.Plot != nil {
			if err := validatePlot(sig.Name, sig.Plot); err != nil {
				return err
			}
		}
	}

	return nil
}

func validatePlot(name string, pd *PlotDirective) error {
	switch pd.Kind {
	case PlotLine:
	case PlotHeatmap:
		if pd.Rows < 1 || pd.Cols < 1 {
			return newErrorf(name, ErrHeatmapShape, "%dx%d", pd.Rows, pd.Cols)
		}
	default:
		return newErrorf(name, ErrInvalidPlot, "kind %d", pd.Kind)
	}

	if pd.Range != nil && pd.Range.Min >= pd.Range.Max {
		return newErrorf(name, ErrInvalidPlot, "range [%g, %g]", pd.Range.Min, pd.Range.Max)
	}

	return nil
}

// Len returns the number of signals.
func (s *Schema) Len() int {
	return len(s.signals)
}

// Signal returns the signal at the given declaration index.
func (s *Schema) Signal(idx int) Signal {
	return s.signals[idx]
}

// Signals returns a copy of the signals in declaration order.
func (s *Schema) Signals() []Signal {
	signals := make([]Signal, len(s.signals))
	copy(signals, s.signals)
	return signals
}

// Lookup returns the declaration index of the named signal.
func (s *Schema) Lookup(name string) (int, bool) {
	idx, ok := s.index[name]
	return idx, ok
}

// Group is a run of consecutive occurrences of one signal on the wire.
type Group struct {
	Signal string
	Repeat int
}

// Template is the wire order of the packet.
type Template []Group

// Occurrences returns the total number of wire occurrences.
// Groups with a non positive repeat count are not counted.
func (t Template) Occurrences() int {
	count := 0
	for _, g := range t {
		if g.Repeat > 0 {
			count += g.Repeat
		}
	}
	return count
}

// RepeatOf returns how many times the named signal occurs in the template.
func (t Template) RepeatOf(name string) int {
	count := 0
	for _, g := range t {
		if g.Signal == name && g.Repeat > 0 {
			count += g.Repeat
		}
	}
	return count
}
