// Package layout derives the alignment plan used to decode packets.
//
// The plan widens every wire occurrence to a 32 bit word and reorders the
// occurrences so that all the occurrences of a signal end up in a single
// contiguous region of the aligned buffer.
package layout

import (
	"slices"

	"github.com/squadracorsepolito/bletel/schema"
)

// WordSize is the alignment of every field in the aligned buffer.
const WordSize = 4

// Occurrence is one appearance of a signal on the wire.
type Occurrence struct {
	// Signal is the declaration index of the signal in the schema.
	Signal int

	RawLength     int
	AlignedLength int
	SignExtend    bool

	// SrcOffset is the offset of the occurrence in the raw packet.
	SrcOffset int
	// DestOffset is the offset of the occurrence in the aligned buffer.
	DestOffset int
}

// Field is the region of the aligned buffer holding every occurrence of a signal.
type Field struct {
	Name     string
	Datatype schema.Datatype
	Offset   int
	Count    int
}

// Plan is the immutable result of [Build].
// It is safe for concurrent use.
type Plan struct {
	occurrences []Occurrence
	reorder     []int

	// fields are in schema declaration order.
	fields     []Field
	fieldIndex map[string]int

	expectedRawLength int
	alignedSize       int
}

// Build expands the template against the schema and computes the alignment plan.
// It returns a [*schema.Error] when the schema or the template are not valid.
func Build(sch *schema.Schema, tmpl schema.Template) (*Plan, error) {
	if err := sch.Validate(); err != nil {
		return nil, err
	}

	occurrences, err := expand(sch, tmpl)
	if err != nil {
		return nil, err
	}

	if err := checkHeatmaps(sch, tmpl); err != nil {
		return nil, err
	}

	p := &Plan{
		occurrences: occurrences,
		fieldIndex:  make(map[string]int, sch.Len()),
	}

	p.computeReorder(sch.Len())
	p.computeOffsets()
	p.computeFields(sch)

	return p, nil
}

func expand(sch *schema.Schema, tmpl schema.Template) ([]Occurrence, error) {
	if len(tmpl) == 0 {
		return nil, schema.NewTemplateError("", schema.ErrEmptyTemplate, "")
	}

	occurrences := make([]Occurrence, 0, tmpl.Occurrences())
	srcOffset := 0

	for _, group := range tmpl {
		sigIdx, ok := sch.Lookup(group.Signal)
		if !ok {
			return nil, schema.NewTemplateError(group.Signal, schema.ErrUnknownSignal, "")
		}

		if group.Repeat < 1 {
			return nil, schema.NewTemplateError(group.Signal, schema.ErrInvalidRepeat, "repeat %d", group.Repeat)
		}

		sig := sch.Signal(sigIdx)
		alignedLen := roundUp(sig.Length)

		for range group.Repeat {
			occurrences = append(occurrences, Occurrence{
				Signal:        sigIdx,
				RawLength:     sig.Length,
				AlignedLength: alignedLen,
				SignExtend:    sig.Datatype.IsSigned(),
				SrcOffset:     srcOffset,
			})

			srcOffset += sig.Length
		}
	}

	return occurrences, nil
}

func checkHeatmaps(sch *schema.Schema, tmpl schema.Template) error {
	for _, sig := range sch.Signals() {
		if sig.Plot == nil || sig.Plot.Kind != schema.PlotHeatmap {
			continue
		}

		repeat := tmpl.RepeatOf(sig.Name)
		if sig.Plot.Rows*sig.Plot.Cols != repeat {
			return schema.NewTemplateError(sig.Name, schema.ErrHeatmapShape,
				"%dx%d grid for %d values", sig.Plot.Rows, sig.Plot.Cols, repeat)
		}
	}

	return nil
}

// computeReorder sorts the occurrences by aligned length.
// Ties are broken by the wire position of the first occurrence of the signal
// and then by the wire position of the occurrence itself, so the occurrences
// of a signal are always adjacent and keep their wire order.
func (p *Plan) computeReorder(signalCount int) {
	firstSeen := make([]int, signalCount)
	for i := range firstSeen {
		firstSeen[i] = -1
	}

	for idx, occ := range p.occurrences {
		if firstSeen[occ.Signal] < 0 {
			firstSeen[occ.Signal] = idx
		}
	}

	p.reorder = make([]int, len(p.occurrences))
	for idx := range p.reorder {
		p.reorder[idx] = idx
	}

	slices.SortStableFunc(p.reorder, func(a, b int) int {
		occA := p.occurrences[a]
		occB := p.occurrences[b]

		if occA.AlignedLength != occB.AlignedLength {
			return occA.AlignedLength - occB.AlignedLength
		}

		if firstA, firstB := firstSeen[occA.Signal], firstSeen[occB.Signal]; firstA != firstB {
			return firstA - firstB
		}

		return a - b
	})
}

func (p *Plan) computeOffsets() {
	offset := 0
	for _, occIdx := range p.reorder {
		p.occurrences[occIdx].DestOffset = offset
		offset += p.occurrences[occIdx].AlignedLength
	}

	p.alignedSize = offset

	for _, occ := range p.occurrences {
		p.expectedRawLength += occ.RawLength
	}
}

func (p *Plan) computeFields(sch *schema.Schema) {
	p.fields = make([]Field, sch.Len())
	for idx, sig := range sch.Signals() {
		p.fields[idx] = Field{
			Name:     sig.Name,
			Datatype: sig.Datatype,
			Offset:   p.alignedSize,
		}
		p.fieldIndex[sig.Name] = idx
	}

	// Same signal occurrences are adjacent in reorder order,
	// so the first one seen gives the offset of the region.
	for _, occIdx := range p.reorder {
		occ := p.occurrences[occIdx]
		field := &p.fields[occ.Signal]

		if field.Count == 0 {
			field.Offset = occ.DestOffset
		}
		field.Count++
	}
}

func roundUp(length int) int {
	return (length + WordSize - 1) / WordSize * WordSize
}

// ExpectedRawLength returns the only packet length accepted by the plan.
func (p *Plan) ExpectedRawLength() int {
	return p.expectedRawLength
}

// AlignedSize returns the size of the aligned buffer.
func (p *Plan) AlignedSize() int {
	return p.alignedSize
}

// OccurrenceCount returns the number of wire occurrences.
func (p *Plan) OccurrenceCount() int {
	return len(p.occurrences)
}

// Occurrence returns the i-th occurrence in wire order.
func (p *Plan) Occurrence(i int) Occurrence {
	return p.occurrences[i]
}

// Occurrences returns a copy of the occurrences in wire order.
func (p *Plan) Occurrences() []Occurrence {
	return slices.Clone(p.occurrences)
}

// AlignedLength returns the aligned length of the i-th occurrence.
func (p *Plan) AlignedLength(i int) int {
	return p.occurrences[i].AlignedLength
}

// SignExtend states whether the i-th occurrence has to be sign extended.
func (p *Plan) SignExtend(i int) bool {
	return p.occurrences[i].SignExtend
}

// DestOffset returns the offset of the i-th occurrence in the aligned buffer.
func (p *Plan) DestOffset(i int) int {
	return p.occurrences[i].DestOffset
}

// Reorder returns a copy of the reorder permutation:
// the k-th element is the wire index of the occurrence laid out k-th.
func (p *Plan) Reorder() []int {
	return slices.Clone(p.reorder)
}

// Fields returns a copy of the fields in schema declaration order.
func (p *Plan) Fields() []Field {
	return slices.Clone(p.fields)
}

// Field returns the region of the named signal.
func (p *Plan) Field(name string) (Field, bool) {
	idx, ok := p.fieldIndex[name]
	if !ok {
		return Field{}, false
	}
	return p.fields[idx], true
}

// FieldCount returns the number of fields, one per schema signal.
func (p *Plan) FieldCount() int {
	return len(p.fields)
}

// FieldAt returns the field of the signal at the given declaration index.
func (p *Plan) FieldAt(idx int) Field {
	return p.fields[idx]
}
