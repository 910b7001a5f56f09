// Package decoder applies an alignment plan to raw packets.
package decoder

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/squadracorsepolito/bletel/internal/message"
	"github.com/squadracorsepolito/bletel/layout"
	"github.com/squadracorsepolito/bletel/schema"
)

// LengthMismatchError is returned when a raw packet does not have
// the length expected by the plan. No value is decoded in that case.
type LengthMismatchError struct {
	Got      int
	Expected int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("decoder: %d bytes received, %d bytes expected", e.Got, e.Expected)
}

// Decoder decodes the packets described by a single plan.
// It holds no mutable state, so it can be shared between goroutines.
type Decoder struct {
	plan *layout.Plan
}

// New returns a decoder bound to the given plan.
func New(plan *layout.Plan) *Decoder {
	if plan == nil {
		panic("decoder: plan is nil")
	}

	return &Decoder{
		plan: plan,
	}
}

// Plan returns the plan the decoder is bound to.
func (d *Decoder) Plan() *layout.Plan {
	return d.plan
}

// Decode decodes the raw packet. The returned packet does not reference raw,
// so the caller is free to reuse it.
func (d *Decoder) Decode(raw []byte) (*Packet, error) {
	return Decode(d.plan, raw)
}

// Decode decodes the raw packet with the given plan.
// It returns a [*LengthMismatchError] if the length of raw
// is not the one expected by the plan.
func Decode(plan *layout.Plan, raw []byte) (*Packet, error) {
	if len(raw) != plan.ExpectedRawLength() {
		return nil, &LengthMismatchError{Got: len(raw), Expected: plan.ExpectedRawLength()}
	}

	aligned := make([]byte, plan.AlignedSize())

	for i := range plan.OccurrenceCount() {
		occ := plan.Occurrence(i)

		src := raw[occ.SrcOffset : occ.SrcOffset+occ.RawLength]
		dst := aligned[occ.DestOffset : occ.DestOffset+occ.AlignedLength]

		copy(dst, src)

		// Two's complement widening: the most significant
		// byte is the last one since the wire is little endian
		if occ.SignExtend && src[occ.RawLength-1]&0x80 != 0 {
			for k := occ.RawLength; k < occ.AlignedLength; k++ {
				dst[k] = 0xff
			}
		}
	}

	pkt := newPacket(plan.FieldCount())

	for idx := range plan.FieldCount() {
		field := plan.FieldAt(idx)

		words := make([]uint32, field.Count)
		region := aligned[field.Offset : field.Offset+field.Count*layout.WordSize]

		for k := range words {
			words[k] = binary.LittleEndian.Uint32(region[k*layout.WordSize:])
		}

		pkt.add(Values{
			Name:     field.Name,
			Datatype: field.Datatype,
			words:    words,
		})
	}

	return pkt, nil
}

// Packet is a decoded packet.
type Packet struct {
	message.Base

	values []Values
	index  map[string]int
}

func newPacket(fieldCount int) *Packet {
	return &Packet{
		values: make([]Values, 0, fieldCount),
		index:  make(map[string]int, fieldCount),
	}
}

func (p *Packet) add(v Values) {
	p.index[v.Name] = len(p.values)
	p.values = append(p.values, v)
}

// Get returns the values of the named signal.
func (p *Packet) Get(name string) (Values, bool) {
	idx, ok := p.index[name]
	if !ok {
		return Values{}, false
	}
	return p.values[idx], true
}

// Values returns the decoded values of every signal in schema declaration order.
func (p *Packet) Values() []Values {
	return p.values
}

// Len returns the number of signals in the packet.
func (p *Packet) Len() int {
	return len(p.values)
}

// Values holds the decoded occurrences of a signal, in wire order.
type Values struct {
	Name     string
	Datatype schema.Datatype

	words []uint32
}

// Len returns the number of occurrences.
func (v Values) Len() int {
	return len(v.words)
}

// Float64 returns the i-th value converted to float64
// according to the datatype of the signal.
func (v Values) Float64(i int) float64 {
	word := v.words[i]

	switch v.Datatype {
	case schema.DatatypeFloat32:
		return float64(math.Float32frombits(word))
	case schema.DatatypeInt32:
		return float64(int32(word))
	case schema.DatatypeUint32:
		return float64(word)
	default:
		panic(fmt.Sprintf("decoder: unknown datatype %d", v.Datatype))
	}
}

// Float64s returns every value converted to float64.
func (v Values) Float64s() []float64 {
	res := make([]float64, len(v.words))
	for i := range v.words {
		res[i] = v.Float64(i)
	}
	return res
}

// Int32s returns the values reinterpreted as int32.
func (v Values) Int32s() []int32 {
	res := make([]int32, len(v.words))
	for i, word := range v.words {
		res[i] = int32(word)
	}
	return res
}

// Uint32s returns a copy of the raw words.
func (v Values) Uint32s() []uint32 {
	res := make([]uint32, len(v.words))
	copy(res, v.words)
	return res
}

// Float32s returns the words reinterpreted as IEEE 754 floats.
func (v Values) Float32s() []float32 {
	res := make([]float32, len(v.words))
	for i, word := range v.words {
		res[i] = math.Float32frombits(word)
	}
	return res
}
