package decoder

import (
	"encoding/binary"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/squadracorsepolito/bletel/layout"
	"github.com/squadracorsepolito/bletel/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPlan(t testing.TB, tmpl schema.Template, signals ...schema.Signal) *layout.Plan {
	t.Helper()

	sch, err := schema.New(signals...)
	require.NoError(t, err)

	plan, err := layout.Build(sch, tmpl)
	require.NoError(t, err)

	return plan
}

func Test_Decode_SignExtension(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	plan := buildPlan(t,
		schema.Template{{Signal: "narrow", Repeat: 1}, {Signal: "wide", Repeat: 1}, {Signal: "pos", Repeat: 1}},
		schema.Signal{Name: "narrow", Length: 2, Datatype: schema.DatatypeInt32},
		schema.Signal{Name: "wide", Length: 3, Datatype: schema.DatatypeInt32},
		schema.Signal{Name: "pos", Length: 2, Datatype: schema.DatatypeInt32},
	)

	// -1 on 2 bytes, -2 on 3 bytes, 0x7fff on 2 bytes
	raw := []byte{0xff, 0xff, 0xfe, 0xff, 0xff, 0xff, 0x7f}

	pkt, err := Decode(plan, raw)
	require.NoError(err)

	narrow, ok := pkt.Get("narrow")
	require.True(ok)
	assert.Equal([]int32{-1}, narrow.Int32s())
	assert.Equal([]uint32{0xffffffff}, narrow.Uint32s())

	wide, _ := pkt.Get("wide")
	assert.Equal([]int32{-2}, wide.Int32s())

	pos, _ := pkt.Get("pos")
	assert.Equal([]int32{0x7fff}, pos.Int32s())
	assert.Equal(float64(0x7fff), pos.Float64(0))
}

func Test_Decode_UnsignedIsNotSignExtended(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	plan := buildPlan(t,
		schema.Template{{Signal: "low", Repeat: 1}, {Signal: "high", Repeat: 1}},
		schema.Signal{Name: "low", Length: 2, Datatype: schema.DatatypeUint32},
		schema.Signal{Name: "high", Length: 2, Datatype: schema.DatatypeUint32},
	)

	pkt, err := Decode(plan, []byte{0x80, 0x00, 0x00, 0x80})
	require.NoError(err)

	low, _ := pkt.Get("low")
	assert.Equal([]uint32{128}, low.Uint32s())
	assert.Equal(128.0, low.Float64(0))

	high, _ := pkt.Get("high")
	assert.Equal([]uint32{0x8000}, high.Uint32s())
	assert.Equal(32768.0, high.Float64(0))
}

func Test_Decode_Float32(t *testing.T) {
	assert := assert.New(t)

	plan := buildPlan(t,
		schema.Template{{Signal: "temp", Repeat: 2}},
		schema.Signal{Name: "temp", Length: 4, Datatype: schema.DatatypeFloat32},
	)

	raw := make([]byte, 8)
	binary.LittleEndian.PutUint32(raw, math.Float32bits(36.5))
	binary.LittleEndian.PutUint32(raw[4:], math.Float32bits(-0.25))

	pkt, err := Decode(plan, raw)
	require.NoError(t, err)

	temp, _ := pkt.Get("temp")
	assert.Equal([]float32{36.5, -0.25}, temp.Float32s())
	assert.Equal([]float64{36.5, -0.25}, temp.Float64s())
}

func Test_Decode_LengthMismatch(t *testing.T) {
	plan := buildPlan(t,
		schema.Template{{Signal: "a", Repeat: 3}},
		schema.Signal{Name: "a", Length: 4, Datatype: schema.DatatypeInt32},
	)
	require.Equal(t, 12, plan.ExpectedRawLength())

	for _, size := range []int{0, 11, 13, 24} {
		pkt, err := Decode(plan, make([]byte, size))
		assert.Nil(t, pkt)

		var lenErr *LengthMismatchError
		require.True(t, errors.As(err, &lenErr))
		assert.Equal(t, &LengthMismatchError{Got: size, Expected: 12}, lenErr)
	}
}

func Test_Decode_RepeatedSignalWireOrder(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	plan := buildPlan(t,
		schema.Template{
			{Signal: "ecg", Repeat: 2},
			{Signal: "num", Repeat: 1},
			{Signal: "ecg", Repeat: 2},
		},
		schema.Signal{Name: "num", Length: 2, Datatype: schema.DatatypeUint32},
		schema.Signal{Name: "ecg", Length: 3, Datatype: schema.DatatypeInt32},
	)

	raw := []byte{
		0x01, 0x00, 0x00, // ecg 1
		0xfe, 0xff, 0xff, // ecg -2
		0x2a, 0x00, // num 42
		0x03, 0x00, 0x00, // ecg 3
		0xfc, 0xff, 0xff, // ecg -4
	}

	pkt, err := Decode(plan, raw)
	require.NoError(err)
	require.Equal(2, pkt.Len())

	ecg, _ := pkt.Get("ecg")
	assert.Equal([]int32{1, -2, 3, -4}, ecg.Int32s())

	num, _ := pkt.Get("num")
	assert.Equal([]uint32{42}, num.Uint32s())

	// Values are returned in declaration order
	assert.Equal("num", pkt.Values()[0].Name)
	assert.Equal("ecg", pkt.Values()[1].Name)
}

func Test_Decode_DoesNotRetainRaw(t *testing.T) {
	plan := buildPlan(t,
		schema.Template{{Signal: "a", Repeat: 2}},
		schema.Signal{Name: "a", Length: 2, Datatype: schema.DatatypeUint32},
	)

	raw := []byte{0x01, 0x00, 0x02, 0x00}
	pkt, err := New(plan).Decode(raw)
	require.NoError(t, err)

	for i := range raw {
		raw[i] = 0xff
	}

	a, _ := pkt.Get("a")
	assert.Equal(t, []uint32{1, 2}, a.Uint32s())
}

func Test_Decode_AnyValidLength(t *testing.T) {
	plan := buildPlan(t,
		schema.Template{
			{Signal: "tmp", Repeat: 3},
			{Signal: "ppg", Repeat: 2},
			{Signal: "num", Repeat: 1},
			{Signal: "tmp", Repeat: 1},
			{Signal: "scg", Repeat: 4},
		},
		schema.Signal{Name: "num", Length: 2, Datatype: schema.DatatypeUint32},
		schema.Signal{Name: "scg", Length: 3, Datatype: schema.DatatypeInt32},
		schema.Signal{Name: "ppg", Length: 4, Datatype: schema.DatatypeFloat32},
		schema.Signal{Name: "tmp", Length: 1, Datatype: schema.DatatypeInt32},
	)

	expectedCounts := map[string]int{"num": 1, "scg": 4, "ppg": 2, "tmp": 4}

	rnd := rand.New(rand.NewPCG(1, 2))
	raw := make([]byte, plan.ExpectedRawLength())

	for range 1000 {
		for i := range raw {
			raw[i] = byte(rnd.Uint32())
		}

		pkt, err := Decode(plan, raw)
		require.NoError(t, err)
		require.Equal(t, len(expectedCounts), pkt.Len())

		for name, count := range expectedCounts {
			values, ok := pkt.Get(name)
			require.True(t, ok)
			require.Equal(t, count, values.Len())
		}

		tmp, _ := pkt.Get("tmp")
		for _, val := range tmp.Int32s() {
			require.GreaterOrEqual(t, val, int32(math.MinInt8))
			require.LessOrEqual(t, val, int32(math.MaxInt8))
		}
	}
}

func Benchmark_Decode(b *testing.B) {
	b.ReportAllocs()

	plan := buildPlan(b,
		schema.Template{{Signal: "num", Repeat: 1}, {Signal: "scg", Repeat: 20}, {Signal: "ppg", Repeat: 5}},
		schema.Signal{Name: "num", Length: 2, Datatype: schema.DatatypeUint32},
		schema.Signal{Name: "scg", Length: 3, Datatype: schema.DatatypeInt32},
		schema.Signal{Name: "ppg", Length: 4, Datatype: schema.DatatypeFloat32},
	)
	dec := New(plan)
	raw := make([]byte, plan.ExpectedRawLength())

	b.ResetTimer()
	for b.Loop() {
		if _, err := dec.Decode(raw); err != nil {
			b.Fatal(err)
		}
	}
}
