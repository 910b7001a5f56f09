package buffer

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func Test_Circular(t *testing.T) {
	assert := assert.New(t)

	c := NewCircular[int](5)
	assert.Equal(5, c.Len())
	assert.Equal([]int{0, 0, 0, 0, 0}, c.View())

	c.Put(1)
	c.Put(2)
	assert.Equal([]int{0, 0, 0, 1, 2}, c.View())

	for _, val := range []int{3, 4, 5, 6} {
		c.Put(val)
	}
	assert.Equal([]int{2, 3, 4, 5, 6}, c.View())

	c.Put(7)
	assert.Equal([]int{3, 4, 5, 6, 7}, c.View())

	assert.Equal([]int{3, 4, 5, 6, 7}, slices.Collect(c.All()))
}

func Test_Circular_LengthOne(t *testing.T) {
	assert := assert.New(t)

	c := NewCircular[float64](1)
	assert.Equal([]float64{0}, c.View())

	for val := range 10 {
		c.Put(float64(val))
		assert.Equal([]float64{float64(val)}, c.View())
	}
}

func Test_Circular_Large(t *testing.T) {
	const length = 10_000

	c := NewCircular[int](length)

	total := 3*length + 17
	for val := 1; val <= total; val++ {
		c.Put(val)

		// Spot check the window while it wraps around
		if val%997 == 0 || val == total {
			view := c.View()
			require.Len(t, view, length)

			for idx, got := range view {
				expected := val - length + 1 + idx
				if expected < 1 {
					expected = 0
				}
				require.Equal(t, expected, got)
			}
		}
	}
}

func Test_Circular_PutMany(t *testing.T) {
	a := NewCircular[int](4)
	b := NewCircular[int](4)

	vals := []int{9, 8, 7, 6, 5, 4}
	a.PutMany(vals...)
	for _, val := range vals {
		b.Put(val)
	}

	assert.Equal(t, b.View(), a.View())
}

func Test_Circular_Snapshot(t *testing.T) {
	assert := assert.New(t)

	c := NewCircular[int](3)
	c.PutMany(1, 2, 3)

	snap := c.Snapshot(nil)
	assert.Equal([]int{1, 2, 3}, snap)

	c.Put(4)
	assert.Equal([]int{1, 2, 3}, snap)

	snap = c.Snapshot(snap)
	assert.Equal([]int{2, 3, 4}, snap)

	var got []int
	c.Read(func(view []int) {
		got = append(got, view...)
	})
	assert.Equal([]int{2, 3, 4}, got)
}

func Test_Circular_ConcurrentReaders(t *testing.T) {
	const (
		length = 64
		writes = 100_000
	)

	c := NewCircular[int](length)

	wg := &sync.WaitGroup{}
	done := make(chan struct{})

	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()

			dst := make([]int, length)
			for {
				select {
				case <-done:
					return
				default:
				}

				dst = c.Snapshot(dst)

				// The window is always a run of consecutive values
				for idx := 1; idx < length; idx++ {
					if dst[idx-1] != 0 && dst[idx] != dst[idx-1]+1 {
						t.Errorf("torn window: %v", dst)
						return
					}
				}
			}
		}()
	}

	for val := 1; val <= writes; val++ {
		c.Put(val)
	}

	close(done)
	wg.Wait()

	assert.Equal(t, writes, c.View()[length-1])
}

func Test_NewCircular_Panics(t *testing.T) {
	assert.Panics(t, func() { NewCircular[int](0) })
}

func Test_Grid(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	g := NewGrid(2, 3)

	rows, cols := g.Dims()
	assert.Equal(2, rows)
	assert.Equal(3, cols)

	require.NoError(g.Write([]float64{1, 2, 3, 4, 5, 6}))
	assert.Equal(6.0, g.At(1, 2))
	assert.Equal(2.0, g.At(0, 1))

	snap := g.Snapshot()
	assert.True(mat.Equal(snap, mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})))

	require.NoError(g.Write([]float64{6, 5, 4, 3, 2, 1}))
	assert.Equal(1.0, snap.At(0, 0))

	g.Read(func(m mat.Matrix) {
		assert.Equal(6.0, m.At(0, 0))
	})

	assert.Error(g.Write([]float64{1, 2}))
}

func Benchmark_Circular_Put(b *testing.B) {
	b.ReportAllocs()

	c := NewCircular[float64](1024)

	b.ResetTimer()
	for b.Loop() {
		c.Put(1)
	}
}
