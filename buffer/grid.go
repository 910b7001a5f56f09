package buffer

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Grid is a fixed shape matrix overwritten in place with every packet.
type Grid struct {
	mux *sync.RWMutex

	rows int
	cols int

	data *mat.Dense
}

// NewGrid returns a zeroed rows x cols grid.
// It panics if a dimension is not positive.
func NewGrid(rows, cols int) *Grid {
	if rows < 1 || cols < 1 {
		panic("buffer: grid dimensions must be positive")
	}

	return &Grid{
		mux: &sync.RWMutex{},

		rows: rows,
		cols: cols,

		data: mat.NewDense(rows, cols, nil),
	}
}

// Write overwrites the grid with the given values in row major order.
// The number of values must be rows*cols.
func (g *Grid) Write(values []float64) error {
	if len(values) != g.rows*g.cols {
		return fmt.Errorf("buffer: %d values for a %dx%d grid", len(values), g.rows, g.cols)
	}

	g.mux.Lock()
	defer g.mux.Unlock()

	// mat.Dense keeps its elements row major with stride == cols
	// because it was allocated by NewDense.
	copy(g.data.RawMatrix().Data, values)

	return nil
}

// Read calls fn with the grid while holding the read lock.
// fn must not retain the matrix.
func (g *Grid) Read(fn func(m mat.Matrix)) {
	g.mux.RLock()
	defer g.mux.RUnlock()

	fn(g.data)
}

// Snapshot returns a copy of the grid.
func (g *Grid) Snapshot() *mat.Dense {
	g.mux.RLock()
	defer g.mux.RUnlock()

	return mat.DenseCopyOf(g.data)
}

// At returns the element at row i and column j.
func (g *Grid) At(i, j int) float64 {
	g.mux.RLock()
	defer g.mux.RUnlock()

	return g.data.At(i, j)
}

// Dims returns the shape of the grid.
func (g *Grid) Dims() (rows, cols int) {
	return g.rows, g.cols
}
