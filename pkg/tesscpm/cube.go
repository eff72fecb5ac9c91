package tesscpm

import "fmt"

// Cube is a dense time-ordered stack of cutout frames, stored row-major as
// [t][row][col] in a single backing slice.
type Cube struct {
	T    int
	Rows int
	Cols int
	Data []float64
}

// NewCube allocates a zeroed T x rows x cols cube.
func NewCube(t, rows, cols int) *Cube {
	return &Cube{T: t, Rows: rows, Cols: cols, Data: make([]float64, t*rows*cols)}
}

// CubeFromFrames copies equally sized rows x cols frames into a new cube.
func CubeFromFrames(frames [][]float64, rows, cols int) (*Cube, error) {
	c := NewCube(len(frames), rows, cols)
	n := c.FrameSize()
	for t, f := range frames {
		if len(f) != n {
			return nil, fmt.Errorf("%w: frame %d has %d pixels, want %dx%d", ErrShapeMismatch, t, len(f), rows, cols)
		}
		copy(c.Data[t*n:], f)
	}
	return c, nil
}

func (c *Cube) FrameSize() int { return c.Rows * c.Cols }

func (c *Cube) At(t, row, col int) float64 {
	return c.Data[t*c.FrameSize()+row*c.Cols+col]
}

// Frame returns frame t as a view into the cube's backing slice.
func (c *Cube) Frame(t int) []float64 {
	n := c.FrameSize()
	return c.Data[t*n : (t+1)*n : (t+1)*n]
}

// Select returns a new cube holding the frames whose keep entry is true.
func (c *Cube) Select(keep []bool) *Cube {
	kept := 0
	for _, k := range keep {
		if k {
			kept++
		}
	}
	out := NewCube(kept, c.Rows, c.Cols)
	n := c.FrameSize()
	i := 0
	for t, k := range keep {
		if !k {
			continue
		}
		copy(out.Data[i*n:(i+1)*n], c.Frame(t))
		i++
	}
	return out
}
