//go:build purego || js

package tesscpm

// Mat is a pure Go 2D float64 matrix.
type Mat struct {
	data []float64
	rows int
	cols int
}

func NewMatWithSize(rows, cols int) Mat {
	return Mat{
		data: make([]float64, rows*cols),
		rows: rows,
		cols: cols,
	}
}

func (m Mat) Rows() int   { return m.rows }
func (m Mat) Cols() int   { return m.cols }
func (m Mat) Empty() bool { return m.data == nil || m.rows == 0 || m.cols == 0 }

func (m *Mat) Close() {
	m.data = nil
	m.rows = 0
	m.cols = 0
}

// NewMatFromFloat64 copies a row-major frame into a new Mat.
func NewMatFromFloat64(rows, cols int, data []float64) Mat {
	mat := NewMatWithSize(rows, cols)
	copy(mat.data, data)
	return mat
}

func (m Mat) DataFloat64() []float64 {
	return m.data
}

// --- Pure Go CV operations ---

func divideMat(a, b Mat, dst *Mat) {
	if dst.rows != a.rows || dst.cols != a.cols || dst.data == nil {
		*dst = NewMatWithSize(a.rows, a.cols)
	}
	for i := range a.data {
		dst.data[i] = a.data[i] / b.data[i]
	}
}

func subtractScalar(m *Mat, v float64) {
	for i := range m.data {
		m.data[i] -= v
	}
}
