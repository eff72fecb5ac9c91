//go:build !purego && !js

package tesscpm

import (
	"gocv.io/x/gocv"
)

// Mat wraps a CV_64F gocv.Mat for the native OpenCV backend.
type Mat struct {
	m gocv.Mat
}

func NewMatWithSize(rows, cols int) Mat {
	return Mat{m: gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)}
}

func (mat Mat) Rows() int   { return mat.m.Rows() }
func (mat Mat) Cols() int   { return mat.m.Cols() }
func (mat Mat) Empty() bool { return mat.m.Empty() }
func (mat *Mat) Close()     { mat.m.Close() }

// NewMatFromFloat64 copies a row-major frame into a new Mat.
func NewMatFromFloat64(rows, cols int, data []float64) Mat {
	mat := NewMatWithSize(rows, cols)
	copy(mat.DataFloat64(), data)
	return mat
}

func (mat Mat) DataFloat64() []float64 {
	data, _ := mat.m.DataPtrFloat64()
	return data
}

// --- CV operations ---

func divideMat(a, b Mat, dst *Mat) {
	gocv.Divide(a.m, b.m, &dst.m)
}

func subtractScalar(m *Mat, v float64) {
	m.m.SubtractFloat(float32(v))
}
