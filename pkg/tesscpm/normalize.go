package tesscpm

import (
	"context"
	"math"
)

// normalizeFrames divides every frame of src by medians and subtracts offset.
func normalizeFrames(ctx context.Context, src *Cube, medians []float64, offset float64) (*Cube, error) {
	out := NewCube(src.T, src.Rows, src.Cols)

	medMat := NewMatFromFloat64(src.Rows, src.Cols, medians)
	defer medMat.Close()
	dst := NewMatWithSize(src.Rows, src.Cols)
	defer dst.Close()

	for t := 0; t < src.T; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame := NewMatFromFloat64(src.Rows, src.Cols, src.Frame(t))
		divideMat(frame, medMat, &dst)
		frame.Close()
		if offset != 0 {
			subtractScalar(&dst, offset)
		}
		copy(out.Frame(t), dst.DataFloat64())
	}
	return out, nil
}

// degeneratePixels returns the flat indices whose median cannot scale a flux.
func degeneratePixels(medians []float64) []int {
	var out []int
	for i, m := range medians {
		if m == 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			out = append(out, i)
		}
	}
	return out
}
