package tesscpm

import (
	"context"
	"math"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// nanMedian returns the median of the non-NaN values, or NaN when there are none.
// Even counts average the two middle values.
func nanMedian(values []float64) float64 {
	sorted := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return math.NaN()
	}
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2.0
	}
	return sorted[n/2]
}

// PixelMedians computes the NaN-aware median of every pixel across the time
// axis, returned row-major as Rows*Cols values. Pixel rows are spread over up
// to workers goroutines; workers <= 0 means runtime.NumCPU().
func PixelMedians(ctx context.Context, c *Cube, workers int) ([]float64, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	n := c.FrameSize()
	medians := make([]float64, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for row := 0; row < c.Rows; row++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series := make([]float64, c.T)
			for col := 0; col < c.Cols; col++ {
				px := row*c.Cols + col
				for t := 0; t < c.T; t++ {
					series[t] = c.Data[t*n+px]
				}
				medians[px] = nanMedian(series)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return medians, nil
}
