package tesscpm

import (
	"math"
	"sort"
)

// Summary condenses a TargetData into the figures the inspect tools print.
type Summary struct {
	FileName string
	Sector   string
	Camera   string
	CCD      string

	Frames       int
	Side         int
	Removed      int
	Flagged      int
	Degenerate   int
	MedianFlux   float64
	ScatterMAD   float64
	ScatterLevel float64

	WCSPresent bool
	WCSReason  string
	// CenterRA and CenterDec are the sky position of the cutout center, NaN without a WCS.
	CenterRA  float64
	CenterDec float64
}

// Summarize computes the Summary of td.
func Summarize(td *TargetData) Summary {
	s := Summary{
		FileName:   td.FileName,
		Sector:     td.Sector,
		Camera:     td.Camera,
		CCD:        td.CCD,
		Frames:     len(td.Time),
		Side:       td.CutoutSidelength,
		Removed:    td.RemovedCount,
		Flagged:    len(td.FlaggedTimes),
		Degenerate: len(td.DegeneratePixels),
		MedianFlux: nanMedian(td.FlattenedFluxMedians.RawVector().Data),
		CenterRA:   math.NaN(),
		CenterDec:  math.NaN(),
	}

	finite := make([]float64, 0, len(td.CenteredScaledFluxes.Data))
	for _, v := range td.CenteredScaledFluxes.Data {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	s.ScatterLevel, s.ScatterMAD = MedianMAD(finite)

	if w, ok := td.WCS.Get(); ok {
		s.WCSPresent = true
		c := float64(td.CutoutSidelength-1) / 2
		s.CenterRA, s.CenterDec = w.PixelToWorld(c, c)
	} else if td.WCS.Reason != nil {
		s.WCSReason = td.WCS.Reason.Error()
	}
	return s
}

// MedianMAD returns the median of values and their median absolute deviation
// scaled to a Gaussian sigma.
func MedianMAD(values []float64) (float64, float64) {
	if len(values) == 0 {
		return math.NaN(), math.NaN()
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2.0
	} else {
		median = sorted[n/2]
	}

	deviations := make([]float64, n)
	for i := range sorted {
		deviations[i] = math.Abs(sorted[i] - median)
	}
	sort.Float64s(deviations)

	var madMedian float64
	if n%2 == 0 {
		madMedian = (deviations[n/2-1] + deviations[n/2]) / 2.0
	} else {
		madMedian = deviations[n/2]
	}

	return median, 1.4826 * madMedian
}
