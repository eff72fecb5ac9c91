package tesscpm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedianMAD(t *testing.T) {
	med, mad := MedianMAD([]float64{1, 2, 3, 4, 100})
	assert.Equal(t, 3.0, med)
	assert.InDelta(t, 1.4826, mad, 1e-12)

	med, mad = MedianMAD(nil)
	assert.True(t, math.IsNaN(med))
	assert.True(t, math.IsNaN(mad))
}

func TestSummarize(t *testing.T) {
	td, err := NewTargetData(testCutoutPath, WithReader(fakeReader{raw: threeFrameCutout(t)}), WithVerbose(false))
	require.NoError(t, err)

	s := Summarize(td)
	assert.Equal(t, "42", s.Sector)
	assert.Equal(t, 2, s.Frames)
	assert.Equal(t, 2, s.Side)
	assert.Equal(t, 1, s.Removed)
	assert.Equal(t, 1, s.Flagged)
	assert.Zero(t, s.Degenerate)
	assert.Equal(t, 50.0, s.MedianFlux)
	assert.InDelta(t, 0, s.ScatterLevel, 1e-12)
	assert.InDelta(t, 0.5*1.4826, s.ScatterMAD, 1e-12)

	assert.True(t, s.WCSPresent)
	assert.Empty(t, s.WCSReason)
	assert.False(t, math.IsNaN(s.CenterRA))

	raw := threeFrameCutout(t)
	raw.WCSHeader = nil
	td, err = NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}), WithVerbose(false))
	require.NoError(t, err)
	s = Summarize(td)
	assert.False(t, s.WCSPresent)
	assert.Equal(t, ErrNoWCSHeader.Error(), s.WCSReason)
	assert.True(t, math.IsNaN(s.CenterRA))
}
