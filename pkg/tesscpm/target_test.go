package tesscpm

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const testCutoutPath = "/data/tess-s00042-1-3_82.207_-79.434_2x2_astrocut.fits"

type fakeReader struct {
	raw *RawCutout
	err error
}

func (f fakeReader) ReadCutout(context.Context, string) (*RawCutout, error) {
	return f.raw, f.err
}

// threeFrameCutout is a 2x2 cutout with quality [0, 1, 0].
func threeFrameCutout(t *testing.T) *RawCutout {
	t.Helper()
	flux, err := CubeFromFrames([][]float64{
		{10, 20, 30, 40},
		{1000, 1000, 1000, 1000},
		{30, 60, 90, 120},
	}, 2, 2)
	require.NoError(t, err)
	fluxErr, err := CubeFromFrames([][]float64{
		{1, 2, 3, 4},
		{5, 5, 5, 5},
		{3, 2, 1, 4},
	}, 2, 2)
	require.NoError(t, err)

	primary := NewFitsMetadata()
	primary.Set("SECTOR", "42")
	return &RawCutout{
		Time:      []float64{1410.1, 1410.2, 1410.3},
		Flux:      flux,
		FluxErr:   fluxErr,
		Quality:   []int32{0, 1, 0},
		Primary:   primary,
		WCSHeader: tanHeader(nil),
	}
}

func TestTargetDataRemoveBad(t *testing.T) {
	td, err := NewTargetData(testCutoutPath, WithReader(fakeReader{raw: threeFrameCutout(t)}))
	require.NoError(t, err)

	assert.Equal(t, "tess-s00042-1-3_82.207_-79.434_2x2_astrocut.fits", td.FileName)
	assert.Equal(t, "42", td.Sector)
	assert.Equal(t, "1", td.Camera)
	assert.Equal(t, "3", td.CCD)

	assert.Equal(t, []float64{1410.1, 1410.3}, td.Time)
	assert.Equal(t, 2, td.Fluxes.T)
	assert.Equal(t, 2, td.FluxErrors.T)
	assert.Equal(t, []int32{0, 1, 0}, td.Quality)
	assert.Equal(t, []float64{1410.2}, td.FlaggedTimes)
	assert.Equal(t, 1, td.RemovedCount)

	assert.Equal(t, 2, td.CutoutSidelength)
	r, c := td.FluxMedians.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 20.0, td.FluxMedians.At(0, 0))
	assert.Equal(t, 40.0, td.FluxMedians.At(0, 1))
	assert.Equal(t, 60.0, td.FluxMedians.At(1, 0))
	assert.Equal(t, 80.0, td.FluxMedians.At(1, 1))
	assert.Equal(t, 4, td.FlattenedFluxMedians.Len())
	assert.Equal(t, 60.0, td.FlattenedFluxMedians.AtVec(2))

	for ti := 0; ti < td.Fluxes.T; ti++ {
		for row := 0; row < 2; row++ {
			for col := 0; col < 2; col++ {
				med := td.FluxMedians.At(row, col)
				assert.InDelta(t, td.Fluxes.At(ti, row, col)/med-1, td.CenteredScaledFluxes.At(ti, row, col), 1e-12)
				assert.InDelta(t, td.FluxErrors.At(ti, row, col)/med, td.CenteredScaledFluxErrors.At(ti, row, col), 1e-12)
				assert.Equal(t, td.CenteredScaledFluxes.At(ti, row, col),
					td.FlattenedCenteredScaledFluxes.At(ti, row*2+col))
			}
		}
	}
	assert.InDelta(t, -0.5, td.CenteredScaledFluxes.At(0, 0, 0), 1e-12)
	assert.InDelta(t, 0.5, td.CenteredScaledFluxes.At(1, 1, 1), 1e-12)

	assert.Empty(t, td.DegeneratePixels)
	assert.True(t, td.WCS.Present())
}

func TestTargetDataKeepBad(t *testing.T) {
	td, err := NewTargetData(testCutoutPath,
		WithReader(fakeReader{raw: threeFrameCutout(t)}),
		WithRemoveBad(false),
		WithVerbose(false),
	)
	require.NoError(t, err)

	assert.Len(t, td.Time, 3)
	assert.Equal(t, 3, td.Fluxes.T)
	assert.Equal(t, 3, td.FluxErrors.T)
	assert.Equal(t, []float64{1410.2}, td.FlaggedTimes)
	assert.Zero(t, td.RemovedCount)
	assert.Equal(t, 30.0, td.FluxMedians.At(0, 0))

	_, cols := td.FlattenedCenteredScaledFluxes.Dims()
	assert.Equal(t, 4, cols)
}

func TestTargetDataFlattenedViewsShareStorage(t *testing.T) {
	td, err := NewTargetData(testCutoutPath, WithReader(fakeReader{raw: threeFrameCutout(t)}), WithVerbose(false))
	require.NoError(t, err)

	assert.Equal(t, td.FluxMedians.RawMatrix().Data, td.FlattenedFluxMedians.RawVector().Data)
	assert.Same(t, &td.CenteredScaledFluxes.Data[0], &td.FlattenedCenteredScaledFluxes.RawMatrix().Data[0])
}

func TestTargetDataVerboseDiagnostics(t *testing.T) {
	raw := threeFrameCutout(t)
	raw.WCSHeader = nil
	raw.Primary.Set("SECTOR", "41")

	core, logs := observer.New(zap.DebugLevel)
	td, err := NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}), WithLogger(zap.New(core)))
	require.NoError(t, err)

	assert.False(t, td.WCS.Present())
	assert.ErrorIs(t, td.WCS.Reason, ErrNoWCSHeader)
	assert.Equal(t, 1, logs.FilterMessage("WCS Info could not be retrieved").Len())
	removed := logs.FilterMessage("Removing bad data points using the TESS provided QUALITY array").All()
	require.Len(t, removed, 1)
	assert.Equal(t, int64(1), removed[0].ContextMap()["removed"])
	assert.Equal(t, int64(3), removed[0].ContextMap()["total"])
	assert.Equal(t, 1, logs.FilterMessage("file name sector disagrees with header").Len())

	core, logs = observer.New(zap.DebugLevel)
	_, err = NewTargetData(testCutoutPath, WithReader(fakeReader{raw: threeFrameCutout(t)}),
		WithLogger(zap.New(core)), WithVerbose(false))
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestTargetDataBadWCSDoesNotAbort(t *testing.T) {
	raw := threeFrameCutout(t)
	raw.WCSHeader = NewFitsMetadata()
	raw.WCSHeader.Set("CTYPE1", "GLON-CAR")

	td, err := NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}), WithVerbose(false))
	require.NoError(t, err)
	assert.False(t, td.WCS.Present())
	assert.ErrorIs(t, td.WCS.Reason, ErrUnsupportedProjection)
}

func TestTargetDataDegenerateMedians(t *testing.T) {
	raw := threeFrameCutout(t)
	// Pixel 1 is zero in both kept frames, pixel 3 is NaN in both.
	raw.Flux.Data[1], raw.Flux.Data[9] = 0, 0
	raw.Flux.Data[3], raw.Flux.Data[11] = math.NaN(), math.NaN()

	td, err := NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}), WithVerbose(false))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, td.DegeneratePixels)
	assert.True(t, math.IsNaN(td.CenteredScaledFluxes.At(0, 0, 1)))
	assert.True(t, math.IsInf(td.CenteredScaledFluxErrors.At(0, 0, 1), 1))
	assert.True(t, math.IsNaN(td.CenteredScaledFluxes.At(0, 1, 1)))

	_, err = NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}),
		WithVerbose(false), WithStrictNormalization(true))
	require.ErrorIs(t, err, ErrDegenerateNormalization)
}

func TestTargetDataErrors(t *testing.T) {
	_, err := NewTargetData("/data/cutout.fits", WithReader(fakeReader{raw: threeFrameCutout(t)}))
	require.ErrorIs(t, err, ErrMalformedIdentifier)

	boom := errors.New("boom")
	_, err = NewTargetData(testCutoutPath, WithReader(fakeReader{err: boom}))
	require.ErrorIs(t, err, boom)

	raw := threeFrameCutout(t)
	raw.Quality = []int32{1, 2, 4}
	_, err = NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}), WithVerbose(false))
	require.ErrorIs(t, err, ErrEmptyCutout)

	raw = threeFrameCutout(t)
	raw.Time = raw.Time[:2]
	_, err = NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}), WithVerbose(false))
	require.ErrorIs(t, err, ErrShapeMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = LoadTargetData(ctx, testCutoutPath, WithReader(fakeReader{raw: threeFrameCutout(t)}), WithVerbose(false))
	require.ErrorIs(t, err, context.Canceled)
}

func TestTargetDataDefaultLoggerIsVerbose(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	orig := newDefaultLogger
	newDefaultLogger = func() *zap.Logger { return zap.New(core) }
	defer func() { newDefaultLogger = orig }()

	raw := threeFrameCutout(t)
	raw.WCSHeader = nil
	_, err := NewTargetData(testCutoutPath, WithReader(fakeReader{raw: raw}))
	require.NoError(t, err)

	assert.Equal(t, 1, logs.FilterMessage("Removing bad data points using the TESS provided QUALITY array").
		FilterField(zap.Int("removed", 1)).Len())
	assert.Equal(t, 1, logs.FilterMessage("WCS Info could not be retrieved").Len())

	core, logs = observer.New(zap.InfoLevel)
	_, err = NewTargetData(testCutoutPath, WithReader(fakeReader{raw: threeFrameCutout(t)}), WithVerbose(false))
	require.NoError(t, err)
	assert.Zero(t, logs.Len())
}

func TestDefaultLoggerEnabled(t *testing.T) {
	l := newDefaultLogger()
	assert.True(t, l.Core().Enabled(zap.InfoLevel))
	assert.True(t, l.Core().Enabled(zap.WarnLevel))
}
