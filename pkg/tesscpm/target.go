package tesscpm

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"tesscpm/pkg/logging"
)

// newDefaultLogger builds the logger used when verbose is on and none is injected.
var newDefaultLogger = logging.NewDefaultLogger

// TargetData is one TESS cutout loaded into memory, quality filtered and
// normalized per pixel. It is immutable once constructed; the flattened
// views share storage with the arrays they reshape.
type TargetData struct {
	FilePath string
	FileName string
	ID       CutoutID
	Sector   string
	Camera   string
	CCD      string

	Header *FitsMetadata

	Time       []float64
	Fluxes     *Cube
	FluxErrors *Cube
	// Quality is never filtered and keeps its original length.
	Quality      []int32
	FlaggedTimes []float64
	RemovedCount int

	FluxMedians          *mat.Dense
	FlattenedFluxMedians *mat.VecDense
	CutoutSidelength     int

	CenteredScaledFluxes          *Cube
	FlattenedCenteredScaledFluxes *mat.Dense
	CenteredScaledFluxErrors      *Cube

	// DegeneratePixels lists flat pixel indices whose median is 0, NaN or Inf.
	DegeneratePixels []int

	WCS OptionalWCS
}

type options struct {
	removeBad bool
	verbose   bool
	strict    bool
	workers   int
	logger    *zap.Logger
	reader    CutoutReader
	wcsParser WCSParser
}

// Option configures how a cutout is loaded.
type Option func(*options)

// WithRemoveBad drops samples whose QUALITY flag is nonzero. Default true.
func WithRemoveBad(v bool) Option { return func(o *options) { o.removeBad = v } }

// WithVerbose toggles diagnostic logging. Default true.
func WithVerbose(v bool) Option { return func(o *options) { o.verbose = v } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

func WithReader(r CutoutReader) Option { return func(o *options) { o.reader = r } }

func WithWCSParser(p WCSParser) Option { return func(o *options) { o.wcsParser = p } }

// WithStrictNormalization makes a zero, NaN or infinite pixel median fail
// construction with ErrDegenerateNormalization.
func WithStrictNormalization(v bool) Option { return func(o *options) { o.strict = v } }

// WithWorkers bounds the goroutines used for the median pass.
func WithWorkers(n int) Option { return func(o *options) { o.workers = n } }

func defaultOptions() options {
	return options{
		removeBad: true,
		verbose:   true,
		reader:    FITSReader{},
		wcsParser: TANParser{},
	}
}

// NewTargetData loads the cutout at path.
func NewTargetData(path string, opts ...Option) (*TargetData, error) {
	return LoadTargetData(context.Background(), path, opts...)
}

// LoadTargetData loads the cutout at path, honoring ctx during the read and
// the per-pixel passes.
func LoadTargetData(ctx context.Context, path string, opts ...Option) (*TargetData, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	switch {
	case !o.verbose:
		log = zap.NewNop()
	case log == nil:
		log = newDefaultLogger()
		defer log.Sync() //nolint:errcheck
	}

	td := &TargetData{FilePath: path, FileName: filepath.Base(path)}
	log = log.With(zap.String("file", td.FileName))

	id, err := ParseCutoutName(td.FileName)
	if err != nil {
		return nil, err
	}
	td.ID = id
	td.Sector, td.Camera, td.CCD = id.Sector, id.Camera, id.CCD

	raw, err := o.reader.ReadCutout(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("reading cutout: %w", err)
	}
	if err := raw.Validate(); err != nil {
		return nil, err
	}
	td.Header = raw.Primary
	checkSector(log, td)

	td.WCS = resolveWCS(o.wcsParser, raw.WCSHeader)
	if !td.WCS.Present() {
		log.Warn("WCS Info could not be retrieved", zap.Error(td.WCS.Reason))
	}

	td.Time = raw.Time
	td.Fluxes = raw.Flux
	td.FluxErrors = raw.FluxErr
	td.Quality = raw.Quality

	keep := make([]bool, len(raw.Quality))
	for i, q := range raw.Quality {
		if q > 0 {
			td.FlaggedTimes = append(td.FlaggedTimes, raw.Time[i])
		}
		keep[i] = q == 0
	}

	if o.removeBad {
		td.Time = make([]float64, 0, len(raw.Time))
		for i, k := range keep {
			if k {
				td.Time = append(td.Time, raw.Time[i])
			}
		}
		td.Fluxes = raw.Flux.Select(keep)
		td.FluxErrors = raw.FluxErr.Select(keep)
		td.RemovedCount = len(raw.Time) - len(td.Time)
		log.Info("Removing bad data points using the TESS provided QUALITY array",
			zap.Int("removed", td.RemovedCount), zap.Int("total", len(raw.Time)))
	}
	if len(td.Time) == 0 {
		return nil, fmt.Errorf("%w: all %d samples are flagged", ErrEmptyCutout, len(raw.Time))
	}

	medians, err := PixelMedians(ctx, td.Fluxes, o.workers)
	if err != nil {
		return nil, fmt.Errorf("computing pixel medians: %w", err)
	}
	rows, cols := td.Fluxes.Rows, td.Fluxes.Cols
	td.FluxMedians = mat.NewDense(rows, cols, medians)
	td.FlattenedFluxMedians = mat.NewVecDense(len(medians), medians)
	td.CutoutSidelength = rows

	td.DegeneratePixels = degeneratePixels(medians)
	if len(td.DegeneratePixels) > 0 {
		if o.strict {
			return nil, fmt.Errorf("%w: %d of %d pixel medians are zero or not finite",
				ErrDegenerateNormalization, len(td.DegeneratePixels), len(medians))
		}
		log.Warn("degenerate pixel medians", zap.Ints("pixels", td.DegeneratePixels))
	}

	if td.CenteredScaledFluxes, err = normalizeFrames(ctx, td.Fluxes, medians, 1); err != nil {
		return nil, fmt.Errorf("normalizing fluxes: %w", err)
	}
	td.FlattenedCenteredScaledFluxes = mat.NewDense(td.CenteredScaledFluxes.T, rows*cols, td.CenteredScaledFluxes.Data)
	if td.CenteredScaledFluxErrors, err = normalizeFrames(ctx, td.FluxErrors, medians, 0); err != nil {
		return nil, fmt.Errorf("normalizing flux errors: %w", err)
	}

	log.Debug("cutout loaded",
		zap.Stringer("id", td.ID),
		zap.Int("frames", len(td.Time)),
		zap.Int("side", td.CutoutSidelength),
		zap.Int("flagged", len(td.FlaggedTimes)))
	return td, nil
}

func checkSector(log *zap.Logger, td *TargetData) {
	if td.Header == nil {
		return
	}
	hs, ok := td.Header.Sector()
	if !ok {
		return
	}
	if strconv.Itoa(hs) != td.Sector {
		log.Warn("file name sector disagrees with header",
			zap.String("file_sector", td.Sector), zap.Int("header_sector", hs))
	}
}
