package tesscpm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/astrogo/fitsio"
)

// Binary table columns of a TESScut cutout.
const (
	ColTime    = "TIME"
	ColFlux    = "FLUX"
	ColFluxErr = "FLUX_ERR"
	ColQuality = "QUALITY"
)

// FitsMetadata holds parsed FITS header key-value pairs.
type FitsMetadata struct {
	Headers map[string]string
}

// NewFitsMetadata creates an empty FitsMetadata.
func NewFitsMetadata() *FitsMetadata {
	return &FitsMetadata{Headers: make(map[string]string)}
}

func (m *FitsMetadata) Set(key, value string) {
	m.Headers[strings.ToUpper(key)] = value
}

func (m *FitsMetadata) Has(key string) bool {
	_, ok := m.Headers[strings.ToUpper(key)]
	return ok
}

func (m *FitsMetadata) GetString(key string) string {
	if v, ok := m.Headers[strings.ToUpper(key)]; ok {
		return v
	}
	return ""
}

func (m *FitsMetadata) GetDouble(key string) (float64, bool) {
	v, ok := m.Headers[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	// FITS allows Fortran-style exponents.
	d, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(v), "D", "E"), 64)
	if err != nil {
		return 0, false
	}
	return d, true
}

func (m *FitsMetadata) GetInt(key string) (int, bool) {
	v, ok := m.Headers[strings.ToUpper(key)]
	if !ok {
		return 0, false
	}
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, false
	}
	return i, true
}

func (m *FitsMetadata) Object() string    { return m.GetString("OBJECT") }
func (m *FitsMetadata) Telescope() string { return m.GetString("TELESCOP") }

func (m *FitsMetadata) Sector() (int, bool)     { return m.GetInt("SECTOR") }
func (m *FitsMetadata) RAObj() (float64, bool)  { return m.GetDouble("RA_OBJ") }
func (m *FitsMetadata) DecObj() (float64, bool) { return m.GetDouble("DEC_OBJ") }

// RawCutout is the unfiltered content of a cutout file.
type RawCutout struct {
	Time    []float64
	Flux    *Cube
	FluxErr *Cube
	Quality []int32

	Primary *FitsMetadata
	// WCSHeader is the header of HDU 2, nil when the file has no such HDU.
	WCSHeader *FitsMetadata
}

// Validate checks that every time-indexed column has the same length.
func (r *RawCutout) Validate() error {
	if r.Flux == nil || r.FluxErr == nil {
		return fmt.Errorf("%w: flux cubes are missing", ErrShapeMismatch)
	}
	n := len(r.Time)
	if n == 0 {
		return ErrEmptyCutout
	}
	if len(r.Quality) != n || r.Flux.T != n || r.FluxErr.T != n {
		return fmt.Errorf("%w: TIME=%d QUALITY=%d FLUX=%d FLUX_ERR=%d rows",
			ErrShapeMismatch, n, len(r.Quality), r.Flux.T, r.FluxErr.T)
	}
	if r.Flux.Rows == 0 || r.Flux.Cols == 0 {
		return fmt.Errorf("%w: empty %dx%d frames", ErrShapeMismatch, r.Flux.Rows, r.Flux.Cols)
	}
	if r.Flux.Rows != r.FluxErr.Rows || r.Flux.Cols != r.FluxErr.Cols {
		return fmt.Errorf("%w: FLUX frames are %dx%d, FLUX_ERR frames are %dx%d",
			ErrShapeMismatch, r.Flux.Rows, r.Flux.Cols, r.FluxErr.Rows, r.FluxErr.Cols)
	}
	return nil
}

// CutoutReader reads the raw columns of one cutout file.
type CutoutReader interface {
	ReadCutout(ctx context.Context, path string) (*RawCutout, error)
}

// FITSReader reads TESScut files from the local file system.
type FITSReader struct{}

var _ CutoutReader = FITSReader{}

// ReadCutout reads the cutout at path.
func (FITSReader) ReadCutout(ctx context.Context, path string) (*RawCutout, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening FITS file: %w", err)
	}
	defer f.Close()
	return readCutoutFromReader(ctx, f)
}

// ReadCutoutBytes reads a cutout from an in-memory FITS file.
func ReadCutoutBytes(ctx context.Context, data []byte) (*RawCutout, error) {
	return readCutoutFromReader(ctx, bytes.NewReader(data))
}

// BytesReader serves one in-memory FITS file whatever path is requested.
type BytesReader []byte

func (b BytesReader) ReadCutout(ctx context.Context, _ string) (*RawCutout, error) {
	return ReadCutoutBytes(ctx, b)
}

func readCutoutFromReader(ctx context.Context, r io.Reader) (*RawCutout, error) {
	ff, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("parsing FITS: %w", err)
	}
	defer ff.Close()

	hdus := ff.HDUs()
	if len(hdus) < 2 {
		return nil, fmt.Errorf("%w: file has %d HDUs, no binary table", ErrMissingColumn, len(hdus))
	}
	table, ok := hdus[1].(*fitsio.Table)
	if !ok {
		return nil, fmt.Errorf("%w: HDU 1 is %v, not a binary table", ErrMissingColumn, hdus[1].Type())
	}

	raw, err := readTable(ctx, table)
	if err != nil {
		return nil, err
	}
	raw.Primary = metadataFromHeader(hdus[0].Header())
	if len(hdus) > 2 {
		raw.WCSHeader = metadataFromHeader(hdus[2].Header())
	}
	return raw, nil
}

func readTable(ctx context.Context, table *fitsio.Table) (*RawCutout, error) {
	for _, name := range []string{ColTime, ColFlux, ColFluxErr, ColQuality} {
		if table.Index(name) < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	nrows := table.NumRows()
	if nrows == 0 {
		return nil, ErrEmptyCutout
	}

	rows, err := table.Read(0, nrows)
	if err != nil {
		return nil, fmt.Errorf("reading cutout table: %w", err)
	}
	defer rows.Close()

	raw := &RawCutout{
		Time:    make([]float64, 0, nrows),
		Quality: make([]int32, 0, nrows),
	}
	fluxFrames := make([][]float64, 0, nrows)
	errFrames := make([][]float64, 0, nrows)

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := map[string]interface{}{ColTime: nil, ColFlux: nil, ColFluxErr: nil, ColQuality: nil}
		if err := rows.Scan(&row); err != nil {
			return nil, fmt.Errorf("scanning row %d: %w", len(raw.Time), err)
		}

		t, err := toFloat64s(row[ColTime])
		if err != nil || len(t) != 1 {
			return nil, fmt.Errorf("%w: TIME row %d is not a scalar", ErrShapeMismatch, len(raw.Time))
		}
		q, err := toFloat64s(row[ColQuality])
		if err != nil || len(q) != 1 {
			return nil, fmt.Errorf("%w: QUALITY row %d is not a scalar", ErrShapeMismatch, len(raw.Time))
		}
		flux, err := toFloat64s(row[ColFlux])
		if err != nil {
			return nil, fmt.Errorf("decoding FLUX: %w", err)
		}
		fluxErr, err := toFloat64s(row[ColFluxErr])
		if err != nil {
			return nil, fmt.Errorf("decoding FLUX_ERR: %w", err)
		}

		raw.Time = append(raw.Time, t[0])
		raw.Quality = append(raw.Quality, int32(q[0]))
		fluxFrames = append(fluxFrames, flux)
		errFrames = append(errFrames, fluxErr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cutout table: %w", err)
	}

	rowsPx, colsPx, err := frameShape(table, ColFlux, len(fluxFrames[0]))
	if err != nil {
		return nil, err
	}
	if raw.Flux, err = CubeFromFrames(fluxFrames, rowsPx, colsPx); err != nil {
		return nil, fmt.Errorf("FLUX: %w", err)
	}
	if raw.FluxErr, err = CubeFromFrames(errFrames, rowsPx, colsPx); err != nil {
		return nil, fmt.Errorf("FLUX_ERR: %w", err)
	}
	return raw, nil
}

// frameShape returns (rows, cols) of an image column, from TDIMn when present
// and otherwise assuming a square frame.
func frameShape(table *fitsio.Table, col string, n int) (int, int, error) {
	md := metadataFromHeader(table.Header())
	if tdim := md.GetString(fmt.Sprintf("TDIM%d", table.Index(col)+1)); tdim != "" {
		dims, err := parseTDIM(tdim)
		if err != nil {
			return 0, 0, err
		}
		if len(dims) != 2 || dims[0]*dims[1] != n {
			return 0, 0, fmt.Errorf("%w: %s TDIM %s does not describe %d pixels", ErrShapeMismatch, col, tdim, n)
		}
		// FITS lists the fastest varying axis first.
		return dims[1], dims[0], nil
	}

	side := int(math.Round(math.Sqrt(float64(n))))
	if side*side != n || n == 0 {
		return 0, 0, fmt.Errorf("%w: %s has %d pixels per row and no TDIM", ErrShapeMismatch, col, n)
	}
	return side, side, nil
}

func parseTDIM(v string) ([]int, error) {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(strings.TrimPrefix(v, "("), ")")
	parts := strings.Split(v, ",")
	dims := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("%w: bad TDIM %q", ErrShapeMismatch, v)
		}
		dims = append(dims, d)
	}
	return dims, nil
}

// toFloat64s flattens a scanned cell (scalar, fixed-size array or slice of
// any numeric kind) into float64 values.
func toFloat64s(cell interface{}) ([]float64, error) {
	if cell == nil {
		return nil, fmt.Errorf("empty cell")
	}
	rv := reflect.ValueOf(cell)
	switch rv.Kind() {
	case reflect.Array, reflect.Slice:
		out := make([]float64, rv.Len())
		for i := range out {
			f, err := numericValue(rv.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
		return out, nil
	default:
		f, err := numericValue(rv)
		if err != nil {
			return nil, err
		}
		return []float64{f}, nil
	}
}

func numericValue(v reflect.Value) (float64, error) {
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return v.Float(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), nil
	case reflect.Bool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("unsupported cell type %s", v.Type())
}

func metadataFromHeader(h *fitsio.Header) *FitsMetadata {
	m := NewFitsMetadata()
	if h == nil {
		return m
	}
	for _, key := range h.Keys() {
		card := h.Get(key)
		if card == nil {
			continue
		}
		if v := formatCardValue(card.Value); v != "" {
			m.Set(key, v)
		}
	}
	return m
}

func formatCardValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case bool:
		if v {
			return "True"
		}
		return "False"
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
