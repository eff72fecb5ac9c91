// Package export writes loaded cutouts to Apache Arrow IPC files.
package export

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/apache/arrow/go/v18/arrow"
	"github.com/apache/arrow/go/v18/arrow/array"
	"github.com/apache/arrow/go/v18/arrow/ipc"
	"github.com/apache/arrow/go/v18/arrow/memory"
	"github.com/google/uuid"

	"tesscpm/pkg/tesscpm"
)

// Column names.
const (
	ColTime    = "time"
	ColFlux    = "centered_scaled_flux"
	ColFluxErr = "centered_scaled_flux_err"
)

// Schema metadata keys.
const (
	MetaFileName    = "tesscpm.file_name"
	MetaSector      = "tesscpm.sector"
	MetaCamera      = "tesscpm.camera"
	MetaCCD         = "tesscpm.ccd"
	MetaSide        = "tesscpm.cutout_sidelength"
	MetaRemoved     = "tesscpm.removed_count"
	MetaFluxMedians = "tesscpm.flux_medians"
	MetaIngestID    = "tesscpm.ingest_id"
)

// Options configures WriteArrow. The zero value is usable.
type Options struct {
	Allocator memory.Allocator
	// IngestID overrides the generated identifier.
	IngestID string
}

// Schema returns the Arrow schema describing td.
func Schema(td *tesscpm.TargetData, ingestID string) (*arrow.Schema, error) {
	medians, err := json.Marshal(jsonFloats(td.FlattenedFluxMedians.RawVector().Data))
	if err != nil {
		return nil, fmt.Errorf("encoding flux medians: %w", err)
	}
	md := arrow.NewMetadata(
		[]string{MetaFileName, MetaSector, MetaCamera, MetaCCD, MetaSide, MetaRemoved, MetaFluxMedians, MetaIngestID},
		[]string{
			td.FileName, td.Sector, td.Camera, td.CCD,
			strconv.Itoa(td.CutoutSidelength),
			strconv.Itoa(td.RemovedCount),
			string(medians),
			ingestID,
		},
	)

	pixels := int32(td.CenteredScaledFluxes.FrameSize())
	return arrow.NewSchema([]arrow.Field{
		{Name: ColTime, Type: arrow.PrimitiveTypes.Float64},
		{Name: ColFlux, Type: arrow.FixedSizeListOf(pixels, arrow.PrimitiveTypes.Float64)},
		{Name: ColFluxErr, Type: arrow.FixedSizeListOf(pixels, arrow.PrimitiveTypes.Float64)},
	}, &md), nil
}

// WriteArrow writes td as a single record batch Arrow IPC file and returns
// the ingest id stored in the schema metadata.
func WriteArrow(w io.Writer, td *tesscpm.TargetData, opts Options) (string, error) {
	mem := opts.Allocator
	if mem == nil {
		mem = memory.DefaultAllocator
	}
	ingestID := opts.IngestID
	if ingestID == "" {
		ingestID = uuid.NewString()
	}

	schema, err := Schema(td, ingestID)
	if err != nil {
		return "", err
	}

	b := array.NewRecordBuilder(mem, schema)
	defer b.Release()

	b.Field(0).(*array.Float64Builder).AppendValues(td.Time, nil)
	appendFrames(b.Field(1).(*array.FixedSizeListBuilder), td.CenteredScaledFluxes)
	appendFrames(b.Field(2).(*array.FixedSizeListBuilder), td.CenteredScaledFluxErrors)

	rec := b.NewRecord()
	defer rec.Release()

	fw, err := ipc.NewFileWriter(w, ipc.WithSchema(schema), ipc.WithAllocator(mem))
	if err != nil {
		return "", fmt.Errorf("creating arrow writer: %w", err)
	}
	if err := fw.Write(rec); err != nil {
		fw.Close()
		return "", fmt.Errorf("writing record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return "", fmt.Errorf("closing arrow writer: %w", err)
	}
	return ingestID, nil
}

func appendFrames(lb *array.FixedSizeListBuilder, c *tesscpm.Cube) {
	vb := lb.ValueBuilder().(*array.Float64Builder)
	for t := 0; t < c.T; t++ {
		lb.Append(true)
		vb.AppendValues(c.Frame(t), nil)
	}
}

// jsonFloats encodes non-finite values as null, which encoding/json rejects.
type jsonFloats []float64

func (f jsonFloats) MarshalJSON() ([]byte, error) {
	out := make([]*float64, len(f))
	for i := range f {
		if !math.IsNaN(f[i]) && !math.IsInf(f[i], 0) {
			out[i] = &f[i]
		}
	}
	return json.Marshal(out)
}
