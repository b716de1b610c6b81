package mesh

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshconv/pkg/geometry"
)

// Accumulator turns instances into records while tracking the global vertex offset.
type Accumulator struct {
	transformer geometry.Transformer
	log         *zap.Logger

	records     []Record
	vertexTotal int
	skipped     int
	errs        error
}

// NewAccumulator creates an accumulator. A nil logger discards output.
func NewAccumulator(t geometry.Transformer, log *zap.Logger) *Accumulator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Accumulator{transformer: t, log: log}
}

// Add processes one instance and releases its handle on every path.
// Empty instances are skipped without error. A malformed instance returns an
// error, is recorded in Err, and leaves the accumulated records untouched.
func (a *Accumulator) Add(inst Instance) (bool, error) {
	defer inst.release()

	name := inst.Name()
	if len(inst.Vertices) == 0 || len(inst.Indices) == 0 {
		a.skipped++
		a.log.Debug("skipping instance", zap.String("name", name), zap.Error(ErrEmptyGeometry))
		return false, nil
	}

	rec, err := a.build(name, inst)
	if err != nil {
		err = fmt.Errorf("%s: %w", name, err)
		a.errs = multierr.Append(a.errs, err)
		a.log.Warn("dropping malformed instance", zap.String("name", name), zap.Error(err))
		return false, err
	}

	a.records = append(a.records, rec)
	a.vertexTotal += rec.VertexCount()
	return true, nil
}

func (a *Accumulator) build(name string, inst Instance) (Record, error) {
	if len(inst.Indices)%3 != 0 {
		return Record{}, fmt.Errorf("%w: got %d indices", ErrMalformedIndices, len(inst.Indices))
	}

	buffers, err := geometry.Build(inst.Color, inst.Vertices, inst.Transform, a.transformer)
	if err != nil {
		return Record{}, err
	}

	count := uint32(buffers.VertexCount())
	for _, idx := range inst.Indices {
		if idx >= count {
			return Record{}, fmt.Errorf("%w: %d >= %d vertices", ErrIndexOutOfRange, idx, count)
		}
	}

	return Record{
		Name:              name,
		MeshIndex:         inst.MeshIndex,
		InstanceIndex:     inst.InstanceIndex,
		Buffers:           buffers,
		Indices:           slices.Clone(inst.Indices),
		Color:             inst.Color,
		GlobalIndexOffset: a.vertexTotal,
	}, nil
}

// Records returns the accumulated records in stream order.
func (a *Accumulator) Records() []Record {
	return a.records
}

// VertexTotal returns the vertex count over all records.
func (a *Accumulator) VertexTotal() int {
	return a.vertexTotal
}

// Skipped returns the number of empty instances skipped.
func (a *Accumulator) Skipped() int {
	return a.skipped
}

// Err returns every per-instance failure, combined.
func (a *Accumulator) Err() error {
	return a.errs
}

// Accumulate drains src into acc. Per-instance failures are kept in acc.Err
// and do not stop the stream; a source failure or cancellation aborts it.
func Accumulate(ctx context.Context, src Source, acc *Accumulator) ([]Record, error) {
	var aborted error
	err := src.ForEachInstance(func(inst Instance) error {
		if err := ctx.Err(); err != nil {
			inst.release()
			aborted = err
			return err
		}
		_, _ = acc.Add(inst)
		return nil
	})
	if aborted != nil {
		return nil, aborted
	}
	if err != nil {
		if errors.Is(err, ErrParserFailure) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrParserFailure, err)
	}
	return acc.Records(), nil
}
