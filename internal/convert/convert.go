// Package convert runs a model through the accumulator and into the OBJ or GLB encoder.
package convert

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Faultbox/meshconv/internal/config"
	"github.com/Faultbox/meshconv/internal/rsmsource"
	"github.com/Faultbox/meshconv/pkg/geometry"
	"github.com/Faultbox/meshconv/pkg/glb"
	"github.com/Faultbox/meshconv/pkg/mesh"
	"github.com/Faultbox/meshconv/pkg/objmtl"
)

// Format selects the output encoder.
type Format int

const (
	FormatOBJ Format = iota
	FormatGLB
)

// String returns the file extension of the format, without the dot.
func (f Format) String() string {
	switch f {
	case FormatOBJ:
		return "obj"
	case FormatGLB:
		return "glb"
	default:
		return fmt.Sprintf("Unknown(%d)", int(f))
	}
}

// FormatFromPath picks the format from an output file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".obj":
		return FormatOBJ, nil
	case ".glb":
		return FormatGLB, nil
	default:
		return 0, fmt.Errorf("%w: unknown output extension %q", ErrInput, filepath.Ext(path))
	}
}

// Options configures a conversion.
type Options struct {
	Transformer geometry.Transformer
	Source      rsmsource.Options
	GLB         glb.Options
}

// DefaultOptions returns the options of the default config.
func DefaultOptions() Options {
	return OptionsFromConfig(config.Default())
}

// OptionsFromConfig maps a validated config onto conversion options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Transformer: cfg.Transformer(),
		Source: rsmsource.Options{
			NormalizeOrigin: cfg.Conversion.NormalizeOrigin,
			AnimTimeMs:      cfg.Conversion.AnimTimeMs,
			TwoSided:        cfg.Conversion.TwoSided,
		},
		GLB: glb.Options{
			VertexColors:     cfg.Output.VertexColors,
			EmissiveStrength: cfg.Output.EmissiveStrength,
			Roughness:        cfg.Output.Roughness,
			Dedup:            cfg.Output.Dedup,
		},
	}
}

// Result summarises a finished conversion.
type Result struct {
	Output    string
	Records   int
	Vertices  int
	Triangles int
	Skipped   int
	Failed    int
	// Err holds the per-instance failures, which do not fail the conversion.
	Err error
}

// Open resolves an input argument and plans its instances.
func Open(arg string, opts rsmsource.Options) (*rsmsource.Source, error) {
	in, err := ParseInput(arg)
	if err != nil {
		return nil, err
	}
	data, err := in.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %w", mesh.ErrParserFailure, in, err)
	}
	src, err := rsmsource.Open(data, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}
	return src, nil
}

// ToOBJ converts input into an OBJ file and its MTL companion.
func ToOBJ(ctx context.Context, input, output string, opts Options, log *zap.Logger) (*Result, error) {
	return Run(ctx, input, output, FormatOBJ, opts, log)
}

// ToGLB converts input into a GLB file.
func ToGLB(ctx context.Context, input, output string, opts Options, log *zap.Logger) (*Result, error) {
	return Run(ctx, input, output, FormatGLB, opts, log)
}

// Run converts input to output. Source failures and cancellation abort before
// anything is written; malformed instances are dropped and reported in
// Result.Err.
func Run(ctx context.Context, input, output string, format Format, opts Options, log *zap.Logger) (res *Result, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("input", input), zap.Stringer("format", format))

	srcOpts := opts.Source
	srcOpts.Logger = log.Named("rsm")
	src, err := Open(input, srcOpts)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("closing source: %w", cerr))
		}
	}()

	acc := mesh.NewAccumulator(opts.Transformer, log.Named("mesh"))
	records, err := mesh.Accumulate(ctx, src, acc)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatOBJ:
		err = objmtl.WriteFiles(output, records)
	case FormatGLB:
		err = glb.WriteFile(output, records, opts.GLB)
	default:
		err = fmt.Errorf("%w: format %s", ErrInput, format)
	}
	if err != nil {
		return nil, err
	}

	res = &Result{
		Output:   output,
		Records:  len(records),
		Vertices: acc.VertexTotal(),
		Skipped:  acc.Skipped(),
		Failed:   len(multierr.Errors(acc.Err())),
		Err:      acc.Err(),
	}
	for i := range records {
		res.Triangles += records[i].TriangleCount()
	}

	log.Info("converted",
		zap.String("output", output),
		zap.Int("records", res.Records),
		zap.Int("vertices", res.Vertices),
		zap.Int("triangles", res.Triangles),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}
