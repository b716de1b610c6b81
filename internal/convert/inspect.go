package convert

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Faultbox/meshconv/pkg/glb"
	"github.com/Faultbox/meshconv/pkg/objmtl"
)

// OBJSummary describes a decoded OBJ/MTL pair.
type OBJSummary struct {
	MaterialLib string
	Objects     int
	Materials   int
	Vertices    int
	Normals     int
	Triangles   int
}

// String formats the summary for terminal output.
func (s *OBJSummary) String() string {
	return fmt.Sprintf("mtllib=%s objects=%d materials=%d vertices=%d normals=%d triangles=%d",
		s.MaterialLib, s.Objects, s.Materials, s.Vertices, s.Normals, s.Triangles)
}

// InspectOBJ decodes an OBJ file and, when present, the MTL file it names.
func InspectOBJ(path string) (*OBJSummary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// first pass finds the mtllib line
	probe, err := objmtl.Decode(bytes.NewReader(data), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var mtl io.Reader
	if probe.MaterialLib != "" {
		if f, err := os.Open(filepath.Join(filepath.Dir(path), probe.MaterialLib)); err == nil {
			defer f.Close()
			mtl = f
		}
	}

	model, err := objmtl.Decode(bytes.NewReader(data), mtl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &OBJSummary{
		MaterialLib: model.MaterialLib,
		Objects:     len(model.Objects),
		Materials:   len(model.Materials),
		Vertices:    len(model.Positions),
		Normals:     len(model.Normals),
		Triangles:   model.TriangleCount(),
	}, nil
}

// Inspect summarises a produced output file, picking the decoder by extension.
func Inspect(path string) (fmt.Stringer, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	if format == FormatOBJ {
		return InspectOBJ(path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return glb.Inspect(data)
}
