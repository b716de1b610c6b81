package glb

import (
	"fmt"
	"slices"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/meshconv/internal/fsutil"
	"github.com/Faultbox/meshconv/pkg/mesh"
)

// Build encodes records and, when enabled, deduplicates the result.
func Build(records []mesh.Record, opts Options) (*gltf.Document, error) {
	doc, err := NewEncoder(opts).Encode(records)
	if err != nil {
		return nil, err
	}
	if opts.Dedup {
		if err := Dedup(doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

// WriteFile encodes records into a GLB file at path. Nothing is written
// unless encoding succeeds.
func WriteFile(path string, records []mesh.Record, opts Options) error {
	doc, err := Build(records, opts)
	if err != nil {
		return err
	}
	data, err := Marshal(doc)
	if err != nil {
		return err
	}
	return fsutil.WriteFile(path, data)
}

// Summary describes the content of a GLB container.
type Summary struct {
	Generator   string
	Nodes       int
	Meshes      int
	Primitives  int
	Accessors   int
	BufferViews int
	Materials   int
	BufferBytes int
	Vertices    int
	Triangles   int
	Extensions  []string
}

// Inspect summarises a GLB container.
func Inspect(data []byte) (*Summary, error) {
	doc, err := Unmarshal(data)
	if err != nil {
		return nil, err
	}

	s := &Summary{
		Generator:   doc.Asset.Generator,
		Nodes:       len(doc.Nodes),
		Meshes:      len(doc.Meshes),
		Accessors:   len(doc.Accessors),
		BufferViews: len(doc.BufferViews),
		Materials:   len(doc.Materials),
		Extensions:  slices.Clone(doc.ExtensionsUsed),
	}
	for _, b := range doc.Buffers {
		s.BufferBytes += int(b.ByteLength)
	}
	for _, m := range doc.Meshes {
		s.Primitives += len(m.Primitives)
		for _, prim := range m.Primitives {
			if pos, ok := prim.Attributes[gltf.POSITION]; ok && int(pos) < len(doc.Accessors) {
				s.Vertices += int(doc.Accessors[pos].Count)
			}
			if prim.Indices != nil && int(*prim.Indices) < len(doc.Accessors) {
				s.Triangles += int(doc.Accessors[*prim.Indices].Count) / 3
			}
		}
	}
	return s, nil
}

// String formats the summary for terminal output.
func (s *Summary) String() string {
	return fmt.Sprintf("generator=%s nodes=%d meshes=%d primitives=%d accessors=%d views=%d materials=%d buffer=%dB vertices=%d triangles=%d extensions=%v",
		s.Generator, s.Nodes, s.Meshes, s.Primitives, s.Accessors, s.BufferViews, s.Materials, s.BufferBytes, s.Vertices, s.Triangles, s.Extensions)
}
