// Package glb encodes mesh records as a binary glTF container with unlit materials.
package glb

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/ext/unlit"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/meshconv/pkg/geometry"
	"github.com/Faultbox/meshconv/pkg/mesh"
)

// ErrEncoding is returned when the container cannot be produced.
var ErrEncoding = errors.New("glb encoding failed")

const generator = "meshconv"

// Options controls material and attribute output.
type Options struct {
	// VertexColors writes a COLOR_0 accessor per primitive. When false the
	// material base color alone carries the instance color.
	VertexColors bool
	// EmissiveStrength scales rgb into the emissive factor.
	EmissiveStrength float32
	// Roughness is the PBR roughness used by viewers that ignore the unlit extension.
	Roughness float32
	// Dedup merges identical accessors and materials before writing.
	Dedup bool
}

// DefaultOptions matches the established output.
func DefaultOptions() Options {
	return Options{
		VertexColors:     true,
		EmissiveStrength: 0.5,
		Roughness:        0.9,
		Dedup:            true,
	}
}

// Encoder builds glTF documents from records.
type Encoder struct {
	opts Options
}

// NewEncoder creates an encoder.
func NewEncoder(opts Options) *Encoder {
	return &Encoder{opts: opts}
}

// Encode builds a document holding one node, mesh, primitive and material per
// record, all accessors sharing a single buffer.
func (e *Encoder) Encode(records []mesh.Record) (*gltf.Document, error) {
	doc := gltf.NewDocument()
	doc.Asset.Generator = generator
	doc.ExtensionsUsed = append(doc.ExtensionsUsed, unlit.ExtensionName)

	for i := range records {
		if err := e.addRecord(doc, &records[i]); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrEncoding, records[i].Name, err)
		}
	}
	return doc, nil
}

func (e *Encoder) addRecord(doc *gltf.Document, rec *mesh.Record) error {
	if rec.Buffers.Empty() {
		return mesh.ErrEmptyGeometry
	}

	prim := &gltf.Primitive{
		Attributes: map[string]uint32{
			gltf.POSITION: modeler.WritePosition(doc, geometry.Triples(rec.Buffers.Positions)),
			gltf.NORMAL:   modeler.WriteNormal(doc, geometry.Triples(rec.Buffers.Normals)),
		},
	}
	if e.opts.VertexColors {
		prim.Attributes[gltf.COLOR_0] = modeler.WriteColor(doc, geometry.Triples(rec.Buffers.Colors))
	}
	if len(rec.Indices) > 0 {
		prim.Indices = gltf.Index(modeler.WriteIndices(doc, rec.Indices))
	}

	doc.Materials = append(doc.Materials, e.material(rec.Color))
	prim.Material = gltf.Index(uint32(len(doc.Materials) - 1))

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name:       rec.Name,
		Primitives: []*gltf.Primitive{prim},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{
		Name: fmt.Sprintf("node_%d_%d", rec.MeshIndex, rec.InstanceIndex),
		Mesh: gltf.Index(uint32(len(doc.Meshes) - 1)),
	})
	scene := doc.Scenes[*doc.Scene]
	scene.Nodes = append(scene.Nodes, uint32(len(doc.Nodes)-1))
	return nil
}

func (e *Encoder) material(c geometry.Color) *gltf.Material {
	s := e.opts.EmissiveStrength
	mat := &gltf.Material{
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{c.R, c.G, c.B, c.A},
			MetallicFactor:  gltf.Float(0),
			RoughnessFactor: gltf.Float(e.opts.Roughness),
		},
		EmissiveFactor: [3]float32{c.R * s, c.G * s, c.B * s},
		Extensions:     gltf.Extensions{unlit.ExtensionName: unlit.Unlit{}},
	}
	if c.A < 1 {
		mat.AlphaMode = gltf.AlphaBlend
	}
	return mat
}

// Marshal serializes doc as a GLB container.
func Marshal(doc *gltf.Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncoding, err)
	}
	return buf.Bytes(), nil
}

// Unmarshal parses GLB bytes into a document.
func Unmarshal(data []byte) (*gltf.Document, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("decoding glb: %w", err)
	}
	return doc, nil
}
