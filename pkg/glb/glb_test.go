package glb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/ext/unlit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshconv/pkg/geometry"
	"github.com/Faultbox/meshconv/pkg/mesh"
)

func record(meshIdx int, positions []float32, color geometry.Color, offset int) mesh.Record {
	n := len(positions)
	normals := make([]float32, n)
	colors := make([]float32, n)
	for i := 0; i < n; i += 3 {
		normals[i+2] = 1
		colors[i], colors[i+1], colors[i+2] = color.R, color.G, color.B
	}
	return mesh.Record{
		Name:              fmt.Sprintf("mesh_%d_0", meshIdx),
		MeshIndex:         meshIdx,
		Buffers:           geometry.Buffers{Positions: positions, Normals: normals, Colors: colors},
		Indices:           []uint32{0, 1, 2},
		Color:             color,
		GlobalIndexOffset: offset,
	}
}

var (
	red   = geometry.Color{R: 1, A: 1}
	green = geometry.Color{G: 1, A: 0.5}
	tri0  = []float32{0, 0, 0, 1, 0, 0, 0, 1, 0}
	tri1  = []float32{5, 0, 0, 6, 0, 0, 5, 1, 0}
)

func TestEncodeStructure(t *testing.T) {
	records := []mesh.Record{record(0, tri0, red, 0), record(1, tri1, green, 3)}
	doc, err := NewEncoder(DefaultOptions()).Encode(records)
	require.NoError(t, err)

	assert.Equal(t, []string{unlit.ExtensionName}, doc.ExtensionsUsed)
	assert.Len(t, doc.Nodes, 2)
	assert.Len(t, doc.Meshes, 2)
	assert.Len(t, doc.Materials, 2)
	assert.Len(t, doc.Accessors, 8)
	assert.Len(t, doc.Buffers, 1)
	require.Len(t, doc.Scenes, 1)
	assert.Equal(t, []uint32{0, 1}, doc.Scenes[0].Nodes)

	assert.Equal(t, "node_1_0", doc.Nodes[1].Name)
	assert.Equal(t, "mesh_1_0", doc.Meshes[1].Name)

	prim := doc.Meshes[0].Primitives[0]
	for _, attr := range []string{gltf.POSITION, gltf.NORMAL, gltf.COLOR_0} {
		acc := doc.Accessors[prim.Attributes[attr]]
		assert.Equal(t, gltf.AccessorVec3, acc.Type, attr)
		assert.Equal(t, gltf.ComponentFloat, acc.ComponentType, attr)
		assert.Equal(t, uint32(3), acc.Count, attr)
	}
	require.NotNil(t, prim.Indices)
	idx := doc.Accessors[*prim.Indices]
	assert.Equal(t, gltf.AccessorScalar, idx.Type)
	assert.Equal(t, gltf.ComponentUint, idx.ComponentType)

	mat := doc.Materials[*doc.Meshes[1].Primitives[0].Material]
	assert.Equal(t, &[4]float32{0, 1, 0, 0.5}, mat.PBRMetallicRoughness.BaseColorFactor)
	assert.Equal(t, float32(0), *mat.PBRMetallicRoughness.MetallicFactor)
	assert.Equal(t, float32(0.9), *mat.PBRMetallicRoughness.RoughnessFactor)
	assert.Equal(t, [3]float32{0, 0.5, 0}, mat.EmissiveFactor)
	assert.Equal(t, gltf.AlphaBlend, mat.AlphaMode)
	assert.Contains(t, mat.Extensions, unlit.ExtensionName)
	assert.NotEqual(t, gltf.AlphaBlend, doc.Materials[0].AlphaMode)
}

func TestEncodeWithoutVertexColors(t *testing.T) {
	opts := DefaultOptions()
	opts.VertexColors = false
	doc, err := NewEncoder(opts).Encode([]mesh.Record{record(0, tri0, red, 0)})
	require.NoError(t, err)

	prim := doc.Meshes[0].Primitives[0]
	assert.NotContains(t, prim.Attributes, gltf.COLOR_0)
	assert.Len(t, doc.Accessors, 3)
}

func TestEncodeEmptyRecordFails(t *testing.T) {
	_, err := NewEncoder(DefaultOptions()).Encode([]mesh.Record{{Name: "mesh_0_0"}})
	assert.ErrorIs(t, err, ErrEncoding)
	assert.ErrorIs(t, err, mesh.ErrEmptyGeometry)
}

func TestDedupMergesRepeatedData(t *testing.T) {
	records := []mesh.Record{record(0, tri0, red, 0), record(1, tri1, red, 3), record(2, tri0, green, 6)}
	doc, err := NewEncoder(DefaultOptions()).Encode(records)
	require.NoError(t, err)
	require.Len(t, doc.Accessors, 12)
	require.Len(t, doc.Materials, 3)

	require.NoError(t, Dedup(doc))

	// positions: tri0, tri1; normals: one; colors: red, green; indices: one
	assert.Len(t, doc.Accessors, 6)
	assert.Len(t, doc.BufferViews, 6)
	assert.Len(t, doc.Materials, 2)

	p0 := doc.Meshes[0].Primitives[0]
	p1 := doc.Meshes[1].Primitives[0]
	p2 := doc.Meshes[2].Primitives[0]
	assert.Equal(t, p0.Attributes[gltf.POSITION], p2.Attributes[gltf.POSITION])
	assert.NotEqual(t, p0.Attributes[gltf.POSITION], p1.Attributes[gltf.POSITION])
	assert.Equal(t, p0.Attributes[gltf.COLOR_0], p1.Attributes[gltf.COLOR_0])
	assert.NotEqual(t, p0.Attributes[gltf.COLOR_0], p2.Attributes[gltf.COLOR_0])
	assert.Equal(t, *p0.Indices, *p2.Indices)
	assert.Equal(t, *p0.Material, *p1.Material)
	assert.NotEqual(t, *p0.Material, *p2.Material)

	// rendered data is unchanged
	assert.Equal(t, tri1, readFloats(t, doc, p1.Attributes[gltf.POSITION]))
	assert.Equal(t, []float32{0, 1, 0, 0, 1, 0, 0, 1, 0}, readFloats(t, doc, p2.Attributes[gltf.COLOR_0]))
	assert.Equal(t, len(doc.Buffers[0].Data), int(doc.Buffers[0].ByteLength))
}

func TestDedupIdempotent(t *testing.T) {
	records := []mesh.Record{record(0, tri0, red, 0), record(1, tri1, red, 3), record(2, tri0, green, 6)}
	doc, err := Build(records, DefaultOptions())
	require.NoError(t, err)

	once, err := Marshal(doc)
	require.NoError(t, err)

	require.NoError(t, Dedup(doc))
	twice, err := Marshal(doc)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(once, twice), "second dedup pass changed the output")
}

func TestMarshalRoundTrip(t *testing.T) {
	records := []mesh.Record{record(0, tri0, red, 0), record(1, tri1, green, 3)}
	doc, err := Build(records, DefaultOptions())
	require.NoError(t, err)

	data, err := Marshal(doc)
	require.NoError(t, err)
	assert.Equal(t, "glTF", string(data[:4]))

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Contains(t, back.ExtensionsUsed, unlit.ExtensionName)
	require.Len(t, back.Meshes, 2)

	prim := back.Meshes[1].Primitives[0]
	assert.Equal(t, tri1, readFloats(t, back, prim.Attributes[gltf.POSITION]))
	assert.Contains(t, back.Materials[*prim.Material].Extensions, unlit.ExtensionName)
}

func TestSkippedInstancesContributeNothing(t *testing.T) {
	acc := mesh.NewAccumulator(geometry.DefaultTransformer(), nil)
	_, err := acc.Add(mesh.Instance{Vertices: nil, Indices: []uint32{0, 1, 2}})
	require.NoError(t, err)
	doc, err := Build(acc.Records(), DefaultOptions())
	require.NoError(t, err)

	assert.Empty(t, doc.Nodes)
	assert.Empty(t, doc.Accessors)
	assert.Empty(t, doc.Scenes[0].Nodes)

	data, err := Marshal(doc)
	require.NoError(t, err)
	summary, err := Inspect(data)
	require.NoError(t, err)
	assert.Zero(t, summary.Nodes)
}

func TestWriteFileAndInspect(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scene.glb")
	records := []mesh.Record{record(0, tri0, red, 0), record(1, tri1, red, 3)}
	require.NoError(t, WriteFile(path, records, DefaultOptions()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	s, err := Inspect(data)
	require.NoError(t, err)
	assert.Equal(t, generator, s.Generator)
	assert.Equal(t, 2, s.Nodes)
	assert.Equal(t, 2, s.Primitives)
	assert.Equal(t, 1, s.Materials)
	assert.Equal(t, 6, s.Vertices)
	assert.Equal(t, 2, s.Triangles)
	assert.Equal(t, []string{unlit.ExtensionName}, s.Extensions)
	assert.Contains(t, s.String(), "triangles=2")
}

func TestInspectRejectsGarbage(t *testing.T) {
	_, err := Inspect([]byte("not a container"))
	assert.Error(t, err)
}

func readFloats(t *testing.T, doc *gltf.Document, accIdx uint32) []float32 {
	t.Helper()
	data, err := accessorData(doc, doc.Accessors[accIdx])
	require.NoError(t, err)
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
