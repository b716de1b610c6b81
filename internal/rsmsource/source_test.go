package rsmsource

import (
	"context"
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshconv/pkg/formats"
	"github.com/Faultbox/meshconv/pkg/geometry"
	"github.com/Faultbox/meshconv/pkg/mesh"
)

var identity3 = [9]float32{1, 0, 0, 0, 1, 0, 0, 0, 1}

func testNode(name, parent string) formats.RSMNode {
	return formats.RSMNode{
		Name:       name,
		Parent:     parent,
		TextureIDs: []int32{0, 1},
		Matrix:     identity3,
		Scale:      [3]float32{1, 1, 1},
		Vertices:   [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 0, 1}, {1, 0, 1}},
		TexCoords: []formats.RSMTexCoord{
			{Color: [4]uint8{255, 0, 0, 255}},
			{Color: [4]uint8{0, 0, 255, 255}},
		},
	}
}

func testModel(nodes ...formats.RSMNode) *formats.RSM {
	return &formats.RSM{
		Version:  formats.RSMVersion{Major: 1, Minor: 5},
		Alpha:    1,
		Textures: []string{"wall.bmp", "roof.bmp"},
		RootNode: nodes[0].Name,
		Nodes:    nodes,
	}
}

func collect(t *testing.T, s *Source) []mesh.Instance {
	t.Helper()
	var out []mesh.Instance
	require.NoError(t, s.ForEachInstance(func(inst mesh.Instance) error {
		cp := inst
		cp.Vertices = append([]float32(nil), inst.Vertices...)
		inst.Handle.Release()
		out = append(out, cp)
		return nil
	}))
	require.NoError(t, s.Close())
	return out
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open([]byte("nope"), Options{})
	assert.ErrorIs(t, err, mesh.ErrParserFailure)
	assert.ErrorIs(t, err, formats.ErrTruncatedRSMData)
}

func TestOpenFromBytes(t *testing.T) {
	n := testNode("base", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}}
	data, err := formats.EncodeRSM(testModel(n))
	require.NoError(t, err)

	s, err := Open(data, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, s.InstanceCount())
	assert.Equal(t, "base", s.Model().RootNode)
}

func TestInstancesGroupedByTexture(t *testing.T) {
	a := testNode("a", "")
	a.Faces = []formats.RSMFace{
		{VertexIDs: [3]uint16{0, 1, 2}, TextureID: 1},
		{VertexIDs: [3]uint16{1, 3, 2}, TextureID: 0},
		{VertexIDs: [3]uint16{0, 1, 2}, TextureID: 1},
	}
	b := testNode("b", "a")
	b.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}}

	insts := collect(t, FromModel(testModel(a, b), Options{}))
	require.Len(t, insts, 3)

	names := []string{insts[0].Name(), insts[1].Name(), insts[2].Name()}
	assert.Equal(t, []string{"mesh_0_0", "mesh_0_1", "mesh_1_0"}, names)
	assert.Len(t, insts[0].Indices, 3)
	assert.Len(t, insts[1].Indices, 6)
	assert.Len(t, insts[1].Vertices, 6*geometry.VertexStride)
	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, insts[1].Indices)
}

func TestFaceCornerVertices(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}, TwoSide: 1}}

	insts := collect(t, FromModel(testModel(n), Options{}))
	require.Len(t, insts, 1)

	want := []float32{
		0, 0, 0, 0, -1, 0,
		1, 0, 0, 0, -1, 0,
		0, 0, 1, 0, -1, 0,
		// back face, reversed and negated
		0, 0, 1, 0, 1, 0,
		1, 0, 0, 0, 1, 0,
		0, 0, 0, 0, 1, 0,
	}
	assert.Equal(t, want, insts[0].Vertices)
}

func TestForceTwoSided(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}}

	one := collect(t, FromModel(testModel(n), Options{}))
	two := collect(t, FromModel(testModel(n), Options{TwoSided: true}))
	assert.Len(t, one[0].Indices, 3)
	assert.Len(t, two[0].Indices, 6)
}

func TestMirroredNodeReversesWinding(t *testing.T) {
	n := testNode("a", "")
	n.Scale = [3]float32{-1, 1, 1}
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}}

	insts := collect(t, FromModel(testModel(n), Options{}))
	v := insts[0].Vertices
	assert.Equal(t, []float32{0, 0, 1}, v[0:3])
	assert.Equal(t, []float32{0, 0, 0}, v[12:15])
}

func TestDegenerateFacesDropped(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{
		{VertexIDs: [3]uint16{0, 0, 1}, TextureID: 0},
		{VertexIDs: [3]uint16{0, 1, 9}, TextureID: 0},
		{VertexIDs: [3]uint16{0, 1, 2}, TextureID: 1},
	}

	insts := collect(t, FromModel(testModel(n), Options{}))
	require.Len(t, insts, 2)
	// the all-degenerate group still yields an empty instance
	assert.Empty(t, insts[0].Vertices)
	assert.Empty(t, insts[0].Indices)
	assert.Len(t, insts[1].Indices, 3)
}

func TestTransformIncludesHierarchyAndFlip(t *testing.T) {
	root := testNode("root", "")
	root.Position = [3]float32{0, 2, 0}
	child := testNode("child", "root")
	child.Position = [3]float32{3, 0, 0}
	child.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}}

	insts := collect(t, FromModel(testModel(root, child), Options{}))
	require.Len(t, insts, 1)

	p := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 0}, insts[0].Transform)
	assert.InDeltaSlice(t, []float32{4, -2, 0}, p[:], 1e-5)
}

func TestNormalizeOrigin(t *testing.T) {
	n := testNode("a", "")
	n.Position = [3]float32{10, 0, 20}
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}, {VertexIDs: [3]uint16{1, 3, 2}}}

	insts := collect(t, FromModel(testModel(n), Options{NormalizeOrigin: true}))
	m := insts[0].Transform

	lo := mgl32.TransformCoordinate(mgl32.Vec3{0, 0, 0}, m)
	hi := mgl32.TransformCoordinate(mgl32.Vec3{1, 0, 1}, m)
	assert.InDelta(t, -0.5, lo[0], 1e-5)
	assert.InDelta(t, 0.5, hi[0], 1e-5)
	assert.InDelta(t, -0.5, lo[2], 1e-5)
	assert.InDelta(t, 0.5, hi[2], 1e-5)
}

func TestGroupColor(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}, TexCoordIDs: [3]uint16{0, 0, 1}}}
	model := testModel(n)
	model.Alpha = 0.5

	insts := collect(t, FromModel(model, Options{}))
	c := insts[0].Color
	assert.InDelta(t, 2.0/3, c.R, 1e-6)
	assert.InDelta(t, 0, c.G, 1e-6)
	assert.InDelta(t, 1.0/3, c.B, 1e-6)
	assert.InDelta(t, 0.5, c.A, 1e-6)

	n.TexCoords = nil
	insts = collect(t, FromModel(testModel(n), Options{}))
	assert.Equal(t, geometry.Color{R: 1, G: 1, B: 1, A: 1}, insts[0].Color)
}

func TestHandlesReleasedThroughAccumulator(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}, {VertexIDs: [3]uint16{0, 0, 0}, TextureID: 1}}
	s := FromModel(testModel(n), Options{})

	acc := mesh.NewAccumulator(geometry.DefaultTransformer(), nil)
	records, err := mesh.Accumulate(context.Background(), s, acc)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.Equal(t, 1, acc.Skipped())
	assert.NoError(t, s.Close())
}

func TestCloseReportsLeakedHandles(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}, {VertexIDs: [3]uint16{0, 1, 2}, TextureID: 1}}
	s := FromModel(testModel(n), Options{})

	require.NoError(t, s.ForEachInstance(func(mesh.Instance) error { return nil }))
	err := s.Close()
	assert.ErrorIs(t, err, ErrLeaked)
	assert.Contains(t, err.Error(), "2")

	assert.NoError(t, s.Close())
	assert.ErrorIs(t, s.ForEachInstance(func(mesh.Instance) error { return nil }), ErrClosed)
}

func TestReleaseIsIdempotent(t *testing.T) {
	var p bufferPool
	h := p.get(12)
	assert.Len(t, h.buf, 12)
	h.Release()
	h.Release()
	assert.Zero(t, p.outstanding)
}

func TestCallbackErrorStopsStream(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}}, {VertexIDs: [3]uint16{0, 1, 2}, TextureID: 1}}
	s := FromModel(testModel(n), Options{})

	stop := errors.New("stop")
	calls := 0
	err := s.ForEachInstance(func(inst mesh.Instance) error {
		inst.Handle.Release()
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
	assert.NoError(t, s.Close())
}

func TestDescribe(t *testing.T) {
	n := testNode("a", "")
	n.Faces = []formats.RSMFace{{VertexIDs: [3]uint16{0, 1, 2}, TextureID: 1, TwoSide: 1}}

	info := FromModel(testModel(n), Options{}).Describe()
	require.Len(t, info, 1)
	assert.Equal(t, "mesh_0_0", info[0].Name)
	assert.Equal(t, "roof.bmp", info[0].Texture)
	assert.Equal(t, 2, info[0].Triangles)
}
