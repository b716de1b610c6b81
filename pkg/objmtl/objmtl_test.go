package objmtl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/meshconv/pkg/geometry"
	"github.com/Faultbox/meshconv/pkg/mesh"
)

type listSource []mesh.Instance

func (s listSource) ForEachInstance(fn func(mesh.Instance) error) error {
	for _, inst := range s {
		if err := fn(inst); err != nil {
			return err
		}
	}
	return nil
}

func (s listSource) Close() error { return nil }

func triangle(meshIdx int, color geometry.Color) mesh.Instance {
	return mesh.Instance{
		MeshIndex: meshIdx,
		Vertices: []float32{
			0, 0, 0, 0, 0, 1,
			1, 0, 0, 0, 0, 1,
			0, 1, 0, 0, 0, 1,
		},
		Indices:   []uint32{0, 1, 2},
		Transform: mgl32.Ident4(),
		Color:     color,
	}
}

func accumulate(t *testing.T, tr geometry.Transformer, instances ...mesh.Instance) []mesh.Record {
	t.Helper()
	acc := mesh.NewAccumulator(tr, nil)
	records, err := mesh.Accumulate(context.Background(), listSource(instances), acc)
	require.NoError(t, err)
	return records
}

var red = geometry.Color{R: 1, A: 1}

func TestEncodeSingleTriangleWithSkippedInstance(t *testing.T) {
	empty := triangle(1, red)
	empty.Vertices = nil
	records := accumulate(t, geometry.Transformer{Scale: 1}, triangle(0, red), empty)
	require.Len(t, records, 1)
	assert.Equal(t, 0, records[0].GlobalIndexOffset)

	obj, mtl := NewEncoder("example.mtl").Encode(records)

	wantObj := strings.Join([]string{
		"mtllib example.mtl",
		"o mesh_0_0",
		"usemtl material_0",
		"v 0 0 0",
		"v 1 0 0",
		"v 0 1 0",
		"vn 0 0 1",
		"vn 0 0 1",
		"vn 0 0 1",
		"f 1 2 3",
		"",
	}, "\n")
	assert.Equal(t, wantObj, obj)
	assert.Equal(t, "newmtl material_0\nKd 1 0 0\nd 1\n\n", mtl)
}

func TestEncodeSecondInstanceOffset(t *testing.T) {
	records := accumulate(t, geometry.DefaultTransformer(), triangle(0, red), triangle(1, red))
	obj, mtl := NewEncoder("x.mtl").Encode(records)

	assert.Equal(t, []string{"f 1 2 3", "f 4 5 6"}, linesWithPrefix(obj, "f "))
	assert.Equal(t, []string{"newmtl material_0", "newmtl material_1"}, linesWithPrefix(mtl, "newmtl "))
	assert.Contains(t, obj, "v 50 0 0\n")
}

func TestEncodeEmpty(t *testing.T) {
	obj, mtl := NewEncoder("scene.mtl").Encode(nil)
	assert.Equal(t, "mtllib scene.mtl\n", obj)
	assert.Empty(t, mtl)
}

func TestEncodeZeroFaceRecord(t *testing.T) {
	rec := mesh.Record{
		Name: "mesh_7_0",
		Buffers: geometry.Buffers{
			Positions: []float32{1, 2, 3},
			Normals:   []float32{0, 1, 0},
			Colors:    []float32{1, 1, 1},
		},
		Color: geometry.Color{R: 1, G: 1, B: 1, A: 1},
	}
	obj, _ := NewEncoder("a.mtl").Encode([]mesh.Record{rec})
	assert.Equal(t, "mtllib a.mtl\no mesh_7_0\nusemtl material_0\nv 1 2 3\nvn 0 1 0\n", obj)
}

func TestEncodeCounterRestarts(t *testing.T) {
	records := accumulate(t, geometry.DefaultTransformer(), triangle(0, red))
	enc := NewEncoder("a.mtl")
	_, first := enc.Encode(records)
	_, second := enc.Encode(records)
	assert.Equal(t, first, second)
}

func TestFaceIndicesNeverForwardReference(t *testing.T) {
	var instances []mesh.Instance
	for i := 0; i < 6; i++ {
		inst := triangle(i, red)
		if i%2 == 1 {
			// quad made of two triangles
			inst.Vertices = append(inst.Vertices, 1, 1, 0, 0, 0, 1)
			inst.Indices = []uint32{0, 1, 2, 2, 1, 3}
		}
		instances = append(instances, inst)
	}
	obj, _ := NewEncoder("a.mtl").Encode(accumulate(t, geometry.DefaultTransformer(), instances...))

	written := 0
	prevMax, objMin, objMax := 0, 0, 0
	for _, line := range strings.Split(obj, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "o":
			prevMax = max(prevMax, objMax)
			objMin, objMax = 0, 0
		case "v":
			written++
		case "f":
			for _, f := range fields[1:] {
				n := atoi(t, f)
				assert.LessOrEqual(t, n, written, "forward reference in %q", line)
				if objMin == 0 || n < objMin {
					objMin = n
				}
				objMax = max(objMax, n)
			}
			assert.Greater(t, objMin, prevMax, "object indices must follow the previous object")
		}
	}
	assert.Equal(t, 21, written)
}

func TestRoundTrip(t *testing.T) {
	blue := geometry.Color{R: 0, G: 0.25, B: 1, A: 0.5}
	quad := triangle(1, blue)
	quad.Vertices = append(quad.Vertices, 1, 1, 0, 0, 0, 1)
	quad.Indices = []uint32{0, 1, 2, 2, 1, 3}
	quad.Transform = mgl32.Translate3D(0.1, 0.2, 0.3)

	records := accumulate(t, geometry.DefaultTransformer(), triangle(0, red), quad)
	obj, mtl := NewEncoder("rt.mtl").Encode(records)

	model, err := Decode(strings.NewReader(obj), strings.NewReader(mtl))
	require.NoError(t, err)

	assert.Equal(t, "rt.mtl", model.MaterialLib)
	assert.Len(t, model.Positions, 7)
	assert.Len(t, model.Normals, 7)
	assert.Equal(t, 3, model.TriangleCount())
	require.Len(t, model.Objects, 2)
	assert.Equal(t, "mesh_1_0", model.Objects[1].Name)

	var wantColors []geometry.Color
	for _, rec := range records {
		for i := 0; i < rec.TriangleCount(); i++ {
			wantColors = append(wantColors, rec.Color)
		}
	}
	got := model.FaceMaterials()
	require.Len(t, got, len(wantColors))
	for i, c := range wantColors {
		assert.InDelta(t, c.R, got[i].Diffuse[0], 1e-6)
		assert.InDelta(t, c.G, got[i].Diffuse[1], 1e-6)
		assert.InDelta(t, c.B, got[i].Diffuse[2], 1e-6)
		assert.InDelta(t, c.A, got[i].Alpha, 1e-6)
	}

	// positions survive the text round trip
	rec := records[1]
	for i, p := range model.Positions[3:] {
		assert.InDelta(t, rec.Buffers.Positions[i*3], p[0], 1e-4)
		assert.InDelta(t, rec.Buffers.Positions[i*3+1], p[1], 1e-4)
		assert.InDelta(t, rec.Buffers.Positions[i*3+2], p[2], 1e-4)
	}
}

func TestDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		obj  string
		mtl  string
		want error
	}{
		{"forward reference", "v 0 0 0\nv 1 0 0\nf 1 2 3\n", "", ErrForwardReference},
		{"bad vertex", "v 0 zero 0\n", "", ErrSyntax},
		{"short face", "v 0 0 0\nf 1 1\n", "", ErrSyntax},
		{"unknown material", "usemtl nope\n", "newmtl other\n", ErrUnknownMaterial},
		{"kd before newmtl", "", "Kd 1 1 1\n", ErrSyntax},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.obj), strings.NewReader(tt.mtl))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDecodeFaceForms(t *testing.T) {
	obj := "v 0 0 0\nv 1 0 0\nv 1 1 0\nv 0 1 0\nvn 0 0 1\nf 1//1 2//1 3//1 4//1\nf -4/1/1 -3 -2\n"
	model, err := Decode(strings.NewReader(obj), nil)
	require.NoError(t, err)
	require.Len(t, model.Objects, 1)
	assert.Equal(t, [][3]int{{0, 1, 2}, {0, 2, 3}, {0, 1, 2}}, model.Objects[0].Faces)
}

func TestMTLPath(t *testing.T) {
	tests := map[string]string{
		"example.obj":       "example.mtl",
		"out/Model.OBJ":     "out/Model.mtl",
		"scene":             "scene.mtl",
		"dir.obj/scene.glb": "dir.obj/scene.glb.mtl",
	}
	for in, want := range tests {
		assert.Equal(t, want, MTLPath(in), in)
	}
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	objPath := filepath.Join(dir, "model.obj")

	records := accumulate(t, geometry.DefaultTransformer(), triangle(0, red), triangle(1, red))
	require.NoError(t, WriteFiles(objPath, records))

	objData, err := os.ReadFile(objPath)
	require.NoError(t, err)
	mtlData, err := os.ReadFile(filepath.Join(dir, "model.mtl"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(objData), "mtllib model.mtl\n"))
	assert.Equal(t, 2, strings.Count(string(mtlData), "newmtl "))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func linesWithPrefix(text, prefix string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.HasPrefix(line, prefix) {
			out = append(out, line)
		}
	}
	return out
}

func atoi(t *testing.T, s string) int {
	t.Helper()
	n := 0
	for _, c := range s {
		require.True(t, c >= '0' && c <= '9', "bad index %q", s)
		n = n*10 + int(c-'0')
	}
	return n
}
