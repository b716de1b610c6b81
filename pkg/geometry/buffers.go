package geometry

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// VertexStride is the number of floats per interleaved vertex (position + normal).
const VertexStride = 6

// ErrMalformedStride is returned when vertex data is not a whole number of vertices.
var ErrMalformedStride = errors.New("vertex data length is not a multiple of 6")

// Color is an RGBA color with normalized channels.
type Color struct {
	R, G, B, A float32
}

// Buffers holds de-interleaved, transformed vertex attributes.
// All three slices have length VertexCount()*3.
type Buffers struct {
	Positions []float32
	Normals   []float32
	Colors    []float32
}

// VertexCount returns the number of vertices in the buffers.
func (b Buffers) VertexCount() int {
	return len(b.Positions) / 3
}

// Empty reports whether the buffers hold no vertices.
func (b Buffers) Empty() bool {
	return len(b.Positions) == 0
}

// Build de-interleaves raw (position, normal) vertices, transforms both with t
// under m, and broadcasts color.rgb into a parallel color buffer.
// Empty input returns empty buffers and no error.
func Build(color Color, raw []float32, m mgl32.Mat4, t Transformer) (Buffers, error) {
	if len(raw) == 0 {
		return Buffers{}, nil
	}
	if len(raw)%VertexStride != 0 {
		return Buffers{}, fmt.Errorf("%w: got %d floats", ErrMalformedStride, len(raw))
	}

	n := len(raw) / 2
	b := Buffers{
		Positions: make([]float32, n),
		Normals:   make([]float32, n),
		Colors:    make([]float32, n),
	}

	for i := 0; i < len(raw); i += VertexStride {
		o := i / 2
		b.Positions[o], b.Positions[o+1], b.Positions[o+2] = t.Position(m, raw[i], raw[i+1], raw[i+2])
		b.Normals[o], b.Normals[o+1], b.Normals[o+2] = t.Normal(m, raw[i+3], raw[i+4], raw[i+5])
		b.Colors[o], b.Colors[o+1], b.Colors[o+2] = color.R, color.G, color.B
	}

	return b, nil
}

// Triples groups a flat xyz slice into vectors.
func Triples(flat []float32) [][3]float32 {
	out := make([][3]float32, len(flat)/3)
	for i := range out {
		out[i] = [3]float32{flat[i*3], flat[i*3+1], flat[i*3+2]}
	}
	return out
}
