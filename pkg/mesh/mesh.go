// Package mesh accumulates a stream of mesh instances into encoder-ready records.
package mesh

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshconv/pkg/geometry"
)

// Mesh errors.
var (
	ErrEmptyGeometry    = errors.New("empty geometry")
	ErrMalformedIndices = errors.New("index data length is not a multiple of 3")
	ErrIndexOutOfRange  = errors.New("index out of range")
	ErrParserFailure    = errors.New("model source failed")
)

// Handle is a source-owned geometry resource released once its data has been copied.
type Handle interface {
	Release()
}

// Instance is one placed mesh delivered by a Source.
// Vertices and Indices may alias memory owned by Handle and are only valid
// until Handle is released.
type Instance struct {
	MeshIndex     int
	InstanceIndex int
	Vertices      []float32 // stride 6: position xyz, normal xyz
	Indices       []uint32  // stride 3, local to Vertices
	Transform     mgl32.Mat4
	Color         geometry.Color
	Handle        Handle
}

// Name returns the traceable record name for the instance.
func (inst *Instance) Name() string {
	return fmt.Sprintf("mesh_%d_%d", inst.MeshIndex, inst.InstanceIndex)
}

func (inst *Instance) release() {
	if inst.Handle != nil {
		inst.Handle.Release()
	}
}

// Source streams mesh instances. ForEachInstance calls fn sequentially, one
// instance at a time, and stops at the first error fn returns.
type Source interface {
	ForEachInstance(fn func(Instance) error) error
	Close() error
}

// Record is an accumulated, transformed mesh ready for encoding.
type Record struct {
	Name              string
	MeshIndex         int
	InstanceIndex     int
	Buffers           geometry.Buffers
	Indices           []uint32
	Color             geometry.Color
	GlobalIndexOffset int
}

// VertexCount returns the number of vertices in the record.
func (r *Record) VertexCount() int {
	return r.Buffers.VertexCount()
}

// TriangleCount returns the number of triangles in the record.
func (r *Record) TriangleCount() int {
	return len(r.Indices) / 3
}
