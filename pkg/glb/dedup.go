package glb

import (
	"encoding/json"
	"fmt"

	"github.com/qmuntal/gltf"
)

// Dedup merges accessors holding byte-identical data and materials with
// identical content, rewrites primitive references, and repacks the first
// buffer so every surviving accessor owns one tightly packed view.
// Running it on its own output changes nothing.
func Dedup(doc *gltf.Document) error {
	accRemap, packed, err := dedupAccessors(doc)
	if err != nil {
		return err
	}
	matRemap, err := dedupMaterials(doc)
	if err != nil {
		return err
	}

	for _, m := range doc.Meshes {
		for _, prim := range m.Primitives {
			for name, idx := range prim.Attributes {
				prim.Attributes[name] = accRemap[idx]
			}
			if prim.Indices != nil {
				prim.Indices = gltf.Index(accRemap[*prim.Indices])
			}
			if prim.Material != nil {
				prim.Material = gltf.Index(matRemap[*prim.Material])
			}
		}
	}

	if len(doc.Accessors) > 0 {
		repack(doc, packed)
	}
	return nil
}

func dedupAccessors(doc *gltf.Document) ([]uint32, [][]byte, error) {
	remap := make([]uint32, len(doc.Accessors))
	seen := make(map[string]uint32, len(doc.Accessors))
	var kept []*gltf.Accessor
	var packed [][]byte

	for i, acc := range doc.Accessors {
		if acc.BufferView == nil || acc.Sparse != nil {
			return nil, nil, fmt.Errorf("%w: accessor %d has no plain buffer view", ErrEncoding, i)
		}
		data, err := accessorData(doc, acc)
		if err != nil {
			return nil, nil, fmt.Errorf("accessor %d: %w", i, err)
		}

		view := doc.BufferViews[*acc.BufferView]
		key := fmt.Sprintf("%d/%d/%t/%d/%d/", acc.Type, acc.ComponentType, acc.Normalized, acc.Count, view.Target) + string(data)
		if j, ok := seen[key]; ok {
			remap[i] = j
			continue
		}

		j := uint32(len(kept))
		seen[key] = j
		remap[i] = j
		kept = append(kept, acc)
		packed = append(packed, data)
	}

	doc.Accessors = kept
	return remap, packed, nil
}

func dedupMaterials(doc *gltf.Document) ([]uint32, error) {
	remap := make([]uint32, len(doc.Materials))
	seen := make(map[string]uint32, len(doc.Materials))
	var kept []*gltf.Material

	for i, mat := range doc.Materials {
		b, err := json.Marshal(mat)
		if err != nil {
			return nil, fmt.Errorf("material %d: %w", i, err)
		}
		key := string(b)
		if j, ok := seen[key]; ok {
			remap[i] = j
			continue
		}
		j := uint32(len(kept))
		seen[key] = j
		remap[i] = j
		kept = append(kept, mat)
	}

	doc.Materials = kept
	return remap, nil
}

// repack rebuilds the first buffer from packed accessor data. Buffer views
// not owned by an accessor are dropped.
func repack(doc *gltf.Document, packed [][]byte) {
	var data []byte
	views := make([]*gltf.BufferView, 0, len(doc.Accessors))

	for i, acc := range doc.Accessors {
		old := doc.BufferViews[*acc.BufferView]
		data = pad4(data)

		view := &gltf.BufferView{
			Buffer:     0,
			ByteOffset: uint32(len(data)),
			ByteLength: uint32(len(packed[i])),
			Target:     old.Target,
		}
		if old.ByteStride != 0 {
			view.ByteStride = uint32(elementSize(acc))
		}
		data = append(data, packed[i]...)

		views = append(views, view)
		acc.BufferView = gltf.Index(uint32(len(views) - 1))
		acc.ByteOffset = 0
	}
	data = pad4(data)

	buf := doc.Buffers[0]
	buf.Data = data
	buf.ByteLength = uint32(len(data))
	doc.Buffers = doc.Buffers[:1]
	doc.BufferViews = views
}

func accessorData(doc *gltf.Document, acc *gltf.Accessor) ([]byte, error) {
	view := doc.BufferViews[*acc.BufferView]
	if int(view.Buffer) >= len(doc.Buffers) {
		return nil, fmt.Errorf("%w: buffer %d missing", ErrEncoding, view.Buffer)
	}
	buf := doc.Buffers[view.Buffer].Data

	size := elementSize(acc)
	stride := int(view.ByteStride)
	if stride == 0 {
		stride = size
	}
	start := int(view.ByteOffset) + int(acc.ByteOffset)

	out := make([]byte, 0, size*int(acc.Count))
	for i := 0; i < int(acc.Count); i++ {
		off := start + i*stride
		if off+size > len(buf) {
			return nil, fmt.Errorf("%w: accessor reads past buffer end", ErrEncoding)
		}
		out = append(out, buf[off:off+size]...)
	}
	return out, nil
}

func elementSize(acc *gltf.Accessor) int {
	return componentSize(acc.ComponentType) * componentCount(acc.Type)
}

func componentSize(c gltf.ComponentType) int {
	switch c {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	default:
		return 4
	}
}

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4, gltf.AccessorMat2:
		return 4
	case gltf.AccessorMat3:
		return 9
	case gltf.AccessorMat4:
		return 16
	default:
		return 1
	}
}

func pad4(b []byte) []byte {
	for len(b)%4 != 0 {
		b = append(b, 0)
	}
	return b
}
