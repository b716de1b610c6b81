// Package rsmsource streams the texture groups of an RSM model as mesh instances.
package rsmsource

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"

	"github.com/Faultbox/meshconv/pkg/formats"
	"github.com/Faultbox/meshconv/pkg/geometry"
	"github.com/Faultbox/meshconv/pkg/mesh"
)

var (
	ErrClosed = errors.New("source closed")
	ErrLeaked = errors.New("instance handles not released")
)

// Options controls how a model is turned into instances.
type Options struct {
	// NormalizeOrigin centers the model horizontally (X/Z) on the origin.
	NormalizeOrigin bool
	// AnimTimeMs is the animation time at which node matrices are sampled.
	AnimTimeMs float32
	// TwoSided emits a back face for every face, not only flagged ones.
	TwoSided bool
	// Logger receives per-face diagnostics. Nil discards them.
	Logger *zap.Logger
}

// faceRef is one face of a node, emitted front or back.
type faceRef struct {
	face *formats.RSMFace
	back bool
}

// group is a planned instance: the faces of one node sharing a texture.
type group struct {
	meshIndex     int
	instanceIndex int
	texture       int
	node          *formats.RSMNode
	faces         []faceRef
	matrix        mgl32.Mat4
	mirror        bool
	color         geometry.Color
}

// Source yields one instance per (node, texture) group of a parsed model.
type Source struct {
	model  *formats.RSM
	opts   Options
	log    *zap.Logger
	groups []group
	pool   bufferPool
	closed bool
}

var _ mesh.Source = (*Source)(nil)

// Open parses model bytes and plans its instances.
func Open(data []byte, opts Options) (*Source, error) {
	model, err := formats.ParseRSM(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", mesh.ErrParserFailure, err)
	}
	return FromModel(model, opts), nil
}

// FromModel plans the instances of an already parsed model.
func FromModel(model *formats.RSM, opts Options) *Source {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Source{model: model, opts: opts, log: log}
	s.plan()
	return s
}

// Model returns the parsed model.
func (s *Source) Model() *formats.RSM {
	return s.model
}

// InstanceCount returns the number of instances ForEachInstance yields.
func (s *Source) InstanceCount() int {
	return len(s.groups)
}

func (s *Source) plan() {
	dropped := 0
	for i := range s.model.Nodes {
		node := &s.model.Nodes[i]
		nm := NodeMatrix(node, s.model, s.opts.AnimTimeMs)
		m := flipY.Mul4(nm)
		mirror := nm.Mat3().Det() < 0

		byTexture := make(map[int][]faceRef)
		for j := range node.Faces {
			face := &node.Faces[j]
			tex := 0
			if int(face.TextureID) < len(node.TextureIDs) {
				tex = int(node.TextureIDs[face.TextureID])
			}
			refs := byTexture[tex]
			if _, ok := faceNormal(node, face); ok {
				refs = append(refs, faceRef{face: face})
				if face.TwoSide != 0 || s.opts.TwoSided {
					refs = append(refs, faceRef{face: face, back: true})
				}
			} else {
				dropped++
			}
			byTexture[tex] = refs
		}

		textures := maps.Keys(byTexture)
		slices.Sort(textures)
		for k, tex := range textures {
			s.groups = append(s.groups, group{
				meshIndex:     i,
				instanceIndex: k,
				texture:       tex,
				node:          node,
				faces:         byTexture[tex],
				matrix:        m,
				mirror:        mirror,
				color:         s.groupColor(node, byTexture[tex]),
			})
		}
	}
	if dropped > 0 {
		s.log.Debug("dropped degenerate faces", zap.Int("count", dropped))
	}

	if s.opts.NormalizeOrigin {
		s.center()
	}
}

// center prefixes every group matrix with a translation moving the model's
// X/Z bounding box center onto the origin.
func (s *Source) center() {
	lo := mgl32.Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32}
	hi := lo.Mul(-1)
	seen := false
	for _, g := range s.groups {
		for _, ref := range g.faces {
			for _, vid := range ref.face.VertexIDs {
				v := g.node.Vertices[vid]
				p := mgl32.TransformCoordinate(mgl32.Vec3(v), g.matrix)
				for c := 0; c < 3; c++ {
					lo[c] = min(lo[c], p[c])
					hi[c] = max(hi[c], p[c])
				}
				seen = true
			}
		}
	}
	if !seen {
		return
	}
	shift := mgl32.Translate3D(-(lo[0]+hi[0])/2, 0, -(lo[2]+hi[2])/2)
	for i := range s.groups {
		s.groups[i].matrix = shift.Mul4(s.groups[i].matrix)
	}
}

func (s *Source) groupColor(node *formats.RSMNode, refs []faceRef) geometry.Color {
	var sum [4]float32
	n := 0
	for _, ref := range refs {
		if ref.back {
			continue
		}
		for _, tid := range ref.face.TexCoordIDs {
			if int(tid) >= len(node.TexCoords) {
				continue
			}
			c := node.TexCoords[tid].Color
			for k := range sum {
				sum[k] += float32(c[k]) / 255
			}
			n++
		}
	}
	if n == 0 {
		return geometry.Color{R: 1, G: 1, B: 1, A: s.model.Alpha}
	}
	inv := 1 / float32(n)
	return geometry.Color{
		R: sum[0] * inv,
		G: sum[1] * inv,
		B: sum[2] * inv,
		A: sum[3] * inv * s.model.Alpha,
	}
}

// faceNormal returns the unit normal of a face in node space. ok is false
// for faces with out-of-range vertex ids or zero area.
func faceNormal(node *formats.RSMNode, face *formats.RSMFace) (mgl32.Vec3, bool) {
	for _, vid := range face.VertexIDs {
		if int(vid) >= len(node.Vertices) {
			return mgl32.Vec3{}, false
		}
	}
	v0 := mgl32.Vec3(node.Vertices[face.VertexIDs[0]])
	v1 := mgl32.Vec3(node.Vertices[face.VertexIDs[1]])
	v2 := mgl32.Vec3(node.Vertices[face.VertexIDs[2]])
	n := v1.Sub(v0).Cross(v2.Sub(v0))
	if n.Len() < 1e-5 {
		return mgl32.Vec3{}, false
	}
	return n.Normalize(), true
}

// ForEachInstance yields every planned group in node order, then texture
// order. Each instance's vertex buffer is pooled and returned on Release.
func (s *Source) ForEachInstance(fn func(mesh.Instance) error) error {
	if s.closed {
		return ErrClosed
	}
	for i := range s.groups {
		if err := fn(s.instance(&s.groups[i])); err != nil {
			return err
		}
	}
	return nil
}

func (s *Source) instance(g *group) mesh.Instance {
	h := s.pool.get(len(g.faces) * 3 * geometry.VertexStride)
	verts := h.buf
	indices := make([]uint32, 0, len(g.faces)*3)

	for f, ref := range g.faces {
		n, _ := faceNormal(g.node, ref.face)
		order := [3]int{0, 1, 2}
		if ref.back != g.mirror {
			order = [3]int{2, 1, 0}
		}
		if ref.back {
			n = n.Mul(-1)
		}
		for c, k := range order {
			v := g.node.Vertices[ref.face.VertexIDs[k]]
			off := (f*3 + c) * geometry.VertexStride
			copy(verts[off:off+3], v[:])
			copy(verts[off+3:off+6], n[:])
			indices = append(indices, uint32(f*3+c))
		}
	}

	return mesh.Instance{
		MeshIndex:     g.meshIndex,
		InstanceIndex: g.instanceIndex,
		Vertices:      verts,
		Indices:       indices,
		Transform:     g.matrix,
		Color:         g.color,
		Handle:        h,
	}
}

// Close ends the stream. It reports handles the consumer never released.
func (s *Source) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if n := s.pool.outstanding; n > 0 {
		return fmt.Errorf("%w: %d", ErrLeaked, n)
	}
	return nil
}

// InstanceInfo describes a planned instance.
type InstanceInfo struct {
	Name      string
	Node      string
	Texture   string
	Triangles int
	Color     geometry.Color
}

// Describe lists the planned instances without building vertex data.
func (s *Source) Describe() []InstanceInfo {
	out := make([]InstanceInfo, 0, len(s.groups))
	for _, g := range s.groups {
		tex := ""
		if g.texture < len(s.model.Textures) {
			tex = s.model.Textures[g.texture]
		}
		out = append(out, InstanceInfo{
			Name:      fmt.Sprintf("mesh_%d_%d", g.meshIndex, g.instanceIndex),
			Node:      g.node.Name,
			Texture:   tex,
			Triangles: len(g.faces),
			Color:     g.color,
		})
	}
	return out
}
