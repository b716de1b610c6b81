// Package formats parses RSM (Resource Model) files.
package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Faultbox/meshconv/pkg/encoding"
)

// RSM format errors.
var (
	ErrInvalidRSMMagic       = errors.New("invalid RSM magic: expected 'GRSM'")
	ErrUnsupportedRSMVersion = errors.New("unsupported RSM version")
	ErrTruncatedRSMData      = errors.New("truncated RSM data")
	ErrInvalidNodeCount      = errors.New("invalid RSM node count")
	ErrInvalidCount          = errors.New("invalid RSM element count")
)

const (
	rsmMagic   = "GRSM"
	nameLength = 40

	maxTextures  = 1000
	maxNodes     = 10000
	maxElements  = 100000
	maxKeyframes = 10000
	maxBoxes     = 1000
)

// RSMVersion represents the RSM file version.
type RSMVersion struct {
	Major uint8
	Minor uint8
}

// String returns the version as "Major.Minor".
func (v RSMVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// AtLeast returns true if version is >= major.minor.
func (v RSMVersion) AtLeast(major, minor uint8) bool {
	return v.Major > major || (v.Major == major && v.Minor >= minor)
}

// RSMShadingType represents the shading mode for rendering.
type RSMShadingType int32

const (
	RSMShadingNone   RSMShadingType = 0
	RSMShadingFlat   RSMShadingType = 1
	RSMShadingSmooth RSMShadingType = 2
)

// String returns a human-readable shading type name.
func (s RSMShadingType) String() string {
	switch s {
	case RSMShadingNone:
		return "None"
	case RSMShadingFlat:
		return "Flat"
	case RSMShadingSmooth:
		return "Smooth"
	default:
		return fmt.Sprintf("Unknown(%d)", s)
	}
}

// RSMTexCoord represents a texture coordinate with optional vertex color.
type RSMTexCoord struct {
	Color [4]uint8 // RGBA vertex color (v1.2+)
	U, V  float32
}

// RSMFace represents a triangle face in a mesh.
type RSMFace struct {
	VertexIDs   [3]uint16 // Indices into vertex array
	TexCoordIDs [3]uint16 // Indices into texcoord array
	TextureID   uint16    // Index into node's texture array
	Padding     uint16
	TwoSide     int32
	SmoothGroup int32 // v1.2+
}

// RSMPosKeyframe represents a position animation keyframe.
type RSMPosKeyframe struct {
	Frame    int32
	Position [3]float32
}

// RSMRotKeyframe represents a rotation animation keyframe.
type RSMRotKeyframe struct {
	Frame      int32
	Quaternion [4]float32 // X, Y, Z, W
}

// RSMScaleKeyframe represents a scale animation keyframe.
type RSMScaleKeyframe struct {
	Frame int32
	Scale [3]float32
}

// RSMNode represents a node in the model hierarchy.
type RSMNode struct {
	Name       string
	Parent     string  // empty for root
	TextureIDs []int32 // Indices into RSM.Textures

	Matrix   [9]float32 // 3x3, column-major
	Offset   [3]float32 // Pivot point offset
	Position [3]float32
	RotAngle float32 // radians
	RotAxis  [3]float32
	Scale    [3]float32

	Vertices  [][3]float32
	TexCoords []RSMTexCoord
	Faces     []RSMFace

	PosKeys   []RSMPosKeyframe   // v < 1.5
	RotKeys   []RSMRotKeyframe
	ScaleKeys []RSMScaleKeyframe // v >= 1.5
}

// RSMVolumeBox represents a bounding volume box.
type RSMVolumeBox struct {
	Size     [3]float32
	Position [3]float32
	Rotation [3]float32
	Flag     int32 // v1.3+
}

// RSM represents a parsed RSM (Resource Model) file.
type RSM struct {
	Version     RSMVersion
	AnimLength  int32 // milliseconds
	Shading     RSMShadingType
	Alpha       float32 // 0-1
	Textures    []string
	RootNode    string
	Nodes       []RSMNode
	VolumeBoxes []RSMVolumeBox
}

// rsmReader reads little-endian fields and keeps the first error.
type rsmReader struct {
	r   *bytes.Reader
	err error
}

func (r *rsmReader) read(v any) {
	if r.err != nil {
		return
	}
	if err := binary.Read(r.r, binary.LittleEndian, v); err != nil {
		r.err = ErrTruncatedRSMData
	}
}

func (r *rsmReader) name() string {
	if r.err != nil {
		return ""
	}
	buf := make([]byte, nameLength)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		r.err = ErrTruncatedRSMData
		return ""
	}
	return encoding.DecodeName(buf)
}

func (r *rsmReader) skip(n int64) {
	if r.err != nil {
		return
	}
	if int64(r.r.Len()) < n {
		r.err = ErrTruncatedRSMData
		return
	}
	r.r.Seek(n, io.SeekCurrent)
}

// count reads an element count and validates it against limit.
func (r *rsmReader) count(what string, limit int32) int {
	var n int32
	r.read(&n)
	if r.err != nil {
		return 0
	}
	if n < 0 || n > limit {
		r.err = fmt.Errorf("%w: %d %s", ErrInvalidCount, n, what)
		return 0
	}
	return int(n)
}

// ParseRSM parses RSM data from a byte slice.
func ParseRSM(data []byte) (*RSM, error) {
	if len(data) < 6 {
		return nil, ErrTruncatedRSMData
	}
	if string(data[:4]) != rsmMagic {
		return nil, ErrInvalidRSMMagic
	}

	rsm := &RSM{
		Version: RSMVersion{Major: data[4], Minor: data[5]},
		Alpha:   1.0,
	}
	if rsm.Version.Major < 1 || rsm.Version.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, rsm.Version)
	}

	r := &rsmReader{r: bytes.NewReader(data[6:])}
	r.read(&rsm.AnimLength)
	r.read(&rsm.Shading)

	if rsm.Version.AtLeast(1, 4) {
		var alpha uint8
		r.read(&alpha)
		rsm.Alpha = float32(alpha) / 255.0
	}

	// reserved
	r.skip(16)

	rsm.Textures = make([]string, r.count("textures", maxTextures))
	for i := range rsm.Textures {
		rsm.Textures[i] = r.name()
	}

	rsm.RootNode = r.name()

	var nodeCount int32
	r.read(&nodeCount)
	if r.err != nil {
		return nil, r.err
	}
	if nodeCount < 0 || nodeCount > maxNodes {
		return nil, ErrInvalidNodeCount
	}

	rsm.Nodes = make([]RSMNode, nodeCount)
	for i := range rsm.Nodes {
		parseRSMNode(r, rsm.Version, &rsm.Nodes[i])
		if r.err != nil {
			return nil, fmt.Errorf("parsing node %d: %w", i, r.err)
		}
	}

	// Volume boxes are optional trailing data.
	if r.r.Len() >= 4 {
		boxes := r.count("volume boxes", maxBoxes)
		rsm.VolumeBoxes = make([]RSMVolumeBox, boxes)
		for i := range rsm.VolumeBoxes {
			box := &rsm.VolumeBoxes[i]
			r.read(&box.Size)
			r.read(&box.Position)
			r.read(&box.Rotation)
			if rsm.Version.AtLeast(1, 3) {
				r.read(&box.Flag)
			}
		}
		if r.err != nil {
			return nil, fmt.Errorf("parsing volume boxes: %w", r.err)
		}
	}

	return rsm, nil
}

func parseRSMNode(r *rsmReader, version RSMVersion, node *RSMNode) {
	node.Name = r.name()
	node.Parent = r.name()

	node.TextureIDs = make([]int32, r.count("node textures", maxTextures))
	r.read(node.TextureIDs)

	r.read(&node.Matrix)
	r.read(&node.Offset)
	r.read(&node.Position)
	r.read(&node.RotAngle)
	r.read(&node.RotAxis)
	r.read(&node.Scale)

	node.Vertices = make([][3]float32, r.count("vertices", maxElements))
	r.read(node.Vertices)

	node.TexCoords = make([]RSMTexCoord, r.count("texture coordinates", maxElements))
	for i := range node.TexCoords {
		tc := &node.TexCoords[i]
		if version.AtLeast(1, 2) {
			r.read(&tc.Color)
		} else {
			tc.Color = [4]uint8{255, 255, 255, 255}
		}
		r.read(&tc.U)
		r.read(&tc.V)
	}

	node.Faces = make([]RSMFace, r.count("faces", maxElements))
	for i := range node.Faces {
		face := &node.Faces[i]
		r.read(&face.VertexIDs)
		r.read(&face.TexCoordIDs)
		r.read(&face.TextureID)
		r.read(&face.Padding)
		r.read(&face.TwoSide)
		if version.AtLeast(1, 2) {
			r.read(&face.SmoothGroup)
		}
	}

	if !version.AtLeast(1, 5) {
		node.PosKeys = make([]RSMPosKeyframe, r.count("position keys", maxKeyframes))
		r.read(node.PosKeys)
	}

	node.RotKeys = make([]RSMRotKeyframe, r.count("rotation keys", maxKeyframes))
	r.read(node.RotKeys)

	if version.AtLeast(1, 5) {
		node.ScaleKeys = make([]RSMScaleKeyframe, r.count("scale keys", maxKeyframes))
		r.read(node.ScaleKeys)
	}
}

// ParseRSMFile parses an RSM file from disk.
func ParseRSMFile(path string) (*RSM, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading RSM file: %w", err)
	}
	return ParseRSM(data)
}

// TotalVertexCount returns the number of vertices across all nodes.
func (rsm *RSM) TotalVertexCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Vertices)
	}
	return total
}

// TotalFaceCount returns the number of faces across all nodes.
func (rsm *RSM) TotalFaceCount() int {
	total := 0
	for _, node := range rsm.Nodes {
		total += len(node.Faces)
	}
	return total
}

// NodeByName returns a node by its name, or nil if not found.
func (rsm *RSM) NodeByName(name string) *RSMNode {
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Name == name {
			return &rsm.Nodes[i]
		}
	}
	return nil
}

// Root returns the node named by RootNode.
func (rsm *RSM) Root() *RSMNode {
	return rsm.NodeByName(rsm.RootNode)
}

// ChildNodes returns all nodes that have the given parent name.
func (rsm *RSM) ChildNodes(parentName string) []*RSMNode {
	var children []*RSMNode
	for i := range rsm.Nodes {
		if rsm.Nodes[i].Parent == parentName {
			children = append(children, &rsm.Nodes[i])
		}
	}
	return children
}

// HasAnimation reports whether the model animates: a positive length and
// some node with more than one keyframe of any kind.
func (rsm *RSM) HasAnimation() bool {
	if rsm.AnimLength <= 0 {
		return false
	}
	for _, node := range rsm.Nodes {
		if len(node.PosKeys) > 1 || len(node.RotKeys) > 1 || len(node.ScaleKeys) > 1 {
			return true
		}
	}
	return false
}
