package rsmsource

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshconv/pkg/formats"
)

// flipY converts the model's Y-down space to Y-up.
var flipY = mgl32.Scale3D(1, -1, 1)

// NodeMatrix builds the transformation matrix for an RSM node: the inherited
// hierarchy matrix followed by the node's offset and 3x3 matrix, which
// children do not inherit.
func NodeMatrix(node *formats.RSMNode, rsm *formats.RSM, animTimeMs float32) mgl32.Mat4 {
	visited := make(map[string]bool)
	m := hierarchyMatrix(node, rsm, animTimeMs, visited)
	m = m.Mul4(mgl32.Translate3D(node.Offset[0], node.Offset[1], node.Offset[2]))
	return m.Mul4(mgl32.Mat3(node.Matrix).Mat4())
}

// hierarchyMatrix returns parent_hierarchy * Position * Rotation * Scale.
func hierarchyMatrix(node *formats.RSMNode, rsm *formats.RSM, animTimeMs float32, visited map[string]bool) mgl32.Mat4 {
	if visited[node.Name] {
		return mgl32.Ident4()
	}
	visited[node.Name] = true

	pos := mgl32.Vec3(node.Position)
	if p, ok := InterpolatePosKeys(node.PosKeys, animTimeMs); ok {
		pos = p
	}
	local := mgl32.Translate3D(pos[0], pos[1], pos[2])

	// axis-angle or keyframes, never both
	if len(node.RotKeys) > 0 {
		local = local.Mul4(InterpolateRotKeys(node.RotKeys, animTimeMs).Mat4())
	} else if node.RotAngle != 0 {
		axis := mgl32.Vec3(node.RotAxis)
		if axis.Len() > 1e-6 {
			local = local.Mul4(mgl32.HomogRotate3D(node.RotAngle, axis.Normalize()))
		}
	}

	local = local.Mul4(mgl32.Scale3D(node.Scale[0], node.Scale[1], node.Scale[2]))
	if len(node.ScaleKeys) > 0 {
		s := InterpolateScaleKeys(node.ScaleKeys, animTimeMs)
		local = local.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}

	if node.Parent != "" && node.Parent != node.Name {
		if parent := rsm.NodeByName(node.Parent); parent != nil {
			return hierarchyMatrix(parent, rsm, animTimeMs, visited).Mul4(local)
		}
	}
	return local
}
