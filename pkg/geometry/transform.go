// Package geometry provides the vertex transform and buffer building shared by all mesh encoders.
package geometry

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// DefaultScale is the uniform scale applied after the affine transform.
const DefaultScale float32 = 50

// NormalPolicy selects how normals are transformed.
type NormalPolicy int

const (
	// NormalsLegacy pushes normals through the full position transform,
	// translation and scale included. Only correct for pure rotations when the
	// consumer renormalizes, but existing outputs depend on it.
	NormalsLegacy NormalPolicy = iota
	// NormalsCorrected uses the inverse-transpose of the upper 3x3 and
	// renormalizes, with no translation or scale.
	NormalsCorrected
)

// String returns the config name of the policy.
func (p NormalPolicy) String() string {
	switch p {
	case NormalsLegacy:
		return "legacy"
	case NormalsCorrected:
		return "corrected"
	default:
		return fmt.Sprintf("Unknown(%d)", int(p))
	}
}

// ParseNormalPolicy converts a config value to a NormalPolicy.
func ParseNormalPolicy(s string) (NormalPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return NormalsLegacy, nil
	case "corrected":
		return NormalsCorrected, nil
	default:
		return NormalsLegacy, fmt.Errorf("unknown normal policy %q", s)
	}
}

// Apply transforms (x, y, z) as a point (w=1) by the column-major matrix m
// and multiplies every component by scale.
func Apply(m mgl32.Mat4, scale, x, y, z float32) (float32, float32, float32) {
	return (m[0]*x + m[4]*y + m[8]*z + m[12]) * scale,
		(m[1]*x + m[5]*y + m[9]*z + m[13]) * scale,
		(m[2]*x + m[6]*y + m[10]*z + m[14]) * scale
}

// Transformer applies an instance transform to positions and normals.
type Transformer struct {
	Scale   float32
	Normals NormalPolicy
}

// DefaultTransformer returns the transformer matching existing outputs.
func DefaultTransformer() Transformer {
	return Transformer{Scale: DefaultScale, Normals: NormalsLegacy}
}

// Position transforms a point.
func (t Transformer) Position(m mgl32.Mat4, x, y, z float32) (float32, float32, float32) {
	return Apply(m, t.Scale, x, y, z)
}

// Normal transforms a direction according to the normal policy.
func (t Transformer) Normal(m mgl32.Mat4, x, y, z float32) (float32, float32, float32) {
	if t.Normals != NormalsCorrected {
		return Apply(m, t.Scale, x, y, z)
	}
	n := NormalMatrix(m).Mul3x1(mgl32.Vec3{x, y, z})
	if l := n.Len(); l > 1e-12 {
		n = n.Mul(1 / l)
	}
	return n[0], n[1], n[2]
}

// NormalMatrix returns the inverse-transpose of the upper 3x3 of m.
// Singular matrices fall back to the plain 3x3.
func NormalMatrix(m mgl32.Mat4) mgl32.Mat3 {
	m3 := m.Mat3()
	if m3.Det() == 0 {
		return m3
	}
	return m3.Inv().Transpose()
}
