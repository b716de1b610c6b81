package rsmsource

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/meshconv/pkg/formats"
)

// keyframeSpan finds the keys surrounding timeMs and the blend factor
// between them. Keys are assumed sorted by frame.
func keyframeSpan(n int, frame func(int) int32, timeMs float32) (prev, next int, t float32) {
	for i := 0; i < n; i++ {
		if float32(frame(i)) > timeMs {
			next = i
			break
		}
		prev = i
		next = i
	}
	if prev == next {
		return prev, next, 0
	}
	f0, f1 := frame(prev), frame(next)
	if f1 != f0 {
		t = (timeMs - float32(f0)) / float32(f1-f0)
	}
	return prev, next, t
}

func toQuat(q [4]float32) mgl32.Quat {
	return mgl32.Quat{W: q[3], V: mgl32.Vec3{q[0], q[1], q[2]}}
}

// InterpolateRotKeys interpolates rotation keyframes at the given time.
func InterpolateRotKeys(keys []formats.RSMRotKeyframe, timeMs float32) mgl32.Quat {
	if len(keys) == 0 {
		return mgl32.QuatIdent()
	}
	prev, next, t := keyframeSpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	q0 := toQuat(keys[prev].Quaternion).Normalize()
	if prev == next {
		return q0
	}
	return mgl32.QuatSlerp(q0, toQuat(keys[next].Quaternion).Normalize(), t)
}

// InterpolateScaleKeys interpolates scale keyframes at the given time.
func InterpolateScaleKeys(keys []formats.RSMScaleKeyframe, timeMs float32) mgl32.Vec3 {
	if len(keys) == 0 {
		return mgl32.Vec3{1, 1, 1}
	}
	prev, next, t := keyframeSpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	s0 := mgl32.Vec3(keys[prev].Scale)
	return s0.Add(mgl32.Vec3(keys[next].Scale).Sub(s0).Mul(t))
}

// InterpolatePosKeys interpolates position keyframes at the given time.
// ok is false when the node has no position keys.
func InterpolatePosKeys(keys []formats.RSMPosKeyframe, timeMs float32) (pos mgl32.Vec3, ok bool) {
	if len(keys) == 0 {
		return mgl32.Vec3{}, false
	}
	prev, next, t := keyframeSpan(len(keys), func(i int) int32 { return keys[i].Frame }, timeMs)
	p0 := mgl32.Vec3(keys[prev].Position)
	return p0.Add(mgl32.Vec3(keys[next].Position).Sub(p0).Mul(t)), true
}
