package formats

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/Faultbox/meshconv/pkg/encoding"
)

// EncodeRSM serializes rsm in the layout of its Version. Fields the version
// does not carry are dropped.
func EncodeRSM(rsm *RSM) ([]byte, error) {
	v := rsm.Version
	if v.Major < 1 || v.Major > 2 {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedRSMVersion, v)
	}

	w := &rsmWriter{}
	w.buf.WriteString(rsmMagic)
	w.write([]uint8{v.Major, v.Minor})
	w.write(rsm.AnimLength)
	w.write(rsm.Shading)
	if v.AtLeast(1, 4) {
		w.write(uint8(rsm.Alpha*255 + 0.5))
	}
	w.write(make([]byte, 16))

	w.write(int32(len(rsm.Textures)))
	for _, tex := range rsm.Textures {
		if err := w.name(tex); err != nil {
			return nil, err
		}
	}
	if err := w.name(rsm.RootNode); err != nil {
		return nil, err
	}

	w.write(int32(len(rsm.Nodes)))
	for i := range rsm.Nodes {
		if err := w.node(v, &rsm.Nodes[i]); err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}

	w.write(int32(len(rsm.VolumeBoxes)))
	for _, box := range rsm.VolumeBoxes {
		w.write(box.Size)
		w.write(box.Position)
		w.write(box.Rotation)
		if v.AtLeast(1, 3) {
			w.write(box.Flag)
		}
	}
	return w.buf.Bytes(), nil
}

type rsmWriter struct {
	buf bytes.Buffer
}

func (w *rsmWriter) write(v any) {
	// bytes.Buffer writes do not fail
	_ = binary.Write(&w.buf, binary.LittleEndian, v)
}

func (w *rsmWriter) name(s string) error {
	b := encoding.EncodeName(s)
	if len(b) >= nameLength {
		return fmt.Errorf("name %q longer than %d bytes", s, nameLength-1)
	}
	field := make([]byte, nameLength)
	copy(field, b)
	w.buf.Write(field)
	return nil
}

func (w *rsmWriter) node(v RSMVersion, n *RSMNode) error {
	if err := w.name(n.Name); err != nil {
		return err
	}
	if err := w.name(n.Parent); err != nil {
		return err
	}

	w.write(int32(len(n.TextureIDs)))
	w.write(n.TextureIDs)
	w.write(n.Matrix)
	w.write(n.Offset)
	w.write(n.Position)
	w.write(n.RotAngle)
	w.write(n.RotAxis)
	w.write(n.Scale)

	w.write(int32(len(n.Vertices)))
	w.write(n.Vertices)

	w.write(int32(len(n.TexCoords)))
	for _, tc := range n.TexCoords {
		if v.AtLeast(1, 2) {
			w.write(tc.Color)
		}
		w.write(tc.U)
		w.write(tc.V)
	}

	w.write(int32(len(n.Faces)))
	for _, f := range n.Faces {
		w.write(f.VertexIDs)
		w.write(f.TexCoordIDs)
		w.write(f.TextureID)
		w.write(f.Padding)
		w.write(f.TwoSide)
		if v.AtLeast(1, 2) {
			w.write(f.SmoothGroup)
		}
	}

	if !v.AtLeast(1, 5) {
		w.write(int32(len(n.PosKeys)))
		w.write(n.PosKeys)
	}
	w.write(int32(len(n.RotKeys)))
	w.write(n.RotKeys)
	if v.AtLeast(1, 5) {
		w.write(int32(len(n.ScaleKeys)))
		w.write(n.ScaleKeys)
	}
	return nil
}
