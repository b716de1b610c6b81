// Package objmtl encodes mesh records as Wavefront OBJ text with a companion MTL material library.
package objmtl

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Faultbox/meshconv/pkg/mesh"
)

// Encoder writes OBJ/MTL pairs. The material counter belongs to the encoder
// and restarts at zero for every encode call.
type Encoder struct {
	// MTLName is referenced by the leading mtllib line.
	MTLName string

	materials int
}

// NewEncoder creates an encoder referencing the given material library name.
func NewEncoder(mtlName string) *Encoder {
	return &Encoder{MTLName: mtlName}
}

// Encode returns the OBJ and MTL text for records.
func (e *Encoder) Encode(records []mesh.Record) (obj, mtl string) {
	var objBuf, mtlBuf strings.Builder
	// strings.Builder never fails
	_ = e.EncodeTo(&objBuf, &mtlBuf, records)
	return objBuf.String(), mtlBuf.String()
}

// EncodeTo streams the OBJ text to objW and the MTL text to mtlW.
func (e *Encoder) EncodeTo(objW, mtlW io.Writer, records []mesh.Record) error {
	e.materials = 0

	ow := bufio.NewWriter(objW)
	mw := bufio.NewWriter(mtlW)

	fmt.Fprintf(ow, "mtllib %s\n", e.MTLName)

	for i := range records {
		rec := &records[i]
		material := e.nextMaterial()

		fmt.Fprintf(mw, "newmtl %s\n", material)
		fmt.Fprintf(mw, "Kd %s %s %s\n", formatFloat(rec.Color.R), formatFloat(rec.Color.G), formatFloat(rec.Color.B))
		fmt.Fprintf(mw, "d %s\n\n", formatFloat(rec.Color.A))

		fmt.Fprintf(ow, "o %s\n", rec.Name)
		fmt.Fprintf(ow, "usemtl %s\n", material)
		writeTriples(ow, "v", rec.Buffers.Positions)
		writeTriples(ow, "vn", rec.Buffers.Normals)

		base := uint64(rec.GlobalIndexOffset) + 1
		for j := 0; j+2 < len(rec.Indices); j += 3 {
			fmt.Fprintf(ow, "f %d %d %d\n",
				uint64(rec.Indices[j])+base,
				uint64(rec.Indices[j+1])+base,
				uint64(rec.Indices[j+2])+base)
		}
	}

	if err := ow.Flush(); err != nil {
		return fmt.Errorf("writing obj: %w", err)
	}
	if err := mw.Flush(); err != nil {
		return fmt.Errorf("writing mtl: %w", err)
	}
	return nil
}

func (e *Encoder) nextMaterial() string {
	name := "material_" + strconv.Itoa(e.materials)
	e.materials++
	return name
}

func writeTriples(w *bufio.Writer, tag string, flat []float32) {
	for i := 0; i+2 < len(flat); i += 3 {
		w.WriteString(tag)
		for _, v := range flat[i : i+3] {
			w.WriteByte(' ')
			w.WriteString(formatFloat(v))
		}
		w.WriteByte('\n')
	}
}

// formatFloat prints the shortest decimal that reads back as the same float32.
func formatFloat(v float32) string {
	if v == 0 {
		return "0"
	}
	return strconv.FormatFloat(float64(v), 'f', -1, 32)
}
