package objmtl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Decode errors.
var (
	ErrSyntax           = errors.New("obj syntax error")
	ErrForwardReference = errors.New("face references a vertex not yet defined")
	ErrUnknownMaterial  = errors.New("unknown material")
)

// Material is a decoded MTL entry.
type Material struct {
	Name    string
	Diffuse [3]float32
	Alpha   float32
}

// Object is a decoded OBJ object with its faces as 0-based global vertex indices.
type Object struct {
	Name     string
	Material string
	Faces    [][3]int
}

// Model holds the decoded content of an OBJ/MTL pair.
type Model struct {
	MaterialLib string
	Positions   [][3]float32
	Normals     [][3]float32
	Objects     []Object
	Materials   map[string]Material

	lastMaterial string
}

// TriangleCount returns the number of faces over all objects.
func (m *Model) TriangleCount() int {
	n := 0
	for i := range m.Objects {
		n += len(m.Objects[i].Faces)
	}
	return n
}

// FaceMaterials returns the material of every face in file order.
func (m *Model) FaceMaterials() []Material {
	var out []Material
	for i := range m.Objects {
		mat := m.Materials[m.Objects[i].Material]
		for range m.Objects[i].Faces {
			out = append(out, mat)
		}
	}
	return out
}

// Decode reads an OBJ stream and an optional MTL stream (mtl may be nil).
func Decode(obj, mtl io.Reader) (*Model, error) {
	m := &Model{Materials: make(map[string]Material)}

	if mtl != nil {
		if err := scanLines(mtl, m.parseMtlLine); err != nil {
			return nil, fmt.Errorf("mtl: %w", err)
		}
	}
	if err := scanLines(obj, m.parseObjLine); err != nil {
		return nil, fmt.Errorf("obj: %w", err)
	}
	if mtl != nil {
		for _, o := range m.Objects {
			if _, ok := m.Materials[o.Material]; o.Material != "" && !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnknownMaterial, o.Material)
			}
		}
	}
	return m, nil
}

func scanLines(r io.Reader, parse func(tag string, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)

	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		if err := parse(fields[0], fields[1:]); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return sc.Err()
}

func (m *Model) current() *Object {
	if len(m.Objects) == 0 {
		m.Objects = append(m.Objects, Object{})
	}
	return &m.Objects[len(m.Objects)-1]
}

func (m *Model) parseObjLine(tag string, fields []string) error {
	switch tag {
	case "mtllib":
		m.MaterialLib = strings.Join(fields, " ")
	case "o", "g":
		m.Objects = append(m.Objects, Object{Name: strings.Join(fields, " ")})
	case "usemtl":
		if len(fields) != 1 {
			return fmt.Errorf("%w: usemtl needs one name", ErrSyntax)
		}
		m.current().Material = fields[0]
	case "v":
		v, err := parseVec3(fields)
		if err != nil {
			return err
		}
		m.Positions = append(m.Positions, v)
	case "vn":
		v, err := parseVec3(fields)
		if err != nil {
			return err
		}
		m.Normals = append(m.Normals, v)
	case "f":
		return m.parseFace(fields)
	}
	return nil
}

func (m *Model) parseFace(fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: face needs at least 3 vertices", ErrSyntax)
	}

	idx := make([]int, len(fields))
	for i, f := range fields {
		// v, v/vt, v//vn and v/vt/vn all start with the position index
		pos, _, _ := strings.Cut(f, "/")
		n, err := strconv.Atoi(pos)
		if err != nil {
			return fmt.Errorf("%w: face index %q", ErrSyntax, f)
		}
		if n < 0 {
			n = len(m.Positions) + n + 1
		}
		if n < 1 || n > len(m.Positions) {
			return fmt.Errorf("%w: %d with %d vertices", ErrForwardReference, n, len(m.Positions))
		}
		idx[i] = n - 1
	}

	obj := m.current()
	// fan-triangulate polygons
	for i := 1; i+1 < len(idx); i++ {
		obj.Faces = append(obj.Faces, [3]int{idx[0], idx[i], idx[i+1]})
	}
	return nil
}

func (m *Model) parseMtlLine(tag string, fields []string) error {
	switch tag {
	case "newmtl":
		if len(fields) != 1 {
			return fmt.Errorf("%w: newmtl needs one name", ErrSyntax)
		}
		m.Materials[fields[0]] = Material{Name: fields[0], Alpha: 1}
		m.lastMaterial = fields[0]
	case "Kd":
		v, err := parseVec3(fields)
		if err != nil {
			return err
		}
		return m.updateMaterial(func(mat *Material) { mat.Diffuse = v })
	case "d":
		if len(fields) != 1 {
			return fmt.Errorf("%w: d needs one value", ErrSyntax)
		}
		a, err := strconv.ParseFloat(fields[0], 32)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		return m.updateMaterial(func(mat *Material) { mat.Alpha = float32(a) })
	}
	return nil
}

func (m *Model) updateMaterial(fn func(*Material)) error {
	mat, ok := m.Materials[m.lastMaterial]
	if !ok {
		return fmt.Errorf("%w: property before newmtl", ErrSyntax)
	}
	fn(&mat)
	m.Materials[m.lastMaterial] = mat
	return nil
}

func parseVec3(fields []string) ([3]float32, error) {
	var v [3]float32
	if len(fields) < 3 {
		return v, fmt.Errorf("%w: expected 3 values, got %d", ErrSyntax, len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(fields[i], 32)
		if err != nil {
			return v, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
