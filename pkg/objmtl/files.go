package objmtl

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/meshconv/internal/fsutil"
	"github.com/Faultbox/meshconv/pkg/mesh"
)

// MTLPath derives the material library path from an OBJ path.
func MTLPath(objPath string) string {
	ext := filepath.Ext(objPath)
	if strings.EqualFold(ext, ".obj") {
		return objPath[:len(objPath)-len(ext)] + ".mtl"
	}
	return objPath + ".mtl"
}

// WriteFiles writes the OBJ file and its companion MTL file. Both are staged
// and only published once both have been fully written.
func WriteFiles(objPath string, records []mesh.Record) error {
	mtlPath := MTLPath(objPath)

	objFile, err := fsutil.Create(objPath)
	if err != nil {
		return err
	}
	defer objFile.Abort()

	mtlFile, err := fsutil.Create(mtlPath)
	if err != nil {
		return err
	}
	defer mtlFile.Abort()

	enc := NewEncoder(filepath.Base(mtlPath))
	if err := enc.EncodeTo(objFile, mtlFile, records); err != nil {
		return err
	}

	for _, p := range []*fsutil.Pending{mtlFile, objFile} {
		if err := p.Close(); err != nil {
			return fmt.Errorf("flushing %s: %w", p.Path(), err)
		}
	}
	if err := mtlFile.Commit(); err != nil {
		return err
	}
	return objFile.Commit()
}
