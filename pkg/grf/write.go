package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/Faultbox/meshconv/internal/fsutil"
	"github.com/Faultbox/meshconv/pkg/encoding"
)

// File is an archive member to be written.
type File struct {
	Name string
	Data []byte
}

// Write writes an unencrypted 0x200 archive holding files to w. Names are
// stored with backslashes and EUC-KR encoded.
func Write(w io.Writer, files []File) error {
	var body, table bytes.Buffer

	for _, f := range files {
		var compressed bytes.Buffer
		zw := zlib.NewWriter(&compressed)
		if _, err := zw.Write(f.Data); err != nil {
			return fmt.Errorf("compressing %s: %w", f.Name, err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("compressing %s: %w", f.Name, err)
		}

		size := uint32(compressed.Len())
		aligned := (size + 7) &^ 7
		offset := uint32(body.Len())
		body.Write(compressed.Bytes())
		body.Write(make([]byte, aligned-size))

		table.Write(encoding.EncodeName(strings.ReplaceAll(f.Name, "/", "\\")))
		table.WriteByte(0)
		binary.Write(&table, binary.LittleEndian, size)
		binary.Write(&table, binary.LittleEndian, aligned)
		binary.Write(&table, binary.LittleEndian, uint32(len(f.Data)))
		table.WriteByte(flagFile)
		binary.Write(&table, binary.LittleEndian, offset)
	}

	var compressedTable bytes.Buffer
	tw := zlib.NewWriter(&compressedTable)
	if _, err := tw.Write(table.Bytes()); err != nil {
		return fmt.Errorf("compressing table: %w", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("compressing table: %w", err)
	}

	header := Header{
		TableOffset: uint32(body.Len()),
		FileCount:   uint32(len(files)) + 7,
		Version:     version,
	}
	copy(header.Magic[:], grfMagic)

	var out bytes.Buffer
	binary.Write(&out, binary.LittleEndian, header)
	out.Write(body.Bytes())
	binary.Write(&out, binary.LittleEndian, uint32(compressedTable.Len()))
	binary.Write(&out, binary.LittleEndian, uint32(table.Len()))
	out.Write(compressedTable.Bytes())

	_, err := w.Write(out.Bytes())
	return err
}

// WriteFile writes an archive to path, replacing it atomically.
func WriteFile(path string, files []File) error {
	var buf bytes.Buffer
	if err := Write(&buf, files); err != nil {
		return err
	}
	return fsutil.WriteFile(path, buf.Bytes())
}
