// Package grf reads and writes GRF 0x200 archives.
package grf

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"slices"

	"golang.org/x/exp/maps"

	"github.com/Faultbox/meshconv/pkg/encoding"
)

const (
	grfMagic   = "Master of Magic"
	headerSize = 46
	version    = 0x200

	flagFile      = 0x01
	flagEncrypted = 0x02
)

var (
	ErrInvalidMagic = errors.New("invalid GRF magic")
	ErrVersion      = errors.New("unsupported GRF version")
	ErrNotFound     = errors.New("file not found in archive")
	ErrEncrypted    = errors.New("encrypted entries are not supported")
	ErrCorrupt      = errors.New("corrupt GRF file table")
)

// Archive represents an opened GRF archive.
type Archive struct {
	file    *os.File
	header  Header
	entries map[string]*Entry
}

// Header contains GRF file header information.
type Header struct {
	Magic         [15]byte
	EncryptionKey [15]byte
	TableOffset   uint32
	Seed          uint32
	FileCount     uint32
	Version       uint32
}

// Entry represents a file entry in the archive.
type Entry struct {
	Name             string
	CompressedSize   uint32
	AlignedSize      uint32
	UncompressedSize uint32
	Flags            uint8
	Offset           uint32
}

// Open opens a GRF archive for reading.
func Open(name string) (*Archive, error) {
	file, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}

	archive := &Archive{
		file:    file,
		entries: make(map[string]*Entry),
	}

	if err := archive.readHeader(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading header: %w", err)
	}

	if err := archive.readFileTable(); err != nil {
		file.Close()
		return nil, fmt.Errorf("reading file table: %w", err)
	}

	return archive, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

func (a *Archive) readHeader() error {
	if _, err := a.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if err := binary.Read(a.file, binary.LittleEndian, &a.header); err != nil {
		return err
	}
	if string(a.header.Magic[:]) != grfMagic {
		return ErrInvalidMagic
	}
	if a.header.Version != version {
		return fmt.Errorf("%w: 0x%x", ErrVersion, a.header.Version)
	}
	return nil
}

func (a *Archive) readFileTable() error {
	if _, err := a.file.Seek(int64(a.header.TableOffset)+headerSize, io.SeekStart); err != nil {
		return err
	}

	var sizes [2]uint32
	if err := binary.Read(a.file, binary.LittleEndian, &sizes); err != nil {
		return fmt.Errorf("%w: table sizes: %w", ErrCorrupt, err)
	}
	compressed := make([]byte, sizes[0])
	if _, err := io.ReadFull(a.file, compressed); err != nil {
		return fmt.Errorf("%w: table data: %w", ErrCorrupt, err)
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	defer reader.Close()

	table := make([]byte, sizes[1])
	if _, err := io.ReadFull(reader, table); err != nil {
		return fmt.Errorf("%w: inflating table: %w", ErrCorrupt, err)
	}

	if a.header.FileCount < a.header.Seed+7 {
		return fmt.Errorf("%w: file count %d", ErrCorrupt, a.header.FileCount)
	}
	fileCount := a.header.FileCount - a.header.Seed - 7
	offset := 0

	for i := uint32(0); i < fileCount; i++ {
		nameEnd := bytes.IndexByte(table[offset:], 0)
		if nameEnd < 0 {
			return fmt.Errorf("%w: entry %d name unterminated", ErrCorrupt, i)
		}
		name := encoding.DecodeString(table[offset : offset+nameEnd])
		offset += nameEnd + 1

		if offset+17 > len(table) {
			return fmt.Errorf("%w: entry %d truncated", ErrCorrupt, i)
		}

		entry := &Entry{
			Name:             encoding.NormalizePath(name),
			CompressedSize:   binary.LittleEndian.Uint32(table[offset:]),
			AlignedSize:      binary.LittleEndian.Uint32(table[offset+4:]),
			UncompressedSize: binary.LittleEndian.Uint32(table[offset+8:]),
			Flags:            table[offset+12],
			Offset:           binary.LittleEndian.Uint32(table[offset+13:]),
		}
		offset += 17

		if entry.Flags&flagFile != 0 {
			a.entries[entry.Name] = entry
		}
	}

	return nil
}

// List returns all file paths in the archive, sorted.
func (a *Archive) List() []string {
	names := maps.Keys(a.entries)
	slices.Sort(names)
	return names
}

// Match returns the sorted paths whose base name matches pattern
// (path.Match syntax, case-insensitive). An empty pattern matches everything.
func (a *Archive) Match(pattern string) ([]string, error) {
	if pattern == "" {
		return a.List(), nil
	}
	pattern = encoding.NormalizePath(pattern)
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, err
	}

	var out []string
	for _, name := range a.List() {
		if ok, _ := path.Match(pattern, path.Base(name)); ok {
			out = append(out, name)
			continue
		}
		if ok, _ := path.Match(pattern, name); ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// Stat returns the entry for a path.
func (a *Archive) Stat(name string) (*Entry, bool) {
	e, ok := a.entries[encoding.NormalizePath(name)]
	return e, ok
}

// Contains checks if a file exists.
func (a *Archive) Contains(name string) bool {
	_, ok := a.Stat(name)
	return ok
}

// Read reads a file from the archive.
func (a *Archive) Read(name string) ([]byte, error) {
	entry, ok := a.Stat(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if entry.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrEncrypted)
	}

	if _, err := a.file.Seek(int64(entry.Offset)+headerSize, io.SeekStart); err != nil {
		return nil, err
	}
	compressed := make([]byte, entry.AlignedSize)
	if _, err := io.ReadFull(a.file, compressed); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	if entry.CompressedSize == entry.UncompressedSize {
		return compressed[:entry.UncompressedSize], nil
	}

	reader, err := zlib.NewReader(bytes.NewReader(compressed[:entry.CompressedSize]))
	if err != nil {
		return nil, fmt.Errorf("inflating %s: %w", name, err)
	}
	defer reader.Close()

	result := make([]byte, entry.UncompressedSize)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, fmt.Errorf("inflating %s: %w", name, err)
	}
	return result, nil
}
