// Package fsutil writes output files so that a failed conversion never leaves a partial file behind.
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// Pending is an output file staged in a temporary sibling path.
// Commit renames it into place; Abort discards it.
type Pending struct {
	path string
	tmp  *os.File
	done bool
}

// Create stages a new file for path in the same directory.
func Create(path string) (*Pending, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &Pending{path: path, tmp: tmp}, nil
}

// Write appends to the staged file.
func (p *Pending) Write(b []byte) (int, error) {
	return p.tmp.Write(b)
}

// Path returns the final destination.
func (p *Pending) Path() string {
	return p.path
}

// Close flushes the staged file without publishing it.
func (p *Pending) Close() error {
	if err := p.tmp.Sync(); err != nil {
		p.tmp.Close()
		return err
	}
	return p.tmp.Close()
}

// Commit publishes a closed staged file.
func (p *Pending) Commit() error {
	if err := os.Chmod(p.tmp.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(p.tmp.Name(), p.path); err != nil {
		return fmt.Errorf("renaming %s: %w", p.path, err)
	}
	p.done = true
	return nil
}

// Abort removes the staged file. It is a no-op after Commit.
func (p *Pending) Abort() {
	if p.done {
		return
	}
	p.tmp.Close()
	os.Remove(p.tmp.Name())
	p.done = true
}

// WriteFile atomically replaces path with data.
func WriteFile(path string, data []byte) error {
	p, err := Create(path)
	if err != nil {
		return err
	}
	defer p.Abort()

	if _, err := p.Write(data); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := p.Close(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return p.Commit()
}
