// Package catalog exposes the served directory as a numbered listing.
//
// The directory is enumerated again on every call; ids are positions in
// that enumeration and are only stable while the directory is unchanged.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"storrent/internal/file"
	"storrent/pkg/types"
)

// ErrNoSuchFile is returned when an id is outside the current enumeration
var ErrNoSuchFile = errors.New("no such file in catalog")

// Catalog is a read-only view of one directory
type Catalog struct {
	dir         string
	maxFileSize int64
	files       file.FileService

	// bumped by Watcher on every change of the directory
	generation atomic.Uint64
}

// New creates a catalog over dir. Files larger than maxFileSize are not served.
func New(dir string, maxFileSize int64) *Catalog {
	return &Catalog{
		dir:         dir,
		maxFileSize: maxFileSize,
		files:       file.NewFileService(),
	}
}

// Dir returns the served directory
func (c *Catalog) Dir() string {
	return c.dir
}

// Generation returns a counter that changes whenever the directory is
// observed to change. It stays at zero when no Watcher runs.
func (c *Catalog) Generation() uint64 {
	return c.generation.Load()
}

// List enumerates the eligible files, assigning ids 0..n-1
func (c *Catalog) List() ([]types.FileDescriptor, error) {
	entries, err := c.enumerate()
	if err != nil {
		return nil, err
	}

	files := make([]types.FileDescriptor, len(entries))
	for i, e := range entries {
		files[i] = e.descriptor
	}
	return files, nil
}

// Open re-enumerates the directory and opens the file at position id
func (c *Catalog) Open(id int) (types.FileDescriptor, file.FileReader, error) {
	entries, err := c.enumerate()
	if err != nil {
		return types.FileDescriptor{}, nil, err
	}
	if id < 0 || id >= len(entries) {
		return types.FileDescriptor{}, nil, fmt.Errorf("%w: id %d, %d files available", ErrNoSuchFile, id, len(entries))
	}

	e := entries[id]
	reader, err := c.files.OpenReader(e.path)
	if err != nil {
		return types.FileDescriptor{}, nil, err
	}
	return e.descriptor, reader, nil
}

type entry struct {
	descriptor types.FileDescriptor
	path       string
}

// enumerate lists regular files in name order. Directories, files above the
// size ceiling and names that cannot be framed on a single line are skipped.
func (c *Catalog) enumerate() ([]entry, error) {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read served directory: %w", err)
	}

	entries := make([]entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if strings.ContainsAny(name, "\r\n") {
			continue
		}

		path := filepath.Join(c.dir, name)
		// follows symlinks, a vanished entry is simply skipped
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.Mode().IsRegular() || info.Size() > c.maxFileSize {
			continue
		}

		entries = append(entries, entry{
			descriptor: types.FileDescriptor{
				ID:   len(entries),
				Name: name,
				Size: info.Size(),
			},
			path: path,
		})
	}
	return entries, nil
}
