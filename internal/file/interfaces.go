package file

import (
	"io"
)

// FileService handles file operations for serving and receiving downloads
type FileService interface {
	// OpenReader opens a file for byte-wise reading
	OpenReader(filePath string) (FileReader, error)

	// CreateWriter creates or truncates a file for byte-wise writing
	CreateWriter(dstPath string) (FileWriter, error)
}

// FileReader represents a file opened for reading
type FileReader interface {
	io.Reader
	io.ByteReader
	io.Closer

	// Size returns the file size in bytes at open time
	Size() int64

	// Name returns the file name
	Name() string
}

// FileWriter represents a file opened for writing
type FileWriter interface {
	io.Writer
	io.ByteWriter
	io.Closer

	// Path returns the file path
	Path() string

	// Written returns the number of bytes accepted so far
	Written() int64
}
