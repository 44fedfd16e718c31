package file

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileService implements FileService interface
type fileService struct{}

// NewFileService creates a new file service
func NewFileService() FileService {
	return &fileService{}
}

// OpenReader opens a file for reading and returns file info
func (f *fileService) OpenReader(filePath string) (FileReader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	return &fileReader{
		file:   file,
		reader: bufio.NewReader(file),
		size:   stat.Size(),
		name:   stat.Name(),
	}, nil
}

// CreateWriter creates a file for writing
func (f *fileService) CreateWriter(dstPath string) (FileWriter, error) {
	// Create directory if it doesn't exist
	dir := filepath.Dir(dstPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	return &fileWriter{
		file:   file,
		writer: bufio.NewWriter(file),
		path:   dstPath,
	}, nil
}

// fileReader implements FileReader interface
type fileReader struct {
	file   *os.File
	reader *bufio.Reader
	size   int64
	name   string
}

func (f *fileReader) Read(p []byte) (n int, err error) {
	return f.reader.Read(p)
}

func (f *fileReader) ReadByte() (byte, error) {
	return f.reader.ReadByte()
}

func (f *fileReader) Close() error {
	return f.file.Close()
}

func (f *fileReader) Size() int64 {
	return f.size
}

func (f *fileReader) Name() string {
	return f.name
}

// fileWriter implements FileWriter interface
type fileWriter struct {
	file    *os.File
	writer  *bufio.Writer
	path    string
	written int64

	closeOnce sync.Once
	closeErr  error
}

func (f *fileWriter) Write(p []byte) (n int, err error) {
	n, err = f.writer.Write(p)
	f.written += int64(n)
	return n, err
}

func (f *fileWriter) WriteByte(b byte) error {
	if err := f.writer.WriteByte(b); err != nil {
		return err
	}
	f.written++
	return nil
}

// Close flushes buffered bytes and closes the file. Only the first call
// has an effect.
func (f *fileWriter) Close() error {
	f.closeOnce.Do(func() {
		f.closeErr = errors.Join(f.writer.Flush(), f.file.Close())
	})
	return f.closeErr
}

func (f *fileWriter) Path() string {
	return f.path
}

func (f *fileWriter) Written() int64 {
	return f.written
}
