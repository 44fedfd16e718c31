package client

import (
	"fmt"

	"storrent/internal/file"
)

// downloadHandler writes the bytes of one download to its destination.
// prepare runs once before the first byte and done runs once on every
// exit path.
type downloadHandler struct {
	files      file.FileService
	path       string
	onProgress func(int64)

	writer   file.FileWriter
	received int64
	err      error
}

func newDownloadHandler(files file.FileService, req *Request) *downloadHandler {
	return &downloadHandler{
		files:      files,
		path:       req.path,
		onProgress: req.onProgress,
	}
}

// prepare creates or truncates the destination file
func (h *downloadHandler) prepare() error {
	w, err := h.files.CreateWriter(h.path)
	if err != nil {
		return fmt.Errorf("failed to prepare destination: %w", err)
	}
	h.writer = w
	return nil
}

// receiveByte writes one byte; index is the count of bytes written
// including this one. After a write failure further bytes are discarded.
func (h *downloadHandler) receiveByte(b byte, index int64) {
	if h.err != nil {
		return
	}
	if err := h.writer.WriteByte(b); err != nil {
		h.err = fmt.Errorf("failed to write %s: %w", h.path, err)
		return
	}
	h.received = index
	if h.onProgress != nil {
		h.onProgress(index)
	}
}

// done closes the destination, reporting the first failure seen
func (h *downloadHandler) done() error {
	if h.writer == nil {
		return h.err
	}
	if err := h.writer.Close(); err != nil && h.err == nil {
		h.err = fmt.Errorf("failed to close %s: %w", h.path, err)
	}
	return h.err
}
