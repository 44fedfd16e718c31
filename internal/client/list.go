package client

import (
	"storrent/internal/transport"
	"storrent/pkg/types"
)

// listHandler accumulates descriptors until the terminator line.
// The callback never fires for a listing cut short by an abort.
type listHandler struct {
	files   []types.FileDescriptor
	onFiles func([]types.FileDescriptor)
}

func newListHandler(req *Request) *listHandler {
	return &listHandler{
		files:   make([]types.FileDescriptor, 0),
		onFiles: req.onFiles,
	}
}

func (h *listHandler) receive(line string) error {
	d, err := transport.ParseDescriptor(line)
	if err != nil {
		return err
	}
	h.files = append(h.files, d)
	return nil
}

func (h *listHandler) done() {
	if h.onFiles != nil {
		h.onFiles(h.files)
	}
}
