package client

import (
	"errors"
	"sync/atomic"

	"storrent/internal/transport"
	"storrent/pkg/types"
)

// Kind tags the variant of a Request
type Kind int

const (
	KindList Kind = iota
	KindDownload
	KindDisconnect
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindList:
		return "List"
	case KindDownload:
		return "Download"
	case KindDisconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}

var (
	ErrInvalidFileID   = errors.New("file id must not be negative")
	ErrMissingDestPath = errors.New("destination path is required")
)

// Request is one protocol exchange to be executed by a Session worker.
// A request is enqueued once and never reused. Callbacks run on the worker
// goroutine and must not block it for long.
type Request struct {
	kind Kind
	id   int
	path string

	onFiles      func([]types.FileDescriptor)
	onProgress   func(received int64)
	onDownloaded func(total int64)
	onError      func(err error)

	enqueued atomic.Bool
}

// NewListRequest asks for the catalog listing. onFiles receives the whole
// listing once the terminator line has been read.
func NewListRequest(onFiles func([]types.FileDescriptor)) *Request {
	return &Request{kind: KindList, onFiles: onFiles}
}

// NewDownloadRequest asks for file id to be written to dstPath
func NewDownloadRequest(id int, dstPath string) (*Request, error) {
	if id < 0 {
		return nil, ErrInvalidFileID
	}
	if dstPath == "" {
		return nil, ErrMissingDestPath
	}
	return &Request{kind: KindDownload, id: id, path: dstPath}, nil
}

// NewDisconnectRequest asks for the negotiated shutdown of the session
func NewDisconnectRequest() *Request {
	return &Request{kind: KindDisconnect}
}

// OnProgress sets the callback receiving the count of bytes written so far,
// once per received byte
func (r *Request) OnProgress(fn func(received int64)) *Request {
	r.onProgress = fn
	return r
}

// OnDownloaded sets the callback receiving the total byte count after a
// download has been fully written
func (r *Request) OnDownloaded(fn func(total int64)) *Request {
	r.onDownloaded = fn
	return r
}

// OnError sets the callback for local failures of a download, such as an
// unwritable destination. The session stays usable after those.
func (r *Request) OnError(fn func(err error)) *Request {
	r.onError = fn
	return r
}

// Kind returns the request variant
func (r *Request) Kind() Kind {
	return r.kind
}

// FileID returns the requested file id of a download
func (r *Request) FileID() int {
	return r.id
}

// DestPath returns the destination of a download
func (r *Request) DestPath() string {
	return r.path
}

// line returns the wire form of the request
func (r *Request) line() string {
	switch r.kind {
	case KindList:
		return transport.ListLine()
	case KindDownload:
		return transport.DownloadLine(r.id)
	default:
		return transport.FinishLine()
	}
}
