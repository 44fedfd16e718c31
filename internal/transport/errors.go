package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned for I/O on a connection that reached Closed
	ErrClosed = errors.New("connection is closed")
)

// ProtocolError reports a line that does not follow the wire format
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %s: %q", e.Reason, e.Line)
}

// NewProtocolError creates a protocol error for the offending line
func NewProtocolError(line, reason string) *ProtocolError {
	return &ProtocolError{Line: line, Reason: reason}
}

// IsProtocolError reports whether err wraps a ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
