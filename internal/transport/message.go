package transport

import (
	"fmt"
	"strconv"
	"strings"

	"storrent/pkg/types"
)

// Command is the keyword of a request line
type Command string

const (
	// Requests
	CmdList     Command = "list"
	CmdDownload Command = "download"
	CmdFinish   Command = "finish"

	// Terminators
	LineDone    = "done"
	LineAborted = "aborted"
)

// Request is a parsed request line
type Request struct {
	Command Command
	Args    []string
}

// ParseRequest splits a request line into its keyword and arguments.
// Unknown keywords are returned as-is; deciding to ignore them is up to the caller.
func ParseRequest(line string) Request {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Request{}
	}
	return Request{Command: Command(fields[0]), Args: fields[1:]}
}

// FileID returns the id argument of a download request
func (r Request) FileID() (int, error) {
	if len(r.Args) == 0 {
		return 0, NewProtocolError(string(r.Command), "missing file id")
	}
	id, err := strconv.Atoi(r.Args[0])
	if err != nil || id < 0 {
		return 0, NewProtocolError(r.Args[0], "invalid file id")
	}
	return id, nil
}

// ListLine returns the request line for a listing
func ListLine() string {
	return string(CmdList)
}

// DownloadLine returns the request line for downloading file id
func DownloadLine(id int) string {
	return fmt.Sprintf("%s %d", CmdDownload, id)
}

// FinishLine returns the request line for a negotiated shutdown
func FinishLine() string {
	return string(CmdFinish)
}

// FormatDescriptor encodes a descriptor as "<id> <name> <size>"
func FormatDescriptor(d types.FileDescriptor) string {
	return d.String()
}

// ParseDescriptor decodes a "<id> <name> <size>" line. The name is everything
// between the first and the last space so it may itself contain spaces.
func ParseDescriptor(line string) (types.FileDescriptor, error) {
	first := strings.IndexByte(line, ' ')
	last := strings.LastIndexByte(line, ' ')
	if first < 0 || first == last {
		return types.FileDescriptor{}, NewProtocolError(line, "malformed file descriptor")
	}

	id, err := strconv.Atoi(line[:first])
	if err != nil || id < 0 {
		return types.FileDescriptor{}, NewProtocolError(line, "invalid file id")
	}
	size, err := strconv.ParseInt(line[last+1:], 10, 64)
	if err != nil || size < 0 {
		return types.FileDescriptor{}, NewProtocolError(line, "invalid file size")
	}

	return types.FileDescriptor{
		ID:   id,
		Name: line[first+1 : last],
		Size: size,
	}, nil
}

// FormatByte encodes one content byte as its decimal value
func FormatByte(b byte) string {
	return strconv.Itoa(int(b))
}

// ParseByte decodes a decimal content byte (0-255)
func ParseByte(line string) (byte, error) {
	v, err := strconv.Atoi(line)
	if err != nil || v < 0 || v > 255 {
		return 0, NewProtocolError(line, "invalid byte value")
	}
	return byte(v), nil
}
