package transport

import (
	"testing"

	"storrent/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	req := ParseRequest("download 12")
	assert.Equal(t, CmdDownload, req.Command)
	id, err := req.FileID()
	require.NoError(t, err)
	assert.Equal(t, 12, id)

	assert.Equal(t, CmdList, ParseRequest("list").Command)
	assert.Equal(t, CmdFinish, ParseRequest("  finish  ").Command)
	assert.Equal(t, Command("hello"), ParseRequest("hello world").Command)
	assert.Equal(t, Command(""), ParseRequest("").Command)
}

func TestRequestFileID_Invalid(t *testing.T) {
	for _, line := range []string{"download", "download x", "download -1", "download 1.5"} {
		_, err := ParseRequest(line).FileID()
		assert.True(t, IsProtocolError(err), line)
	}
}

func TestRequestLines(t *testing.T) {
	assert.Equal(t, "list", ListLine())
	assert.Equal(t, "download 3", DownloadLine(3))
	assert.Equal(t, "finish", FinishLine())
}

func TestDescriptorRoundTrip(t *testing.T) {
	d := types.FileDescriptor{ID: 4, Name: "my holiday photos.zip", Size: 12345}
	line := FormatDescriptor(d)
	assert.Equal(t, "4 my holiday photos.zip 12345", line)

	parsed, err := ParseDescriptor(line)
	require.NoError(t, err)
	assert.Equal(t, d, parsed)
}

func TestParseDescriptor_Invalid(t *testing.T) {
	for _, line := range []string{"", "done", "1 name", "x name 1", "1 name size", "1 name -5", "-1 name 5"} {
		_, err := ParseDescriptor(line)
		assert.True(t, IsProtocolError(err), "line %q", line)
	}
}

func TestParseByte(t *testing.T) {
	for v := 0; v <= 255; v += 51 {
		b, err := ParseByte(FormatByte(byte(v)))
		require.NoError(t, err)
		assert.Equal(t, byte(v), b)
	}

	for _, line := range []string{"256", "-1", "a", "", "done"} {
		_, err := ParseByte(line)
		assert.True(t, IsProtocolError(err), "line %q", line)
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "Open", StateOpen.String())
	assert.Equal(t, "Serving", StateServing.String())
	assert.Equal(t, "Closing", StateClosing.String())
	assert.Equal(t, "Aborted", StateAborted.String())
	assert.Equal(t, "Closed", StateClosed.String())
	assert.Equal(t, "Unknown", State(42).String())
	assert.True(t, StateClosed.Terminal())
	assert.False(t, StateAborted.Terminal())
}
