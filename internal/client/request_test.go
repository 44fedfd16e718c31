package client

import (
	"testing"

	"storrent/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDownloadRequest_Validation(t *testing.T) {
	_, err := NewDownloadRequest(-1, "out.bin")
	assert.ErrorIs(t, err, ErrInvalidFileID)

	_, err = NewDownloadRequest(0, "")
	assert.ErrorIs(t, err, ErrMissingDestPath)

	req, err := NewDownloadRequest(3, "out.bin")
	require.NoError(t, err)
	assert.Equal(t, KindDownload, req.Kind())
	assert.Equal(t, 3, req.FileID())
	assert.Equal(t, "out.bin", req.DestPath())
	assert.Equal(t, "download 3", req.line())
}

func TestRequestLines(t *testing.T) {
	assert.Equal(t, "list", NewListRequest(func([]types.FileDescriptor) {}).line())
	assert.Equal(t, "finish", NewDisconnectRequest().line())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "List", KindList.String())
	assert.Equal(t, "Download", KindDownload.String())
	assert.Equal(t, "Disconnect", KindDisconnect.String())
	assert.Equal(t, "Unknown", Kind(42).String())
}

func TestQueue_FIFO(t *testing.T) {
	q := newRequestQueue()
	first := NewListRequest(nil)
	second, err := NewDownloadRequest(1, "x")
	require.NoError(t, err)

	require.NoError(t, q.push(first))
	require.NoError(t, q.push(second))
	assert.Equal(t, 2, q.len())

	assert.Same(t, first, q.pop())
	assert.Same(t, second, q.pop())
	assert.Nil(t, q.pop())
}

func TestQueue_DisconnectSeals(t *testing.T) {
	q := newRequestQueue()
	require.NoError(t, q.push(NewDisconnectRequest()))
	assert.ErrorIs(t, q.push(NewListRequest(nil)), ErrSessionClosed)
	assert.Equal(t, 1, q.len())
}

func TestQueue_CloseDropsPending(t *testing.T) {
	q := newRequestQueue()
	require.NoError(t, q.push(NewListRequest(nil)))
	require.NoError(t, q.push(NewListRequest(nil)))

	assert.Equal(t, 2, q.close())
	assert.Equal(t, 0, q.len())
	assert.ErrorIs(t, q.push(NewListRequest(nil)), ErrSessionClosed)
}

func TestQueue_SignalDoesNotBlock(t *testing.T) {
	q := newRequestQueue()
	q.signal()
	q.signal()
	assert.Len(t, q.wake, 1)
}
