package client

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"storrent/internal/catalog"
	"storrent/internal/config"
	"storrent/internal/logging"
	"storrent/internal/server"
	"storrent/internal/transport"
	"storrent/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testTimeout = 5 * time.Second

// startServer serves a directory holding files on a loopback port
func startServer(t *testing.T, files map[string][]byte) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
	}

	cfg := config.NewDefaultConfig().Server
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Dir = dir

	srv := server.New(cfg, catalog.New(dir, cfg.MaxFileSize), logging.Nop())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ctx) }()

	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-errCh)
	})
	return srv.Addr().String()
}

func dial(t *testing.T, addr string) *Session {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	s, err := Dial(ctx, addr, time.Second, logging.Nop())
	require.NoError(t, err)
	return s
}

// pipeSession runs script as the server end of an in-memory connection
func pipeSession(t *testing.T, script func(r *bufio.Reader, w net.Conn)) *Session {
	t.Helper()

	clientEnd, serverEnd := net.Pipe()
	go func() {
		defer serverEnd.Close()
		script(bufio.NewReader(serverEnd), serverEnd)
	}()
	t.Cleanup(func() { clientEnd.Close() })
	return NewSession(clientEnd, logging.Nop())
}

func waitDone(t *testing.T, s *Session) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(testTimeout):
		t.Fatal("session did not stop")
	}
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

func TestSession_ListAndDownload(t *testing.T) {
	content := []byte{0, 1, 2, 127, 128, 254, 255, '\n', '\r'}
	addr := startServer(t, map[string][]byte{
		"a.txt":        []byte("hello"),
		"b.bin":        content,
		"with space.x": {},
	})
	s := dial(t, addr)
	ctx := testContext(t)

	files, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 3)
	assert.Equal(t, types.FileDescriptor{ID: 0, Name: "a.txt", Size: 5}, files[0])
	assert.Equal(t, types.FileDescriptor{ID: 1, Name: "b.bin", Size: int64(len(content))}, files[1])
	assert.Equal(t, types.FileDescriptor{ID: 2, Name: "with space.x", Size: 0}, files[2])

	dst := filepath.Join(t.TempDir(), "nested", "b.bin")
	var progress []int64
	total, err := s.Download(ctx, 1, dst, func(received int64) {
		progress = append(progress, received)
	})
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), total)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.Len(t, progress, len(content))
	for i, p := range progress {
		assert.Equal(t, int64(i+1), p)
	}

	require.NoError(t, s.Close(ctx))
	assert.NoError(t, s.Err())
}

func TestSession_DownloadEmptyFile(t *testing.T) {
	addr := startServer(t, map[string][]byte{"empty": {}})
	s := dial(t, addr)
	ctx := testContext(t)

	dst := filepath.Join(t.TempDir(), "empty")
	calls := 0
	total, err := s.Download(ctx, 0, dst, func(int64) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Equal(t, 0, calls)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestSession_CallbacksRunInOrder(t *testing.T) {
	addr := startServer(t, map[string][]byte{"f": []byte("xyz")})
	s := dial(t, addr)

	order := make(chan string, 3)
	require.NoError(t, s.Enqueue(NewListRequest(func([]types.FileDescriptor) { order <- "list" })))

	dl, err := NewDownloadRequest(0, filepath.Join(t.TempDir(), "f"))
	require.NoError(t, err)
	dl.OnDownloaded(func(int64) { order <- "download" })
	require.NoError(t, s.Enqueue(dl))

	require.NoError(t, s.Enqueue(NewListRequest(func([]types.FileDescriptor) { order <- "list" })))
	require.NoError(t, s.Disconnect())

	waitDone(t, s)
	require.NoError(t, s.Err())
	close(order)

	var got []string
	for o := range order {
		got = append(got, o)
	}
	assert.Equal(t, []string{"list", "download", "list"}, got)
}

func TestSession_FinishThenEnqueueFails(t *testing.T) {
	addr := startServer(t, nil)
	s := dial(t, addr)

	require.NoError(t, s.Disconnect())
	waitDone(t, s)

	assert.NoError(t, s.Err())
	assert.Equal(t, transport.StateClosed, s.State())
	assert.ErrorIs(t, s.Enqueue(NewListRequest(nil)), ErrSessionClosed)
	assert.ErrorIs(t, s.Disconnect(), ErrSessionClosed)
}

func TestSession_RequestReused(t *testing.T) {
	addr := startServer(t, nil)
	s := dial(t, addr)

	req := NewListRequest(nil)
	require.NoError(t, s.Enqueue(req))
	assert.ErrorIs(t, s.Enqueue(req), ErrRequestReused)
	assert.ErrorIs(t, s.Enqueue(nil), ErrNilRequest)

	require.NoError(t, s.Close(testContext(t)))
}

func TestSession_EmptyDirectory(t *testing.T) {
	addr := startServer(t, nil)
	s := dial(t, addr)

	files, err := s.List(testContext(t))
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSession_OutOfRangeIDAborts(t *testing.T) {
	addr := startServer(t, map[string][]byte{"only": []byte("1")})
	broken := dial(t, addr)
	healthy := dial(t, addr)
	ctx := testContext(t)

	_, err := broken.Download(ctx, 7, filepath.Join(t.TempDir(), "x"), nil)
	assert.ErrorIs(t, err, ErrAborted)
	waitDone(t, broken)
	assert.ErrorIs(t, broken.Err(), ErrAborted)

	files, err := healthy.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSession_PrepareFailureKeepsSession(t *testing.T) {
	addr := startServer(t, map[string][]byte{"f": []byte("data")})
	s := dial(t, addr)
	ctx := testContext(t)

	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := s.Download(ctx, 0, filepath.Join(blocker, "out"), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAborted)

	files, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestSession_ConcurrentClients(t *testing.T) {
	payload := make([]byte, 2048)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	addr := startServer(t, map[string][]byte{"p.bin": payload})
	ctx := testContext(t)
	dir := t.TempDir()

	var g errgroup.Group
	for i := 0; i < 2; i++ {
		dst := filepath.Join(dir, "copy", string(rune('a'+i)))
		g.Go(func() error {
			s, err := Dial(ctx, addr, time.Second, logging.Nop())
			if err != nil {
				return err
			}
			if _, err := s.Download(ctx, 0, dst, nil); err != nil {
				return err
			}
			return s.Close(ctx)
		})
	}
	require.NoError(t, g.Wait())

	for i := 0; i < 2; i++ {
		got, err := os.ReadFile(filepath.Join(dir, "copy", string(rune('a'+i))))
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	}
}

func TestSession_UnsolicitedAbortWhileIdle(t *testing.T) {
	s := pipeSession(t, func(r *bufio.Reader, w net.Conn) {
		_, _ = w.Write([]byte("aborted\n"))
	})

	waitDone(t, s)
	assert.ErrorIs(t, s.Err(), ErrAborted)
	assert.ErrorIs(t, s.Enqueue(NewListRequest(nil)), ErrSessionClosed)
}

func TestSession_AbortMidListingSkipsCallback(t *testing.T) {
	s := pipeSession(t, func(r *bufio.Reader, w net.Conn) {
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		_, _ = w.Write([]byte("0 a 1\naborted\n"))
	})

	called := false
	require.NoError(t, s.Enqueue(NewListRequest(func([]types.FileDescriptor) { called = true })))

	waitDone(t, s)
	assert.ErrorIs(t, s.Err(), ErrAborted)
	assert.False(t, called)
}

func TestSession_MalformedByteIsProtocolError(t *testing.T) {
	s := pipeSession(t, func(r *bufio.Reader, w net.Conn) {
		line, err := r.ReadString('\n')
		if err != nil || line != "download 0\n" {
			return
		}
		_, _ = w.Write([]byte("12\n300\n"))
	})

	_, err := s.Download(testContext(t), 0, filepath.Join(t.TempDir(), "out"), nil)
	require.Error(t, err)
	assert.True(t, transport.IsProtocolError(err))

	waitDone(t, s)
	assert.True(t, transport.IsProtocolError(s.Err()))
	assert.Equal(t, transport.StateClosed, s.State())
}

func TestSession_PeerHangupIsConnectionLoss(t *testing.T) {
	s := pipeSession(t, func(r *bufio.Reader, w net.Conn) {})

	waitDone(t, s)
	require.Error(t, s.Err())
	assert.NotErrorIs(t, s.Err(), ErrAborted)
}

func TestSession_AbortStopsDownloadInFlight(t *testing.T) {
	addr := startServer(t, map[string][]byte{"big.bin": make([]byte, 1<<20)})
	s := dial(t, addr)

	dl, err := NewDownloadRequest(0, filepath.Join(t.TempDir(), "big.bin"))
	require.NoError(t, err)
	started := make(chan struct{})
	var once sync.Once
	downloaded := false
	dl.OnProgress(func(int64) { once.Do(func() { close(started) }) }).
		OnDownloaded(func(int64) { downloaded = true })
	require.NoError(t, s.Enqueue(dl))

	select {
	case <-started:
	case <-time.After(testTimeout):
		t.Fatal("download did not start")
	}
	s.Abort()
	waitDone(t, s)

	assert.Error(t, s.Err())
	assert.False(t, downloaded)
	assert.Equal(t, transport.StateAborted, s.conn.EndState())
	assert.ErrorIs(t, s.Enqueue(NewListRequest(nil)), ErrSessionClosed)
}
