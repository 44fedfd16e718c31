package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"storrent/internal/file"
	"storrent/internal/transport"
	"storrent/pkg/types"

	"github.com/rs/zerolog"
)

var (
	// ErrAborted means the server tore the connection down
	ErrAborted = errors.New("connection aborted by server")

	// ErrSessionClosed is returned for requests made after the session
	// was closed or a disconnect was queued
	ErrSessionClosed = errors.New("session is closed")

	// ErrRequestReused is returned when a request is enqueued twice
	ErrRequestReused = errors.New("request already enqueued")

	ErrNilRequest = errors.New("request is nil")
)

// Session owns one connection to a server and a worker goroutine that runs
// queued requests one at a time, in order.
//
// Callbacks are not guaranteed to fire: when the connection aborts, queued
// and in-flight requests are dropped silently. Done and Err tell callers
// that the worker stopped.
type Session struct {
	conn  *transport.Conn
	queue *requestQueue
	files file.FileService
	log   zerolog.Logger

	// lines delivers everything the server sends; readErr is set before
	// lines is closed
	lines   chan string
	readErr error

	done      chan struct{}
	err       error
	closeOnce sync.Once
}

// Dial connects to addr and starts a session on the connection
func Dial(ctx context.Context, addr string, timeout time.Duration, logger zerolog.Logger) (*Session, error) {
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return NewSession(conn, logger), nil
}

// NewSession starts a session over an established connection
func NewSession(c net.Conn, logger zerolog.Logger) *Session {
	s := &Session{
		conn:  transport.NewConn(c),
		queue: newRequestQueue(),
		files: file.NewFileService(),
		log: logger.With().
			Str("component", "client").
			Str("server", c.RemoteAddr().String()).
			Logger(),
		lines: make(chan string),
		done:  make(chan struct{}),
	}

	go s.readLoop()
	go s.run()
	return s
}

// Enqueue appends req to the request queue. It is safe for concurrent use.
func (s *Session) Enqueue(req *Request) error {
	if req == nil {
		return ErrNilRequest
	}
	if !req.enqueued.CompareAndSwap(false, true) {
		return ErrRequestReused
	}
	return s.queue.push(req)
}

// Disconnect queues the negotiated shutdown behind the pending requests
func (s *Session) Disconnect() error {
	return s.Enqueue(NewDisconnectRequest())
}

// Done is closed once the worker has stopped and the connection is released
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports why the session stopped: nil after a clean disconnect or
// while the session is still running
func (s *Session) Err() error {
	select {
	case <-s.done:
		return s.err
	default:
		return nil
	}
}

// State returns the connection state
func (s *Session) State() transport.State {
	return s.conn.State()
}

// List runs a list exchange and waits for its result
func (s *Session) List(ctx context.Context) ([]types.FileDescriptor, error) {
	result := make(chan []types.FileDescriptor, 1)
	req := NewListRequest(func(files []types.FileDescriptor) {
		result <- files
	})
	if err := s.Enqueue(req); err != nil {
		return nil, err
	}

	select {
	case files := <-result:
		return files, nil
	case <-s.done:
		select {
		case files := <-result:
			return files, nil
		default:
			return nil, s.stoppedErr()
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Download runs a download exchange and waits for it to complete.
// progress may be nil.
func (s *Session) Download(ctx context.Context, id int, dstPath string, progress func(received int64)) (int64, error) {
	req, err := NewDownloadRequest(id, dstPath)
	if err != nil {
		return 0, err
	}

	type outcome struct {
		total int64
		err   error
	}
	result := make(chan outcome, 1)
	req.OnProgress(progress).
		OnDownloaded(func(total int64) { result <- outcome{total: total} }).
		OnError(func(err error) { result <- outcome{err: err} })

	if err := s.Enqueue(req); err != nil {
		return 0, err
	}

	select {
	case o := <-result:
		return o.total, o.err
	case <-s.done:
		select {
		case o := <-result:
			return o.total, o.err
		default:
			return 0, s.stoppedErr()
		}
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Close disconnects and waits for the worker to stop
func (s *Session) Close(ctx context.Context) error {
	if err := s.Disconnect(); err != nil && !errors.Is(err, ErrSessionClosed) {
		return err
	}
	select {
	case <-s.done:
		return s.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Abort drops the connection without the finish handshake. The request in
// flight and the queued ones get no callbacks; Done closes once the worker
// has noticed.
func (s *Session) Abort() {
	s.conn.SetState(transport.StateAborted)
	_ = s.conn.Close()
}

func (s *Session) stoppedErr() error {
	if s.err != nil {
		return s.err
	}
	return ErrSessionClosed
}

func (s *Session) readLoop() {
	defer close(s.lines)
	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.readErr = err
			return
		}
		select {
		case s.lines <- line:
		case <-s.done:
			return
		}
	}
}

// run is the worker loop. An unsolicited abort is checked before each
// request; otherwise the worker sleeps until a request arrives or the
// server sends something.
func (s *Session) run() {
	var err error
	defer func() {
		s.shutdown(err)
	}()

	for {
		select {
		case line, ok := <-s.lines:
			if err = s.unsolicited(line, ok); err != nil {
				return
			}
			continue
		default:
		}

		select {
		case line, ok := <-s.lines:
			if err = s.unsolicited(line, ok); err != nil {
				return
			}
		case <-s.queue.wake:
			req := s.queue.pop()
			if req == nil {
				continue
			}
			var stop bool
			if stop, err = s.execute(req); err != nil || stop {
				return
			}
			if s.queue.len() > 0 {
				s.queue.signal()
			}
		}
	}
}

func (s *Session) unsolicited(line string, ok bool) error {
	if !ok {
		return s.connectionLost()
	}
	if line == transport.LineAborted {
		return ErrAborted
	}
	s.log.Debug().Str("line", line).Msg("ignoring unsolicited line")
	return nil
}

func (s *Session) connectionLost() error {
	err := s.readErr
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return fmt.Errorf("connection lost: %w", err)
}

// readResponse returns the next line of the current exchange
func (s *Session) readResponse() (string, error) {
	line, ok := <-s.lines
	if !ok {
		return "", s.connectionLost()
	}
	if line == transport.LineAborted {
		return "", ErrAborted
	}
	return line, nil
}

// execute runs one full exchange. stop is true when the session ends
// normally with it.
func (s *Session) execute(req *Request) (stop bool, err error) {
	switch req.kind {
	case KindList:
		return false, s.executeList(req)
	case KindDownload:
		return false, s.executeDownload(req)
	case KindDisconnect:
		return true, s.executeDisconnect()
	default:
		return false, fmt.Errorf("unknown request kind %d", req.kind)
	}
}

func (s *Session) executeList(req *Request) error {
	if err := s.conn.Send(req.line()); err != nil {
		return fmt.Errorf("failed to send list request: %w", err)
	}

	handler := newListHandler(req)
	for {
		line, err := s.readResponse()
		if err != nil {
			return err
		}
		if line == transport.LineDone {
			break
		}
		if err := handler.receive(line); err != nil {
			return err
		}
	}

	s.log.Debug().Int("files", len(handler.files)).Msg("listing received")
	handler.done()
	return nil
}

func (s *Session) executeDownload(req *Request) error {
	handler := newDownloadHandler(s.files, req)
	if err := handler.prepare(); err != nil {
		// nothing was sent, the connection is still in sync
		s.log.Warn().Err(err).Str("dst", req.path).Msg("download skipped")
		if req.onError != nil {
			req.onError(err)
		}
		return nil
	}

	if err := s.conn.Send(req.line()); err != nil {
		_ = handler.done()
		return fmt.Errorf("failed to send download request: %w", err)
	}

	var index int64
	for {
		line, err := s.readResponse()
		if err != nil {
			_ = handler.done()
			return err
		}
		if line == transport.LineDone {
			break
		}
		b, err := transport.ParseByte(line)
		if err != nil {
			_ = handler.done()
			return err
		}
		index++
		handler.receiveByte(b, index)
	}

	if err := handler.done(); err != nil {
		s.log.Warn().Err(err).Int("id", req.id).Msg("download failed locally")
		if req.onError != nil {
			req.onError(err)
		}
		return nil
	}

	s.log.Debug().Int("id", req.id).Int64("bytes", index).Str("dst", req.path).Msg("download complete")
	if req.onDownloaded != nil {
		req.onDownloaded(index)
	}
	return nil
}

func (s *Session) executeDisconnect() error {
	s.conn.SetState(transport.StateClosing)
	if err := s.conn.Send(transport.FinishLine()); err != nil {
		return fmt.Errorf("failed to send finish request: %w", err)
	}
	for {
		line, err := s.readResponse()
		if err != nil {
			return err
		}
		if line == transport.LineDone {
			return nil
		}
	}
}

// shutdown releases the connection and wakes everyone waiting on Done
func (s *Session) shutdown(err error) {
	s.closeOnce.Do(func() {
		if err != nil {
			s.conn.SetState(transport.StateAborted)
		}
		_ = s.conn.Close()

		dropped := s.queue.close()
		ev := s.log.Info()
		if err != nil {
			ev = s.log.Warn().Err(err)
		}
		ev.Int("dropped_requests", dropped).Msg("session closed")

		s.err = err
		close(s.done)
	})
}
