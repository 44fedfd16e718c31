package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MaxLineLength bounds a single received line
const MaxLineLength = 64 * 1024

// Conn is a line oriented duplex stream over a net.Conn.
// One goroutine reads and one goroutine writes at a time; Close and the
// terminal write of Abort may be called from anywhere.
type Conn struct {
	conn   net.Conn
	reader *bufio.Reader

	writeMu sync.Mutex
	writer  *bufio.Writer

	state       atomic.Int32
	endState    atomic.Int32
	readTimeout time.Duration
	closeOnce   sync.Once
	closeErr    error
}

// NewConn wraps c. The connection starts in StateOpen.
func NewConn(c net.Conn) *Conn {
	conn := &Conn{
		conn:   c,
		reader: bufio.NewReader(c),
		writer: bufio.NewWriter(c),
	}
	conn.state.Store(int32(StateOpen))
	return conn
}

// SetReadTimeout arms a deadline before every ReadLine. Zero disables it.
func (c *Conn) SetReadTimeout(d time.Duration) {
	c.readTimeout = d
}

// ReadLine returns the next line without its terminator.
// A line cut short by the end of the stream is reported as io.ErrUnexpectedEOF.
func (c *Conn) ReadLine() (string, error) {
	if c.State().Terminal() {
		return "", ErrClosed
	}
	if c.readTimeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
			return "", fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	var sb strings.Builder
	for {
		chunk, err := c.reader.ReadSlice('\n')
		sb.Write(chunk)
		if sb.Len() > MaxLineLength {
			return "", NewProtocolError(sb.String()[:64], "line too long")
		}
		if err == nil {
			break
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) && sb.Len() > 0 {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}

	line := strings.TrimSuffix(sb.String(), "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// WriteLine buffers one line. Call Flush to push it to the peer.
func (c *Conn) WriteLine(line string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.State().Terminal() {
		return ErrClosed
	}
	if _, err := c.writer.WriteString(line); err != nil {
		return err
	}
	return c.writer.WriteByte('\n')
}

// Flush sends every buffered line
func (c *Conn) Flush() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.State().Terminal() {
		return ErrClosed
	}
	return c.writer.Flush()
}

// Send writes one line and flushes it
func (c *Conn) Send(line string) error {
	if err := c.WriteLine(line); err != nil {
		return err
	}
	return c.Flush()
}

// State returns the current connection state
func (c *Conn) State() State {
	return State(c.state.Load())
}

// EndState returns the state the connection was in when it was closed:
// Closing after a negotiated shutdown, Aborted after an error. It returns
// the current state while the connection is still live.
func (c *Conn) EndState() State {
	if !c.State().Terminal() {
		return c.State()
	}
	return State(c.endState.Load())
}

// SetState moves a live connection to s. Closed and Aborted are never
// left, and Closing can only turn into Aborted.
func (c *Conn) SetState(s State) {
	for {
		cur := c.state.Load()
		if !State(cur).canMoveTo(s) {
			return
		}
		if c.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Finish performs the planned shutdown: the terminator line is flushed
// (when non-empty) and the connection is closed
func (c *Conn) Finish(line string) error {
	c.SetState(StateClosing)
	var sendErr error
	if line != "" {
		sendErr = c.Send(line)
	}
	if err := c.Close(); err != nil && sendErr == nil {
		return err
	}
	return sendErr
}

// abortWriteTimeout bounds the best-effort "aborted" notification
const abortWriteTimeout = time.Second

// Abort tears the connection down after an error, telling the peer with
// an "aborted" line when the stream is still writable. Only the first
// caller notifies and closes; a negotiated shutdown in progress is cut
// short by closing the connection.
func (c *Conn) Abort() error {
	if !c.claimAbort() {
		if c.State() == StateClosing {
			return c.Close()
		}
		return nil
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(abortWriteTimeout))
	_ = c.Send(LineAborted)
	return c.Close()
}

// claimAbort moves an Open or Serving connection to Aborted
func (c *Conn) claimAbort() bool {
	for {
		cur := c.state.Load()
		switch State(cur) {
		case StateOpen, StateServing:
		default:
			return false
		}
		if c.state.CompareAndSwap(cur, int32(StateAborted)) {
			return true
		}
	}
}

// Close releases the underlying connection exactly once.
// Further calls are no-ops returning the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.endState.Store(c.state.Load())
		c.state.Store(int32(StateClosed))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}
