package server

import (
	"errors"
	"fmt"
	"io"
	"net"

	"storrent/internal/catalog"
	"storrent/internal/transport"

	"github.com/rs/zerolog"
)

// errFinished ends the loop after a negotiated shutdown
var errFinished = errors.New("session finished")

// session serves the requests of one connection, one line at a time.
// It owns its connection and any file it opens; nothing here is shared
// with other sessions except the read-only catalog.
type session struct {
	id      uint64
	conn    *transport.Conn
	catalog *catalog.Catalog
	stats   *Stats
	log     zerolog.Logger

	// catalog generation observed by the last list of this session
	listed           bool
	listedGeneration uint64
}

func newSession(id uint64, conn *transport.Conn, c *catalog.Catalog, stats *Stats, logger zerolog.Logger) *session {
	return &session{
		id:      id,
		conn:    conn,
		catalog: c,
		stats:   stats,
		log: logger.With().
			Uint64("session", id).
			Str("remote", conn.RemoteAddr().String()).
			Logger(),
	}
}

func (s *session) run() {
	s.log.Info().Msg("client connected")
	defer func() {
		s.log.Info().Str("ended_as", s.conn.EndState().String()).Msg("client session ended")
	}()

	for {
		line, err := s.conn.ReadLine()
		if err != nil {
			s.handleReadError(err)
			return
		}
		if line == "" {
			s.log.Debug().Msg("empty request line, treating as disconnect")
			s.abort()
			return
		}

		s.log.Debug().Str("request", line).Msg("received request")
		if err := s.dispatch(transport.ParseRequest(line)); err != nil {
			if errors.Is(err, errFinished) {
				return
			}
			s.log.Warn().Err(err).Str("request", line).Msg("request failed, aborting session")
			s.abort()
			return
		}
	}
}

func (s *session) handleReadError(err error) {
	switch {
	case s.conn.State().Terminal():
		// closed by the server shutdown
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, net.ErrClosed):
		s.log.Info().Msg("connection lost")
	default:
		s.log.Warn().Err(err).Msg("failed to read request")
	}
	s.abort()
}

func (s *session) dispatch(req transport.Request) error {
	switch req.Command {
	case transport.CmdList:
		return s.serveList()
	case transport.CmdDownload:
		id, err := req.FileID()
		if err != nil {
			return err
		}
		return s.serveDownload(id)
	case transport.CmdFinish:
		if err := s.conn.Finish(transport.LineDone); err != nil {
			s.log.Debug().Err(err).Msg("finish handshake incomplete")
		}
		return errFinished
	default:
		s.log.Debug().Str("command", string(req.Command)).Msg("ignoring unknown request")
		return nil
	}
}

func (s *session) serveList() error {
	s.conn.SetState(transport.StateServing)

	generation := s.catalog.Generation()
	files, err := s.catalog.List()
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := s.conn.WriteLine(transport.FormatDescriptor(f)); err != nil {
			return fmt.Errorf("failed to send listing: %w", err)
		}
	}
	if err := s.conn.Send(transport.LineDone); err != nil {
		return fmt.Errorf("failed to send listing: %w", err)
	}

	s.listed = true
	s.listedGeneration = generation
	s.conn.SetState(transport.StateOpen)
	s.log.Debug().Int("files", len(files)).Msg("listing sent")
	return nil
}

func (s *session) serveDownload(id int) error {
	s.conn.SetState(transport.StateServing)

	if s.listed && s.catalog.Generation() != s.listedGeneration {
		s.log.Warn().Int("id", id).Msg("served directory changed since the last listing, id resolves against current contents")
	}

	desc, reader, err := s.catalog.Open(id)
	if err != nil {
		return err
	}
	defer reader.Close()

	var sent int64
	for {
		b, err := reader.ReadByte()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", desc.Name, err)
		}
		if err := s.conn.WriteLine(transport.FormatByte(b)); err != nil {
			return fmt.Errorf("failed to stream %s: %w", desc.Name, err)
		}
		sent++
	}
	if err := s.conn.Send(transport.LineDone); err != nil {
		return fmt.Errorf("failed to stream %s: %w", desc.Name, err)
	}

	s.stats.downloadServed(sent)
	s.conn.SetState(transport.StateOpen)
	s.log.Info().Int("id", id).Str("file", desc.Name).Int64("bytes", sent).Msg("download served")
	return nil
}

// abort notifies the peer when possible and releases the connection.
// Calling it on an already closed session does nothing.
func (s *session) abort() {
	if err := s.conn.Abort(); err != nil {
		s.log.Debug().Err(err).Msg("error closing connection")
	}
}
