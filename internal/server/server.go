package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"storrent/internal/catalog"
	"storrent/internal/config"
	"storrent/internal/transport"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server accepts connections and serves each of them on its own goroutine.
// There is no connection limit and no backpressure.
type Server struct {
	cfg     config.ServerConfig
	catalog *catalog.Catalog
	log     zerolog.Logger
	stats   Stats

	mu       sync.Mutex
	listener net.Listener
	sessions map[uint64]*session
	closed   bool

	nextID atomic.Uint64
	wg     sync.WaitGroup
}

// New creates a server for the given catalog. Call Listen or Serve to start it.
func New(cfg config.ServerConfig, c *catalog.Catalog, logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		catalog:  c,
		log:      logger.With().Str("component", "server").Logger(),
		sessions: make(map[uint64]*session),
	}
}

// Listen binds the configured address
func (s *Server) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return net.ErrClosed
	}
	if s.listener != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.ListenAddress())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress(), err)
	}
	s.listener = ln
	return nil
}

// Addr returns the bound address, nil before Listen
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stats returns a snapshot of the server counters
func (s *Server) Stats() StatsSnapshot {
	return s.stats.Snapshot()
}

// Serve accepts connections until ctx is cancelled, Close is called or
// accepting fails. Side loops (stats, directory watching) run alongside
// and stop with it.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	s.log.Info().
		Str("addr", ln.Addr().String()).
		Str("dir", s.catalog.Dir()).
		Msg("serving directory")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer cancel()
		return s.acceptLoop(ln)
	})

	g.Go(func() error {
		<-gctx.Done()
		return s.Close()
	})

	if s.cfg.StatsInterval > 0 {
		g.Go(func() error {
			s.statLoop(gctx, s.cfg.StatsInterval)
			return nil
		})
	}

	if s.cfg.Watch {
		watcher, err := catalog.NewWatcher(s.catalog, s.log)
		if err != nil {
			s.log.Warn().Err(err).Msg("directory watching disabled")
		} else {
			g.Go(func() error {
				return watcher.Run(gctx)
			})
		}
	}

	return g.Wait()
}

func (s *Server) acceptLoop(ln net.Listener) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.log.Info().Msg("listener closed, dispatcher stopped")
				return nil
			}
			s.log.Error().Err(err).Msg("accept failed, stopping dispatcher")
			_ = s.Close()
			return fmt.Errorf("failed to accept connection: %w", err)
		}
		s.startSession(conn)
	}
}

func (s *Server) startSession(c net.Conn) {
	id := s.nextID.Add(1)
	conn := transport.NewConn(c)
	conn.SetReadTimeout(s.cfg.IdleTimeout)
	sess := newSession(id, conn, s.catalog, &s.stats, s.log)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Abort()
		return
	}
	s.sessions[id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	s.stats.sessionStarted()
	go func() {
		defer s.wg.Done()
		defer s.stats.sessionEnded()
		defer s.removeSession(id)
		sess.run()
	}()
}

func (s *Server) removeSession(id uint64) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Close stops accepting, aborts live sessions and waits for them to end.
// It is safe to call more than once.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.wg.Wait()
		return nil
	}
	s.closed = true

	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	live := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		live = append(live, sess)
	}
	s.mu.Unlock()

	for _, sess := range live {
		sess.abort()
	}
	s.wg.Wait()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("failed to close listener: %w", err)
	}
	return nil
}
