package app

import (
	"context"
	"fmt"

	"storrent/internal/catalog"
	"storrent/internal/config"
	"storrent/internal/server"

	"github.com/rs/zerolog"
)

// ServerApp implements the serving side
type ServerApp struct {
	config *config.Config
	log    zerolog.Logger
}

var _ Server = (*ServerApp)(nil)

// NewServerApp creates a new server application
func NewServerApp(cfg *config.Config, logger zerolog.Logger) *ServerApp {
	return &ServerApp{config: cfg, log: logger}
}

// Run validates the server configuration and serves until ctx is cancelled
func (a *ServerApp) Run(ctx context.Context) error {
	if err := a.config.ValidateServer(); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	c := catalog.New(a.config.Server.Dir, a.config.Server.MaxFileSize)
	srv := server.New(a.config.Server, c, a.log)
	if err := srv.Listen(); err != nil {
		return err
	}

	err := srv.Serve(ctx)
	snap := srv.Stats()
	a.log.Info().
		Int64("total_sessions", snap.TotalSessions).
		Int64("downloads", snap.Downloads).
		Int64("bytes_served", snap.BytesServed).
		Msg("server stopped")
	return err
}
