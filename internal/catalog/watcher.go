package catalog

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher bumps the catalog generation whenever the served directory changes
type Watcher struct {
	catalog *Catalog
	watcher *fsnotify.Watcher
	log     zerolog.Logger
}

// NewWatcher starts watching the catalog directory
func NewWatcher(c *Catalog, logger zerolog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(c.Dir()); err != nil {
		w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", c.Dir(), err)
	}

	return &Watcher{
		catalog: c,
		watcher: w,
		log:     logger.With().Str("component", "catalog-watcher").Logger(),
	}, nil
}

// Run processes events until ctx is cancelled, then releases the watcher
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	w.log.Debug().Str("dir", w.catalog.Dir()).Msg("watching served directory")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	// permission changes do not alter the enumeration
	if ev.Op == fsnotify.Chmod {
		return
	}

	gen := w.catalog.generation.Add(1)
	w.log.Info().
		Str("op", ev.Op.String()).
		Str("file", ev.Name).
		Uint64("generation", gen).
		Msg("served directory changed, previously listed ids may now refer to other files")
}
