package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"storrent/internal/client"
	"storrent/internal/config"
	"storrent/internal/reporter"
	"storrent/internal/ui"
	"storrent/pkg/types"
	"storrent/pkg/utils"

	"github.com/rs/zerolog"
)

// ErrUnknownFile is returned when the requested id is not in the listing
var ErrUnknownFile = errors.New("no file with that id")

// ListOptions configures the list command
type ListOptions struct {
	Filter string // Whitespace separated keywords, all must match
}

// GetOptions configures the get command
type GetOptions struct {
	ID      int    // Required: id from the latest listing
	DstPath string // Required: where the file is written
}

// ClientApp implements the requesting side
type ClientApp struct {
	config  *config.Config
	log     zerolog.Logger
	out     io.Writer
	display ui.ProgressDisplay
}

var _ Client = (*ClientApp)(nil)

// NewClientApp creates a new client application. Listings are written to
// out and downloads are rendered on display.
func NewClientApp(cfg *config.Config, logger zerolog.Logger, out io.Writer, display ui.ProgressDisplay) *ClientApp {
	return &ClientApp{
		config:  cfg,
		log:     logger,
		out:     out,
		display: display,
	}
}

// List prints the catalog of the remote server
func (a *ClientApp) List(ctx context.Context, opts *ListOptions) error {
	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { a.disconnect(sess, ctx.Err() != nil) }()

	files, err := sess.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}

	filtered := utils.FilterDescriptors(files, opts.Filter)
	a.log.Debug().Int("files", len(files)).Int("shown", len(filtered)).Msg("listing received")
	fmt.Fprintln(a.out, ui.RenderCatalog(filtered))
	return nil
}

// Get downloads one file. The listing is fetched first on the same
// connection so the id is checked and the size is known for progress.
func (a *ClientApp) Get(ctx context.Context, opts *GetOptions) error {
	if opts.ID < 0 {
		return client.ErrInvalidFileID
	}
	if err := utils.ValidateDestinationPath(opts.DstPath); err != nil {
		return err
	}

	sess, err := a.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { a.disconnect(sess, ctx.Err() != nil) }()

	files, err := sess.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list files: %w", err)
	}
	file, ok := findFile(files, opts.ID)
	if !ok {
		return fmt.Errorf("%w: %d (%d files available)", ErrUnknownFile, opts.ID, len(files))
	}

	feed := newProgressFeed(64)
	feed.send(ctx, types.ProgressUpdate{File: &file})

	type result struct {
		summary  types.TransferSummary
		complete bool
	}
	reported := make(chan result, 1)
	go func() {
		summary, complete := reporter.NewProgressReporter(a.display, a.log).StartUpdatingProgress(ctx, feed.ch)
		reported <- result{summary: summary, complete: complete}
	}()

	start := time.Now()
	total, err := sess.Download(ctx, file.ID, opts.DstPath, func(received int64) {
		feed.send(ctx, types.ProgressUpdate{Received: received})
	})
	// a cancelled download keeps streaming on the worker until the
	// connection is dropped, so the feed must tolerate late updates
	feed.close()
	r := <-reported

	if err != nil {
		return fmt.Errorf("failed to download %s: %w", file.Name, err)
	}

	summary := r.summary
	summary.Received = total
	summary.Elapsed = time.Since(start)
	a.log.Info().
		Str("file", file.Name).
		Int64("bytes", total).
		Str("dst", opts.DstPath).
		Msg("download complete")
	a.display.ShowSummary(summary)
	return nil
}

func (a *ClientApp) connect(ctx context.Context) (*client.Session, error) {
	if err := a.config.ValidateClient(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}
	sess, err := client.Dial(ctx, a.config.Client.Addr, a.config.Client.DialTimeout, a.log)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// disconnect performs the finish handshake, bounded so a dead server
// cannot hang the command. After a cancellation the connection is dropped
// instead, since an exchange in flight cannot be interrupted on the wire.
func (a *ClientApp) disconnect(sess *client.Session, cancelled bool) {
	ctx, cancel := context.WithTimeout(context.Background(), a.config.Client.DialTimeout+time.Second)
	defer cancel()

	if cancelled {
		sess.Abort()
		select {
		case <-sess.Done():
		case <-ctx.Done():
			a.log.Debug().Msg("worker still busy after abort")
		}
		return
	}
	if err := sess.Close(ctx); err != nil && !errors.Is(err, client.ErrAborted) {
		a.log.Debug().Err(err).Msg("disconnect incomplete")
	}
}

// progressFeed hands progress updates from the session worker to the
// reporter. Updates arriving after close are dropped.
type progressFeed struct {
	mu     sync.Mutex
	ch     chan types.ProgressUpdate
	closed bool
}

func newProgressFeed(size int) *progressFeed {
	return &progressFeed{ch: make(chan types.ProgressUpdate, size)}
}

func (f *progressFeed) send(ctx context.Context, update types.ProgressUpdate) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	select {
	case f.ch <- update:
	case <-ctx.Done():
	}
}

func (f *progressFeed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.closed {
		f.closed = true
		close(f.ch)
	}
}

func findFile(files []types.FileDescriptor, id int) (types.FileDescriptor, bool) {
	for _, f := range files {
		if f.ID == id {
			return f, true
		}
	}
	return types.FileDescriptor{}, false
}
