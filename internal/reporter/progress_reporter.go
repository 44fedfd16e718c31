package reporter

import (
	"context"
	"time"

	"storrent/internal/ui"
	"storrent/pkg/types"

	"github.com/rs/zerolog"
)

// ProgressReporter drives a progress display from a download's updates
type ProgressReporter struct {
	display ui.ProgressDisplay
	log     zerolog.Logger
}

// NewProgressReporter creates a reporter rendering on display
func NewProgressReporter(display ui.ProgressDisplay, logger zerolog.Logger) *ProgressReporter {
	return &ProgressReporter{
		display: display,
		log:     logger.With().Str("component", "reporter").Logger(),
	}
}

// StartUpdatingProgress consumes progressCh until it is closed or ctx is
// cancelled. The first update must carry the file descriptor. The summary
// covers whatever was received; complete is false when ctx ended first or
// no update was seen.
func (pr *ProgressReporter) StartUpdatingProgress(ctx context.Context, progressCh <-chan types.ProgressUpdate) (summary types.TransferSummary, complete bool) {
	var started bool
	startTime := time.Now()

	for {
		select {
		case <-ctx.Done():
			pr.log.Debug().Msg("progress reporting stopped: cancelled")
			if started {
				pr.display.Complete()
			}
			summary.Elapsed = time.Since(startTime)
			return summary, false
		case update, ok := <-progressCh:
			if !ok {
				summary.Elapsed = time.Since(startTime)
				if !started {
					return summary, false
				}
				pr.display.Complete()
				return summary, true
			}

			if update.File != nil && !started {
				started = true
				summary.File = *update.File
				startTime = time.Now()
				pr.log.Debug().
					Str("file", update.File.Name).
					Int64("size", update.File.Size).
					Msg("starting download")
				pr.display.Start(*update.File)
			}
			if !started {
				continue
			}

			if update.Received > summary.Received {
				summary.Received = update.Received
				pr.display.Update(update.Received)
			}
		}
	}
}
