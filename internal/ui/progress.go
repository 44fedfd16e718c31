package ui

import (
	"fmt"
	"io"
	"os"
	"time"

	"storrent/pkg/types"
	"storrent/pkg/utils"

	"github.com/schollz/progressbar/v3"
)

// ProgressUI handles progress display for downloads
type ProgressUI struct {
	bar *progressbar.ProgressBar
	out io.Writer
	sum io.Writer
}

var _ ProgressDisplay = (*ProgressUI)(nil)

// NewProgressUI creates a progress UI drawing the bar on stderr and the
// summary on stdout
func NewProgressUI() *ProgressUI {
	return NewProgressUIWithWriters(os.Stderr, os.Stdout)
}

// NewProgressUIWithWriters creates a progress UI with explicit outputs
func NewProgressUIWithWriters(bar, summary io.Writer) *ProgressUI {
	return &ProgressUI{out: bar, sum: summary}
}

// Start initializes the progress bar for receiving file
func (p *ProgressUI) Start(file types.FileDescriptor) {
	p.bar = progressbar.NewOptions64(file.Size,
		progressbar.OptionSetDescription(fmt.Sprintf("Receiving %s", file.Name)),
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(50),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(false),
	)
}

// Update moves the bar to received bytes
func (p *ProgressUI) Update(received int64) {
	if p.bar == nil {
		return
	}
	_ = p.bar.Set64(received)
}

// Complete marks the progress as complete
func (p *ProgressUI) Complete() {
	if p.bar == nil {
		return
	}
	_ = p.bar.Finish()
	fmt.Fprintln(p.out)
}

// ShowSummary displays a summary of the completed transfer
func (p *ProgressUI) ShowSummary(s types.TransferSummary) {
	fmt.Fprintf(p.sum, "=============================================\n")
	fmt.Fprintf(p.sum, "Download completed successfully!\n")
	fmt.Fprintf(p.sum, "+ File: %s\n", s.File.Name)
	fmt.Fprintf(p.sum, "+ Total bytes received: %s\n", utils.FormatFileSize(s.Received))
	fmt.Fprintf(p.sum, "+ Transfer time: %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(p.sum, "+ Average throughput: %.2f MB/s\n", s.Throughput())
	fmt.Fprintf(p.sum, "+ Completion: %.1f%%\n", s.Percentage())
	fmt.Fprintf(p.sum, "=============================================\n")
}
