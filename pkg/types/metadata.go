package types

import (
	"fmt"
	"time"
)

// FileDescriptor describes one entry of a catalog listing.
// ID is only meaningful within the listing that produced it.
type FileDescriptor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

// String returns the descriptor in its wire form "<id> <name> <size>"
func (d FileDescriptor) String() string {
	return fmt.Sprintf("%d %s %d", d.ID, d.Name, d.Size)
}

// ProgressUpdate represents raw download progress data
type ProgressUpdate struct {
	Received int64           // Bytes written to the destination so far
	File     *FileDescriptor // Only set on the first update of a transfer
}

// TransferSummary describes a finished download
type TransferSummary struct {
	File     FileDescriptor
	Received int64
	Elapsed  time.Duration
}

// Throughput returns the average rate in MB/s
func (s TransferSummary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Received) / s.Elapsed.Seconds() / (1024 * 1024)
}

// Percentage returns how much of the file was received
func (s TransferSummary) Percentage() float64 {
	if s.File.Size == 0 {
		return 100
	}
	return float64(s.Received) / float64(s.File.Size) * 100
}
