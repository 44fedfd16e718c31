package ui

import "storrent/pkg/types"

// ProgressDisplay renders the progress of one download
type ProgressDisplay interface {
	// Start is called once, before the first byte arrives
	Start(file types.FileDescriptor)

	// Update receives the count of bytes written so far
	Update(received int64)

	// Complete is called once the transfer has ended
	Complete()

	// ShowSummary displays the outcome of a finished transfer
	ShowSummary(summary types.TransferSummary)
}
