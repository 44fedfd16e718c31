package app

import "context"

// Server defines the interface for the serving side application logic
type Server interface {
	// Run serves the configured directory until ctx is cancelled
	Run(ctx context.Context) error
}

// Client defines the interface for the requesting side application logic
type Client interface {
	// List prints the remote catalog, optionally filtered by keywords
	List(ctx context.Context, opts *ListOptions) error
	// Get downloads one file of the remote catalog
	Get(ctx context.Context, opts *GetOptions) error
}
