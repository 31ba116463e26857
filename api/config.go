// Package api provides the HTTP API server for album cover similarity search.
package api

import "github.com/papercomputeco/sleeves/pkg/eventstream/worker"

// DefaultMaxUploadBytes caps uploaded cover images.
const DefaultMaxUploadBytes = 10 << 20

// EventQueue accepts search events for asynchronous publishing.
type EventQueue interface {
	Enqueue(job worker.Job) bool
}

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8080")
	ListenAddr string

	// MaxUploadBytes caps the image accepted by search-by-image
	// (defaults to 10 MiB).
	MaxUploadBytes int

	// Events receives one event per answered search. Optional.
	Events EventQueue

	// DisableMCP turns off the /mcp endpoint.
	DisableMCP bool
}
