// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Per-connection sliding-window rate limit for inbound messages.
	// Image frames dominate; 30/s is far above any sane capture rate.
	RateLimitMessages = 30
	RateLimitWindow   = time.Second
)
