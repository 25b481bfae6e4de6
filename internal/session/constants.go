// Package session composes the capture pipeline for one coaching session
package session

// Session constants
const (
	// Feedback channel buffer
	FeedbackChannelBuffer = 16
)
