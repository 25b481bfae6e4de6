// Package capture feeds microphone audio into a sample sink
package capture

// Capture constants
const (
	// Frames per hardware callback (~64ms at 16kHz)
	FramesPerBuffer = 1024

	// Mono input
	InputChannels = 1
)
