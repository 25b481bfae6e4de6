// Package quantizer converts real-time float samples into PCM frames
package quantizer

// Quantizer configuration constants
const (
	// Samples per emitted frame (~256ms at 16kHz)
	DefaultFrameSize = 4096

	// Outbound frame channel buffer
	FrameChannelBuffer = 32

	// PCM scale factors: asymmetric so -1.0 maps to -32768 and 1.0 to 32767
	negScale = 32768
	posScale = 32767
)
