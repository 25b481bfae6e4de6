// Package vision decides whether a new capture is novel enough to analyze
package vision

// Change detection constants
const (
	// Fixed comparison resolution; bounds the pixel-diff cost regardless of
	// the source capture resolution
	CompareWidth  = 320
	CompareHeight = 240

	// Per-pixel color distance (normalized 0-1) above which a pixel counts
	// as differing
	ColorTolerance = 0.1

	// Default overall difference ratio threshold
	DefaultThreshold = 0.1

	// Fold hash parameters: downscale size, sampling stride, accumulator
	// multiplier (standard string-hash fold, not cryptographic)
	HashSize         = 64
	HashSampleStride = 4
	HashMultiplier   = 31

	// Max perception-hash Hamming distance still considered a near-duplicate
	MaxHashDistance = 10
)
