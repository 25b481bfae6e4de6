// Package vision decides whether a new capture is novel enough to analyze
package vision

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"log/slog"
	"math"

	"github.com/nfnt/resize"
)

// Verdict is the result of comparing two captures. Ephemeral; never
// persisted.
type Verdict struct {
	Different bool    `json:"isDifferent"`
	Ratio     float64 `json:"differencePercentage"`
}

// maximallyDifferent is the safe default for any processing failure: a false
// positive costs redundant downstream work, a false negative suppresses a
// legitimate change.
func maximallyDifferent() Verdict {
	return Verdict{Different: true, Ratio: 1}
}

// Compare decodes both captures and reports the fraction of differing
// pixels. Decode failures yield the maximally-different verdict rather than
// an error.
func Compare(reference, candidate []byte, threshold float64) Verdict {
	ref, _, err := image.Decode(bytes.NewReader(reference))
	if err != nil {
		slog.Debug("reference decode failed, treating as different", "error", err)
		return maximallyDifferent()
	}

	cand, _, err := image.Decode(bytes.NewReader(candidate))
	if err != nil {
		slog.Debug("candidate decode failed, treating as different", "error", err)
		return maximallyDifferent()
	}

	return CompareImages(ref, cand, threshold)
}

// CompareImages compares two decoded frames. Both are resampled to the fixed
// comparison resolution first, so mismatched source resolutions are fine.
// The ratio is rounded to two decimal places for reporting.
func CompareImages(a, b image.Image, threshold float64) Verdict {
	if a == nil || b == nil {
		return maximallyDifferent()
	}

	ra := resize.Resize(CompareWidth, CompareHeight, a, resize.Bilinear)
	rb := resize.Resize(CompareWidth, CompareHeight, b, resize.Bilinear)

	ba, bb := ra.Bounds(), rb.Bounds()
	differing := 0
	for y := 0; y < CompareHeight; y++ {
		for x := 0; x < CompareWidth; x++ {
			ca := ra.At(ba.Min.X+x, ba.Min.Y+y)
			cb := rb.At(bb.Min.X+x, bb.Min.Y+y)
			if colorDistance(ca, cb) > ColorTolerance {
				differing++
			}
		}
	}

	ratio := math.Round(float64(differing)/float64(CompareWidth*CompareHeight)*100) / 100
	return Verdict{Different: ratio > threshold, Ratio: ratio}
}

// colorDistance returns the normalized euclidean RGB distance in [0, 1].
func colorDistance(c1, c2 color.Color) float64 {
	r1, g1, b1, _ := c1.RGBA()
	r2, g2, b2, _ := c2.RGBA()

	dr := (float64(r1) - float64(r2)) / 65535
	dg := (float64(g1) - float64(g2)) / 65535
	db := (float64(b1) - float64(b2)) / 65535

	return math.Sqrt(dr*dr+dg*dg+db*db) / math.Sqrt(3)
}
