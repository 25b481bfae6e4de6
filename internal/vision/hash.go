package vision

import (
	"bytes"
	"image"
	"image/color"
	"log/slog"
	"time"

	"github.com/nfnt/resize"
)

// Hash returns a cheap fingerprint of one capture: downscale, grayscale,
// then fold a sparse sample of intensities through a multiply-and-add
// accumulator. Equal hashes are a strong (not certain) near-duplicate
// signal; unequal hashes prove nothing beyond the hash's resolution.
//
// On any processing failure the fallback is a monotonically distinct value,
// so two failed captures never look identical on the fast path — the worst
// case is a redundant trip through the full pixel diff.
func Hash(capture []byte) uint64 {
	img, _, err := image.Decode(bytes.NewReader(capture))
	if err != nil {
		slog.Debug("hash decode failed, falling back to distinct value", "error", err)
		return uint64(time.Now().UnixNano())
	}
	return HashImage(img)
}

// HashImage fingerprints an already-decoded frame.
func HashImage(img image.Image) uint64 {
	small := resize.Resize(HashSize, HashSize, img, resize.Bilinear)
	b := small.Bounds()

	var h uint64
	for y := b.Min.Y; y < b.Max.Y; y += HashSampleStride {
		for x := b.Min.X; x < b.Max.X; x += HashSampleStride {
			g := color.GrayModel.Convert(small.At(x, y)).(color.Gray)
			h = h*HashMultiplier + uint64(g.Y)
		}
	}
	return h
}
