package vision

import (
	"bytes"
	"image"
	"log/slog"
	"sync"

	"github.com/corona10/goimagehash"
)

// Gate is the stateful two-tier novelty check in front of expensive
// downstream analysis. Tier one is a perception hash: a small Hamming
// distance to the previous frame rejects near-duplicates without touching
// the pixel diff. Tier two is the exact comparison against the last accepted
// reference. A capture that passes becomes the new reference.
type Gate struct {
	mu        sync.Mutex
	threshold float64
	lastHash  *goimagehash.ImageHash
	reference []byte
}

// NewGate creates a gate with the given difference ratio threshold.
func NewGate(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{threshold: threshold}
}

// ShouldAnalyze decides whether a capture is worth analyzing. Returns the
// comparison verdict and the decision. Hash failures fall through to the
// pixel diff rather than suppressing the frame.
func (g *Gate) ShouldAnalyze(capture []byte) (Verdict, bool) {
	phash := perceptionHash(capture)

	g.mu.Lock()
	defer g.mu.Unlock()

	if phash != nil && g.lastHash != nil {
		if dist, err := g.lastHash.Distance(phash); err == nil && dist <= MaxHashDistance {
			slog.Debug("skipping analysis, near-duplicate frame", "distance", dist)
			return Verdict{}, false
		}
	}

	// No reference yet: the first capture is novel by definition
	if g.reference == nil {
		g.reference = capture
		g.lastHash = phash
		return maximallyDifferent(), true
	}

	verdict := Compare(g.reference, capture, g.threshold)
	if phash != nil {
		g.lastHash = phash
	}
	if verdict.Different {
		g.reference = capture
	}
	return verdict, verdict.Different
}

// Reset clears the reference and hash state.
func (g *Gate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastHash = nil
	g.reference = nil
}

func perceptionHash(capture []byte) *goimagehash.ImageHash {
	img, _, err := image.Decode(bytes.NewReader(capture))
	if err != nil {
		return nil
	}
	h, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil
	}
	return h
}
