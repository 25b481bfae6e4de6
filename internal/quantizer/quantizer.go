// Package quantizer converts real-time float samples into PCM frames
package quantizer

import (
	"log/slog"
	"math"
	"sync"
	"time"
)

// Frame is one emitted window of 16-bit PCM audio. Handed to the consumer
// at flush time and never retained by the quantizer.
type Frame struct {
	PCM       []int16
	Seq       uint64
	Timestamp int64
}

// Quantizer absorbs a continuous stream of normalized float samples and
// emits fixed-size PCM frames over a one-way channel. It is driven from the
// audio callback boundary and must never block there: emission is
// non-blocking, full consumers cause frames to be dropped with a debug log.
type Quantizer struct {
	mu        sync.Mutex
	buf       []int16
	cursor    int
	recording bool
	seq       uint64
	outCh     chan Frame
}

// New creates a quantizer with the given frame size in samples.
func New(frameSize int) *Quantizer {
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}
	return &Quantizer{
		buf:   make([]int16, frameSize),
		outCh: make(chan Frame, FrameChannelBuffer),
	}
}

// Frames returns the channel for receiving PCM frames.
func (q *Quantizer) Frames() <-chan Frame { return q.outCh }

// Start begins absorbing samples. Idempotent: calling while already
// recording re-zeroes the buffer.
func (q *Quantizer) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.recording = true
	q.reset()
}

// Stop flushes whatever is buffered (even a partial window) and returns to
// idle. The flush completes before Stop returns, so no trailing audio is
// silently dropped at session end.
func (q *Quantizer) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.recording {
		return
	}
	q.flush()
	q.recording = false
	q.reset()
}

// Recording reports whether samples are currently being absorbed.
func (q *Quantizer) Recording() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.recording
}

// Process absorbs one callback's worth of samples. A no-op while idle —
// start/stop is expected to race with in-flight audio callbacks, so this is
// not an error. NaN samples are treated as silence and skipped. When the
// buffer fills, the frame is emitted and the buffer reset within the same
// call; no pending-emit state is carried across invocations.
func (q *Quantizer) Process(samples []float32) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.recording {
		return
	}

	for _, s := range samples {
		if math.IsNaN(float64(s)) {
			continue
		}
		q.buf[q.cursor] = Quantize(s)
		q.cursor++
		if q.cursor == len(q.buf) {
			q.flush()
			q.reset()
		}
	}
}

// flush emits a frame sized to the current cursor. Emits nothing when the
// buffer is empty. Caller holds the lock.
func (q *Quantizer) flush() {
	if q.cursor == 0 {
		return
	}

	pcm := make([]int16, q.cursor)
	copy(pcm, q.buf[:q.cursor])

	q.seq++
	frame := Frame{PCM: pcm, Seq: q.seq, Timestamp: time.Now().UnixNano()}

	select {
	case q.outCh <- frame:
	default:
		slog.Debug("frame channel full, dropping frame", "seq", frame.Seq, "samples", len(pcm))
	}
}

// reset zeroes the buffer and rewinds the cursor. Caller holds the lock.
func (q *Quantizer) reset() {
	clear(q.buf)
	q.cursor = 0
}

// Quantize maps a normalized amplitude to a 16-bit PCM value. Inputs are
// clamped to [-1, 1]; the scale is asymmetric so the full int16 range is
// covered (-1 -> -32768, 1 -> 32767). NaN quantizes to 0 rather than
// propagating into the frame.
func Quantize(s float32) int16 {
	if math.IsNaN(float64(s)) {
		return 0
	}
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * negScale)
	}
	return int16(s * posScale)
}
