// Package session composes the capture pipeline for one coaching session
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pitchlab/sensorpipe/internal/capture"
	"github.com/pitchlab/sensorpipe/internal/config"
	errs "github.com/pitchlab/sensorpipe/internal/errors"
	"github.com/pitchlab/sensorpipe/internal/quantizer"
	"github.com/pitchlab/sensorpipe/internal/resilience"
	"github.com/pitchlab/sensorpipe/internal/syncx"
	"github.com/pitchlab/sensorpipe/internal/trace"
	"github.com/pitchlab/sensorpipe/internal/vision"
)

// Analyzer receives captures the gate deems novel and returns coaching
// feedback. The transport behind it (AI backend, mock, queue) is the
// caller's concern.
type Analyzer interface {
	Analyze(ctx context.Context, capture []byte) (string, error)
}

// Feedback is one analyzer result tied to the capture that triggered it.
type Feedback struct {
	SessionID string         `json:"sessionId"`
	Text      string         `json:"text"`
	Verdict   vision.Verdict `json:"verdict"`
	Timestamp int64          `json:"timestamp"`
}

// Manager wires the quantizer, the optional microphone capture, and the
// visual change gate together for one session. The two decision units never
// share state; the manager only routes their outputs.
type Manager struct {
	id       string
	cfg      *config.Config
	quant    *quantizer.Quantizer
	audio    *capture.Capturer
	gate     *vision.Gate
	analyzer Analyzer
	breaker  *resilience.Breaker
	retryCfg resilience.RetryConfig

	recording  *syncx.Guard[bool]
	feedbackCh chan Feedback
}

// New creates a session manager. A nil analyzer disables dispatch; the gate
// still runs so verdicts stay observable.
func New(cfg *config.Config, analyzer Analyzer) *Manager {
	m := &Manager{
		id:         uuid.NewString(),
		cfg:        cfg,
		quant:      quantizer.New(cfg.FrameSize),
		gate:       vision.NewGate(cfg.DiffThreshold),
		analyzer:   analyzer,
		breaker:    resilience.NewBreaker(),
		retryCfg:   resilience.DefaultRetryConfig(),
		recording:  syncx.NewGuard(false),
		feedbackCh: make(chan Feedback, FeedbackChannelBuffer),
	}

	if cfg.CaptureAudio {
		audio, err := capture.NewCapturer(m.quant, cfg.SampleRate)
		if err != nil {
			slog.Error("failed to create audio capturer", "error", err)
		} else {
			m.audio = audio
		}
	}

	return m
}

// ID returns the session identifier.
func (m *Manager) ID() string { return m.id }

// Frames returns the channel of emitted PCM frames.
func (m *Manager) Frames() <-chan quantizer.Frame { return m.quant.Frames() }

// Feedback returns the channel of analyzer results.
func (m *Manager) Feedback() <-chan Feedback { return m.feedbackCh }

// Recording reports whether audio is currently being absorbed.
func (m *Manager) Recording() bool { return m.recording.Get() }

// Start opens the microphone stream when audio capture is enabled.
func (m *Manager) Start(ctx context.Context) error {
	if m.audio == nil {
		return nil
	}
	return m.audio.Start(ctx)
}

// Stop flushes any buffered audio and releases the devices.
func (m *Manager) Stop() {
	m.quant.Stop()
	m.recording.Set(false)
	if m.audio != nil {
		m.audio.Stop()
	}
}

// StartRecording begins absorbing audio into PCM frames.
func (m *Manager) StartRecording() {
	m.quant.Start()
	m.recording.Set(true)
	slog.Info("recording started", "session", m.id)
}

// StopRecording flushes the partial window and goes idle.
func (m *Manager) StopRecording() {
	m.quant.Stop()
	m.recording.Set(false)
	slog.Info("recording stopped", "session", m.id)
}

// SubmitCapture runs a capture through the change gate and, when novel,
// dispatches it to the analyzer with retry and circuit protection. The
// verdict is always returned; dispatch errors never suppress it.
func (m *Manager) SubmitCapture(ctx context.Context, img []byte) (vision.Verdict, error) {
	log := trace.Logger(ctx)

	verdict, analyze := m.gate.ShouldAnalyze(img)
	if !analyze {
		return verdict, nil
	}

	log.Debug("capture passed change gate", "session", m.id, "ratio", verdict.Ratio)

	if m.analyzer == nil {
		return verdict, nil
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(m.cfg.AnalysisTimeout*float64(time.Second)))
	defer cancel()

	var text string
	err := resilience.Retry(ctx, m.retryCfg, func() error {
		return m.breaker.Execute(func() error {
			t, aerr := m.analyzer.Analyze(ctx, img)
			if aerr != nil {
				return errs.Wrap(aerr, errs.AnalysisFailed, "analyzer dispatch failed")
			}
			text = t
			return nil
		})
	})
	if err != nil {
		log.Error("analysis failed", "session", m.id, "error", err)
		return verdict, err
	}

	fb := Feedback{
		SessionID: m.id,
		Text:      text,
		Verdict:   verdict,
		Timestamp: time.Now().UnixNano(),
	}

	select {
	case m.feedbackCh <- fb:
	default:
		log.Debug("feedback channel full, dropping result", "session", m.id)
	}

	return verdict, nil
}
