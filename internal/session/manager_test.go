package session

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
	"time"

	"github.com/pitchlab/sensorpipe/internal/config"
	errs "github.com/pitchlab/sensorpipe/internal/errors"
	"github.com/pitchlab/sensorpipe/internal/resilience"
)

type mockAnalyzer struct {
	calls int
	text  string
	err   error
}

func (m *mockAnalyzer) Analyze(_ context.Context, _ []byte) (string, error) {
	m.calls++
	return m.text, m.err
}

func testConfig() *config.Config {
	return &config.Config{
		SampleRate:      16000,
		FrameSize:       64,
		DiffThreshold:   0.1,
		CaptureAudio:    false, // no audio hardware in tests
		AnalysisTimeout: 2,
	}
}

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:   1,
		BaseDelay:    time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
		JitterFactor: 0.1,
		IsRetryable:  errs.IsRetryable,
	}
}

// makeJPEG encodes a small test image; pattern selects visual content.
func makeJPEG(pattern int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			switch pattern {
			case 0:
				if (x/8+y/8)%2 == 0 {
					img.Set(x, y, color.White)
				} else {
					img.Set(x, y, color.Black)
				}
			case 1:
				img.Set(x, y, color.RGBA{R: uint8(x * 4), B: uint8(255 - x*4), A: 255})
			}
		}
	}
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func TestNewManager(t *testing.T) {
	m := New(testConfig(), &mockAnalyzer{})

	if m.ID() == "" {
		t.Error("session should have an ID")
	}
	if m.Recording() {
		t.Error("new session should not be recording")
	}
	if m.audio != nil {
		t.Error("audio capture should be disabled")
	}
}

func TestRecordingLifecycle(t *testing.T) {
	m := New(testConfig(), nil)

	m.StartRecording()
	if !m.Recording() {
		t.Error("should be recording after start")
	}

	m.quant.Process(make([]float32, 30))
	m.StopRecording()
	if m.Recording() {
		t.Error("should not be recording after stop")
	}

	select {
	case frame := <-m.Frames():
		if len(frame.PCM) != 30 {
			t.Errorf("flushed frame length = %d, want 30", len(frame.PCM))
		}
	default:
		t.Error("stop should flush the partial window")
	}
}

func TestSubmitCaptureDispatchesNovelFrame(t *testing.T) {
	analyzer := &mockAnalyzer{text: "slow down, keep eye contact"}
	m := New(testConfig(), analyzer)

	verdict, err := m.SubmitCapture(context.Background(), makeJPEG(0))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Different {
		t.Error("first capture should be novel")
	}
	if analyzer.calls != 1 {
		t.Errorf("analyzer calls = %d, want 1", analyzer.calls)
	}

	select {
	case fb := <-m.Feedback():
		if fb.Text != analyzer.text {
			t.Errorf("feedback text = %q, want %q", fb.Text, analyzer.text)
		}
		if fb.SessionID != m.ID() {
			t.Error("feedback should carry the session ID")
		}
	default:
		t.Error("expected feedback after successful analysis")
	}
}

func TestSubmitCaptureSkipsDuplicate(t *testing.T) {
	analyzer := &mockAnalyzer{}
	m := New(testConfig(), analyzer)
	img := makeJPEG(0)

	if _, err := m.SubmitCapture(context.Background(), img); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	verdict, err := m.SubmitCapture(context.Background(), img)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if verdict.Different {
		t.Error("duplicate capture should not be different")
	}
	if analyzer.calls != 1 {
		t.Errorf("analyzer calls = %d, want 1 (duplicate must not dispatch)", analyzer.calls)
	}
}

func TestSubmitCaptureAnalyzerFailureRetries(t *testing.T) {
	analyzer := &mockAnalyzer{err: context.DeadlineExceeded}
	m := New(testConfig(), analyzer)
	m.retryCfg = fastRetry()

	_, err := m.SubmitCapture(context.Background(), makeJPEG(0))
	if err == nil {
		t.Fatal("expected dispatch error")
	}
	if analyzer.calls != 2 { // initial + 1 retry
		t.Errorf("analyzer calls = %d, want 2", analyzer.calls)
	}

	select {
	case <-m.Feedback():
		t.Error("failed analysis should not emit feedback")
	default:
	}
}

func TestSubmitCaptureNilAnalyzer(t *testing.T) {
	m := New(testConfig(), nil)

	verdict, err := m.SubmitCapture(context.Background(), makeJPEG(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !verdict.Different {
		t.Error("verdict should still be computed without an analyzer")
	}
}

func TestStopFlushesAndGoesIdle(t *testing.T) {
	m := New(testConfig(), nil)

	m.StartRecording()
	m.quant.Process(make([]float32, 10))
	m.Stop()

	if m.Recording() {
		t.Error("session should be idle after stop")
	}
	select {
	case frame := <-m.Frames():
		if len(frame.PCM) != 10 {
			t.Errorf("flushed frame length = %d, want 10", len(frame.PCM))
		}
	default:
		t.Error("stop should flush buffered audio")
	}
}
