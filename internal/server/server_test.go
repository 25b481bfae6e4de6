package server

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pitchlab/sensorpipe/internal/config"
	"github.com/pitchlab/sensorpipe/internal/session"
)

func testServer() *Server {
	cfg := &config.Config{
		SampleRate:      16000,
		FrameSize:       64,
		DiffThreshold:   0.1,
		CaptureAudio:    false,
		AnalysisTimeout: 2,
	}
	return New(session.New(cfg, nil))
}

func TestRateLimiterAllowsWithinWindow(t *testing.T) {
	rl := &rateLimiter{}

	for i := 0; i < RateLimitMessages; i++ {
		if !rl.allow() {
			t.Fatalf("message %d should be allowed", i)
		}
	}
	if rl.allow() {
		t.Error("message beyond the limit should be rejected")
	}
}

func TestRateLimiterSlidesWindow(t *testing.T) {
	rl := &rateLimiter{}

	// Fill the window with stale timestamps
	old := time.Now().Add(-2 * RateLimitWindow)
	for i := 0; i < RateLimitMessages; i++ {
		rl.timestamps = append(rl.timestamps, old)
	}

	if !rl.allow() {
		t.Error("stale timestamps should have been pruned")
	}
}

func TestHandleStatus(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest("GET", "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body["sessionId"] == "" {
		t.Error("status should include the session ID")
	}
	if body["recording"] != false {
		t.Error("recording should start false")
	}
}

func TestRecordingEndpoints(t *testing.T) {
	s := testServer()

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/recording/start", nil))
	if rec.Code != 200 {
		t.Fatalf("start status = %d, want 200", rec.Code)
	}
	if !s.sess.Recording() {
		t.Error("session should be recording after start")
	}

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("POST", "/api/recording/stop", nil))
	if rec.Code != 200 {
		t.Fatalf("stop status = %d, want 200", rec.Code)
	}
	if s.sess.Recording() {
		t.Error("session should be idle after stop")
	}
}

func TestCORSPreflight(t *testing.T) {
	s := testServer()

	req := httptest.NewRequest("OPTIONS", "/api/status", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Errorf("preflight status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("missing CORS origin header")
	}
}
