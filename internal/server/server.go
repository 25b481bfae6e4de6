// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/pitchlab/sensorpipe/internal/session"
	"github.com/pitchlab/sensorpipe/internal/trace"
	"github.com/pitchlab/sensorpipe/internal/vision"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// ImageFrameMessage carries one base64-encoded capture from the client.
type ImageFrameMessage struct {
	Type string `json:"type"`
	Data string `json:"data"`
}

// AudioDataMessage carries one PCM frame to the transport layer.
type AudioDataMessage struct {
	Type string  `json:"type"`
	Data []int16 `json:"data"`
	Seq  uint64  `json:"seq"`
}

// VerdictMessage answers an imageFrame with the comparison result.
type VerdictMessage struct {
	Type    string         `json:"type"`
	Verdict vision.Verdict `json:"verdict"`
}

// FeedbackMessage carries analyzer feedback to the client.
type FeedbackMessage struct {
	Type     string           `json:"type"`
	Feedback session.Feedback `json:"feedback"`
}

type StatusMessage struct {
	Type      string `json:"type"`
	Recording bool   `json:"recording"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	sess       *session.Manager
	mu         sync.RWMutex
	conns      map[*websocket.Conn]struct{}
	rateLimits map[*websocket.Conn]*rateLimiter
}

// New creates a new server and starts the event broadcasters.
func New(sess *session.Manager) *Server {
	s := &Server{
		sess:       sess,
		conns:      make(map[*websocket.Conn]struct{}),
		rateLimits: make(map[*websocket.Conn]*rateLimiter),
	}

	go s.broadcastFrames()
	go s.broadcastFeedback()

	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ws", s.handleWebSocket)

	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/recording/start", s.handleRecordingStart)
	mux.HandleFunc("POST /api/recording/stop", s.handleRecordingStop)

	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.rateLimits[conn] = &rateLimiter{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		delete(s.rateLimits, conn)
		s.mu.Unlock()
	}()

	ctx := r.Context()
	log := trace.Logger(ctx)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var msg json.RawMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		s.mu.RLock()
		rl := s.rateLimits[conn]
		s.mu.RUnlock()

		if !rl.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}

		var base Message
		if err := json.Unmarshal(msg, &base); err != nil {
			continue
		}

		switch base.Type {
		case "start":
			s.sess.StartRecording()
			_ = wsjson.Write(ctx, conn, StatusMessage{Type: "status", Recording: true})
		case "stop":
			s.sess.StopRecording()
			_ = wsjson.Write(ctx, conn, StatusMessage{Type: "status", Recording: false})
		case "imageFrame":
			var frame ImageFrameMessage
			if err := json.Unmarshal(msg, &frame); err != nil {
				continue
			}
			s.handleImageFrame(ctx, conn, frame)
		}
	}
}

func (s *Server) handleImageFrame(ctx context.Context, conn *websocket.Conn, frame ImageFrameMessage) {
	log := trace.Logger(ctx)

	img, err := base64.StdEncoding.DecodeString(frame.Data)
	if err != nil {
		log.Debug("image frame decode error", "error", err)
		_ = wsjson.Write(ctx, conn, ErrorMessage{Type: "error", Message: "invalid image encoding"})
		return
	}

	verdict, err := s.sess.SubmitCapture(ctx, img)
	if err != nil {
		// The verdict is still valid; dispatch failures were already logged
		log.Debug("capture dispatch error", "error", err)
	}

	_ = wsjson.Write(ctx, conn, VerdictMessage{Type: "verdict", Verdict: verdict})
}

// broadcastFrames fans emitted PCM frames out to all connections.
func (s *Server) broadcastFrames() {
	for frame := range s.sess.Frames() {
		msg := AudioDataMessage{Type: "audioData", Data: frame.PCM, Seq: frame.Seq}
		s.broadcast(msg)
	}
}

// broadcastFeedback fans analyzer feedback out to all connections.
func (s *Server) broadcastFeedback() {
	for fb := range s.sess.Feedback() {
		msg := FeedbackMessage{Type: "feedback", Feedback: fb}
		s.broadcast(msg)
	}
}

func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for conn := range s.conns {
		go func(c *websocket.Conn) {
			_ = wsjson.Write(context.Background(), c, msg)
		}(conn)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sessionId": s.sess.ID(),
		"recording": s.sess.Recording(),
	})
}

func (s *Server) handleRecordingStart(w http.ResponseWriter, r *http.Request) {
	s.sess.StartRecording()
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recording_started"})
}

func (s *Server) handleRecordingStop(w http.ResponseWriter, r *http.Request) {
	s.sess.StopRecording()
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "recording_stopped"})
}
