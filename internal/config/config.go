// Package config handles pipeline configuration
package config

import (
	"os"
	"strconv"

	errs "github.com/pitchlab/sensorpipe/internal/errors"
)

type Config struct {
	HTTPAddr        string
	SampleRate      int
	FrameSize       int     // samples per emitted PCM frame
	DiffThreshold   float64 // difference ratio above which a capture is novel
	CaptureAudio    bool    // drive the quantizer from the local microphone
	AnalysisTimeout float64 // seconds; deadline imposed around analyzer calls
}

func Load() *Config {
	return &Config{
		HTTPAddr:        getEnv("HTTP_ADDR", ":8000"),
		SampleRate:      getEnvInt("SAMPLE_RATE", 16000),
		FrameSize:       getEnvInt("FRAME_SIZE", 4096),
		DiffThreshold:   getEnvFloat("DIFF_THRESHOLD", 0.1),
		CaptureAudio:    getEnvBool("CAPTURE_AUDIO", true),
		AnalysisTimeout: getEnvFloat("ANALYSIS_TIMEOUT", 10.0),
	}
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return errs.Newf(errs.ConfigInvalid, "sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSize <= 0 {
		return errs.Newf(errs.ConfigInvalid, "frame size must be positive, got %d", c.FrameSize)
	}
	if c.DiffThreshold < 0 || c.DiffThreshold > 1 {
		return errs.Newf(errs.ConfigInvalid, "diff threshold must be in [0, 1], got %v", c.DiffThreshold)
	}
	if c.AnalysisTimeout <= 0 {
		return errs.Newf(errs.ConfigInvalid, "analysis timeout must be positive, got %v", c.AnalysisTimeout)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}
