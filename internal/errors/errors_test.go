package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestAppErrorMessage(t *testing.T) {
	err := New(VisionDecodeFailed, "cannot decode capture")

	if !strings.Contains(err.Error(), "VISION_DECODE_FAILED") {
		t.Errorf("error string missing code: %q", err.Error())
	}
	if !strings.Contains(err.Error(), "cannot decode capture") {
		t.Errorf("error string missing message: %q", err.Error())
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, Internal, "pipeline failure")

	if !stderrors.Is(err, cause) {
		t.Error("wrapped cause should satisfy errors.Is")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("error string missing cause: %q", err.Error())
	}
}

func TestWithMetadata(t *testing.T) {
	err := New(AnalysisFailed, "dispatch failed").WithMetadata("session", "abc")

	if err.Metadata["session"] != "abc" {
		t.Error("metadata not attached")
	}
	if !strings.Contains(err.Error(), "abc") {
		t.Errorf("error string missing metadata: %q", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(ConfigInvalid, "bad value %d", 42)

	if !IsCode(err, ConfigInvalid) {
		t.Error("IsCode should match")
	}
	if IsCode(err, Internal) {
		t.Error("IsCode should not match a different code")
	}
	if IsCode(stderrors.New("plain"), Internal) {
		t.Error("plain errors never match")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"unavailable", New(Unavailable, "down"), true},
		{"timeout", New(Timeout, "slow"), true},
		{"analysis failed", New(AnalysisFailed, "backend"), true},
		{"invalid argument", New(InvalidArgument, "bad"), false},
		{"plain error", stderrors.New("plain"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if IsRetryable(tt.err) != tt.retryable {
				t.Errorf("IsRetryable = %v, want %v", IsRetryable(tt.err), tt.retryable)
			}
		})
	}
}
