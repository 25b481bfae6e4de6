// Package errors provides unified error handling with structured codes.
// Pipeline internals degrade to safe defaults instead of raising; this
// package is the vocabulary for everything that crosses a boundary
// (server, analyzer dispatch, configuration).
package errors

import "fmt"

// Code classifies an error for callers and logs.
type Code int

const (
	Unknown Code = iota
	Internal
	InvalidArgument
	Unavailable
	Timeout
	Cancelled
	AudioInvalidFormat
	AudioDeviceUnavailable
	VisionDecodeFailed
	VisionCompareFailed
	AnalysisFailed
	ConfigInvalid
)

var codeNames = map[Code]string{
	Unknown:                "UNKNOWN",
	Internal:               "INTERNAL",
	InvalidArgument:        "INVALID_ARGUMENT",
	Unavailable:            "UNAVAILABLE",
	Timeout:                "TIMEOUT",
	Cancelled:              "CANCELLED",
	AudioInvalidFormat:     "AUDIO_INVALID_FORMAT",
	AudioDeviceUnavailable: "AUDIO_DEVICE_UNAVAILABLE",
	VisionDecodeFailed:     "VISION_DECODE_FAILED",
	VisionCompareFailed:    "VISION_COMPARE_FAILED",
	AnalysisFailed:         "ANALYSIS_FAILED",
	ConfigInvalid:          "CONFIG_INVALID",
}

// String returns the wire name of the code.
func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return "UNKNOWN"
}

// AppError is the base error type with structured code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// Wrapf wraps an existing error with formatted message.
func Wrapf(err error, code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...), Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code Code) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// IsRetryable returns true if the error is potentially retryable.
func IsRetryable(err error) bool {
	appErr, ok := err.(*AppError)
	if !ok {
		return false
	}
	switch appErr.Code {
	case Unavailable, Timeout, AnalysisFailed:
		return true
	default:
		return false
	}
}
