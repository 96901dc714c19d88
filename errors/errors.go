package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	ErrorCode_INTERNAL            ErrorCode = "INTERNAL"
	ErrorCode_INVALID_INPUT       ErrorCode = "INVALID_INPUT"
	ErrorCode_CONVERSION_FAILED   ErrorCode = "CONVERSION_FAILED"
	ErrorCode_BACKEND_UNAVAILABLE ErrorCode = "BACKEND_UNAVAILABLE"
	ErrorCode_ASR_INVOCATION      ErrorCode = "ASR_INVOCATION_FAILED"
	ErrorCode_EMPTY_RESULT        ErrorCode = "EMPTY_RESULT"
	ErrorCode_RATE_LIMITED        ErrorCode = "RATE_LIMITED"
	ErrorCode_PAYLOAD_TOO_LARGE   ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrorCode_UNAUTHORIZED        ErrorCode = "UNAUTHORIZED"
	ErrorCode_SERVER_ERROR        ErrorCode = "SERVER_ERROR"
	ErrorCode_SUMMARY_FAILED      ErrorCode = "SUMMARY_FAILED"
	ErrorCode_STORAGE_FAILED      ErrorCode = "STORAGE_FAILED"
)

func (c ErrorCode) String() string { return string(c) }

// AppError carries enough context (backend, stage, underlying reason) for the
// caller to decide whether a manual retry makes sense.
type AppError struct {
	Raw       error
	Code      ErrorCode
	Backend   string
	Stage     string
	Message   string
	Timestamp time.Time
}

// Error implements error interface
func (e AppError) Error() string {
	prefix := string(e.Code)
	if e.Backend != "" {
		prefix = fmt.Sprintf("%s backend=%s", prefix, e.Backend)
	}
	if e.Stage != "" {
		prefix = fmt.Sprintf("%s stage=%s", prefix, e.Stage)
	}
	if e.Raw != nil {
		return fmt.Sprintf("[%s] %s: %v", prefix, e.Message, e.Raw)
	}
	return fmt.Sprintf("[%s] %s", prefix, e.Message)
}

// Unwrap exposes the underlying error to errors.Is/errors.As.
func (e AppError) Unwrap() error { return e.Raw }

// WithBackend attaches the backend name to the error.
func (e AppError) WithBackend(name string) AppError {
	e.Backend = name
	return e
}

// WithStage attaches the pipeline stage to the error.
func (e AppError) WithStage(stage string) AppError {
	e.Stage = stage
	return e
}

// CodeOf returns the error code carried by err, or ErrorCode_INTERNAL when
// err is not an AppError.
func CodeOf(err error) ErrorCode {
	var app AppError
	if stderrors.As(err, &app) {
		return app.Code
	}
	return ErrorCode_INTERNAL
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var app AppError
	return stderrors.As(err, &app) && app.Code == code
}

// Retriable reports whether the fallback chain may retry this failure against
// a local backend. Only rate limiting qualifies; every other API failure is
// surfaced as-is.
func Retriable(err error) bool {
	return IsCode(err, ErrorCode_RATE_LIMITED)
}

func ErrInternal(err error) AppError {
	return AppError{
		Raw:       err,
		Code:      ErrorCode_INTERNAL,
		Message:   "Internal error",
		Timestamp: time.Now(),
	}
}

func ErrInvalidInput(message string) AppError {
	return AppError{
		Code:      ErrorCode_INVALID_INPUT,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// ErrConversionFailed covers audio preparation (downsampling, transcoding).
func ErrConversionFailed(err error) AppError {
	return AppError{
		Raw:       err,
		Code:      ErrorCode_CONVERSION_FAILED,
		Message:   "Audio conversion failed",
		Stage:     "convert",
		Timestamp: time.Now(),
	}
}

// ErrBackendUnavailable means a dependency or credential is missing; it is
// raised before any work is attempted.
func ErrBackendUnavailable(backend, reason string) AppError {
	return AppError{
		Code:      ErrorCode_BACKEND_UNAVAILABLE,
		Backend:   backend,
		Message:   reason,
		Timestamp: time.Now(),
	}
}

// ErrASRInvocation wraps an engine-level failure during a pass.
func ErrASRInvocation(backend string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      ErrorCode_ASR_INVOCATION,
		Backend:   backend,
		Message:   "ASR invocation failed",
		Stage:     "transcribe",
		Timestamp: time.Now(),
	}
}

// ErrEmptyResult is terminal: both the no-VAD and VAD passes produced nothing.
func ErrEmptyResult(backend string) AppError {
	return AppError{
		Code:      ErrorCode_EMPTY_RESULT,
		Backend:   backend,
		Message:   "no transcription produced",
		Stage:     "transcribe",
		Timestamp: time.Now(),
	}
}

func ErrRateLimited(backend string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      ErrorCode_RATE_LIMITED,
		Backend:   backend,
		Message:   "API rate limit exceeded",
		Stage:     "transcribe",
		Timestamp: time.Now(),
	}
}

func ErrPayloadTooLarge(backend string, sizeBytes int64) AppError {
	return AppError{
		Code:      ErrorCode_PAYLOAD_TOO_LARGE,
		Backend:   backend,
		Message:   fmt.Sprintf("audio payload too large: %.1fMB", float64(sizeBytes)/1024/1024),
		Stage:     "upload",
		Timestamp: time.Now(),
	}
}

func ErrUnauthorized(backend string) AppError {
	return AppError{
		Code:      ErrorCode_UNAUTHORIZED,
		Backend:   backend,
		Message:   "invalid or missing API credential",
		Timestamp: time.Now(),
	}
}

// ErrServerError surfaces an unexpected API response verbatim.
func ErrServerError(backend string, status int, body string) AppError {
	return AppError{
		Code:      ErrorCode_SERVER_ERROR,
		Backend:   backend,
		Message:   fmt.Sprintf("API error %d: %s", status, body),
		Stage:     "transcribe",
		Timestamp: time.Now(),
	}
}

func ErrSummaryFailed(err error) AppError {
	return AppError{
		Raw:       err,
		Code:      ErrorCode_SUMMARY_FAILED,
		Message:   "Failed to generate summary",
		Stage:     "summarize",
		Timestamp: time.Now(),
	}
}

func ErrStorageFailed(operation string, err error) AppError {
	return AppError{
		Raw:       err,
		Code:      ErrorCode_STORAGE_FAILED,
		Message:   fmt.Sprintf("Storage operation failed: %s", operation),
		Stage:     "store",
		Timestamp: time.Now(),
	}
}
