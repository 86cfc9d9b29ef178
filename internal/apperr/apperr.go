// Package apperr defines the coded errors surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
)

// Error codes returned in API error bodies.
const (
	CodeInvalidFileType     = "INVALID_FILE_TYPE"
	CodeFileTooLarge        = "FILE_TOO_LARGE"
	CodeEmptyFile           = "EMPTY_FILE"
	CodePPTParse            = "PPT_PARSE_ERROR"
	CodeLLMConnection       = "LLM_CONNECTION_ERROR"
	CodeLLMGeneration       = "LLM_GENERATION_ERROR"
	CodeLLMTimeout          = "LLM_TIMEOUT"
	CodeTTSGeneration       = "TTS_GENERATION_ERROR"
	CodeVideoAssembly       = "VIDEO_ASSEMBLY_ERROR"
	CodeVideoStitching      = "VIDEO_STITCHING_ERROR"
	CodeFFmpegNotFound      = "FFMPEG_NOT_FOUND"
	CodeJobNotFound         = "JOB_NOT_FOUND"
	CodeJobTimeout          = "JOB_TIMEOUT"
	CodeJobCancelled        = "JOB_CANCELLED"
	CodeJobNotCompleted     = "JOB_NOT_COMPLETED"
	CodeTooManyJobs         = "TOO_MANY_JOBS"
	CodeUnsupportedLanguage = "UNSUPPORTED_LANGUAGE"
)

// Error is an application error with a stable code.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates an application error.
func New(code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an application error with a formatted message.
func Newf(code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an application error wrapping a cause.
func Wrap(code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the application code from err, or "" when err is not
// an application error.
func CodeOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given application code.
func HasCode(err error, code string) bool {
	return CodeOf(err) == code
}
