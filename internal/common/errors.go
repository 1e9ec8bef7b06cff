package common

import (
	"context"
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func NewAppError(code, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
)

// FormatError means the file bytes were unreadable or corrupt. Terminal for
// the document; the orchestrator never retries it.
type FormatError struct {
	Path  string
	Cause error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("format error: %s: %v", e.Path, e.Cause)
}

func (e *FormatError) Unwrap() error { return e.Cause }

func NewFormatError(path string, cause error) *FormatError {
	return &FormatError{Path: path, Cause: cause}
}

// ExtractionError means an OCR or model call failed, timed out, or ran out of
// resources. Terminal for the document; distinct from validation-driven
// refinement, which is not an error at all.
type ExtractionError struct {
	Stage   string // "ocr" | "model" | "content"
	Timeout bool
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("extraction error (%s, timeout): %v", e.Stage, e.Cause)
	}
	return fmt.Sprintf("extraction error (%s): %v", e.Stage, e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// NewExtractionError wraps cause, flagging context deadline expiry as a timeout.
func NewExtractionError(stage string, cause error) *ExtractionError {
	return &ExtractionError{
		Stage:   stage,
		Timeout: errors.Is(cause, context.DeadlineExceeded),
		Cause:   cause,
	}
}

// IsFormatError reports whether err is (or wraps) a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// IsExtractionError reports whether err is (or wraps) an ExtractionError.
func IsExtractionError(err error) bool {
	var ee *ExtractionError
	return errors.As(err, &ee)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
