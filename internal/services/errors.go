package services

import (
	"errors"
	"fmt"
	"strings"
)

// Code classifies a job failure for persistence and user display.
type Code string

const (
	CodeAudioLongerThanVideo Code = "AUDIO_LONGER_THAN_VIDEO"
	CodeNoSyncSafeCut        Code = "NO_SYNC_SAFE_CUT"
	CodeInvalidOverrideRange Code = "INVALID_OVERRIDE_RANGE"
	CodeAnalysisFailed       Code = "ANALYSIS_FAILED"
	CodeRenderFailed         Code = "RENDER_FAILED"
	CodeJobNotFound          Code = "JOB_NOT_FOUND"
	CodeDependencyMissing    Code = "DEPENDENCY_MISSING"
	CodeModelMissing         Code = "MODEL_MISSING"
)

// Error carries a taxonomy code alongside a human-readable message. It is
// the only error shape persisted onto a failed job.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorCode implements the classifier contract used by the job service when
// mapping stage failures onto the persisted job record.
func (e *Error) ErrorCode() Code {
	if e == nil {
		return ""
	}
	return e.Code
}

// NewError builds a coded error without a cause.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: strings.TrimSpace(message)}
}

// WrapError builds a coded error around an underlying cause.
func WrapError(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: strings.TrimSpace(message), Err: err}
}

// Classifier lets arbitrary errors declare a taxonomy code.
type Classifier interface {
	ErrorCode() Code
}

// CodeOf extracts the taxonomy code from err, falling back to fallback for
// unclassified errors so stage failures are never left untyped.
func CodeOf(err error, fallback Code) Code {
	var classifier Classifier
	if errors.As(err, &classifier) {
		if code := classifier.ErrorCode(); code != "" {
			return code
		}
	}
	return fallback
}

// MessageOf returns the user-facing message for err. Coded errors contribute
// their message only; everything else is rendered verbatim.
func MessageOf(err error) string {
	if err == nil {
		return ""
	}
	var coded *Error
	if errors.As(err, &coded) && coded.Message != "" {
		return coded.Message
	}
	return err.Error()
}
