package domain

import (
	"errors"
	"fmt"
)

// Failure kinds. Match with errors.Is.
var (
	ErrEnvironmentUnsupported   = errors.New("environment unsupported")
	ErrCaptureAcquisitionFailed = errors.New("capture acquisition failed")
	ErrTranscriptionFailed      = errors.New("transcription failed")
	ErrReportGenerationFailed   = errors.New("report generation failed")
	ErrValidationFailed         = errors.New("validation failed")
)

// Stage labels attached to error records and notices.
const (
	ContextEnvironment   = "Environment Check"
	ContextMicrophone    = "Microphone Access"
	ContextTranscription = "Audio Transcription"
	ContextReport        = "Report Generation"
	ContextValidation    = "Validation"
)

// Error is a stage failure carrying its kind, stage label, and cause.
type Error struct {
	Kind    error
	Context string
	Err     error
}

// NewError builds a stage failure.
func NewError(kind error, context string, cause error) *Error {
	return &Error{Kind: kind, Context: context, Err: cause}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// Cause returns the innermost message suitable for user-facing text.
func (e *Error) Cause() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return e.Err.Error()
}
