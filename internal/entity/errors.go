package entity

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable failure taxonomy surfaced to API callers.
type ErrorKind string

const (
	ErrInvalidInput         ErrorKind = "invalid_input"
	ErrNetwork              ErrorKind = "network_error"
	ErrServiceUnavailable   ErrorKind = "service_unavailable"
	ErrAccessDenied         ErrorKind = "access_denied"
	ErrUnsupportedStructure ErrorKind = "unsupported_structure"
	ErrMalformedContent     ErrorKind = "malformed_content"
	ErrInvalidResponse      ErrorKind = "invalid_response"
	ErrQuotaExceeded        ErrorKind = "quota_exceeded"
	ErrInternal             ErrorKind = "internal"
)

// Retryable reports whether the worker may retry the failing stage
// within its retry budget instead of failing the job.
func (k ErrorKind) Retryable() bool {
	return k == ErrNetwork || k == ErrServiceUnavailable
}

// Stage names a pipeline stage for error attribution.
type Stage string

const (
	StageDetect    Stage = "detect"
	StageScrape    Stage = "scrape"
	StageNormalize Stage = "normalize"
	StageConvert   Stage = "convert"
)

// PipelineError wraps a stage failure with its kind so the job manager
// can map it to a terminal state without inspecting stage internals.
type PipelineError struct {
	Stage Stage
	Kind  ErrorKind
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

func NewPipelineError(stage Stage, kind ErrorKind, err error) *PipelineError {
	return &PipelineError{Stage: stage, Kind: kind, Err: err}
}

// KindOf extracts the error kind from err, defaulting to internal.
func KindOf(err error) ErrorKind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ErrInternal
}
