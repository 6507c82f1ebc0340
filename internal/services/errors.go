package services

import (
	"context"
	"errors"
	"strings"
)

// Markers tag errors for classification. Match them with errors.Is.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrInternal      = errors.New("internal error")
)

// FailureKind classifies a job-level failure for persistence and reporting.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureInvalidInput FailureKind = "invalid_input"
	FailureExternalTool FailureKind = "external_tool"
	FailureCancelled    FailureKind = "cancelled"
	FailureInternal     FailureKind = "internal"
)

// Error is a marked failure raised by one stage of the pipeline.
type Error struct {
	Marker  error
	Stage   string
	Op      string
	Message string
	Err     error
}

// Wrap tags err (which may be nil) with marker and the stage and operation
// that failed. A nil marker becomes ErrInternal.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrInternal
	}
	return &Error{
		Marker:  marker,
		Stage:   strings.TrimSpace(stage),
		Op:      strings.TrimSpace(operation),
		Message: strings.TrimSpace(message),
		Err:     err,
	}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Marker.Error())
	b.WriteString(": ")
	b.WriteString(e.detail())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Marker}
	}
	return []error{e.Marker, e.Err}
}

func (e *Error) detail() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{e.Stage, e.Op, e.Message} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// StageOf returns "stage/op" of the outermost Error in err's chain, or "".
func StageOf(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	if e.Op == "" {
		return e.Stage
	}
	if e.Stage == "" {
		return e.Op
	}
	return e.Stage + "/" + e.Op
}

// Classify maps a job error to the failure kind recorded in the job store.
func Classify(err error) FailureKind {
	switch {
	case err == nil:
		return FailureNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return FailureCancelled
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return FailureInvalidInput
	case errors.Is(err, ErrExternalTool):
		return FailureExternalTool
	default:
		return FailureInternal
	}
}
