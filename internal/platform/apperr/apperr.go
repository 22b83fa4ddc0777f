// Package apperr is the single error type used across the insight pipeline.
// Every fallible call returns (value, error) where a non-nil error is an
// *Error carrying one of the codes below.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

type Code string

const (
	// CodeConfiguration: missing or invalid credentials/settings. Retrying cannot help.
	CodeConfiguration Code = "configuration"
	// CodeUpstream: the model service failed, timed out, or returned nothing usable.
	CodeUpstream Code = "upstream"
	// CodeLowConfidence: the model answered but below the acceptance floor.
	CodeLowConfidence Code = "low_confidence"
	// CodeInvalidCoordinate: latitude/longitude outside the valid range.
	CodeInvalidCoordinate Code = "invalid_coordinate"
	CodeNotFound          Code = "not_found"
	// CodeValidation marks a single candidate that failed field checks.
	CodeValidation Code = "validation"
	// CodeDuplicate marks an insight that collides with one already written in the pass.
	CodeDuplicate Code = "duplicate"
	CodeConflict  Code = "conflict"
	CodeInternal  Code = "internal"
)

type Error struct {
	Code    Code
	Op      string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Message != "" {
		b.WriteString(e.Message)
	} else if e.Cause != nil {
		b.WriteString(e.Cause.Error())
	}
	b.WriteString(" (")
	b.WriteString(string(e.Code))
	b.WriteString(")")
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, op, message string) error {
	return &Error{Code: code, Op: strings.TrimSpace(op), Message: strings.TrimSpace(message)}
}

func Newf(code Code, op, format string, args ...interface{}) error {
	return New(code, op, fmt.Sprintf(format, args...))
}

// Wrap tags err with code. An err that already carries a code keeps it.
func Wrap(code Code, op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Code: code, Op: strings.TrimSpace(op), Cause: err}
}

func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

func CodeOf(err error) Code {
	var ae *Error
	if !errors.As(err, &ae) {
		return ""
	}
	return ae.Code
}

// Retriable reports whether the job queue should schedule another attempt.
// Untyped errors are assumed transient.
func Retriable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeConfiguration, CodeNotFound, CodeValidation:
		return false
	default:
		return true
	}
}
