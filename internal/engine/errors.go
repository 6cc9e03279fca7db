package engine

import (
	"errors"
	"fmt"
)

// RunError represents an error detected during script execution.
//
// Run errors include:
//   - Not found: pick/pickin could not resolve a name in IN or IN.KEYS
//   - Schema not found / schema failed: validate against the registry
//   - Identity error: Iam/ackmy misuse of ACK.whoami
//   - Type error: a built-in applied to a value of the wrong shape
//   - Codec error: DATA/KEYS do not decode to the required JSON shape
//
// Every run error is fatal to the run: the executor aborts at the step
// boundary, renders the traceback, and returns the error.
type RunError struct {
	// Code identifies the error category.
	Code RunErrorCode

	// Message is a human-readable description.
	Message string

	// Step is the AST id of the failing step, 0 before execution starts.
	Step int

	// Source is the failing source line, when available.
	Source string
}

// RunErrorCode categorizes run errors.
type RunErrorCode string

const (
	// ErrCodeNotFound indicates a name absent from IN and IN.KEYS.
	ErrCodeNotFound RunErrorCode = "NOT_FOUND"

	// ErrCodeSchemaNotFound indicates a validator missing from the registry.
	ErrCodeSchemaNotFound RunErrorCode = "SCHEMA_NOT_FOUND"

	// ErrCodeSchemaFailed indicates a validator rejected the value.
	ErrCodeSchemaFailed RunErrorCode = "SCHEMA_FAILED"

	// ErrCodeIdentity indicates ACK.whoami misuse.
	ErrCodeIdentity RunErrorCode = "IDENTITY_ERROR"

	// ErrCodeType indicates a built-in applied to the wrong value shape.
	ErrCodeType RunErrorCode = "TYPE_ERROR"

	// ErrCodeCodec indicates a failure at the JSON boundary.
	ErrCodeCodec RunErrorCode = "CODEC_ERROR"
)

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Step > 0 {
		return fmt.Sprintf("%s: %s (step %d: %s)", e.Code, e.Message, e.Step, e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsRunError reports whether err is (or wraps) a RunError with the code.
func IsRunError(err error, code RunErrorCode) bool {
	var re *RunError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// NewNotFound creates the pick/pickin resolution failure.
func NewNotFound(key string) *RunError {
	return &RunError{Code: ErrCodeNotFound, Message: fmt.Sprintf("cannot find %q in DATA or KEYS", key)}
}

// NewSchemaNotFound creates the missing-validator failure.
func NewSchemaNotFound(name string) *RunError {
	return &RunError{Code: ErrCodeSchemaNotFound, Message: fmt.Sprintf("no schema named %q", name)}
}

// NewSchemaFailed wraps a validator rejection.
func NewSchemaFailed(name string, err error) *RunError {
	return &RunError{Code: ErrCodeSchemaFailed, Message: fmt.Sprintf("schema %q rejected value: %v", name, err)}
}

// NewIdentityError creates an ACK.whoami misuse failure.
func NewIdentityError(msg string) *RunError {
	return &RunError{Code: ErrCodeIdentity, Message: msg}
}

// NewTypeError creates a wrong-shape failure.
func NewTypeError(format string, args ...any) *RunError {
	return &RunError{Code: ErrCodeType, Message: fmt.Sprintf(format, args...)}
}

// NewCodecError wraps a JSON boundary failure.
func NewCodecError(what string, err error) *RunError {
	return &RunError{Code: ErrCodeCodec, Message: fmt.Sprintf("%s: %v", what, err)}
}

// annotate annotates a run error with the failing step; other errors pass
// through unchanged.
func annotate(err error, step int, source string) error {
	var re *RunError
	if errors.As(err, &re) && re.Step == 0 {
		out := *re
		out.Step = step
		out.Source = source
		return &out
	}
	return err
}
