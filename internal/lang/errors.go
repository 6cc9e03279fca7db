package lang

import (
	"errors"
	"fmt"
)

// ParseError represents an error detected while parsing a script.
//
// Parse errors include:
//   - Invalid transition: a statement keyword illegal in the current phase
//   - Invalid statement: a line that starts with no known keyword
//   - Unknown step: a well-phased statement matching no registered pattern
//   - Scenario load failure: the named scenario plugin does not exist
//
// All parse errors are fatal; nothing executes after one.
type ParseError struct {
	// Code identifies the error category.
	Code ParseErrorCode

	// Message is a human-readable description.
	Message string

	// Line is the 1-based source line number, 0 when not line-specific.
	Line int

	// Source is the offending source line, when available.
	Source string
}

// ParseErrorCode categorizes parse errors.
type ParseErrorCode string

const (
	// ErrCodeInvalidTransition indicates a keyword illegal in the current phase.
	ErrCodeInvalidTransition ParseErrorCode = "INVALID_TRANSITION"

	// ErrCodeInvalidStatement indicates a line starting with no known keyword.
	ErrCodeInvalidStatement ParseErrorCode = "INVALID_STATEMENT"

	// ErrCodeUnknownStep indicates a statement matching no registered pattern.
	ErrCodeUnknownStep ParseErrorCode = "UNKNOWN_STEP"

	// ErrCodeScenarioLoad indicates the named scenario plugin failed to load.
	ErrCodeScenarioLoad ParseErrorCode = "SCENARIO_LOAD_FAILURE"

	// ErrCodeScriptTooShort indicates the source is below the minimum length.
	ErrCodeScriptTooShort ParseErrorCode = "SCRIPT_TOO_SHORT"
)

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s (line %d)", e.Code, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsParseError reports whether err is (or wraps) a ParseError with the
// given code.
func IsParseError(err error, code ParseErrorCode) bool {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code == code
	}
	return false
}

// newInvalidTransition creates the phase-machine failure. The message
// format is part of the external contract: hosts grep stderr for
// "Invalid transition from <phase>".
func newInvalidTransition(from Phase, attempted Keyword) *ParseError {
	return &ParseError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("Invalid transition from %s to %s", from, attempted),
	}
}

// NewInvalidStatement creates the unknown-keyword failure.
func NewInvalidStatement(line int, source string) *ParseError {
	return &ParseError{
		Code:    ErrCodeInvalidStatement,
		Message: fmt.Sprintf("Invalid statement: %s", source),
		Line:    line,
		Source:  source,
	}
}

// NewUnknownStep creates the no-pattern-matched failure.
func NewUnknownStep(line int, phase Phase, source string) *ParseError {
	return &ParseError{
		Code:    ErrCodeUnknownStep,
		Message: fmt.Sprintf("Unknown %s step: %s", phase, source),
		Line:    line,
		Source:  source,
	}
}

// NewScenarioLoadFailure wraps a scenario loading error at a source line.
func NewScenarioLoadFailure(line int, name string, err error) *ParseError {
	return &ParseError{
		Code:    ErrCodeScenarioLoad,
		Message: fmt.Sprintf("Cannot load scenario %q: %v", name, err),
		Line:    line,
	}
}

// NewScriptTooShort rejects sources below the minimum parseable length.
func NewScriptTooShort(n int) *ParseError {
	return &ParseError{
		Code:    ErrCodeScriptTooShort,
		Message: fmt.Sprintf("Script too short to parse (%d bytes)", n),
	}
}

// WithLine returns a copy of the error annotated with a source position.
func (e *ParseError) WithLine(line int, source string) *ParseError {
	out := *e
	out.Line = line
	out.Source = source
	return &out
}
