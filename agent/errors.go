package agent

import (
	"errors"
	"fmt"
	"time"
)

// ErrorKind discriminates the AgentError variants from spec.md §7. Kind is
// a plain discriminant, not a string match target: callers branch on Kind,
// never on Error().
type ErrorKind string

const (
	// ErrorKindParse indicates agent output was not in the expected form.
	// Transient: retry-eligible at the retry decorator layer.
	ErrorKindParse ErrorKind = "parse_error"
	// ErrorKindProcess indicates the backend communication failed.
	// Transient when Transient is set on the Error.
	ErrorKindProcess ErrorKind = "process_error"
	// ErrorKindIO indicates a temporary I/O failure (attachment writes,
	// process pipes). Always transient.
	ErrorKindIO ErrorKind = "io_error"
	// ErrorKindExecution indicates the agent's own logic reported failure.
	// Never transient.
	ErrorKindExecution ErrorKind = "execution_error"
	// ErrorKindCapabilityMismatch indicates the orchestrator asked for an
	// unregistered agent. Never retried at the agent layer; surfaced
	// directly to remediation.
	ErrorKindCapabilityMismatch ErrorKind = "capability_mismatch"
)

// Error is the single algebraic sum type for all agent-layer failures,
// grounded on the teacher's toolerrors.ToolError chain-preserving shape.
// Callers discriminate on Kind, never on the error string.
type Error struct {
	// Kind discriminates the failure variant.
	Kind ErrorKind
	// Message is the human-readable summary.
	Message string
	// StatusCode is set for ErrorKindProcess when the backend returned an
	// HTTP-style status code (e.g. 429).
	StatusCode int
	// Transient marks whether the retry decorator may retry this error.
	// ErrorKindIO and ErrorKindParse are always transient; ErrorKindProcess
	// carries its own Transient flag; ErrorKindExecution and
	// ErrorKindCapabilityMismatch are never transient.
	Transient bool
	// RetryAfter is an optional server-supplied hint for how long to wait
	// before retrying (three-priority rule, spec.md §4.2 step 1).
	RetryAfter time.Duration
	// Cause links to the underlying error for errors.Is/As chains.
	Cause error
}

// New builds an Error of the given kind with a message.
func New(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message, Transient: kind == ErrorKindParse || kind == ErrorKindIO}
}

// Errorf builds an Error of the given kind with a formatted message.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return New(kind, fmt.Sprintf(format, args...))
}

// Wrap builds an Error of the given kind wrapping an underlying cause.
func Wrap(kind ErrorKind, cause error, message string) *Error {
	e := New(kind, message)
	e.Cause = cause
	return e
}

// Process builds an ErrorKindProcess error with explicit transience and
// optional retry-after/status-code metadata.
func Process(statusCode int, message string, transient bool, retryAfter time.Duration) *Error {
	return &Error{
		Kind:       ErrorKindProcess,
		Message:    message,
		StatusCode: statusCode,
		Transient:  transient,
		RetryAfter: retryAfter,
	}
}

// CapabilityMismatch builds an ErrorKindCapabilityMismatch error for an
// unregistered agent name.
func CapabilityMismatch(name Ident) *Error {
	return &Error{
		Kind:    ErrorKindCapabilityMismatch,
		Message: fmt.Sprintf("agent %q is not registered", name),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying cause, supporting errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTransient reports whether the retry decorator is allowed to retry this
// error (spec.md §4.2: ParseError, ProcessError{transient=true}, IoError).
func (e *Error) IsTransient() bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ErrorKindParse, ErrorKindIO:
		return true
	case ErrorKindProcess:
		return e.Transient
	default:
		return false
	}
}

// AsError extracts an *Error from err via errors.As, returning ok=false
// when err is not (or does not wrap) an *Error.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
