// Package apperrors defines the error vocabulary shared across the engine's
// stores, connectors, and compilers.
package apperrors

import "errors"

// Sentinel errors for simple equality checks via errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInputInvalid       = errors.New("input invalid")
	ErrConflict           = errors.New("conflict")
	ErrLLMUnavailable     = errors.New("llm unavailable")
	ErrLLMSchemaViolation = errors.New("llm schema violation")
	ErrStoreTransient     = errors.New("store transient failure")
	ErrDBConnect          = errors.New("database connect failure")
	ErrDBQuery            = errors.New("database query failure")
	ErrTimeout            = errors.New("operation timed out")
	ErrCancelled          = errors.New("operation cancelled")
	ErrInvariant          = errors.New("invariant violation")
)

// Kind classifies an error for uniform handling across components, mirroring
// the error kinds named by the error-handling design: InputInvalid, NotFound,
// LLMUnavailable/LLMSchemaViolation, StoreTransient, DBConnect/DBQuery,
// Timeout/Cancelled, InvariantViolation.
type Kind string

const (
	KindInputInvalid       Kind = "INPUT_INVALID"
	KindNotFound           Kind = "NOT_FOUND"
	KindLLMUnavailable     Kind = "LLM_UNAVAILABLE"
	KindLLMSchemaViolation Kind = "LLM_SCHEMA_VIOLATION"
	KindStoreTransient     Kind = "STORE_TRANSIENT"
	KindDBConnect          Kind = "DB_CONNECT"
	KindDBQuery            Kind = "DB_QUERY"
	KindTimeout            Kind = "TIMEOUT"
	KindCancelled          Kind = "CANCELLED"
	KindInvariant          Kind = "INVARIANT_VIOLATION"
)

// Error is a structured application error carrying a Kind and retryability,
// modeled on the teacher's llm.Error so every layer (store, connector,
// compiler) classifies failures the same way.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Cause.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable implements the retry package's RetryableError interface.
func (e *Error) IsRetryable() bool { return e.Retryable }

// New constructs a structured Error.
func New(kind Kind, message string, retryable bool, cause error) *Error {
	return &Error{Kind: kind, Message: message, Retryable: retryable, Cause: cause}
}

// NotFoundf builds a NOT_FOUND error for a named resource.
func NotFoundf(resource, name string) *Error {
	return New(KindNotFound, resource+" \""+name+"\" not found", false, ErrNotFound)
}

// Invalidf builds an INPUT_INVALID error.
func Invalidf(message string, cause error) *Error {
	return New(KindInputInvalid, message, false, cause)
}

// Invariantf builds an INVARIANT_VIOLATION error — a fatal bug, never retried.
func Invariantf(message string) *Error {
	return New(KindInvariant, message, false, ErrInvariant)
}

// KindOf extracts the Kind from an error, defaulting to empty if unstructured.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err (or a wrapped cause) carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
