package errors

import (
	"fmt"
)

// Error is the structured error type for notedex.
// It provides rich context for error handling, logging, and user presentation.
type Error struct {
	// Code is the unique error code (e.g., "ERR_301_PROVIDER_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with Error.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an Error from an existing error.
// The error's message becomes the Error message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigError creates a configuration-related error (bad chunking or weight
// parameters). Config errors are the caller's fault and are never retried.
func ConfigError(message string, cause error) *Error {
	return New(ErrCodeConfigInvalid, message, cause)
}

// EmptyInputError is returned when blank text is passed to an embedding call.
func EmptyInputError(message string) *Error {
	return New(ErrCodeEmptyInput, message, nil)
}

// ProviderUnavailable indicates the embedding backend is unreachable.
// Transient: triggers fallback or is surfaced per-batch.
func ProviderUnavailable(message string, cause error) *Error {
	return New(ErrCodeProviderUnavailable, message, cause)
}

// StoreUnavailable indicates the vector store backend is unreachable.
func StoreUnavailable(message string, cause error) *Error {
	return New(ErrCodeStoreUnavailable, message, cause)
}

// AlreadyIndexing indicates an indexing run is already active for the root.
// The caller should retry later, not immediately.
func AlreadyIndexing(root string) *Error {
	return New(ErrCodeAlreadyIndexing,
		fmt.Sprintf("an indexing run is already active for %s", root), nil).
		WithSuggestion("wait for the current run to finish, then retry")
}

// FileTooLarge indicates a document exceeds the indexing size cap.
// Recorded as a skip counter, never aborts the run.
func FileTooLarge(path string, size, limit int64) *Error {
	return New(ErrCodeFileTooLarge,
		fmt.Sprintf("%s is %d bytes, limit is %d", path, size, limit), nil).
		WithDetail("path", path)
}

// FileUnreadable indicates a document could not be read.
func FileUnreadable(path string, cause error) *Error {
	return New(ErrCodeFileUnreadable, fmt.Sprintf("cannot read %s", path), cause).
		WithDetail("path", path)
}

// InvalidWeightError indicates hybrid search weights do not sum to 1.
// Rejected synchronously; weights are never silently normalized.
func InvalidWeightError(semantic, keyword float64) *Error {
	return New(ErrCodeInvalidWeight,
		fmt.Sprintf("semantic (%.2f) + keyword (%.2f) weights must sum to 1.0", semantic, keyword), nil).
		WithSuggestion("supply weights summing to 1.0 within 0.01")
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is an Error with the Retryable flag set.
func IsRetryable(err error) bool {
	if e, ok := err.(*Error); ok {
		return e.Retryable
	}
	return false
}

// CodeOf returns the error code, or empty string for foreign errors.
func CodeOf(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Code
	}
	return ""
}
