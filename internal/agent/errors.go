package agent

import (
	"errors"
	"fmt"
	"strings"
)

// Common sentinel errors for agent operations.
var (
	// ErrMaxIterations indicates the loop exceeded its iteration limit.
	ErrMaxIterations = errors.New("max tool iterations reached")

	// ErrEmptyResponse indicates the LLM stream produced no tokens.
	ErrEmptyResponse = errors.New("model returned empty response")

	// ErrCancelled indicates the session was cancelled by the caller.
	ErrCancelled = errors.New("request cancelled")

	// ErrNoProvider indicates no LLM provider is configured.
	ErrNoProvider = errors.New("no provider configured")
)

// ErrorCategory classifies agent failures for propagation and retry policy.
type ErrorCategory string

const (
	// CategoryCancellation: the caller cancelled the session. Never retried,
	// never surfaced to the model.
	CategoryCancellation ErrorCategory = "cancellation"

	// CategoryValidation: caller-supplied parameters failed schema checks.
	CategoryValidation ErrorCategory = "validation_error"

	// CategoryParseFailure: the model produced unparsable or unknown-tool
	// markup. Recovered in-loop via a remediation turn, never raised.
	CategoryParseFailure ErrorCategory = "parameter_parse_failure"

	// CategoryToolExecution: a tool executor failed. Captured into the next
	// tool-result turn so the model may recover.
	CategoryToolExecution ErrorCategory = "tool_execution_error"

	// CategoryBackendUnavailable: no backend can serve an implement request.
	CategoryBackendUnavailable ErrorCategory = "backend_unavailable"

	// CategoryBackendNotFound: the named backend is not registered.
	CategoryBackendNotFound ErrorCategory = "backend_not_found"

	// CategoryTimeout: an LLM call, image probe, or backend child exceeded
	// its deadline.
	CategoryTimeout ErrorCategory = "timeout"

	// CategoryAPI: the LLM provider returned an error.
	CategoryAPI ErrorCategory = "api_error"

	// CategoryOutputTooLarge: a backend child exceeded its output cap.
	CategoryOutputTooLarge ErrorCategory = "output_too_large"

	// CategoryQuotaExceeded: the backend concurrency cap was reached.
	CategoryQuotaExceeded ErrorCategory = "quota_exceeded"

	// CategoryExecutionFailed: a backend child exited unsuccessfully.
	CategoryExecutionFailed ErrorCategory = "execution_failed"

	// CategoryAuth: a backend child or provider rejected credentials.
	CategoryAuth ErrorCategory = "authentication_error"

	// CategoryInternal: any other unexpected failure.
	CategoryInternal ErrorCategory = "internal_error"
)

// IsRetryable reports whether the category is worth retrying by default.
// Individual errors may override this via Error.Retryable.
func (c ErrorCategory) IsRetryable() bool {
	switch c {
	case CategoryTimeout, CategoryExecutionFailed:
		return true
	default:
		return false
	}
}

// Error is the structured error type shared by the agent loop, tool
// dispatcher, and backend manager. Categorization lives next to the
// constructors below, not at raise sites.
type Error struct {
	// Category classifies the failure for propagation and retry policy.
	Category ErrorCategory

	// Message is the human-readable description.
	Message string

	// Retryable indicates whether a retry may succeed.
	Retryable bool

	// Critical errors abort the loop and are re-raised to the caller
	// (credential rejection, unknown model).
	Critical bool

	// Suggestion is a short recovery hint shown to the user, when one exists.
	Suggestion string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Category))
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	if e.Suggestion != "" {
		parts = append(parts, "("+e.Suggestion+")")
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error with the category's default retryability.
func NewError(category ErrorCategory, message string, cause error) *Error {
	return &Error{
		Category:  category,
		Message:   message,
		Retryable: category.IsRetryable(),
		Cause:     cause,
	}
}

// NewCancellation creates the cancellation error for a session.
func NewCancellation(sessionID string) *Error {
	return &Error{
		Category: CategoryCancellation,
		Message:  "request cancelled for session " + sessionID,
		Cause:    ErrCancelled,
	}
}

// NewValidation creates a validation error. Never retryable.
func NewValidation(message string) *Error {
	return &Error{Category: CategoryValidation, Message: message}
}

// NewCriticalAPI creates a critical provider error (credentials rejected or
// unknown model). The loop re-raises these instead of converting them into
// an error response.
func NewCriticalAPI(message string, cause error) *Error {
	return &Error{
		Category:   CategoryAPI,
		Message:    message,
		Critical:   true,
		Suggestion: "check your API key and model name",
		Cause:      cause,
	}
}

// NewTimeout creates a timeout error with a recovery hint.
func NewTimeout(message string, cause error) *Error {
	return &Error{
		Category:   CategoryTimeout,
		Message:    message,
		Retryable:  true,
		Suggestion: "increase the timeout",
		Cause:      cause,
	}
}

// WithSuggestion attaches a recovery hint.
func (e *Error) WithSuggestion(s string) *Error {
	e.Suggestion = s
	return e
}

// WithRetryable overrides the category default.
func (e *Error) WithRetryable(r bool) *Error {
	e.Retryable = r
	return e
}

// IsCancellation reports whether err is or wraps a cancellation.
func IsCancellation(err error) bool {
	if errors.Is(err, ErrCancelled) {
		return true
	}
	var agentErr *Error
	return errors.As(err, &agentErr) && agentErr.Category == CategoryCancellation
}

// IsCritical reports whether err must abort the loop and reach the caller.
func IsCritical(err error) bool {
	var agentErr *Error
	return errors.As(err, &agentErr) && agentErr.Critical
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Retryable
	}
	return false
}

// CategoryOf extracts the category, or CategoryInternal for foreign errors.
func CategoryOf(err error) ErrorCategory {
	var agentErr *Error
	if errors.As(err, &agentErr) {
		return agentErr.Category
	}
	return CategoryInternal
}
