package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Reason categorizes a provider failure for the loop's propagation policy.
type Reason string

const (
	// ReasonAuth: credentials rejected (401/403). Critical.
	ReasonAuth Reason = "auth"

	// ReasonModelUnavailable: unknown model (404). Critical.
	ReasonModelUnavailable Reason = "model_unavailable"

	// ReasonRateLimit: throttled (429). Retryable.
	ReasonRateLimit Reason = "rate_limit"

	// ReasonServerError: provider-side failure (5xx). Retryable.
	ReasonServerError Reason = "server_error"

	// ReasonTimeout: the request or stream timed out. Retryable.
	ReasonTimeout Reason = "timeout"

	// ReasonCancelled: the caller aborted the stream.
	ReasonCancelled Reason = "cancelled"

	// ReasonUnknown: anything else.
	ReasonUnknown Reason = "unknown"
)

// IsRetryable reports whether the reason is worth retrying.
func (r Reason) IsRetryable() bool {
	switch r {
	case ReasonRateLimit, ReasonServerError, ReasonTimeout:
		return true
	default:
		return false
	}
}

// IsCritical reports whether the reason must abort the agent loop and
// propagate to the caller (credential or model problems the model cannot
// recover from).
func (r Reason) IsCritical() bool {
	switch r {
	case ReasonAuth, ReasonModelUnavailable:
		return true
	default:
		return false
	}
}

// Error is a categorized provider failure.
type Error struct {
	Reason   Reason
	Provider string
	Model    string
	Status   int
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s]", e.Reason))
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Classify wraps an SDK error into a categorized Error using the HTTP
// status when known and message heuristics otherwise.
func Classify(provider, model string, status int, err error) *Error {
	reason := ReasonUnknown

	switch {
	case errors.Is(err, context.Canceled):
		reason = ReasonCancelled
	case errors.Is(err, context.DeadlineExceeded):
		reason = ReasonTimeout
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		reason = ReasonAuth
	case status == http.StatusNotFound:
		reason = ReasonModelUnavailable
	case status == http.StatusTooManyRequests:
		reason = ReasonRateLimit
	case status >= 500:
		reason = ReasonServerError
	default:
		reason = classifyMessage(err)
	}

	return &Error{
		Reason:   reason,
		Provider: provider,
		Model:    model,
		Status:   status,
		Cause:    err,
	}
}

// classifyMessage falls back to error-text heuristics when no status code
// is available.
func classifyMessage(err error) Reason {
	if err == nil {
		return ReasonUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429") ||
		strings.Contains(msg, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return ReasonTimeout
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") ||
		strings.Contains(msg, "authentication") || strings.Contains(msg, "401") ||
		strings.Contains(msg, "403"):
		return ReasonAuth
	case strings.Contains(msg, "model not found") || strings.Contains(msg, "unknown model") ||
		strings.Contains(msg, "404"):
		return ReasonModelUnavailable
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "internal server") ||
		strings.Contains(msg, "502") || strings.Contains(msg, "503"):
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

// ReasonOf extracts the reason from an error chain.
func ReasonOf(err error) Reason {
	var provErr *Error
	if errors.As(err, &provErr) {
		return provErr.Reason
	}
	return ReasonUnknown
}
