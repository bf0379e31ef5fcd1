package providers

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestClassifyByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   Reason
	}{
		{http.StatusUnauthorized, ReasonAuth},
		{http.StatusForbidden, ReasonAuth},
		{http.StatusNotFound, ReasonModelUnavailable},
		{http.StatusTooManyRequests, ReasonRateLimit},
		{http.StatusInternalServerError, ReasonServerError},
		{http.StatusBadGateway, ReasonServerError},
	}
	for _, tt := range tests {
		got := Classify("anthropic", "m", tt.status, errors.New("boom"))
		if got.Reason != tt.want {
			t.Errorf("status %d: Reason = %v, want %v", tt.status, got.Reason, tt.want)
		}
	}
}

func TestClassifyContextErrors(t *testing.T) {
	if got := Classify("openai", "m", 0, context.Canceled); got.Reason != ReasonCancelled {
		t.Errorf("Canceled: Reason = %v", got.Reason)
	}
	if got := Classify("openai", "m", 0, context.DeadlineExceeded); got.Reason != ReasonTimeout {
		t.Errorf("DeadlineExceeded: Reason = %v", got.Reason)
	}
}

func TestClassifyByMessage(t *testing.T) {
	tests := []struct {
		msg  string
		want Reason
	}{
		{"429 too many requests", ReasonRateLimit},
		{"request timeout exceeded", ReasonTimeout},
		{"invalid api key provided", ReasonAuth},
		{"model not found: gpt-99", ReasonModelUnavailable},
		{"upstream overloaded", ReasonServerError},
		{"something odd", ReasonUnknown},
	}
	for _, tt := range tests {
		got := Classify("google", "m", 0, errors.New(tt.msg))
		if got.Reason != tt.want {
			t.Errorf("%q: Reason = %v, want %v", tt.msg, got.Reason, tt.want)
		}
	}
}

func TestReasonPolicies(t *testing.T) {
	if !ReasonAuth.IsCritical() || !ReasonModelUnavailable.IsCritical() {
		t.Error("auth and model_unavailable must be critical")
	}
	if ReasonRateLimit.IsCritical() {
		t.Error("rate limit must not be critical")
	}
	if !ReasonRateLimit.IsRetryable() || !ReasonServerError.IsRetryable() || !ReasonTimeout.IsRetryable() {
		t.Error("rate limit, server error, timeout must be retryable")
	}
	if ReasonAuth.IsRetryable() || ReasonCancelled.IsRetryable() {
		t.Error("auth and cancelled must not be retryable")
	}
}
