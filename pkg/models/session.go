package models

import (
	"time"
)

// Session identifies one conversation thread. A session owns a conversation,
// a cancellation flag, a token-usage summary, and at most one in-flight
// backend session.
type Session struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenUsage is a point-in-time snapshot of estimated token consumption for
// a session, recomputed after each chat request.
type TokenUsage struct {
	ContextWindow int `json:"context_window"`
	InputTokens   int `json:"input_tokens"`
	OutputTokens  int `json:"output_tokens"`
	TotalTokens   int `json:"total_tokens"`
}

// ChatResult is the outcome of one chat request.
type ChatResult struct {
	Response   string     `json:"response"`
	SessionID  string     `json:"session_id"`
	TokenUsage TokenUsage `json:"token_usage"`
}
