package models

import (
	"time"
)

// ToolEventStatus describes the lifecycle stage of a tool invocation.
type ToolEventStatus string

const (
	ToolEventStarted   ToolEventStatus = "started"
	ToolEventCompleted ToolEventStatus = "completed"
	ToolEventError     ToolEventStatus = "error"
)

// ToolEvent is a lifecycle record for one tool invocation, delivered to
// per-session subscribers in emission order. Every started event is followed
// by exactly one completed or error event on the same session, except when
// the session is cancelled mid-execution, in which case no terminal event is
// emitted for that invocation.
type ToolEvent struct {
	Timestamp     time.Time         `json:"timestamp"`
	SessionID     string            `json:"session_id"`
	Name          string            `json:"name"`
	Args          map[string]string `json:"args,omitempty"`
	Status        ToolEventStatus   `json:"status"`
	ResultPreview string            `json:"result_preview,omitempty"`
	Error         string            `json:"error,omitempty"`
}
