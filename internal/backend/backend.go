// Package backend manages the implementation backends: external coding
// tools that edit files on behalf of the implement tool. A Manager selects,
// retries, and falls back across registered backends; the process backend
// runs a hardened child-process pipeline.
package backend

import (
	"context"
	"time"

	"github.com/haasonsaas/scout/pkg/models"
)

// SessionStatus tracks the lifecycle of one backend session. Transitions are
// driven exclusively by the owning backend; the manager only reads status.
type SessionStatus string

const (
	StatusPending   SessionStatus = "pending"
	StatusRunning   SessionStatus = "running"
	StatusCompleted SessionStatus = "completed"
	StatusFailed    SessionStatus = "failed"
	StatusCancelled SessionStatus = "cancelled"
)

// Capabilities describes what a backend can do.
type Capabilities struct {
	// Languages lists supported source languages, lowercase.
	Languages []string

	// Streaming indicates the backend forwards incremental progress.
	Streaming bool

	// EditsFiles indicates the backend writes to the working tree directly.
	EditsFiles bool

	// TestGeneration indicates the backend can produce tests on request.
	TestGeneration bool

	// MaxConcurrent is the backend's own concurrent-session ceiling.
	MaxConcurrent int
}

// SupportsLanguage reports whether the backend handles a language. An empty
// language matches everything.
func (c Capabilities) SupportsLanguage(lang string) bool {
	if lang == "" {
		return true
	}
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Request describes one implementation task handed to a backend.
type Request struct {
	// SessionID ties the run to an agent session for cancel/status routing.
	SessionID string

	// Task is the instruction text. Required.
	Task string

	// Backend names an explicit backend; empty defers to the manager's
	// selection strategy.
	Backend string

	// Language hints capability scoring, lowercase ("go", "python").
	Language string

	// WorkDir is the project directory the backend edits. Must be absolute.
	WorkDir string

	// Model overrides the backend's configured model.
	Model string

	// ExtraArgs are caller-supplied child arguments, filtered through the
	// backend's whitelist before spawning.
	ExtraArgs []string

	// Env carries additional environment variables for the child.
	Env map[string]string

	// Timeout bounds the run; 0 uses the backend default.
	Timeout time.Duration

	// AutoCommit asks the backend to commit its edits.
	AutoCommit bool

	// WantTests and WantStreaming weight capability-based selection.
	WantTests     bool
	WantStreaming bool

	// Progress receives output chunks, throttled by the backend. Optional.
	Progress func(chunk string)
}

// Result is the outcome of one implementation run.
type Result struct {
	Success   bool                `json:"success"`
	SessionID string              `json:"session_id"`
	Backend   string              `json:"backend"`
	Output    string              `json:"output"`
	Changes   []models.FileChange `json:"changes,omitempty"`
	Stats     models.DiffStats    `json:"stats"`
	Duration  time.Duration       `json:"duration"`

	// Fallback is true when a fallback backend produced this result after
	// the selected backend failed.
	Fallback bool `json:"fallback,omitempty"`

	Metadata map[string]string `json:"metadata,omitempty"`
}

// Backend is one implementation engine. Implementations are initialized
// lazily and must be safe for concurrent Execute calls up to their own
// concurrency ceiling.
type Backend interface {
	// Name returns the unique registry key.
	Name() string

	// Version reports the detected tool version, empty before Initialize.
	Version() string

	// Initialize prepares the backend (locates executables, probes versions).
	// Idempotent.
	Initialize(ctx context.Context) error

	// IsAvailable reports whether the backend can accept work right now.
	IsAvailable(ctx context.Context) bool

	// Capabilities describes the backend.
	Capabilities() Capabilities

	// RequiredDependencies lists external tools the backend needs.
	RequiredDependencies() []string

	// Execute runs one implementation request.
	Execute(ctx context.Context, req *Request) (*Result, error)

	// Cancel aborts the named session's run, if one is in flight.
	Cancel(sessionID string) error

	// Status reports the named session's state.
	Status(sessionID string) (SessionStatus, bool)

	// Cleanup releases resources at process exit.
	Cleanup() error
}
