package agent

import (
	"sync"
)

// CancelHub is the process-wide cancellation registry. It maps a session id
// to a cancelled flag plus an optional abort hook that tears down whatever
// the session is currently waiting on (the in-flight LLM stream, a backend
// child process). Cancellation is cooperative and idempotent: the loop and
// tool wrappers poll the flag at their suspension points.
type CancelHub struct {
	mu       sync.Mutex
	sessions map[string]*cancelEntry
}

type cancelEntry struct {
	cancelled bool
	abort     func()
}

// NewCancelHub creates an empty hub. One hub is shared per process; its
// lifetime matches the process.
func NewCancelHub() *CancelHub {
	return &CancelHub{sessions: make(map[string]*cancelEntry)}
}

// Register inserts the session if absent and resets any stale cancelled
// flag left over from a previous request.
func (h *CancelHub) Register(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry := h.sessions[sessionID]
	if entry == nil {
		h.sessions[sessionID] = &cancelEntry{}
		return
	}
	entry.cancelled = false
}

// SetAbort installs the abort hook invoked when the session is cancelled.
// Passing nil removes the hook.
func (h *CancelHub) SetAbort(sessionID string, abort func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry := h.sessions[sessionID]
	if entry == nil {
		entry = &cancelEntry{}
		h.sessions[sessionID] = entry
	}
	entry.abort = abort
}

// IsCancelled reads the session's cancelled flag. Unknown sessions are not
// cancelled.
func (h *CancelHub) IsCancelled(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	entry := h.sessions[sessionID]
	return entry != nil && entry.cancelled
}

// Cancel sets the session's cancelled flag and invokes its abort hook, if
// any. Returns whether an entry existed. Calling Cancel twice behaves
// identically to calling it once.
func (h *CancelHub) Cancel(sessionID string) bool {
	h.mu.Lock()
	entry := h.sessions[sessionID]
	var abort func()
	if entry != nil {
		entry.cancelled = true
		abort = entry.abort
	}
	h.mu.Unlock()

	if entry == nil {
		return false
	}
	if abort != nil {
		abort()
	}
	return true
}

// Clear removes the session from the hub.
func (h *CancelHub) Clear(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
}
