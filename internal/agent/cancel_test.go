package agent

import (
	"testing"
)

func TestCancelHubLifecycle(t *testing.T) {
	hub := NewCancelHub()

	if hub.IsCancelled("s1") {
		t.Error("unknown session reported cancelled")
	}

	hub.Register("s1")
	if hub.IsCancelled("s1") {
		t.Error("fresh session reported cancelled")
	}

	if !hub.Cancel("s1") {
		t.Error("Cancel returned false for registered session")
	}
	if !hub.IsCancelled("s1") {
		t.Error("session not cancelled after Cancel")
	}

	// Re-registering clears the stale flag for the next request.
	hub.Register("s1")
	if hub.IsCancelled("s1") {
		t.Error("Register did not reset cancelled flag")
	}

	hub.Clear("s1")
	if hub.Cancel("s1") {
		t.Error("Cancel returned true for cleared session")
	}
}

func TestCancelHubAbortHook(t *testing.T) {
	hub := NewCancelHub()
	hub.Register("s1")

	aborted := 0
	hub.SetAbort("s1", func() { aborted++ })

	hub.Cancel("s1")
	if aborted != 1 {
		t.Fatalf("abort hook called %d times, want 1", aborted)
	}
}

func TestCancelHubIdempotentCancel(t *testing.T) {
	hub := NewCancelHub()
	hub.Register("s1")

	aborted := 0
	hub.SetAbort("s1", func() { aborted++ })

	first := hub.Cancel("s1")
	second := hub.Cancel("s1")
	if first != second {
		t.Errorf("two cancels returned %v then %v, want identical results", first, second)
	}
	if !hub.IsCancelled("s1") {
		t.Error("session not cancelled after double cancel")
	}
}

func TestCancelUnknownSession(t *testing.T) {
	hub := NewCancelHub()
	if hub.Cancel("ghost") {
		t.Error("Cancel of unknown session returned true")
	}
}
