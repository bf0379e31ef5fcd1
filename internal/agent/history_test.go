package agent

import (
	"testing"

	"github.com/haasonsaas/scout/pkg/models"
)

func TestConversationTrimTo(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < 10; i++ {
		conv.Append(models.NewTurn(models.RoleUser, "turn"))
	}

	if dropped := conv.TrimTo(4); dropped != 6 {
		t.Errorf("dropped = %d, want 6", dropped)
	}
	if conv.Len() != 4 {
		t.Errorf("len = %d, want 4", conv.Len())
	}
	// Display transcript keeps everything.
	if len(conv.Display()) != 10 {
		t.Errorf("display len = %d, want 10", len(conv.Display()))
	}
	if dropped := conv.TrimTo(4); dropped != 0 {
		t.Errorf("second trim dropped %d", dropped)
	}
}

func TestConversationRestore(t *testing.T) {
	conv := NewConversationWithID("s1")
	conv.Append(models.NewTurn(models.RoleUser, "stale"))

	conv.Restore([]models.Turn{
		models.NewTurn(models.RoleUser, "persisted"),
		models.NewTurn(models.RoleAssistant, "answer"),
	})

	if conv.Len() != 2 {
		t.Fatalf("len = %d", conv.Len())
	}
	if conv.Turns()[0].Content != "persisted" {
		t.Errorf("turns = %+v", conv.Turns())
	}
	if len(conv.Display()) != 2 {
		t.Errorf("display not rebuilt: %d entries", len(conv.Display()))
	}
	if conv.IsFresh() {
		t.Error("restored conversation reported fresh")
	}
}

func TestConversationClearRotatesID(t *testing.T) {
	conv := NewConversationWithID("s1")
	conv.Append(models.NewTurn(models.RoleUser, "hello"))

	next := conv.Clear()
	if next == "" || next == "s1" {
		t.Errorf("next id = %q", next)
	}
	if !conv.IsFresh() {
		t.Error("conversation not empty after clear")
	}

	// Clearing an already-empty conversation just rotates again.
	again := conv.Clear()
	if again == next || again == "" {
		t.Errorf("second clear id = %q", again)
	}
	if !conv.IsFresh() {
		t.Error("conversation not empty after second clear")
	}
}

func TestConversationAppendDisplayOnly(t *testing.T) {
	conv := NewConversation()
	conv.AppendDisplay(models.DisplayTurn{Role: models.RoleToolCall, ToolName: "search", Content: "search: foo"})

	if conv.Len() != 0 {
		t.Error("display entry leaked into model-facing turns")
	}
	if len(conv.Display()) != 1 {
		t.Errorf("display len = %d", len(conv.Display()))
	}
}
