package sessions

import (
	"context"
	"testing"

	"github.com/haasonsaas/scout/pkg/models"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	turns := []models.Turn{
		models.NewTurn(models.RoleUser, "hello"),
		models.NewTurn(models.RoleAssistant, "hi"),
	}
	if err := store.Save(ctx, "s1", turns); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "s1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 || got[1].Content != "hi" {
		t.Errorf("turns = %+v", got)
	}

	// Mutating the loaded slice must not affect the stored copy.
	got[0].Content = "mutated"
	again, _ := store.Load(ctx, "s1")
	if again[0].Content != "hello" {
		t.Error("stored turns aliased the loaded slice")
	}
}

func TestMemoryStoreUnknownSession(t *testing.T) {
	store := NewMemoryStore()
	turns, err := store.Load(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns = %v, want empty", turns)
	}
}

func TestMemoryStoreDeleteAndList(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, id := range []string{"b", "a"} {
		if err := store.Save(ctx, id, []models.Turn{models.NewTurn(models.RoleUser, "x")}); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("ids = %v, want sorted [a b]", ids)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete errored: %v", err)
	}
	ids, _ = store.List(ctx)
	if len(ids) != 1 || ids[0] != "b" {
		t.Errorf("ids = %v", ids)
	}
}
