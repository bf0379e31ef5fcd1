package sessions

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/haasonsaas/scout/pkg/models"
)

func TestStoreRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	turns := []models.Turn{
		models.NewTurn(models.RoleUser, "<task>\nfind the parser\n</task>"),
		models.NewTurn(models.RoleAssistant, "looking"),
	}
	if err := store.Save(ctx, "sess-1", turns); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d turns, want 2", len(got))
	}
	if got[0].Role != models.RoleUser || got[1].Content != "looking" {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestStoreLoadMissingSession(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	turns, err := store.Load(context.Background(), "never-saved")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("turns = %v, want empty", turns)
	}
}

func TestStoreRejectsUnsafeSessionID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"../escape", "a/b", "", "x y"} {
		if err := store.Save(context.Background(), id, nil); err == nil {
			t.Errorf("id %q accepted", id)
		}
	}
}

func TestStoreDeleteAndList(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		if err := store.Save(ctx, id, []models.Turn{models.NewTurn(models.RoleUser, "hi")}); err != nil {
			t.Fatal(err)
		}
	}
	ids, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 {
		t.Fatalf("ids = %v", ids)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := store.Delete(ctx, "a"); err != nil {
		t.Errorf("second Delete errored: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "a.json")); !os.IsNotExist(err) {
		t.Error("session file still present")
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "s", []models.Turn{models.NewTurn(models.RoleUser, "first")}); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, "s", []models.Turn{
		models.NewTurn(models.RoleUser, "first"),
		models.NewTurn(models.RoleAssistant, "second"),
	}); err != nil {
		t.Fatal(err)
	}
	turns, err := store.Load(ctx, "s")
	if err != nil {
		t.Fatal(err)
	}
	if len(turns) != 2 || turns[1].Content != "second" {
		t.Errorf("turns = %+v", turns)
	}
}
