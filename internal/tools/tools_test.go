package tools

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/scout/internal/backend"
	"github.com/haasonsaas/scout/pkg/models"
)

// projectFixture lays out a small tree with a .gitignore.
func projectFixture(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		".gitignore":     "vendor/\n*.log\n",
		"main.go":        "package main\n\nfunc main() {\n\trun()\n}\n",
		"run.go":         "package main\n\nfunc run() {}\n",
		"vendor/dep.go":  "package dep\n",
		"build.log":      "noise\n",
		"docs/notes.txt": "hello\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestExtractTool(t *testing.T) {
	root := projectFixture(t)
	tool := NewExtractTool(Config{Root: root})

	out, err := tool.Execute(context.Background(), map[string]any{
		"path": "main.go", "start_line": 3, "end_line": 4,
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(out, "3\tfunc main() {") || !strings.Contains(out, "4\t\trun()") {
		t.Errorf("unexpected extract output:\n%s", out)
	}
	if strings.Contains(out, "package main") {
		t.Errorf("extract leaked lines outside the range:\n%s", out)
	}
}

func TestExtractToolRangeValidation(t *testing.T) {
	root := projectFixture(t)
	tool := NewExtractTool(Config{Root: root})

	if _, err := tool.Execute(context.Background(), map[string]any{
		"path": "main.go", "start_line": 999,
	}); err == nil {
		t.Error("expected error for start past EOF")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{
		"path": "main.go", "start_line": 4, "end_line": 2,
	}); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := tool.Execute(context.Background(), map[string]any{
		"path": "missing.go",
	}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestListFilesToolHonorsGitignore(t *testing.T) {
	root := projectFixture(t)
	tool := NewListFilesTool(Config{Root: root})

	out, err := tool.Execute(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("listFiles: %v", err)
	}
	if strings.Contains(out, "vendor/dep.go") || strings.Contains(out, "build.log") {
		t.Errorf("ignored entries leaked:\n%s", out)
	}
	if !strings.Contains(out, "main.go") || !strings.Contains(out, "docs/notes.txt") {
		t.Errorf("expected entries missing:\n%s", out)
	}
}

func TestSearchFilesTool(t *testing.T) {
	root := projectFixture(t)
	tool := NewSearchFilesTool(Config{Root: root})

	out, err := tool.Execute(context.Background(), map[string]any{"pattern": "**/*.go"})
	if err != nil {
		t.Fatalf("searchFiles: %v", err)
	}
	if !strings.Contains(out, "main.go") || !strings.Contains(out, "run.go") {
		t.Errorf("go files missing:\n%s", out)
	}
	if strings.Contains(out, "vendor") {
		t.Errorf("gitignored vendor leaked:\n%s", out)
	}

	out, err = tool.Execute(context.Background(), map[string]any{"pattern": "**/*.rs"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "no files match" {
		t.Errorf("out = %q, want no-match message", out)
	}
}

func TestSearchToolAgainstRipgrep(t *testing.T) {
	if _, err := exec.LookPath("rg"); err != nil {
		t.Skip("ripgrep not installed")
	}
	root := projectFixture(t)
	tool := NewSearchTool(Config{Root: root})

	out, err := tool.Execute(context.Background(), map[string]any{"query": "func run"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "run.go") {
		t.Errorf("match missing:\n%s", out)
	}

	out, err = tool.Execute(context.Background(), map[string]any{"query": "no_such_symbol_anywhere"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "no matches" {
		t.Errorf("out = %q, want no-match message", out)
	}
}

func TestResolveSearchPathEscapes(t *testing.T) {
	root := projectFixture(t)

	if _, err := resolveSearchPath(root, "../outside"); err == nil {
		t.Error("path escape not rejected")
	}
	if _, err := resolveSearchPath(root, "docs; rm -rf /"); err == nil {
		t.Error("metacharacters not rejected")
	}
	if _, err := resolveSearchPath(root, "docs"); err != nil {
		t.Errorf("legitimate subpath rejected: %v", err)
	}
}

func TestFormatImplementResult(t *testing.T) {
	out := formatImplementResult(&backend.Result{
		Success:  true,
		Backend:  "aider",
		Duration: 90 * time.Second,
		Fallback: true,
		Changes: []models.FileChange{
			{Path: "main.go", Kind: models.ChangeModified},
			{Path: "main_test.go", Kind: models.ChangeCreated},
		},
		Stats: models.DiffStats{FilesChanged: 2, Insertions: 30, Deletions: 4},
	})
	for _, want := range []string{
		"via aider", "fallback", "modified main.go", "created main_test.go",
		"2 files changed, 30 insertions(+), 4 deletions(-)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("formatted result missing %q:\n%s", want, out)
		}
	}
}
