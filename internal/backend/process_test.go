package backend

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/haasonsaas/scout/internal/agent"
)

// echoBackend builds a process backend over /bin/echo so the full spawn
// pipeline runs against a real child process.
func echoBackend(t *testing.T, output []string, allowed map[string]bool) *ProcessBackend {
	t.Helper()
	if _, err := os.Stat("/bin/echo"); err != nil {
		t.Skip("no /bin/echo on this host")
	}
	return NewProcessBackend(ProcessConfig{
		Name:         "echo",
		Command:      "echo",
		Caps:         Capabilities{MaxConcurrent: 2, EditsFiles: true},
		AllowedFlags: allowed,
		BuildArgs: func(req *Request, taskFile, model string) []string {
			return output
		},
	}, nil)
}

func TestProcessBackendExecute(t *testing.T) {
	b := echoBackend(t, []string{"modified:", "main.go"}, nil)

	result, err := b.Execute(context.Background(), &Request{SessionID: "s1", Task: "edit main"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Error("result not marked successful")
	}
	if len(result.Changes) != 1 || result.Changes[0].Path != "main.go" {
		t.Errorf("Changes = %+v, want [main.go modified]", result.Changes)
	}
	if result.Changes[0].Kind != "modified" {
		t.Errorf("Kind = %v, want modified", result.Changes[0].Kind)
	}
}

func TestProcessBackendDropsUnsafeExtraArgs(t *testing.T) {
	b := echoBackend(t, []string{"ok"}, map[string]bool{"--verbose": true})

	result, err := b.Execute(context.Background(), &Request{
		SessionID: "s1",
		Task:      "edit",
		ExtraArgs: []string{"--verbose", `; rm -rf /`, "--not-allowed"},
	})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if strings.Contains(result.Output, "rm -rf") {
		t.Errorf("unsafe argument reached the child: %q", result.Output)
	}
	if !strings.Contains(result.Output, "--verbose") {
		t.Errorf("whitelisted argument was dropped: %q", result.Output)
	}
}

func TestProcessBackendAuthPattern(t *testing.T) {
	b := echoBackend(t, []string{"error:", "invalid", "api", "key"}, nil)

	_, err := b.Execute(context.Background(), &Request{SessionID: "s1", Task: "edit"})
	if agent.CategoryOf(err) != agent.CategoryAuth {
		t.Errorf("error category = %v, want authentication_error", agent.CategoryOf(err))
	}
}

func TestProcessBackendTaskFileDeleted(t *testing.T) {
	b := echoBackend(t, []string{"done"}, nil)

	sessionID := "tmpfile-check"
	if _, err := b.Execute(context.Background(), &Request{SessionID: sessionID, Task: "edit"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	entries, err := os.ReadDir(os.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "scout-task-"+sessionID) {
			t.Errorf("task file %s not deleted", e.Name())
		}
	}
}

func TestProcessBackendEmptyTask(t *testing.T) {
	b := echoBackend(t, []string{"x"}, nil)
	_, err := b.Execute(context.Background(), &Request{SessionID: "s", Task: "  "})
	if agent.CategoryOf(err) != agent.CategoryValidation {
		t.Errorf("error category = %v, want validation_error", agent.CategoryOf(err))
	}
}

func TestProcessBackendRejectsUnsafeWorkDir(t *testing.T) {
	b := echoBackend(t, []string{"x"}, nil)
	_, err := b.Execute(context.Background(), &Request{
		SessionID: "s", Task: "edit", WorkDir: "/tmp/$(whoami)",
	})
	if agent.CategoryOf(err) != agent.CategoryValidation {
		t.Errorf("error category = %v, want validation_error", agent.CategoryOf(err))
	}
}

func TestWriteTaskFile(t *testing.T) {
	path, err := writeTaskFile("abc-123", "implement the thing")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(path)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "implement the thing" {
		t.Errorf("task file content = %q", data)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, "scout-task-abc-123-") {
		t.Errorf("task file name %q missing session id", base)
	}
}

func TestClampTimeout(t *testing.T) {
	tests := []struct {
		requested time.Duration
		want      time.Duration
	}{
		{0, DefaultExecTimeout},
		{time.Second, MinExecTimeout},
		{30 * time.Minute, 30 * time.Minute},
		{2 * time.Hour, MaxExecTimeout},
	}
	for _, tt := range tests {
		if got := clampTimeout(tt.requested, 0); got != tt.want {
			t.Errorf("clampTimeout(%v) = %v, want %v", tt.requested, got, tt.want)
		}
	}
}

func TestCapBufferOverflow(t *testing.T) {
	fired := 0
	buf := newCapBuffer(10, func() { fired++ })

	if _, err := buf.Write([]byte("12345")); err != nil {
		t.Fatal(err)
	}
	if buf.overflowed() {
		t.Fatal("overflowed before cap")
	}
	if _, err := buf.Write([]byte("6789012345")); err != nil {
		t.Fatal(err)
	}
	if !buf.overflowed() {
		t.Fatal("cap exceeded but not flagged")
	}
	if fired != 1 {
		t.Errorf("overflow hook fired %d times, want 1", fired)
	}
	if got := buf.String(); len(got) != 10 {
		t.Errorf("buffer retained %d bytes, want 10", len(got))
	}
	// Writes after overflow are swallowed.
	if _, err := buf.Write([]byte("more")); err != nil {
		t.Fatal(err)
	}
	if fired != 1 {
		t.Errorf("overflow hook re-fired")
	}
}

func TestParseChanges(t *testing.T) {
	output := `Applied edit to internal/server/router.go
Created: internal/server/sse.go
deleted: old/legacy.go
 M go.mod
A  cmd/scout/main.go
Created: internal/server/sse.go
`
	changes := ParseChanges(output)
	want := map[string]string{
		"internal/server/router.go": "modified",
		"internal/server/sse.go":    "created",
		"old/legacy.go":             "deleted",
		"go.mod":                    "modified",
		"cmd/scout/main.go":         "created",
	}
	if len(changes) != len(want) {
		t.Fatalf("got %d changes, want %d: %+v", len(changes), len(want), changes)
	}
	for _, c := range changes {
		if want[c.Path] != string(c.Kind) {
			t.Errorf("%s: kind = %s, want %s", c.Path, c.Kind, want[c.Path])
		}
	}
}

func TestParseDiffStats(t *testing.T) {
	stats, ok := ParseDiffStats("3 files changed, 42 insertions(+), 7 deletions(-)")
	if !ok {
		t.Fatal("summary line not detected")
	}
	if stats.FilesChanged != 3 || stats.Insertions != 42 || stats.Deletions != 7 {
		t.Errorf("stats = %+v", stats)
	}

	stats, ok = ParseDiffStats("1 file changed, 5 insertions(+)")
	if !ok || stats.FilesChanged != 1 || stats.Insertions != 5 || stats.Deletions != 0 {
		t.Errorf("stats = %+v ok=%v", stats, ok)
	}

	if _, ok := ParseDiffStats("nothing to see"); ok {
		t.Error("false positive on plain text")
	}
}

func TestMatchesAuthError(t *testing.T) {
	if !MatchesAuthError("Error: Invalid API key provided") {
		t.Error("auth pattern not detected")
	}
	if MatchesAuthError("all good") {
		t.Error("false positive")
	}
}
