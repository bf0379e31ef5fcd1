package backend

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

// writeFakeTool drops an executable shell script answering --version.
func writeFakeTool(t *testing.T, dir, name, version string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fakes need a POSIX host")
	}
	path := filepath.Join(dir, name)
	script := "#!/bin/sh\necho " + version + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLocateExecutablePrefersSearchPath(t *testing.T) {
	pathDir := t.TempDir()
	writeFakeTool(t, pathDir, "scoutfake", "scoutfake-from-path")
	wellKnown := writeFakeTool(t, t.TempDir(), "scoutfake", "scoutfake-from-well-known")
	t.Setenv("PATH", pathDir)

	path, version, err := LocateExecutable(context.Background(), "scoutfake", []string{wellKnown})
	if err != nil {
		t.Fatalf("LocateExecutable: %v", err)
	}
	if path != filepath.Join(pathDir, "scoutfake") {
		t.Errorf("path = %q, want the search-path hit", path)
	}
	if version != "scoutfake-from-path" {
		t.Errorf("version = %q", version)
	}
}

func TestLocateExecutableFallsBackToWellKnown(t *testing.T) {
	wellKnown := writeFakeTool(t, t.TempDir(), "scoutfake", "scoutfake-2.0")
	t.Setenv("PATH", t.TempDir())

	path, version, err := LocateExecutable(context.Background(), "scoutfake", []string{wellKnown})
	if err != nil {
		t.Fatalf("LocateExecutable: %v", err)
	}
	if path != wellKnown {
		t.Errorf("path = %q, want %q", path, wellKnown)
	}
	if version != "scoutfake-2.0" {
		t.Errorf("version = %q", version)
	}
}

func TestLocateExecutableNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, _, err := LocateExecutable(context.Background(), "scoutfake", nil); err == nil {
		t.Error("expected a not-found error")
	}
}
