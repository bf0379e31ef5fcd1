package backend

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	safeexec "github.com/haasonsaas/scout/internal/exec"
)

// versionProbeTimeout bounds the --version check per candidate path.
const versionProbeTimeout = 5 * time.Second

// LocateExecutable resolves a backend command to a runnable path: the search
// path first, then (on Windows hosts) the same command through WSL, then a
// fixed list of well-known install locations. The first candidate that
// answers a --version probe wins. Returns the resolved path and the reported
// version string.
func LocateExecutable(ctx context.Context, command string, wellKnown []string) (path, version string, err error) {
	if err := safeexec.ValidateExecutable(command); err != nil {
		return "", "", err
	}

	if found, lookErr := exec.LookPath(command); lookErr == nil {
		if v, probeErr := probeVersion(ctx, found, nil); probeErr == nil {
			return found, v, nil
		}
	}

	if runtime.GOOS == "windows" {
		if v, probeErr := probeVersion(ctx, "wsl", []string{command}); probeErr == nil {
			return "wsl", v, nil
		}
	}

	for _, candidate := range wellKnown {
		if v, probeErr := probeVersion(ctx, candidate, nil); probeErr == nil {
			return candidate, v, nil
		}
	}
	return "", "", &exec.Error{Name: command, Err: exec.ErrNotFound}
}

// probeVersion runs `candidate [prefix...] --version` with a short timeout
// and returns the first output line.
func probeVersion(ctx context.Context, candidate string, prefix []string) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, versionProbeTimeout)
	defer cancel()

	args := append(append([]string{}, prefix...), "--version")
	out, err := exec.CommandContext(probeCtx, candidate, args...).CombinedOutput()
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n")
	return strings.TrimSpace(line), nil
}
