package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsOnly(t *testing.T) {
	cfg, warnings, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Errorf("warnings = %v", warnings)
	}
	if cfg.Agent.MaxIterations != 30 || cfg.Agent.MaxHistory != 100 {
		t.Errorf("agent defaults = %+v", cfg.Agent)
	}
	if cfg.Backends.Default != "aider" || cfg.Backends.Strategy != "auto" {
		t.Errorf("backend defaults = %+v", cfg.Backends)
	}
	if cfg.Backends.Timeout() != 20*time.Minute {
		t.Errorf("Timeout() = %v", cfg.Backends.Timeout())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scout.yaml", `
agent:
  max_iterations: 10
  allow_edits: true
backends:
  default: claude
  fallbacks: [aider]
`)
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agent.MaxIterations != 10 || !cfg.Agent.AllowEdits {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Backends.Default != "claude" {
		t.Errorf("default backend = %q", cfg.Backends.Default)
	}
	// Untouched sections keep their defaults.
	if cfg.Agent.MaxHistory != 100 {
		t.Errorf("MaxHistory = %d, want default 100", cfg.Agent.MaxHistory)
	}
}

func TestLoadJSON5(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "scout.json5", `{
  // comments are allowed
  provider: { name: "openai", model: "gpt-4o" },
}`)
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider.Name != "openai" || cfg.Provider.Model != "gpt-4o" {
		t.Errorf("provider = %+v", cfg.Provider)
	}
}

func TestLoadInclude(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
logging:
  level: debug
`)
	path := writeFile(t, dir, "scout.yaml", `
$include: base.yaml
server:
  addr: ":9000"
`)
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("included level = %q", cfg.Logging.Level)
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.yaml", "$include: b.yaml\n")
	path := writeFile(t, dir, "b.yaml", "$include: a.yaml\n")
	if _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "cycle") {
		t.Errorf("err = %v, want include cycle", err)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("SCOUT_TEST_ADDR", ":7777")
	dir := t.TempDir()
	path := writeFile(t, dir, "scout.yaml", `
server:
  addr: "${SCOUT_TEST_ADDR}"
`)
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Addr != ":7777" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvProvider, "google")
	t.Setenv(EnvMaxIterations, "7")
	t.Setenv(EnvFallbacks, "claude, aider")
	t.Setenv(EnvAllowEdits, "true")

	cfg, _, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider.Name != "google" {
		t.Errorf("provider = %q", cfg.Provider.Name)
	}
	if cfg.Agent.MaxIterations != 7 {
		t.Errorf("max iterations = %d", cfg.Agent.MaxIterations)
	}
	if len(cfg.Backends.Fallbacks) != 2 || cfg.Backends.Fallbacks[0] != "claude" {
		t.Errorf("fallbacks = %v", cfg.Backends.Fallbacks)
	}
	if !cfg.Agent.AllowEdits {
		t.Error("allow edits not applied")
	}
}

func TestValidateRejectsUnknownStrategy(t *testing.T) {
	cfg := Default()
	cfg.Backends.Strategy = "weighted"
	if _, err := cfg.Validate(); err == nil {
		t.Error("unknown strategy accepted")
	}
}

func TestValidateWarnsOnUndefinedFallback(t *testing.T) {
	cfg := Default()
	cfg.Backends.Fallbacks = []string{"claude", "mystery"}
	warnings, err := cfg.Validate()
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 1 || !strings.Contains(warnings[0], "mystery") {
		t.Errorf("warnings = %v", warnings)
	}
}
