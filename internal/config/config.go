// Package config resolves the process configuration from bundled defaults,
// an on-disk file (YAML or JSON5, with $include), and environment
// overrides, in that precedence order. A watcher re-reads the file on
// change and notifies subscribers.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables consumed by the resolver. Provider credential
// variables are read by the providers package, not here.
const (
	EnvProvider       = "SCOUT_PROVIDER"
	EnvModel          = "SCOUT_MODEL"
	EnvAllowEdits     = "SCOUT_ALLOW_EDITS"
	EnvMaxIterations  = "SCOUT_MAX_ITERATIONS"
	EnvDefaultBackend = "SCOUT_DEFAULT_BACKEND"
	EnvFallbacks      = "SCOUT_FALLBACK_BACKENDS"
	EnvStrategy       = "SCOUT_BACKEND_STRATEGY"
	EnvBackendTimeout = "SCOUT_BACKEND_TIMEOUT"
)

// Config is the root configuration document.
type Config struct {
	Provider  ProviderConfig  `yaml:"provider"`
	Agent     AgentConfig     `yaml:"agent"`
	Backends  BackendsConfig  `yaml:"backends"`
	Server    ServerConfig    `yaml:"server"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProviderConfig selects the LLM provider and model.
type ProviderConfig struct {
	// Name is anthropic, openai, or google. Empty auto-detects from
	// credentials.
	Name string `yaml:"name"`

	// Model overrides the provider default.
	Model string `yaml:"model"`
}

// AgentConfig controls the conversation loop.
type AgentConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	MaxHistory    int    `yaml:"max_history"`
	Persona       string `yaml:"persona"`
	PromptFile    string `yaml:"prompt_file"`
	AllowEdits    bool   `yaml:"allow_edits"`
	Root          string `yaml:"root"`
}

// BackendsConfig controls the backend manager and the per-backend settings.
type BackendsConfig struct {
	Default        string                  `yaml:"default"`
	Fallbacks      []string                `yaml:"fallbacks"`
	Strategy       string                  `yaml:"strategy"`
	MaxConcurrent  int                     `yaml:"max_concurrent"`
	Retries        int                     `yaml:"retries"`
	TimeoutSeconds int                     `yaml:"timeout_seconds"`
	Settings       map[string]BackendEntry `yaml:"settings"`
}

// BackendEntry holds one backend's tool-specific settings.
type BackendEntry struct {
	Model     string            `yaml:"model"`
	ExtraArgs []string          `yaml:"extra_args"`
	Env       map[string]string `yaml:"env"`
}

// Timeout returns the configured backend timeout.
func (b BackendsConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// ServerConfig controls the HTTP/SSE surface.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SessionsConfig controls on-disk session persistence.
type SessionsConfig struct {
	Dir string `yaml:"dir"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is text or json.
	Format string `yaml:"format"`
}

// TelemetryConfig controls tracing exporters.
type TelemetryConfig struct {
	// Exporter is none, stdout, or otlp.
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC target when Exporter is otlp.
	Endpoint string `yaml:"endpoint"`
}

// Default returns the bundled defaults.
func Default() *Config {
	return &Config{
		Agent: AgentConfig{
			MaxIterations: 30,
			MaxHistory:    100,
			Persona:       "explorer",
			Root:          ".",
		},
		Backends: BackendsConfig{
			Default:        "aider",
			Fallbacks:      []string{"claude"},
			Strategy:       "auto",
			MaxConcurrent:  3,
			TimeoutSeconds: 1200,
		},
		Server:   ServerConfig{Addr: ":8422"},
		Sessions: SessionsConfig{Dir: defaultSessionsDir()},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		Telemetry: TelemetryConfig{
			Exporter: "none",
		},
	}
}

func defaultSessionsDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".scout/sessions"
	}
	return home + "/.scout/sessions"
}

// ApplyEnv overlays recognized environment variables onto the config.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvProvider); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv(EnvAllowEdits); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Agent.AllowEdits = b
		}
	}
	if v := os.Getenv(EnvMaxIterations); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Agent.MaxIterations = n
		}
	}
	if v := os.Getenv(EnvDefaultBackend); v != "" {
		c.Backends.Default = v
	}
	if v := os.Getenv(EnvFallbacks); v != "" {
		var fallbacks []string
		for _, name := range strings.Split(v, ",") {
			if name = strings.TrimSpace(name); name != "" {
				fallbacks = append(fallbacks, name)
			}
		}
		c.Backends.Fallbacks = fallbacks
	}
	if v := os.Getenv(EnvStrategy); v != "" {
		c.Backends.Strategy = v
	}
	if v := os.Getenv(EnvBackendTimeout); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Backends.TimeoutSeconds = n
		}
	}
}

// Validate rejects configurations the backend manager cannot honor and
// returns warnings for suspicious but tolerable entries.
func (c *Config) Validate() ([]string, error) {
	var warnings []string

	switch c.Backends.Strategy {
	case "", "explicit", "auto", "capability":
	default:
		return nil, fmt.Errorf("unknown backend strategy %q", c.Backends.Strategy)
	}

	known := map[string]bool{"aider": true, "claude": true}
	for name := range c.Backends.Settings {
		known[name] = true
	}
	for _, fb := range c.Backends.Fallbacks {
		if !known[fb] {
			warnings = append(warnings, fmt.Sprintf("fallback backend %q has no definition", fb))
		}
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Telemetry.Exporter {
	case "", "none", "stdout", "otlp":
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q", c.Telemetry.Exporter)
	}
	return warnings, nil
}
