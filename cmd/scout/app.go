package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/backend"
	"github.com/haasonsaas/scout/internal/backoff"
	"github.com/haasonsaas/scout/internal/config"
	"github.com/haasonsaas/scout/internal/observability"
	"github.com/haasonsaas/scout/internal/providers"
	"github.com/haasonsaas/scout/internal/sessions"
	"github.com/haasonsaas/scout/internal/tools"
	"github.com/haasonsaas/scout/internal/usage"
)

// app bundles the wired components behind both the chat and serve commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  trace.Tracer
	agent   *agent.Agent
	manager *backend.Manager
	store   *sessions.Store

	shutdownFns []func(context.Context) error
}

// buildApp resolves configuration and wires provider, agent, backends, and
// tools. overrides run after config resolution so flags win over file and
// environment.
func buildApp(ctx context.Context, overrides func(*config.Config)) (*app, error) {
	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if overrides != nil {
		overrides(cfg)
	}
	if traceExporter != "" {
		cfg.Telemetry.Exporter = traceExporter
	}

	logger := observability.NewLogger(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	for _, warning := range warnings {
		logger.Warn("config warning", "detail", warning)
	}

	tracer, shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.Exporter, cfg.Telemetry.Endpoint)
	if err != nil {
		return nil, err
	}

	provider, err := providers.New(cfg.Provider.Name, cfg.Provider.Model)
	if err != nil {
		return nil, err
	}

	store, err := sessions.NewStore(cfg.Sessions.Dir)
	if err != nil {
		return nil, err
	}

	manager, err := backend.NewManager(managerConfigFrom(cfg), logger)
	if err != nil {
		return nil, err
	}
	manager.Register(backend.NewAiderBackend(logger))
	manager.Register(backend.NewClaudeBackend(logger))
	manager.SetTracer(tracer)

	var promptOverride string
	if cfg.Agent.PromptFile != "" {
		data, err := os.ReadFile(cfg.Agent.PromptFile)
		if err != nil {
			return nil, fmt.Errorf("read prompt file: %w", err)
		}
		promptOverride = string(data)
	}

	ag := agent.New(agent.Config{
		Model:          cfg.Provider.Model,
		MaxIterations:  cfg.Agent.MaxIterations,
		MaxHistory:     cfg.Agent.MaxHistory,
		Persona:        cfg.Agent.Persona,
		PromptOverride: promptOverride,
		Root:           cfg.Agent.Root,
	}, provider,
		agent.WithLogger(logger),
		agent.WithStore(store),
		agent.WithCounter(usage.NewCounter(cfg.Provider.Model)),
		agent.WithTracer(tracer),
	)
	if err := tools.RegisterDefaults(ag, tools.Config{Root: cfg.Agent.Root, Logger: logger}, manager, cfg.Agent.AllowEdits); err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		tracer:  tracer,
		agent:   ag,
		manager: manager,
		store:   store,
	}
	a.shutdownFns = append(a.shutdownFns, shutdownTracing)
	return a, nil
}

// watchConfig re-resolves the file on change and pushes backend settings
// into the running manager. Agent settings need a restart.
func (a *app) watchConfig() (*config.Watcher, error) {
	if configPath == "" {
		return nil, nil
	}
	return config.Watch(configPath, func(cfg *config.Config) {
		if err := a.manager.Reconfigure(managerConfigFrom(cfg)); err != nil {
			a.logger.Warn("backend reconfigure rejected", "error", err)
		}
	}, a.logger)
}

func (a *app) shutdown(ctx context.Context) {
	a.manager.Cleanup()
	for _, fn := range a.shutdownFns {
		if err := fn(ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}

func managerConfigFrom(cfg *config.Config) backend.ManagerConfig {
	defaults := make(map[string]backend.RequestDefaults, len(cfg.Backends.Settings))
	for name, entry := range cfg.Backends.Settings {
		defaults[name] = backend.RequestDefaults{
			Model:     entry.Model,
			ExtraArgs: entry.ExtraArgs,
			Env:       entry.Env,
		}
	}
	return backend.ManagerConfig{
		Strategy:       backend.Strategy(cfg.Backends.Strategy),
		DefaultBackend: cfg.Backends.Default,
		Fallbacks:      cfg.Backends.Fallbacks,
		MaxConcurrent:  cfg.Backends.MaxConcurrent,
		MaxRetries:     cfg.Backends.Retries,
		Retry:          backoff.Default(),
		DefaultTimeout: cfg.Backends.Timeout(),
		Defaults:       defaults,
	}
}

