package backend

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/haasonsaas/scout/internal/agent"
	"github.com/haasonsaas/scout/internal/backoff"
)

// Strategy selects how the manager picks a backend for a request.
type Strategy string

const (
	// StrategyExplicit requires the request to name a backend.
	StrategyExplicit Strategy = "explicit"

	// StrategyAuto uses the requested backend if any, else the default.
	// No fallback traversal happens at selection time.
	StrategyAuto Strategy = "auto"

	// StrategyCapability scores every available backend and picks the best.
	StrategyCapability Strategy = "capability"
)

// Capability scoring weights.
const (
	scoreLanguageMatch  = 10
	scoreTestGeneration = 5
	scoreStreaming      = 3
	scoreConcurrencyCap = 5
)

// DefaultMaxConcurrent is the global in-flight session cap.
const DefaultMaxConcurrent = 3

// ManagerConfig controls selection, concurrency, and retry behavior.
type ManagerConfig struct {
	// Strategy is the selection strategy. Default auto.
	Strategy Strategy

	// DefaultBackend is used by auto selection when the request names none.
	DefaultBackend string

	// Fallbacks are tried in order after the selected backend finally fails.
	Fallbacks []string

	// MaxConcurrent caps in-flight sessions across all backends. Default 3.
	MaxConcurrent int

	// MaxRetries is the extra attempts after the first. Default 0.
	MaxRetries int

	// Retry is the backoff policy between attempts.
	Retry backoff.Policy

	// DefaultTimeout applies to requests that do not set their own. Zero
	// leaves the per-backend default in force.
	DefaultTimeout time.Duration

	// Defaults holds per-backend request defaults, keyed by backend name.
	Defaults map[string]RequestDefaults
}

// RequestDefaults fill request fields the caller left empty, per backend.
type RequestDefaults struct {
	Model     string
	ExtraArgs []string
	Env       map[string]string
}

// DefaultManagerConfig returns the standard manager configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Strategy:      StrategyAuto,
		MaxConcurrent: DefaultMaxConcurrent,
		Retry:         backoff.Default(),
	}
}

func (c *ManagerConfig) sanitize() error {
	switch c.Strategy {
	case "":
		c.Strategy = StrategyAuto
	case StrategyExplicit, StrategyAuto, StrategyCapability:
	default:
		return agent.NewValidation(fmt.Sprintf("unknown selection strategy %q", c.Strategy))
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = DefaultMaxConcurrent
	}
	if c.Retry == (backoff.Policy{}) {
		c.Retry = backoff.Default()
	}
	return nil
}

// Manager owns the backend registry and the execution policy around it:
// selection, the global concurrency cap, retry, fallback, and cancel/status
// routing by session.
type Manager struct {
	logger *slog.Logger
	tracer trace.Tracer

	mu       sync.Mutex
	cfg      ManagerConfig
	backends map[string]Backend
	order    []string
	inflight int
	routes   map[string]string // session_id -> backend name
}

// NewManager validates the config and creates an empty manager.
func NewManager(cfg ManagerConfig, logger *slog.Logger) (*Manager, error) {
	if err := cfg.sanitize(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		tracer:   noop.NewTracerProvider().Tracer("backend"),
		cfg:      cfg,
		backends: make(map[string]Backend),
		routes:   make(map[string]string),
	}, nil
}

// SetTracer wires a tracer; a span covers each backend execution attempt.
func (m *Manager) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		m.tracer = tracer
	}
}

// Register adds a backend. Re-registering a name replaces the instance.
func (m *Manager) Register(b Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.backends[b.Name()]; !exists {
		m.order = append(m.order, b.Name())
	}
	m.backends[b.Name()] = b

	for _, fb := range m.cfg.Fallbacks {
		if _, ok := m.backends[fb]; !ok {
			m.logger.Warn("fallback backend not registered yet", "backend", fb)
		}
	}
}

// Reconfigure swaps the selection and retry policy, used by the config
// watcher on file changes. Registered backends are kept.
func (m *Manager) Reconfigure(cfg ManagerConfig) error {
	if err := cfg.sanitize(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.logger.Info("backend manager reconfigured",
		"strategy", cfg.Strategy, "default", cfg.DefaultBackend, "fallbacks", cfg.Fallbacks)
	return nil
}

// Names returns the registered backend names in registration order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Implement runs one implementation request end to end: slot acquisition,
// selection, bounded retry, and ordered fallback.
func (m *Manager) Implement(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || req.Task == "" {
		return nil, agent.NewValidation("implement: task is required")
	}

	release, err := m.acquireSlot()
	if err != nil {
		return nil, err
	}
	defer release()

	selected, err := m.selectBackend(ctx, req)
	if err != nil {
		return nil, err
	}

	result, primaryErr := m.runWithRetry(ctx, selected, req)
	if primaryErr == nil {
		return result, nil
	}
	if agent.IsCancellation(primaryErr) || agent.CategoryOf(primaryErr) == agent.CategoryValidation {
		return nil, primaryErr
	}

	for _, name := range m.fallbacksAfter(selected.Name()) {
		fb, ok := m.get(name)
		if !ok || !fb.IsAvailable(ctx) {
			continue
		}
		m.logger.Info("trying fallback backend",
			"session_id", req.SessionID, "failed", selected.Name(), "fallback", name)
		result, err := m.runWithRetry(ctx, fb, req)
		if err == nil {
			result.Fallback = true
			return result, nil
		}
		if agent.IsCancellation(err) {
			return nil, err
		}
	}
	return nil, primaryErr
}

// Cancel forwards a cancel to the backend currently serving the session.
func (m *Manager) Cancel(sessionID string) error {
	b, ok := m.routed(sessionID)
	if !ok {
		return agent.NewError(agent.CategoryBackendNotFound,
			"no backend session for "+sessionID, nil)
	}
	return b.Cancel(sessionID)
}

// Status reports the state of the session's backend run.
func (m *Manager) Status(sessionID string) (SessionStatus, bool) {
	b, ok := m.routed(sessionID)
	if !ok {
		return "", false
	}
	return b.Status(sessionID)
}

// Cleanup shuts down every registered backend.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	backends := make([]Backend, 0, len(m.backends))
	for _, b := range m.backends {
		backends = append(backends, b)
	}
	m.mu.Unlock()

	for _, b := range backends {
		if err := b.Cleanup(); err != nil {
			m.logger.Warn("backend cleanup failed", "backend", b.Name(), "error", err)
		}
	}
}

func (m *Manager) acquireSlot() (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inflight >= m.cfg.MaxConcurrent {
		return nil, agent.NewError(agent.CategoryQuotaExceeded,
			fmt.Sprintf("backend concurrency cap reached (%d in flight)", m.inflight), nil).
			WithSuggestion("wait for a running implementation to finish")
	}
	m.inflight++
	released := false
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !released {
			m.inflight--
			released = true
		}
	}, nil
}

// selectBackend picks a backend per the configured strategy.
func (m *Manager) selectBackend(ctx context.Context, req *Request) (Backend, error) {
	m.mu.Lock()
	strategy := m.cfg.Strategy
	defaultName := m.cfg.DefaultBackend
	m.mu.Unlock()

	switch strategy {
	case StrategyExplicit:
		if req.Backend == "" {
			return nil, agent.NewValidation("explicit strategy requires a backend name")
		}
		return m.availableByName(ctx, req.Backend)

	case StrategyCapability:
		return m.selectByCapability(ctx, req)

	default: // auto
		name := req.Backend
		if name == "" {
			name = defaultName
		}
		if name == "" {
			return nil, agent.NewError(agent.CategoryBackendUnavailable,
				"no backend requested and no default configured", nil)
		}
		return m.availableByName(ctx, name)
	}
}

func (m *Manager) availableByName(ctx context.Context, name string) (Backend, error) {
	b, ok := m.get(name)
	if !ok {
		return nil, agent.NewError(agent.CategoryBackendNotFound,
			fmt.Sprintf("backend %q is not registered", name), nil)
	}
	if !b.IsAvailable(ctx) {
		return nil, agent.NewError(agent.CategoryBackendUnavailable,
			fmt.Sprintf("backend %q is unavailable", name), nil).
			WithSuggestion("check that its executable is installed")
	}
	return b, nil
}

// selectByCapability scores all available backends and picks the highest.
// Ties break on registration order for determinism.
func (m *Manager) selectByCapability(ctx context.Context, req *Request) (Backend, error) {
	m.mu.Lock()
	order := make([]string, len(m.order))
	copy(order, m.order)
	m.mu.Unlock()

	type scored struct {
		backend Backend
		score   int
		rank    int
	}
	var candidates []scored
	for rank, name := range order {
		b, ok := m.get(name)
		if !ok || !b.IsAvailable(ctx) {
			continue
		}
		caps := b.Capabilities()
		score := 0
		if req.Language != "" && caps.SupportsLanguage(req.Language) {
			score += scoreLanguageMatch
		}
		if req.WantTests && caps.TestGeneration {
			score += scoreTestGeneration
		}
		if req.WantStreaming && caps.Streaming {
			score += scoreStreaming
		}
		score += min(caps.MaxConcurrent, scoreConcurrencyCap)
		if score > 0 {
			candidates = append(candidates, scored{b, score, rank})
		}
	}
	if len(candidates) == 0 {
		return nil, agent.NewError(agent.CategoryBackendUnavailable,
			"no backend scored for the request", nil)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].rank < candidates[j].rank
	})
	return candidates[0].backend, nil
}

// runWithRetry executes a request on one backend under the retry policy,
// keeping the session route current for cancel/status calls.
func (m *Manager) runWithRetry(ctx context.Context, b Backend, req *Request) (*Result, error) {
	m.route(req.SessionID, b.Name())
	defer m.unroute(req.SessionID)

	m.mu.Lock()
	attempts := 1 + m.cfg.MaxRetries
	policy := m.cfg.Retry
	defaults := m.cfg.Defaults[b.Name()]
	defaultTimeout := m.cfg.DefaultTimeout
	m.mu.Unlock()

	run := applyDefaults(*req, defaults)
	if run.Timeout == 0 {
		run.Timeout = defaultTimeout
	}

	return backoff.Retry(ctx, policy, attempts, retryableBackendError,
		func(attempt int) (*Result, error) {
			if attempt > 1 {
				m.logger.Info("retrying backend execution",
					"backend", b.Name(), "session_id", req.SessionID, "attempt", attempt)
			}
			execCtx, span := m.tracer.Start(ctx, "backend."+b.Name(),
				trace.WithAttributes(attribute.Int("attempt", attempt)))
			defer span.End()
			return b.Execute(execCtx, &run)
		})
}

// applyDefaults overlays per-backend defaults onto a copy of the request.
// Request values win; extra args and env entries merge.
func applyDefaults(req Request, d RequestDefaults) Request {
	if req.Model == "" {
		req.Model = d.Model
	}
	if len(d.ExtraArgs) > 0 {
		req.ExtraArgs = append(append([]string(nil), d.ExtraArgs...), req.ExtraArgs...)
	}
	if len(d.Env) > 0 {
		merged := make(map[string]string, len(d.Env)+len(req.Env))
		for k, v := range d.Env {
			merged[k] = v
		}
		for k, v := range req.Env {
			merged[k] = v
		}
		req.Env = merged
	}
	return req
}

// retryableBackendError gates the retry loop: cancellations and validation
// failures never retry.
func retryableBackendError(err error) bool {
	if agent.IsCancellation(err) {
		return false
	}
	switch agent.CategoryOf(err) {
	case agent.CategoryValidation, agent.CategoryAuth, agent.CategoryQuotaExceeded:
		return false
	}
	return agent.IsRetryable(err)
}

func (m *Manager) fallbacksAfter(failed string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, name := range m.cfg.Fallbacks {
		if name != failed {
			out = append(out, name)
		}
	}
	return out
}

func (m *Manager) get(name string) (Backend, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.backends[name]
	return b, ok
}

func (m *Manager) routed(sessionID string) (Backend, bool) {
	m.mu.Lock()
	name, ok := m.routes[sessionID]
	var b Backend
	if ok {
		b, ok = m.backends[name]
	}
	m.mu.Unlock()
	return b, ok
}

func (m *Manager) route(sessionID, backendName string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.routes[sessionID] = backendName
}

func (m *Manager) unroute(sessionID string) {
	if sessionID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.routes, sessionID)
}
