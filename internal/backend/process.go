package backend

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/haasonsaas/scout/internal/agent"
	safeexec "github.com/haasonsaas/scout/internal/exec"
)

const (
	// DefaultExecTimeout is the per-request timeout when none is supplied.
	DefaultExecTimeout = 20 * time.Minute

	// MinExecTimeout and MaxExecTimeout bound caller-supplied timeouts.
	MinExecTimeout = time.Minute
	MaxExecTimeout = time.Hour

	// killGracePeriod is how long a child gets between graceful termination
	// and a forceful kill.
	killGracePeriod = 5 * time.Second

	// MaxOutputBytes caps accumulated child output.
	MaxOutputBytes = 10 << 20

	// progressInterval throttles progress callbacks.
	progressInterval = time.Second

	// outputTruncateLimit bounds the output carried on failure errors.
	outputTruncateLimit = 2000
)

// ProcessConfig is the per-tool profile a process backend runs under. The
// aider and claude profiles in this package fill one in; the spawn, stream,
// and parse pipeline is shared.
type ProcessConfig struct {
	// Name is the backend registry key.
	Name string

	// Command is the executable name located at initialization.
	Command string

	// WellKnownPaths are absolute install locations tried after the search
	// path.
	WellKnownPaths []string

	// Caps describes the tool.
	Caps Capabilities

	// Dependencies lists external requirements reported to callers.
	Dependencies []string

	// DefaultModel is used when the request names none. Empty defers to
	// DetectModel.
	DefaultModel string

	// DetectModel picks a model from ambient credentials when neither the
	// request nor the config names one. Optional.
	DetectModel func() string

	// AllowedFlags is the whitelist applied to caller-supplied extra args.
	AllowedFlags map[string]bool

	// BuildArgs renders the child argument vector. The task file path must
	// be passed as its own argument, never interpolated.
	BuildArgs func(req *Request, taskFile, model string) []string

	// DefaultTimeout overrides DefaultExecTimeout for this tool. Optional.
	DefaultTimeout time.Duration
}

// processSession is one in-flight child run.
type processSession struct {
	mu       sync.Mutex
	status   SessionStatus
	cancel   context.CancelFunc
	taskFile string
}

func (s *processSession) setStatus(status SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Cancelled is terminal; a late exit must not overwrite it.
	if s.status == StatusCancelled {
		return
	}
	s.status = status
}

func (s *processSession) getStatus() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ProcessBackend runs an external coding tool as a child process per
// request: task via temp file, whitelisted argument vector, validated
// environment, bounded output, timeout with graceful-then-forceful kill.
type ProcessBackend struct {
	cfg    ProcessConfig
	logger *slog.Logger

	initOnce sync.Once
	initErr  error
	execPath string
	version  string

	mu       sync.Mutex
	sessions map[string]*processSession
}

// NewProcessBackend builds a backend over a tool profile.
func NewProcessBackend(cfg ProcessConfig, logger *slog.Logger) *ProcessBackend {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Caps.MaxConcurrent <= 0 {
		cfg.Caps.MaxConcurrent = 1
	}
	return &ProcessBackend{
		cfg:      cfg,
		logger:   logger.With("backend", cfg.Name),
		sessions: make(map[string]*processSession),
	}
}

func (b *ProcessBackend) Name() string { return b.cfg.Name }

func (b *ProcessBackend) Version() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.version
}

func (b *ProcessBackend) Capabilities() Capabilities { return b.cfg.Caps }

func (b *ProcessBackend) RequiredDependencies() []string { return b.cfg.Dependencies }

// Initialize locates the executable and records its version. Idempotent.
func (b *ProcessBackend) Initialize(ctx context.Context) error {
	b.initOnce.Do(func() {
		path, version, err := LocateExecutable(ctx, b.cfg.Command, b.cfg.WellKnownPaths)
		if err != nil {
			b.initErr = agent.NewError(agent.CategoryBackendUnavailable,
				fmt.Sprintf("%s executable not found", b.cfg.Command), err).
				WithSuggestion("install " + b.cfg.Command + " and ensure it is on PATH")
			return
		}
		b.mu.Lock()
		b.execPath = path
		b.version = version
		b.mu.Unlock()
		b.logger.Info("backend initialized", "path", path, "version", version)
	})
	return b.initErr
}

// IsAvailable reports whether the executable resolved.
func (b *ProcessBackend) IsAvailable(ctx context.Context) bool {
	return b.Initialize(ctx) == nil
}

// Status reports the named session's state.
func (b *ProcessBackend) Status(sessionID string) (SessionStatus, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[sessionID]
	if !ok {
		return "", false
	}
	return s.getStatus(), true
}

// Cancel gracefully terminates the named session's child.
func (b *ProcessBackend) Cancel(sessionID string) error {
	b.mu.Lock()
	s, ok := b.sessions[sessionID]
	b.mu.Unlock()
	if !ok {
		return agent.NewError(agent.CategoryBackendNotFound,
			"no running session "+sessionID, nil)
	}
	s.mu.Lock()
	s.status = StatusCancelled
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Cleanup cancels every in-flight session.
func (b *ProcessBackend) Cleanup() error {
	b.mu.Lock()
	ids := make([]string, 0, len(b.sessions))
	for id := range b.sessions {
		ids = append(ids, id)
	}
	b.mu.Unlock()
	for _, id := range ids {
		_ = b.Cancel(id)
	}
	return nil
}

// Execute runs one implementation request through the spawn pipeline.
func (b *ProcessBackend) Execute(ctx context.Context, req *Request) (*Result, error) {
	if strings.TrimSpace(req.Task) == "" {
		return nil, agent.NewValidation("task is required")
	}
	if err := b.Initialize(ctx); err != nil {
		return nil, err
	}
	session, err := b.admitSession(req.SessionID)
	if err != nil {
		return nil, err
	}
	defer b.releaseSession(req.SessionID)

	workDir, err := resolveWorkDir(req.WorkDir)
	if err != nil {
		return nil, agent.NewValidation("working directory: " + err.Error())
	}

	taskFile, err := writeTaskFile(req.SessionID, req.Task)
	if err != nil {
		return nil, agent.NewError(agent.CategoryInternal, "writing task file", err)
	}
	session.mu.Lock()
	session.taskFile = taskFile
	session.mu.Unlock()
	defer func() {
		if rmErr := os.Remove(taskFile); rmErr != nil && !os.IsNotExist(rmErr) {
			b.logger.Warn("removing task file failed", "path", taskFile, "error", rmErr)
		}
	}()

	args, err := b.buildArgs(req, taskFile)
	if err != nil {
		return nil, err
	}
	env, err := buildEnv(req.Env)
	if err != nil {
		return nil, agent.NewValidation(err.Error())
	}

	timeout := clampTimeout(req.Timeout, b.cfg.DefaultTimeout)
	runCtx, cancelRun := context.WithTimeout(ctx, timeout)
	defer cancelRun()

	session.mu.Lock()
	session.cancel = cancelRun
	session.status = StatusRunning
	session.mu.Unlock()

	start := time.Now()
	output, exitCode, runErr := b.spawn(runCtx, args, env, workDir, req.Progress)
	duration := time.Since(start)

	if session.getStatus() == StatusCancelled {
		return nil, agent.NewCancellation(req.SessionID)
	}
	if runErr != nil {
		session.setStatus(StatusFailed)
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, agent.NewTimeout(
				fmt.Sprintf("%s timed out after %s", b.cfg.Name, timeout), runErr)
		}
		return nil, runErr
	}

	result, err := b.interpretExit(req, output, exitCode, duration)
	if err != nil {
		session.setStatus(StatusFailed)
		return nil, err
	}
	session.setStatus(StatusCompleted)
	return result, nil
}

// admitSession enforces the backend's own concurrent-session ceiling.
func (b *ProcessBackend) admitSession(sessionID string) (*processSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sessions) >= b.cfg.Caps.MaxConcurrent {
		return nil, agent.NewError(agent.CategoryQuotaExceeded,
			fmt.Sprintf("%s session ceiling reached (%d)", b.cfg.Name, len(b.sessions)), nil)
	}
	s := &processSession{status: StatusPending}
	b.sessions[sessionID] = s
	return s, nil
}

func (b *ProcessBackend) releaseSession(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.sessions, sessionID)
}

// buildArgs renders the profile arguments and appends the whitelisted subset
// of caller extras. Every token is re-validated before spawning.
func (b *ProcessBackend) buildArgs(req *Request, taskFile string) ([]string, error) {
	model := req.Model
	if model == "" {
		model = b.cfg.DefaultModel
	}
	if model == "" && b.cfg.DetectModel != nil {
		model = b.cfg.DetectModel()
	}

	args := b.cfg.BuildArgs(req, taskFile, model)

	kept, dropped := safeexec.FilterArgs(req.ExtraArgs, b.cfg.AllowedFlags)
	if len(dropped) > 0 {
		b.logger.Warn("dropped unsafe extra arguments", "dropped", dropped)
	}
	args = append(args, kept...)

	for i, arg := range args {
		flag, value, hasValue := strings.Cut(arg, "=")
		switch {
		case arg == taskFile || filepath.IsAbs(arg):
			// Positional paths: metachar-free is enough.
			if safeexec.ShellMetachars.MatchString(arg) {
				return nil, agent.NewValidation(
					fmt.Sprintf("argument %d contains shell metacharacters", i))
			}
		case hasValue:
			if err := safeexec.ValidateFlagValue(value); err != nil {
				return nil, agent.NewValidation(
					fmt.Sprintf("argument %s: %v", flag, err))
			}
		default:
			if err := safeexec.SanitizeArgument(arg); err != nil {
				return nil, agent.NewValidation(
					fmt.Sprintf("argument %d: %v", i, err))
			}
		}
	}
	return args, nil
}

// spawn runs the child with bounded output and graceful-then-forceful
// termination. Returns combined output and the exit code.
func (b *ProcessBackend) spawn(ctx context.Context, args, env []string, workDir string, progress func(string)) (string, int, error) {
	b.mu.Lock()
	execPath := b.execPath
	b.mu.Unlock()

	overflowCtx, overflowCancel := context.WithCancel(ctx)
	defer overflowCancel()

	buf := newCapBuffer(MaxOutputBytes, overflowCancel)
	sink := newProgressWriter(buf, progress, progressInterval)

	cmd := exec.CommandContext(overflowCtx, execPath, args...) // #nosec G204 -- argv validated above, no shell
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = sink
	cmd.Stderr = sink
	cmd.Cancel = func() error {
		// Graceful first; WaitDelay escalates to SIGKILL.
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = killGracePeriod

	b.logger.Debug("spawning backend child", "path", execPath, "args", len(args), "dir", workDir)
	err := cmd.Run()
	sink.flush()

	if buf.overflowed() {
		return buf.String(), -1, agent.NewError(agent.CategoryOutputTooLarge,
			fmt.Sprintf("child output exceeded %d bytes", MaxOutputBytes), nil)
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return buf.String(), exitErr.ExitCode(), nil
		}
		return buf.String(), -1, agent.NewError(agent.CategoryExecutionFailed,
			"spawning "+b.cfg.Name+" failed", err)
	}
	return buf.String(), 0, nil
}

// interpretExit applies the exit-code and output-pattern policy.
func (b *ProcessBackend) interpretExit(req *Request, output string, exitCode int, duration time.Duration) (*Result, error) {
	if exitCode != 0 {
		return nil, agent.NewError(agent.CategoryExecutionFailed,
			fmt.Sprintf("%s exited with code %d: %s", b.cfg.Name, exitCode, truncate(output, outputTruncateLimit)), nil)
	}
	if MatchesAuthError(output) {
		return nil, &agent.Error{
			Category:   agent.CategoryAuth,
			Message:    b.cfg.Name + " reported an authentication failure",
			Suggestion: "check the backend tool's credentials",
		}
	}

	changes := ParseChanges(output)
	if len(changes) == 0 && MatchesKnownError(output) {
		return nil, agent.NewError(agent.CategoryExecutionFailed,
			b.cfg.Name+" reported errors and changed no files: "+truncate(output, outputTruncateLimit), nil)
	}
	stats, _ := ParseDiffStats(output)

	return &Result{
		Success:   true,
		SessionID: req.SessionID,
		Backend:   b.cfg.Name,
		Output:    output,
		Changes:   changes,
		Stats:     stats,
		Duration:  duration,
		Metadata:  map[string]string{"version": b.Version()},
	}, nil
}

// writeTaskFile stores the task text in the OS temp dir so it never crosses
// a shell boundary. Named with the session id plus a timestamp.
func writeTaskFile(sessionID, task string) (string, error) {
	name := fmt.Sprintf("scout-task-%s-%d-*.md", sanitizeFileComponent(sessionID), time.Now().UnixNano())
	f, err := os.CreateTemp("", name)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(task); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func sanitizeFileComponent(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, s)
}

// resolveWorkDir validates the requested directory or falls back to the
// current one.
func resolveWorkDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	if err := safeexec.ValidateWorkDir(dir); err != nil {
		return "", err
	}
	return dir, nil
}

// buildEnv validates request env overrides into KEY=value form.
func buildEnv(env map[string]string) ([]string, error) {
	return safeexec.ValidateEnv(env)
}

func clampTimeout(requested, profileDefault time.Duration) time.Duration {
	timeout := requested
	if timeout == 0 {
		timeout = profileDefault
	}
	if timeout == 0 {
		timeout = DefaultExecTimeout
	}
	if timeout < MinExecTimeout {
		return MinExecTimeout
	}
	if timeout > MaxExecTimeout {
		return MaxExecTimeout
	}
	return timeout
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

// capBuffer accumulates child output up to a hard cap. Hitting the cap
// invokes the overflow hook once, which terminates the child.
type capBuffer struct {
	mu         sync.Mutex
	buf        []byte
	max        int
	overflow   bool
	onOverflow func()
}

func newCapBuffer(max int, onOverflow func()) *capBuffer {
	return &capBuffer{max: max, onOverflow: onOverflow}
}

func (b *capBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	hook := func() {}
	if !b.overflow {
		remaining := b.max - len(b.buf)
		if len(p) > remaining {
			b.buf = append(b.buf, p[:remaining]...)
			b.overflow = true
			if b.onOverflow != nil {
				hook = b.onOverflow
			}
		} else {
			b.buf = append(b.buf, p...)
		}
	}
	b.mu.Unlock()
	hook()
	return len(p), nil
}

func (b *capBuffer) overflowed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}

func (b *capBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

// progressWriter tees writes into the buffer and forwards accumulated
// chunks to the progress callback at most once per interval.
type progressWriter struct {
	mu       sync.Mutex
	dst      *capBuffer
	progress func(string)
	interval time.Duration
	pending  strings.Builder
	lastSent time.Time
}

func newProgressWriter(dst *capBuffer, progress func(string), interval time.Duration) *progressWriter {
	return &progressWriter{dst: dst, progress: progress, interval: interval}
}

func (w *progressWriter) Write(p []byte) (int, error) {
	if _, err := w.dst.Write(p); err != nil {
		return 0, err
	}
	if w.progress == nil {
		return len(p), nil
	}
	w.mu.Lock()
	w.pending.Write(p)
	var chunk string
	if time.Since(w.lastSent) >= w.interval {
		chunk = w.pending.String()
		w.pending.Reset()
		w.lastSent = time.Now()
	}
	w.mu.Unlock()
	if chunk != "" {
		w.progress(chunk)
	}
	return len(p), nil
}

// flush sends any buffered progress regardless of the throttle.
func (w *progressWriter) flush() {
	if w.progress == nil {
		return
	}
	w.mu.Lock()
	chunk := w.pending.String()
	w.pending.Reset()
	w.mu.Unlock()
	if chunk != "" {
		w.progress(chunk)
	}
}
