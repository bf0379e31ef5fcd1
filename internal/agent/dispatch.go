package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haasonsaas/scout/pkg/models"
)

const (
	// cancelPollInterval is how often a running executor is raced against
	// the session's cancellation flag.
	cancelPollInterval = 50 * time.Millisecond

	// resultPreviewLimit bounds the result preview carried on completed
	// events.
	resultPreviewLimit = 200
)

// Dispatcher is the cross-cutting envelope around tool execution: session
// registration, cancellation checks, event emission, and error
// normalization. It is the single place that touches the event bus and the
// cancellation hub; executors stay pure.
type Dispatcher struct {
	registry       *Registry
	hub            *CancelHub
	bus            *EventBus
	defaultSession string
	logger         *slog.Logger
}

// NewDispatcher wires a dispatcher over a registry, hub, and bus.
func NewDispatcher(registry *Registry, hub *CancelHub, bus *EventBus, defaultSession string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry:       registry,
		hub:            hub,
		bus:            bus,
		defaultSession: defaultSession,
		logger:         logger,
	}
}

// Execute runs one tool invocation under the wrapper contract. The session
// is resolved from the invocation's session_id parameter, falling back to
// the dispatcher default. Cancellation observed before, during, or after
// executor completion yields a cancellation error and suppresses the
// terminal event.
func (d *Dispatcher) Execute(ctx context.Context, sessionID string, inv *ToolInvocation) (string, error) {
	tool, ok := d.registry.Get(inv.Name)
	if !ok {
		return "", NewError(CategoryParseFailure, "unknown tool: "+inv.Name, nil)
	}

	if override := inv.Params["session_id"]; override != "" {
		sessionID = override
	}
	if sessionID == "" {
		sessionID = d.defaultSession
	}

	d.hub.Register(sessionID)

	args := make(map[string]string, len(inv.Params))
	for k, v := range inv.Params {
		args[k] = v
	}
	d.bus.Emit(models.ToolEvent{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Name:      inv.Name,
		Args:      args,
		Status:    models.ToolEventStarted,
	})

	if d.hub.IsCancelled(sessionID) {
		return "", NewCancellation(sessionID)
	}

	// Tools that delegate to backends key their work on the resolved session.
	if inv.Params == nil {
		inv.Params = make(map[string]string, 1)
	}
	inv.Params["session_id"] = sessionID

	params := tool.CoerceParams(inv.Params)
	if err := tool.Validate(params); err != nil {
		d.emitError(sessionID, inv.Name, err)
		return "", err
	}

	result, err := d.runWithCancelPolling(ctx, sessionID, tool, params)
	if err != nil {
		if IsCancellation(err) {
			// No terminal event on cancellation: a started event without a
			// completed/error is the observable cancellation signature.
			return "", err
		}
		d.emitError(sessionID, inv.Name, err)
		return "", err
	}

	if d.hub.IsCancelled(sessionID) {
		return "", NewCancellation(sessionID)
	}

	d.bus.Emit(models.ToolEvent{
		Timestamp:     time.Now(),
		SessionID:     sessionID,
		Name:          inv.Name,
		Status:        models.ToolEventCompleted,
		ResultPreview: previewOf(result),
	})
	return result, nil
}

// runWithCancelPolling races the executor against the session's
// cancellation flag. The executor also receives a context cancelled on the
// same signal so context-aware tools stop promptly.
func (d *Dispatcher) runWithCancelPolling(ctx context.Context, sessionID string, tool *Tool, params map[string]any) (string, error) {
	execCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result string
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := tool.Execute(execCtx, params)
		done <- outcome{result, err}
	}()

	ticker := time.NewTicker(cancelPollInterval)
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			if out.err != nil {
				if IsCancellation(out.err) {
					return "", out.err
				}
				return "", NewError(CategoryToolExecution,
					fmt.Sprintf("Error executing %s: %v", tool.Name, out.err), out.err)
			}
			return out.result, nil
		case <-ticker.C:
			if d.hub.IsCancelled(sessionID) {
				cancel()
				return "", NewCancellation(sessionID)
			}
		case <-ctx.Done():
			return "", NewCancellation(sessionID)
		}
	}
}

func (d *Dispatcher) emitError(sessionID, toolName string, err error) {
	d.bus.Emit(models.ToolEvent{
		Timestamp: time.Now(),
		SessionID: sessionID,
		Name:      toolName,
		Status:    models.ToolEventError,
		Error:     err.Error(),
	})
}

// previewOf truncates a result for event payloads.
func previewOf(result string) string {
	if len(result) <= resultPreviewLimit {
		return result
	}
	return result[:resultPreviewLimit]
}
