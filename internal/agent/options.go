package agent

import (
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// Option customizes an Agent at construction.
type Option func(*Agent)

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Agent) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithStore wires a history store so sessions survive restarts.
func WithStore(store HistoryStore) Option {
	return func(a *Agent) {
		a.store = store
	}
}

// WithCounter wires a tokenizer-backed counter for usage reporting.
func WithCounter(counter TokenCounter) Option {
	return func(a *Agent) {
		if counter != nil {
			a.counter = counter
		}
	}
}

// WithTracer wires a tracer; a span covers each chat request with a child
// span per tool execution.
func WithTracer(tracer trace.Tracer) Option {
	return func(a *Agent) {
		if tracer != nil {
			a.tracer = tracer
		}
	}
}

// WithImageValidator overrides the image validation policy, mainly for tests.
func WithImageValidator(v *ImageValidator) Option {
	return func(a *Agent) {
		a.images = v
	}
}
