package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process counters, registered on a dedicated registry so
// tests can construct independent instances.
type Metrics struct {
	Registry *prometheus.Registry

	ChatRequests *prometheus.CounterVec
	TokensUsed   *prometheus.CounterVec
}

// NewMetrics builds and registers the counter set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		TokensUsed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout",
			Name:      "tokens_total",
			Help:      "Tokens consumed by direction (input or output).",
		}, []string{"direction"}),
	}
}

// ObserveChat records one finished chat request.
func (m *Metrics) ObserveChat(outcome string, inputTokens, outputTokens int) {
	m.ChatRequests.WithLabelValues(outcome).Inc()
	m.TokensUsed.WithLabelValues("input").Add(float64(inputTokens))
	m.TokensUsed.WithLabelValues("output").Add(float64(outputTokens))
}
