package provider

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"chatgate/model"
	"chatgate/stream"
)

// Metrics holds the Prometheus collectors for chat traffic.
type Metrics struct {
	ChatRequests *prometheus.CounterVec
	ChatTokens   *prometheus.CounterVec
	ChatLatency  *prometheus.HistogramVec
	ChatInFlight *prometheus.GaugeVec
	ModelLists   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChatRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_chat_requests_total",
			Help: "Chat requests by provider and outcome",
		}, []string{"provider", "outcome"}),

		ChatTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_chat_tokens_total",
			Help: "Streamed tokens delivered to callers",
		}, []string{"provider"}),

		ChatLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatgate_chat_duration_seconds",
			Help:    "Time from request to end of stream",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}, // up to 2 minutes for LLM responses
		}, []string{"provider", "outcome"}),

		ChatInFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "chatgate_chat_in_flight",
			Help: "Chat streams currently open",
		}, []string{"provider"}),

		ModelLists: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "chatgate_model_list_requests_total",
			Help: "Model list lookups by provider and source (cache or remote)",
		}, []string{"provider", "source"}),
	}
}

func (m *Metrics) chatStarted(p model.ProviderID) time.Time {
	if m != nil {
		m.ChatInFlight.WithLabelValues(string(p)).Inc()
	}
	return time.Now()
}

// chatFinished records a stream that ended. Requests that never produced a
// stream are recorded with tokens == 0 and outcome failed.
func (m *Metrics) chatFinished(p model.ProviderID, started time.Time, outcome stream.Outcome, tokens int) {
	if m == nil {
		return
	}
	provider := string(p)
	m.ChatInFlight.WithLabelValues(provider).Dec()
	m.ChatRequests.WithLabelValues(provider, outcome.String()).Inc()
	m.ChatTokens.WithLabelValues(provider).Add(float64(tokens))
	m.ChatLatency.WithLabelValues(provider, outcome.String()).Observe(time.Since(started).Seconds())
}

func (m *Metrics) modelsListed(p model.ProviderID, source string) {
	if m != nil {
		m.ModelLists.WithLabelValues(string(p), source).Inc()
	}
}
