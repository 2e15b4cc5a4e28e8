package ai

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// Provider roles used as a metric label.
const (
	roleEmbedding  = "embedding"
	roleGeneration = "generation"
)

// Approximate list prices per 1K tokens, used for cost accounting only.
var (
	embeddingCostPer1K = map[domain.AIProvider]float64{
		domain.AIProviderOpenAI: 0.00002,
	}
	generationCostPer1K = map[domain.AIProvider]float64{
		domain.AIProviderOpenAI:    0.0006,
		domain.AIProviderAnthropic: 0.003,
	}
)

// Metrics holds the Prometheus collectors shared by all wrapped providers.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates provider metrics registered with reg.
// A nil reg creates unregistered collectors.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewise_provider_requests_total",
			Help: "Provider attempts by provider, model, role and outcome.",
		}, []string{"provider", "model", "role", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pagewise_provider_request_duration_seconds",
			Help:    "Latency of single provider attempts.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "model", "role"}),
	}
}

// statsRecorder accumulates call statistics for one wrapped provider.
type statsRecorder struct {
	mu           sync.Mutex
	requests     int64
	errors       int64
	totalLatency time.Duration
	costUSD      float64

	provider string
	model    string
	role     string
	metrics  *Metrics
}

func newStatsRecorder(info domain.ModelInfo, role string, metrics *Metrics) *statsRecorder {
	return &statsRecorder{
		provider: string(info.Provider),
		model:    info.Name,
		role:     role,
		metrics:  metrics,
	}
}

// record accounts for one attempt.
func (s *statsRecorder) record(latency time.Duration, err error) {
	s.mu.Lock()
	s.requests++
	s.totalLatency += latency
	if err != nil {
		s.errors++
	}
	s.mu.Unlock()

	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	s.metrics.requests.WithLabelValues(s.provider, s.model, s.role, outcome).Inc()
	s.metrics.duration.WithLabelValues(s.provider, s.model, s.role).Observe(latency.Seconds())
}

// addTokens accounts for the cost of tokens consumed.
func (s *statsRecorder) addTokens(tokens int, per1K float64) {
	if tokens <= 0 || per1K <= 0 {
		return
	}
	s.mu.Lock()
	s.costUSD += float64(tokens) / 1000 * per1K
	s.mu.Unlock()
}

func (s *statsRecorder) snapshot() domain.ProviderStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := domain.ProviderStats{
		Requests:     s.requests,
		Errors:       s.errors,
		TotalCostUSD: s.costUSD,
	}
	if s.requests > 0 {
		stats.AverageLatency = s.totalLatency / time.Duration(s.requests)
		stats.ErrorRate = float64(s.errors) / float64(s.requests)
	}
	return stats
}
