package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/jamscore/internal/domain"
)

// ScoringMetrics counts votes and times the recomputation passes of the engines.
type ScoringMetrics struct {
	Votes        *prometheus.CounterVec
	PassDuration *prometheus.HistogramVec
	PassChanges  *prometheus.CounterVec
}

var _ domain.Recorder = (*ScoringMetrics)(nil)

func NewScoringMetrics(reg prometheus.Registerer) *ScoringMetrics {
	m := &ScoringMetrics{
		Votes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_total",
			Help:      "Total number of votes handled, by kind and result.",
		}, []string{"kind", "result"}),
		PassDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pass_duration_seconds",
			Help:      "Duration of recomputation passes in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"pass"}),
		PassChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pass_changes_total",
			Help:      "Total number of rows changed by recomputation passes.",
		}, []string{"pass"}),
	}

	reg.MustRegister(m.Votes, m.PassDuration, m.PassChanges)
	return m
}

func (m *ScoringMetrics) ObserveVote(kind, result string) {
	m.Votes.WithLabelValues(kind, result).Inc()
}

func (m *ScoringMetrics) ObservePass(pass string, elapsed time.Duration, changed int) {
	m.PassDuration.WithLabelValues(pass).Observe(elapsed.Seconds())
	if changed > 0 {
		m.PassChanges.WithLabelValues(pass).Add(float64(changed))
	}
}
