package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics holds Prometheus metrics for the read-through query caches.
type CacheMetrics struct {
	Hits   *prometheus.CounterVec
	Misses *prometheus.CounterVec
	Purges *prometheus.CounterVec
}

func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	m := &CacheMetrics{
		Hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache hits, by cache.",
		}, []string{"cache"}),
		Misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache misses, by cache.",
		}, []string{"cache"}),
		Purges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Total number of cache invalidations, by cache.",
		}, []string{"cache"}),
	}

	reg.MustRegister(m.Hits, m.Misses, m.Purges)
	return m
}

// CacheName strips the event id from a namespace such as "leaderboard:42"
// to keep label cardinality bounded.
func CacheName(namespace string) string {
	name, _, _ := strings.Cut(namespace, ":")
	return name
}

func (m *CacheMetrics) Hit(namespace string) {
	m.Hits.WithLabelValues(CacheName(namespace)).Inc()
}

func (m *CacheMetrics) Miss(namespace string) {
	m.Misses.WithLabelValues(CacheName(namespace)).Inc()
}

func (m *CacheMetrics) Invalidated(namespace string) {
	m.Purges.WithLabelValues(CacheName(namespace)).Inc()
}
