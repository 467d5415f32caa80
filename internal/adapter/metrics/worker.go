package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkerMetrics tracks the background task queue.
type WorkerMetrics struct {
	Tasks        *prometheus.CounterVec
	TaskDuration *prometheus.HistogramVec
	QueueDepth   prometheus.Gauge
}

func NewWorkerMetrics(reg prometheus.Registerer) *WorkerMetrics {
	m := &WorkerMetrics{
		Tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "tasks_total",
			Help:      "Total number of background tasks, by kind and result.",
		}, []string{"kind", "result"}),
		TaskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "task_duration_seconds",
			Help:      "Duration of background tasks in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "worker",
			Name:      "queue_depth",
			Help:      "Number of tasks waiting in the queue.",
		}),
	}

	reg.MustRegister(m.Tasks, m.TaskDuration, m.QueueDepth)
	return m
}

func (m *WorkerMetrics) ObserveTask(kind, result string, elapsed time.Duration) {
	m.Tasks.WithLabelValues(kind, result).Inc()
	if result != "dropped" {
		m.TaskDuration.WithLabelValues(kind).Observe(elapsed.Seconds())
	}
}

func (m *WorkerMetrics) SetQueueDepth(depth int) {
	m.QueueDepth.Set(float64(depth))
}
