package repository

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsRepository struct {
	once sync.Once

	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	streams  *prometheus.GaugeVec
}

var repoMetrics metricsRepository

func (m *metricsRepository) init() {
	m.once.Do(func() {
		m.ops = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "liverepo_repository_ops_total", Help: "Repository operations by table, operation and result"}, []string{"table", "op", "result"})
		buckets := []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1}
		m.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: "liverepo_repository_op_seconds", Help: "Duration of repository operations, writer queueing included", Buckets: buckets}, []string{"op"})
		m.streams = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "liverepo_repository_streams_open", Help: "Open repository streams"}, []string{"table", "kind"})

		prometheus.MustRegister(m.ops, m.duration, m.streams)
	})
}

func observe(table, op string, err error, elapsed time.Duration) {
	repoMetrics.init()
	result := "ok"
	if err != nil {
		result = "error"
	}
	repoMetrics.ops.WithLabelValues(table, op, result).Inc()
	repoMetrics.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func streamOpened(table, kind string) func() {
	repoMetrics.init()
	gauge := repoMetrics.streams.WithLabelValues(table, kind)
	gauge.Inc()
	return gauge.Dec
}
