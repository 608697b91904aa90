package database

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type metricsDatabase struct {
	once sync.Once

	open          prometheus.Gauge
	commits       prometheus.Counter
	rollbacks     prometheus.Counter
	ops           *prometheus.CounterVec
	notifications *prometheus.CounterVec
	tornLines     prometheus.Counter

	commitDuration prometheus.Histogram
	loadDuration   prometheus.Histogram
}

var dbMetrics metricsDatabase

func (m *metricsDatabase) init() {
	m.once.Do(func() {
		m.open = prometheus.NewGauge(prometheus.GaugeOpts{Name: "liverepo_db_open", Help: "Open database handles"})
		m.commits = prometheus.NewCounter(prometheus.CounterOpts{Name: "liverepo_db_commits_total", Help: "Committed write transactions"})
		m.rollbacks = prometheus.NewCounter(prometheus.CounterOpts{Name: "liverepo_db_rollbacks_total", Help: "Write transactions rolled back"})
		m.ops = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "liverepo_db_ops_total", Help: "Committed operations by kind"}, []string{"op"})
		m.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "liverepo_db_notifications_total", Help: "Change notifications scheduled"}, []string{"kind"})
		m.tornLines = prometheus.NewCounter(prometheus.CounterOpts{Name: "liverepo_db_torn_lines_total", Help: "Incomplete trailing log lines discarded on open"})

		buckets := []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}
		m.commitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "liverepo_db_commit_seconds", Help: "Duration of write transactions", Buckets: buckets})
		m.loadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "liverepo_db_load_seconds", Help: "Duration of replaying the log on open", Buckets: buckets})

		prometheus.MustRegister(
			m.open, m.commits, m.rollbacks,
			m.ops, m.notifications, m.tornLines,
			m.commitDuration, m.loadDuration,
		)
	})
}
