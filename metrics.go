package rowlog

import "github.com/prometheus/client_golang/prometheus"

type engineMetrics struct {
	appends        prometheus.Counter
	appendedBytes  prometheus.Counter
	fsyncDuration  prometheus.Summary
	readErrors     prometheus.Counter
	truncatedBytes prometheus.Counter
	droppedRows    prometheus.Counter
}

func newEngineMetrics(registerer prometheus.Registerer) *engineMetrics {
	registerer = prometheus.WrapRegistererWithPrefix("rowlog_", registerer)

	m := &engineMetrics{}

	m.appends = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appends_total",
		Help: "Total number of entries appended to the log.",
	})

	m.appendedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "appended_bytes_total",
		Help: "Total bytes appended to the log, framing included.",
	})

	m.fsyncDuration = prometheus.NewSummary(prometheus.SummaryOpts{
		Name:       "fsync_duration_seconds",
		Help:       "Duration of log file fsync.",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	})

	m.readErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "read_errors_total",
		Help: "Total number of reads that failed to decode.",
	})

	m.truncatedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recovery_truncated_bytes_total",
		Help: "Log bytes discarded by recovery.",
	})

	m.droppedRows = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "recovery_dropped_rows_total",
		Help: "Index records rolled back by recovery.",
	})

	registerer.MustRegister(
		m.appends,
		m.appendedBytes,
		m.fsyncDuration,
		m.readErrors,
		m.truncatedBytes,
		m.droppedRows,
	)

	return m
}
