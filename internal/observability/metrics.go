package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	fileOpens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pario",
			Subsystem: "file",
			Name:      "opens_total",
			Help:      "File open attempts by format and outcome.",
		},
		[]string{"iotype", "outcome"},
	)
	openRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pario",
			Subsystem: "file",
			Name:      "open_retries_total",
			Help:      "Single-shot downgrades to the classic serial format.",
		},
	)
	mapTransfers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "pario",
			Subsystem: "mapfile",
			Name:      "transfers_total",
			Help:      "Decomposition map files read or written.",
		},
		[]string{"direction"},
	)
	transportErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "pario",
			Subsystem: "comm",
			Name:      "transport_errors_total",
			Help:      "Transport failures normalized to the internal I/O error.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(fileOpens, openRetries, mapTransfers, transportErrors)
	})
}

func RecordOpen(iotype string, ok bool) {
	RegisterMetrics()
	outcome := "error"
	if ok {
		outcome = "ok"
	}
	fileOpens.WithLabelValues(iotype, outcome).Inc()
}

func RecordOpenRetry() {
	RegisterMetrics()
	openRetries.Inc()
}

func RecordMapTransfer(direction string) {
	RegisterMetrics()
	mapTransfers.WithLabelValues(direction).Inc()
}

func RecordTransportError() {
	RegisterMetrics()
	transportErrors.Inc()
}
