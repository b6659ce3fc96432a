package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AlertsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accident_ledger_alerts_ingested_total",
		Help: "Alerts appended to the ledger, by severity label.",
	}, []string{"severity"})

	AlertsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accident_ledger_alerts_rejected_total",
		Help: "Alerts rejected by strict severity validation.",
	})

	LedgerSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "accident_ledger_size",
		Help: "Number of alerts currently held by the ledger.",
	})

	ArchiveDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accident_ledger_archive_dropped_total",
		Help: "Alerts not archived because the archive queue was full.",
	})

	Polls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "accident_watch_polls_total",
		Help: "Snapshot polls by result (ok, error, skipped, discarded).",
	}, []string{"result"})

	Escalations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "accident_watch_escalations_total",
		Help: "Escalations fired for newly arrived High severity alerts.",
	})
)

// SeverityLabel bounds label cardinality to the known severities.
func SeverityLabel(raw string) string {
	switch raw {
	case "High", "Medium", "Low":
		return raw
	default:
		return "other"
	}
}
