package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printagent_jobs_received_total",
		Help: "Print job notifications accepted into the dispatch queue",
	})

	JobsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printagent_jobs_duplicate_total",
		Help: "Notifications dropped by duplicate suppression",
	})

	JobsAutoPrintedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printagent_jobs_auto_printed_total",
		Help: "Jobs dispatched through the hardware auto-print path",
	})

	JobsManualQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printagent_jobs_manual_queued_total",
		Help: "Jobs surfaced to the operator for manual printing",
	})

	JobsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printagent_jobs_completed_total",
		Help: "Jobs reported complete to the job store",
	})

	AttemptsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printagent_attempts_failed_total",
		Help: "Print attempts that failed before any completion signal",
	})

	AttemptsTimedOutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "printagent_attempts_timed_out_total",
		Help: "Print attempts resolved by the completion timeout",
	})

	AttemptDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "printagent_attempt_duration_seconds",
		Help:    "Time from dispatch to attempt resolution",
		Buckets: prometheus.DefBuckets,
	})

	PrinterConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "printagent_printer_connected",
		Help: "Whether the hardware printer currently reports connected",
	})
)
