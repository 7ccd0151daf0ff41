package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesRun = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scapslice_batches_run_total",
		Help: "Total number of extraction batches started.",
	})

	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scapslice_items_processed_total",
		Help: "Total number of batch items processed, labelled by status.",
	}, []string{"status"})

	UnsupportedDefinitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scapslice_unsupported_definitions_total",
		Help: "Total number of definitions using a probe the target platform lacks, labelled by platform.",
	}, []string{"platform"})

	RegexIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scapslice_regex_issues_total",
		Help: "Total number of RE2-incompatible pattern constructs found, labelled by detector.",
	}, []string{"reason"})

	ItemDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "scapslice_item_duration_ms",
		Help:    "Per-item extraction latency in milliseconds.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scapslice_queue_utilization_ratio",
		Help: "Current item queue utilization (0 to 1).",
	})
)
