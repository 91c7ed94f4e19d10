package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"audio-dedupe/internal/disk"
)

// Daemon subsystem metrics
var (
	// ErrorsTotal tracks run-level errors (enumeration, database, lock)
	ErrorsTotal prometheus.Counter

	// RootFreeBytes tracks free space on the filesystem holding each root
	RootFreeBytes *prometheus.GaugeVec

	// RootTotalBytes tracks capacity of the filesystem holding each root
	RootTotalBytes *prometheus.GaugeVec
)

func initDaemonMetrics() {
	ErrorsTotal = NewCounter(
		"audiodedupe_daemon_errors_total",
		"Total number of run-level errors.",
	)

	RootFreeBytes = NewGaugeVec(
		"audiodedupe_root_free_bytes",
		"Free space available on the filesystem containing the root.",
		[]string{"root"},
	)

	RootTotalBytes = NewGaugeVec(
		"audiodedupe_root_total_bytes",
		"Total capacity of the filesystem containing the root.",
		[]string{"root"},
	)
}

func registerDaemonMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(RootFreeBytes)
	prometheus.MustRegister(RootTotalBytes)
}

// UpdateDiskMetrics refreshes the free/total gauges for a root
func UpdateDiskMetrics(root string, usage disk.Usage) {
	RootFreeBytes.WithLabelValues(root).Set(float64(usage.FreeBytes))
	RootTotalBytes.WithLabelValues(root).Set(float64(usage.TotalBytes))
}
