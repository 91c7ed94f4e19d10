package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cleanup subsystem metrics
var (
	// CleanupDuration tracks how long a sweep of one root takes
	CleanupDuration prometheus.Histogram

	// FilesScannedTotal counts every file enumerated, audio or not
	FilesScannedTotal prometheus.Counter

	// LossyFilesTotal counts lossy files seen during scans
	LossyFilesTotal prometheus.Counter

	// CandidatesTotal counts lossy files that had a lossless counterpart
	CandidatesTotal prometheus.Counter

	// FilesDeletedTotal counts lossy files removed, by extension
	FilesDeletedTotal *prometheus.CounterVec

	// BytesFreedTotal tracks total bytes freed across all sweeps
	BytesFreedTotal prometheus.Counter

	// DeletionFailuresTotal counts per-file failures, by kind (delete, safety)
	DeletionFailuresTotal *prometheus.CounterVec

	// LosslessKeys is the size of the lossless key set of the last sweep, per root
	LosslessKeys *prometheus.GaugeVec

	// CleanupLastRunTimestamp records Unix timestamp of last sweep
	CleanupLastRunTimestamp prometheus.Gauge
)

func initCleanupMetrics() {
	CleanupDuration = NewDurationHistogram(
		"audiodedupe_cleanup_duration_seconds",
		"Duration of one root sweep in seconds.",
	)

	FilesScannedTotal = NewCounter(
		"audiodedupe_files_scanned_total",
		"Total number of files enumerated.",
	)

	LossyFilesTotal = NewCounter(
		"audiodedupe_lossy_files_total",
		"Total number of lossy audio files seen.",
	)

	CandidatesTotal = NewCounter(
		"audiodedupe_candidates_total",
		"Total number of lossy files with a lossless counterpart.",
	)

	FilesDeletedTotal = NewCounterVec(
		"audiodedupe_files_deleted_total",
		"Total number of lossy files deleted.",
		[]string{"extension"},
	)

	BytesFreedTotal = NewCounter(
		"audiodedupe_bytes_freed_total",
		"Total bytes freed by deleting lossy duplicates.",
	)

	DeletionFailuresTotal = NewCounterVec(
		"audiodedupe_deletion_failures_total",
		"Total number of lossy files that could not be deleted.",
		[]string{"kind"},
	)

	LosslessKeys = NewGaugeVec(
		"audiodedupe_lossless_keys",
		"Number of distinct lossless base names found in the last sweep.",
		[]string{"root"},
	)

	CleanupLastRunTimestamp = NewGauge(
		"audiodedupe_cleanup_last_run_timestamp",
		"Timestamp of the last sweep (Unix epoch seconds).",
	)
}

func registerCleanupMetrics() {
	prometheus.MustRegister(CleanupDuration)
	prometheus.MustRegister(FilesScannedTotal)
	prometheus.MustRegister(LossyFilesTotal)
	prometheus.MustRegister(CandidatesTotal)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(BytesFreedTotal)
	prometheus.MustRegister(DeletionFailuresTotal)
	prometheus.MustRegister(LosslessKeys)
	prometheus.MustRegister(CleanupLastRunTimestamp)
}

// RecordScan updates the scan-phase counters for one root
func RecordScan(root string, files, lossy, losslessKeys, candidates int) {
	FilesScannedTotal.Add(float64(files))
	LossyFilesTotal.Add(float64(lossy))
	CandidatesTotal.Add(float64(candidates))
	LosslessKeys.WithLabelValues(root).Set(float64(losslessKeys))
}

// RecordDeletion counts one removed lossy file
func RecordDeletion(ext string, bytes int64) {
	FilesDeletedTotal.WithLabelValues(ext).Inc()
	BytesFreedTotal.Add(float64(bytes))
}

// RecordFailure counts one file that could not be deleted
func RecordFailure(kind string) {
	DeletionFailuresTotal.WithLabelValues(kind).Inc()
}

// RecordCleanupRun updates the last run timestamp and duration
func RecordCleanupRun(d time.Duration) {
	CleanupDuration.Observe(d.Seconds())
	CleanupLastRunTimestamp.Set(float64(time.Now().Unix()))
}
