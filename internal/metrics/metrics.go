package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_db_size_bytes",
			Help: "Size of SQLite database files in bytes",
		},
		[]string{"file"}, // "main", "wal", "shm"
	)
)

// Upload pipeline metrics
var (
	BatchesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_batches_active",
			Help: "Number of batches currently held in memory",
		},
	)

	BatchesPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_batches_paused",
			Help: "Number of batches waiting on a quota decision",
		},
	)

	BatchesCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_batches_completed_total",
			Help: "Total number of batches that reached an outcome",
		},
		[]string{"outcome"}, // "completed", "skipped", "upgrade", "disposed"
	)

	ItemsPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_items_pending",
			Help: "Number of items waiting to be uploaded across all batches",
		},
	)

	ItemsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_items_processed_total",
			Help: "Total number of items that finished processing",
		},
		[]string{"kind", "status"},
	)

	ItemsRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_items_rejected_total",
			Help: "Total number of items excluded before entering a batch",
		},
		[]string{"reason"}, // "unsupported", "too_large"
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_stage_duration_seconds",
			Help:    "Duration of each per-item pipeline stage",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"stage"},
	)

	StageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_stage_errors_total",
			Help: "Total number of failed pipeline stages",
		},
		[]string{"stage"},
	)

	BlobBytesUploaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_blob_bytes_uploaded_total",
			Help: "Total bytes stored in the blob store",
		},
		[]string{"role"}, // "originals", "web", "thumbnails"
	)

	BlobUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_blob_uploads_total",
			Help: "Total number of blob transfers",
		},
		[]string{"role", "status"},
	)

	QuotaPausesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_quota_pauses_total",
			Help: "Total number of batches paused by a quota violation",
		},
		[]string{"kind"},
	)

	QuotaResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_quota_resolutions_total",
			Help: "Total number of quota decisions by action",
		},
		[]string{"action"},
	)

	OrphansRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_orphans_recorded_total",
			Help: "Total number of stored blobs recorded as orphans",
		},
		[]string{"role"},
	)

	OrphansUnreclaimed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_orphans_unreclaimed",
			Help: "Number of orphaned blobs not yet reclaimed",
		},
	)
)

// Media processing metrics
var (
	NormalizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_normalizations_total",
			Help: "Total number of format normalization attempts",
		},
		[]string{"strategy", "status"},
	)

	NormalizationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_normalization_duration_seconds",
			Help:    "Time spent normalizing a payload",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"strategy"},
	)

	PreviewsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_previews_total",
			Help: "Total number of preview generations",
		},
		[]string{"kind", "status"},
	)

	PreviewDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_preview_duration_seconds",
			Help:    "Time spent generating a preview",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	MetadataExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_metadata_extractions_total",
			Help: "Total number of metadata extractions",
		},
		[]string{"kind", "status"},
	)

	GeocodeLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_geocode_lookups_total",
			Help: "Total number of reverse geocode lookups",
		},
		[]string{"result"}, // "hit", "miss", "error"
	)

	TranscoderProcessesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_transcoder_processes_active",
			Help: "Number of running ffmpeg/ffprobe processes",
		},
	)
)

// Backend metrics
var (
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_backend_requests_total",
			Help: "Total number of requests to the storage and library backend",
		},
		[]string{"operation", "status"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_ingest_backend_request_duration_seconds",
			Help:    "Backend request duration in seconds, including retries",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)
)

// Filesystem metrics
var (
	FilesystemRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retries_total",
			Help: "Total number of filesystem operations retried after a stale file handle",
		},
		[]string{"operation"}, // "stat", "open"
	)

	FilesystemStaleErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_stale_errors_total",
			Help: "Total number of stale NFS file handle errors",
		},
		[]string{"operation"},
	)

	FilesystemRetryFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ingest_filesystem_retry_failures_total",
			Help: "Total number of filesystem operations that failed after all retries",
		},
		[]string{"operation"},
	)
)

// Memory and application info
var (
	GoMemAllocBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_go_memalloc_bytes",
			Help: "Current Go heap allocation in bytes",
		},
	)

	GoMemSysBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_go_memsys_bytes",
			Help: "Total memory obtained from the OS by Go",
		},
	)

	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_usage_ratio",
			Help: "Heap allocation as a share of the configured memory limit",
		},
	)

	MemoryPaused = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_ingest_memory_paused",
			Help: "Whether item loading is held back by memory pressure (1 = paused)",
		},
	)

	MemoryPausesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ingest_memory_pauses_total",
			Help: "Total number of times memory pressure held back item loading",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_ingest_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
