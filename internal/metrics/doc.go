// Package metrics provides Prometheus instrumentation for the media-ingest application.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "media_ingest_".
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: Counter of total requests by method, path, and status
//   - HTTPRequestDuration: Histogram of request duration by method and path
//   - HTTPRequestsInFlight: Gauge of currently processing requests
//
// ## Database Metrics
//
//   - DBQueryTotal: Counter of queries by operation and status
//   - DBQueryDuration: Histogram of query duration by operation
//   - DBSizeBytes: Gauge of database file sizes (main, WAL, SHM)
//
// ## Upload Pipeline Metrics
//
//   - BatchesActive, BatchesPaused, ItemsPending: Gauges set by the Collector
//   - BatchesCompletedTotal: Counter of batch outcomes
//   - ItemsProcessedTotal: Counter of finished items by kind and status
//   - ItemsRejectedTotal: Counter of items excluded before entering a batch
//   - StageDuration, StageErrorsTotal: Per-stage timing and failures
//   - BlobBytesUploaded, BlobUploadsTotal: Blob transfers by role
//   - QuotaPausesTotal, QuotaResolutionsTotal: Quota pauses and decisions
//   - OrphansRecordedTotal, OrphansUnreclaimed: Orphaned blob bookkeeping
//
// ## Media Processing Metrics
//
//   - NormalizationsTotal, NormalizationDuration: By transcoding strategy
//   - PreviewsTotal, PreviewDuration: By media kind
//   - MetadataExtractionsTotal: By media kind and status
//   - GeocodeLookupsTotal: Cache hits, misses and errors
//   - TranscoderProcessesActive: Running ffmpeg/ffprobe processes
//
// ## Backend Metrics
//
//   - BackendRequestsTotal: Counter by operation and status (success/error/quota)
//   - BackendRequestDuration: Histogram by operation, retries included
//
// ## Filesystem Metrics
//
//   - FilesystemRetriesTotal, FilesystemStaleErrorsTotal, FilesystemRetryFailuresTotal:
//     Stale NFS handle retries by operation
//
// ## Memory Metrics
//
//   - GoMemAllocBytes, GoMemSysBytes: Runtime memory set by the Collector
//   - MemoryUsageRatio, MemoryPaused, MemoryPausesTotal: Backpressure state
//
// # Usage
//
// Mount promhttp.Handler() on the metrics endpoint:
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// The upload package reports through an Observer; pass NewUploadObserver()
// to keep this package free of upload imports.
//
// # Prometheus Queries
//
// Quota pauses per hour by kind:
//
//	sum(increase(media_ingest_quota_pauses_total[1h])) by (kind)
//
// Item failure ratio:
//
//	sum(rate(media_ingest_items_processed_total{status="error"}[5m])) /
//	sum(rate(media_ingest_items_processed_total[5m]))
//
// P95 registration latency:
//
//	histogram_quantile(0.95, sum(rate(media_ingest_stage_duration_seconds_bucket{stage="register"}[5m])) by (le))
package metrics
