package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, file := range []string{"main", "wal", "shm"} {
		DBSizeBytes.WithLabelValues(file)
	}

	kinds := []string{"photo", "video", "audio"}
	for _, kind := range kinds {
		ItemsProcessedTotal.WithLabelValues(kind, "success")
		ItemsProcessedTotal.WithLabelValues(kind, "error")
		PreviewsTotal.WithLabelValues(kind, "success")
		PreviewsTotal.WithLabelValues(kind, "error")
		PreviewsTotal.WithLabelValues(kind, "skipped")
		PreviewDuration.WithLabelValues(kind)
		MetadataExtractionsTotal.WithLabelValues(kind, "success")
		MetadataExtractionsTotal.WithLabelValues(kind, "error")
	}

	for _, reason := range []string{"unsupported", "too_large"} {
		ItemsRejectedTotal.WithLabelValues(reason)
	}

	for _, stage := range []string{"metadata", "original", "derivative", "preview", "register"} {
		StageDuration.WithLabelValues(stage)
		StageErrorsTotal.WithLabelValues(stage)
	}

	for _, role := range []string{"originals", "web", "thumbnails"} {
		BlobBytesUploaded.WithLabelValues(role)
		BlobUploadsTotal.WithLabelValues(role, "success")
		BlobUploadsTotal.WithLabelValues(role, "error")
		OrphansRecordedTotal.WithLabelValues(role)
	}

	for _, kind := range []string{"photo-limit", "duration-limit"} {
		QuotaPausesTotal.WithLabelValues(kind)
	}

	for _, action := range []string{"skip-rest", "override", "upgrade", "cancel"} {
		QuotaResolutionsTotal.WithLabelValues(action)
	}

	for _, outcome := range []string{"completed", "skipped", "upgrade", "disposed"} {
		BatchesCompletedTotal.WithLabelValues(outcome)
	}

	for _, strategy := range []string{"vips", "surface"} {
		NormalizationsTotal.WithLabelValues(strategy, "success")
		NormalizationsTotal.WithLabelValues(strategy, "error")
		NormalizationDuration.WithLabelValues(strategy)
	}

	for _, result := range []string{"hit", "miss", "error"} {
		GeocodeLookupsTotal.WithLabelValues(result)
	}

	for _, op := range []string{"store", "create", "album"} {
		for _, status := range []string{"success", "error", "quota"} {
			BackendRequestsTotal.WithLabelValues(op, status)
		}
		BackendRequestDuration.WithLabelValues(op)
	}

	for _, op := range []string{"stat", "open"} {
		FilesystemRetriesTotal.WithLabelValues(op)
		FilesystemStaleErrorsTotal.WithLabelValues(op)
		FilesystemRetryFailuresTotal.WithLabelValues(op)
	}

	for _, op := range []string{"initialize_schema", "record_orphan", "list_orphans", "mark_reclaimed",
		"count_orphans", "record_batch", "list_batches"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}
}
