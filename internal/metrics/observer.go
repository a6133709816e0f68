package metrics

// UploadObserver records upload pipeline events into the Prometheus metrics
// declared in metrics.go. It satisfies upload.Observer; the methods take
// plain values so this package does not depend on the upload package.
type UploadObserver struct{}

// NewUploadObserver creates an observer backed by the package metrics.
func NewUploadObserver() *UploadObserver {
	return &UploadObserver{}
}

func (o *UploadObserver) ObserveStage(stage string, durationSeconds float64, err error) {
	StageDuration.WithLabelValues(stage).Observe(durationSeconds)
	if err != nil {
		StageErrorsTotal.WithLabelValues(stage).Inc()
	}
}

func (o *UploadObserver) ObserveBlob(role string, bytes int, err error) {
	if err != nil {
		BlobUploadsTotal.WithLabelValues(role, "error").Inc()
		return
	}
	BlobUploadsTotal.WithLabelValues(role, "success").Inc()
	BlobBytesUploaded.WithLabelValues(role).Add(float64(bytes))
}

func (o *UploadObserver) ObserveItem(kind, status string) {
	ItemsProcessedTotal.WithLabelValues(kind, status).Inc()
}

func (o *UploadObserver) ObserveRejected(reason string) {
	ItemsRejectedTotal.WithLabelValues(reason).Inc()
}

func (o *UploadObserver) ObserveQuotaPause(kind string) {
	QuotaPausesTotal.WithLabelValues(kind).Inc()
}

func (o *UploadObserver) ObserveResolution(action string) {
	QuotaResolutionsTotal.WithLabelValues(action).Inc()
}

func (o *UploadObserver) ObserveOrphan(role string) {
	OrphansRecordedTotal.WithLabelValues(role).Inc()
}

func (o *UploadObserver) ObserveBatchOutcome(outcome string) {
	BatchesCompletedTotal.WithLabelValues(outcome).Inc()
}
