package handlers

import (
	"context"
	"time"

	"media-ingest/internal/database"
	"media-ingest/internal/startup"
	"media-ingest/internal/upload"
)

// Ledger is the slice of the database the API reads.
type Ledger interface {
	ListOrphans(ctx context.Context, includeReclaimed bool, limit int) ([]database.Orphan, error)
	MarkReclaimed(ctx context.Context, id int64) error
	ListBatches(ctx context.Context, limit int) ([]database.BatchRecord, error)
	Ping(ctx context.Context) error
}

// MemoryStatus reports the memory monitor's view of the process.
type MemoryStatus interface {
	Usage() float64
	IsPaused() bool
}

// BatchFactory creates an empty batch, optionally targeting an album.
type BatchFactory func(albumID string) *upload.Batch

type Handlers struct {
	registry   *upload.Registry
	newBatch   BatchFactory
	ledger     Ledger
	maxBytes   int64
	upgradeURL string
	startTime  time.Time
	memory     MemoryStatus
}

func New(registry *upload.Registry, newBatch BatchFactory, ledger Ledger, config *startup.Config) *Handlers {
	return &Handlers{
		registry:   registry,
		newBatch:   newBatch,
		ledger:     ledger,
		maxBytes:   config.MaxUploadBytes,
		upgradeURL: config.UpgradeURL,
		startTime:  time.Now(),
	}
}

// SetMemoryStatus adds memory pressure to the health response.
func (h *Handlers) SetMemoryStatus(m MemoryStatus) {
	h.memory = m
}
