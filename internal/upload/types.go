package upload

import (
	"context"
	"errors"
	"time"

	"media-ingest/internal/backend"
	"media-ingest/internal/database"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
)

// Status is the lifecycle state of an item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusSuccess   Status = "success"
	StatusError     Status = "error"
)

// Action is a user decision for a quota-paused batch.
type Action string

const (
	ActionSkipRest Action = "skip-rest"
	ActionOverride Action = "override"
	ActionUpgrade  Action = "upgrade"
	ActionCancel   Action = "cancel"
)

// ParseAction validates a resolution action name.
func ParseAction(s string) (Action, error) {
	switch a := Action(s); a {
	case ActionSkipRest, ActionOverride, ActionUpgrade, ActionCancel:
		return a, nil
	}
	return "", ErrUnknownAction
}

var (
	// ErrBatchPaused is returned while a quota decision is outstanding.
	// Errors wrapping it from Run and Retry also wrap the *backend.QuotaViolation.
	ErrBatchPaused = errors.New("batch paused on quota violation")
	// ErrBatchClosed is returned once a batch was disposed or handed off to an upgrade.
	ErrBatchClosed = errors.New("batch is closed")
	// ErrItemNotFound is returned for unknown item ids.
	ErrItemNotFound = errors.New("item not found")
	// ErrItemBusy is returned when an item is being uploaded.
	ErrItemBusy = errors.New("item is uploading")
	// ErrNotRetryable is returned by Retry for items that already succeeded.
	ErrNotRetryable = errors.New("item is not retryable")
	// ErrNotPaused is returned by Resolve when there is no quota decision to make.
	ErrNotPaused = errors.New("batch is not paused")
	// ErrUnknownAction is returned for unrecognized resolution actions.
	ErrUnknownAction = errors.New("unknown quota action")
)

// Progress checkpoints reported while an item moves through the stages.
const (
	progressMetadata   = 10
	progressOriginal   = 40
	progressDerivative = 60
	progressPreview    = 75
	progressRegister   = 90
	progressDone       = 100
)

// Stage names used for observation.
const (
	stageMetadata   = "metadata"
	stageOriginal   = "original"
	stageDerivative = "derivative"
	stagePreview    = "preview"
	stageRegister   = "register"
)

// MetadataExtractor reads a provenance record from an item's bytes.
// It never fails; unreadable input yields an empty record.
type MetadataExtractor interface {
	ExtractFrom(ctx context.Context, item mediatypes.RawItem, data []byte, kind mediatypes.Kind) metadata.Record
}

// Normalizer converts formats without universal playback support into JPEG.
type Normalizer interface {
	Normalize(ctx context.Context, data []byte) ([]byte, error)
}

// PreviewGenerator renders a bounded-size JPEG preview.
type PreviewGenerator interface {
	Generate(ctx context.Context, data []byte, name string, kind mediatypes.Kind, duration float64) ([]byte, error)
}

// Pipeline groups the collaborators a batch drives for every item.
// Blobs and Registrar are required; the others may be nil to skip the stage.
type Pipeline struct {
	Extractor  MetadataExtractor
	Normalizer Normalizer
	Previews   PreviewGenerator
	Blobs      backend.BlobStore
	Registrar  backend.Registrar
}

// Observer receives pipeline events. metrics.UploadObserver implements it.
type Observer interface {
	ObserveStage(stage string, durationSeconds float64, err error)
	ObserveBlob(role string, bytes int, err error)
	ObserveItem(kind, status string)
	ObserveRejected(reason string)
	ObserveQuotaPause(kind string)
	ObserveResolution(action string)
	ObserveOrphan(role string)
	ObserveBatchOutcome(outcome string)
}

// Ledger persists orphaned blobs and batch outcomes. *database.Database
// implements it.
type Ledger interface {
	RecordOrphan(ctx context.Context, o database.Orphan) error
	RecordBatch(ctx context.Context, b database.BatchRecord) error
}

// UpgradeHandler takes over when the user chooses to upgrade their plan
// instead of finishing a paused batch.
type UpgradeHandler interface {
	BeginUpgrade(ctx context.Context, pause PauseSummary) error
}

// UpgradeFunc adapts a function to UpgradeHandler.
type UpgradeFunc func(ctx context.Context, pause PauseSummary) error

func (f UpgradeFunc) BeginUpgrade(ctx context.Context, pause PauseSummary) error {
	return f(ctx, pause)
}

// MemoryGate holds back payload loading under memory pressure.
// *memory.Monitor implements it.
type MemoryGate interface {
	Wait(ctx context.Context) error
}

// Options configures a batch.
type Options struct {
	// AccountID is the first segment of every storage path.
	AccountID string
	// AlbumID selects add-to-album registration instead of create-in-library.
	AlbumID string
	// MaxBytes is the per-item size ceiling. Zero uses mediatypes.DefaultMaxUploadSize.
	MaxBytes int64
	// OnComplete is called with the success count whenever processing
	// leaves the batch with no pending items and no quota pause.
	OnComplete func(successCount int)

	Observer Observer
	Ledger   Ledger
	Upgrade  UpgradeHandler
	Previews PreviewStore

	// Memory, when set, is waited on before an item's payload is loaded.
	Memory MemoryGate

	// Now is used for storage path hints and timestamps. Defaults to time.Now.
	Now func() time.Time
}

// Rejection describes an item excluded by pre-flight checks.
type Rejection struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// AddResult reports which items entered a batch.
type AddResult struct {
	Accepted []string    `json:"accepted"`
	Rejected []Rejection `json:"rejected,omitempty"`
}

// ItemSnapshot is a read-only copy of an item.
type ItemSnapshot struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Kind       mediatypes.Kind `json:"kind"`
	Size       int64           `json:"size"`
	Status     Status          `json:"status"`
	Progress   int             `json:"progress"`
	URL        string          `json:"url,omitempty"`
	Error      string          `json:"error,omitempty"`
	HasPreview bool            `json:"hasPreview"`
}

// PauseSummary describes an outstanding quota decision.
type PauseSummary struct {
	Kind      backend.QuotaKind `json:"kind"`
	Current   int64             `json:"current"`
	Limit     int64             `json:"limit"`
	Message   string            `json:"message"`
	ItemID    string            `json:"itemId"`
	Pending   int               `json:"pending"`
	Succeeded int               `json:"succeeded"`
	Dismissed bool              `json:"dismissed"`
}

// Snapshot is a read-only copy of a batch.
type Snapshot struct {
	ID        string         `json:"id"`
	AlbumID   string         `json:"albumId,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	Items     []ItemSnapshot `json:"items"`
	Paused    *PauseSummary  `json:"paused,omitempty"`
	Pending   int            `json:"pending"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Discarded int            `json:"discarded"`
	Complete  bool           `json:"complete"`
	Closed    bool           `json:"closed"`
	SkipQuota bool           `json:"skipQuota"`
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, float64, error) {}
func (nopObserver) ObserveBlob(string, int, error)      {}
func (nopObserver) ObserveItem(string, string)          {}
func (nopObserver) ObserveRejected(string)              {}
func (nopObserver) ObserveQuotaPause(string)            {}
func (nopObserver) ObserveResolution(string)            {}
func (nopObserver) ObserveOrphan(string)                {}
func (nopObserver) ObserveBatchOutcome(string)          {}
