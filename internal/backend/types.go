package backend

import (
	"context"
	"fmt"
	"time"

	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
)

// Role is the part of an asset a stored blob plays. It is also the folder
// segment of the storage path hint.
type Role string

const (
	RoleOriginal  Role = "originals"
	RoleWeb       Role = "web"
	RoleThumbnail Role = "thumbnails"
)

// StoredObject is the address of a stored blob.
type StoredObject struct {
	URL      string `json:"url"`
	ObjectID string `json:"objectId,omitempty"`
}

// AssetRecord is what gets registered with the backend library once every
// blob of an item is stored.
type AssetRecord struct {
	metadata.Record

	OriginalURL  string          `json:"originalUrl"`
	WebURL       string          `json:"webUrl"`
	ThumbnailURL string          `json:"thumbnailUrl"`
	ObjectID     string          `json:"objectId"`
	CapturedAt   time.Time       `json:"capturedAt"`
	CreatedAt    time.Time       `json:"createdAt"`
	Kind         mediatypes.Kind `json:"kind"`
	FileName     string          `json:"fileName"`
	Size         int64           `json:"size"`
	MimeType     string          `json:"mimeType"`
}

// BlobStore stores bytes and returns their address.
type BlobStore interface {
	Store(ctx context.Context, data []byte, pathHint, contentType string) (StoredObject, error)
}

// Registrar records stored assets in the user's library or an album.
// Quota rejections are returned as *QuotaViolation unless skipQuota is set.
type Registrar interface {
	CreateInLibrary(ctx context.Context, asset AssetRecord, skipQuota bool) (string, error)
	AddToAlbum(ctx context.Context, albumID string, assets []AssetRecord, skipQuota bool) (int, error)
}

// QuotaKind identifies which plan limit was hit.
type QuotaKind string

const (
	QuotaPhotoLimit    QuotaKind = "photo-limit"
	QuotaDurationLimit QuotaKind = "duration-limit"
)

// QuotaViolation is returned by a Registrar when registering would exceed
// the account's plan.
type QuotaViolation struct {
	Kind    QuotaKind `json:"kind"`
	Current int64     `json:"current"`
	Limit   int64     `json:"limit"`
	Message string    `json:"message"`
}

func (q *QuotaViolation) Error() string {
	if q.Message != "" {
		return fmt.Sprintf("quota exceeded (%s %d/%d): %s", q.Kind, q.Current, q.Limit, q.Message)
	}
	return fmt.Sprintf("quota exceeded (%s %d/%d)", q.Kind, q.Current, q.Limit)
}

// APIError is a non-quota rejection from the backend.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend error %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("backend error %d: %s", e.StatusCode, e.Message)
}
