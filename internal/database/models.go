package database

import "time"

// Orphan is a stored blob that was never registered with the library.
// A separate garbage collector lists unreclaimed orphans and marks them
// reclaimed once the blob is gone.
type Orphan struct {
	ID          int64      `json:"id"`
	URL         string     `json:"url"`
	ObjectID    string     `json:"objectId,omitempty"`
	Role        string     `json:"role"`
	BatchID     string     `json:"batchId"`
	ItemName    string     `json:"itemName,omitempty"`
	Reason      string     `json:"reason,omitempty"`
	RecordedAt  time.Time  `json:"recordedAt"`
	ReclaimedAt *time.Time `json:"reclaimedAt,omitempty"`
}

// BatchRecord summarizes a batch that reached an outcome.
type BatchRecord struct {
	ID          string    `json:"id"`
	AlbumID     string    `json:"albumId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	CompletedAt time.Time `json:"completedAt"`
	Succeeded   int       `json:"succeeded"`
	Failed      int       `json:"failed"`
	Discarded   int       `json:"discarded"`
	Outcome     string    `json:"outcome"`
}
