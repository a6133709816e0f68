package database

import (
	"context"
	"fmt"
	"time"
)

// RecordBatch stores the outcome of a batch. A batch that reaches another
// outcome later (for example after an item retry) overwrites its row.
func (d *Database) RecordBatch(ctx context.Context, b BatchRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if b.CompletedAt.IsZero() {
		b.CompletedAt = time.Now()
	}

	start := time.Now()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO batches (id, album_id, created_at, completed_at, succeeded, failed, discarded, outcome)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed_at = excluded.completed_at,
			succeeded = excluded.succeeded,
			failed = excluded.failed,
			discarded = excluded.discarded,
			outcome = excluded.outcome
	`, b.ID, b.AlbumID, b.CreatedAt.Unix(), b.CompletedAt.Unix(), b.Succeeded, b.Failed, b.Discarded, b.Outcome)
	recordQuery("record_batch", start, err)
	if err != nil {
		return fmt.Errorf("failed to record batch %s: %w", b.ID, err)
	}
	return nil
}

// ListBatches returns the most recently completed batches first.
func (d *Database) ListBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 50
	}

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, album_id, created_at, completed_at, succeeded, failed, discarded, outcome
		FROM batches
		ORDER BY completed_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		recordQuery("list_batches", start, err)
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	defer rows.Close()

	batches := []BatchRecord{}
	for rows.Next() {
		var b BatchRecord
		var createdAt, completedAt int64
		if err := rows.Scan(&b.ID, &b.AlbumID, &createdAt, &completedAt,
			&b.Succeeded, &b.Failed, &b.Discarded, &b.Outcome); err != nil {
			recordQuery("list_batches", start, err)
			return nil, fmt.Errorf("failed to scan batch: %w", err)
		}
		b.CreatedAt = time.Unix(createdAt, 0)
		b.CompletedAt = time.Unix(completedAt, 0)
		batches = append(batches, b)
	}
	err = rows.Err()
	recordQuery("list_batches", start, err)
	return batches, err
}
