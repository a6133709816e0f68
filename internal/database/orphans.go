package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrOrphanNotFound is returned by MarkReclaimed for unknown or already
// reclaimed orphans.
var ErrOrphanNotFound = errors.New("orphan not found")

// RecordOrphan adds a blob to the ledger. Recording the same URL twice for
// one batch is a no-op.
func (d *Database) RecordOrphan(ctx context.Context, o Orphan) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if o.RecordedAt.IsZero() {
		o.RecordedAt = time.Now()
	}

	start := time.Now()
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO orphans (url, object_id, role, batch_id, item_name, reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url, batch_id) DO NOTHING
	`, o.URL, o.ObjectID, o.Role, o.BatchID, o.ItemName, o.Reason, o.RecordedAt.Unix())
	recordQuery("record_orphan", start, err)
	if err != nil {
		return fmt.Errorf("failed to record orphan %s: %w", o.URL, err)
	}
	return nil
}

// ListOrphans returns orphans oldest first. Reclaimed entries are included
// only when includeReclaimed is set. A limit <= 0 returns everything.
func (d *Database) ListOrphans(ctx context.Context, includeReclaimed bool, limit int) ([]Orphan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
		SELECT id, url, object_id, role, batch_id, item_name, reason, recorded_at, reclaimed_at
		FROM orphans`
	if !includeReclaimed {
		query += " WHERE reclaimed_at IS NULL"
	}
	query += " ORDER BY recorded_at, id"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		recordQuery("list_orphans", start, err)
		return nil, fmt.Errorf("failed to list orphans: %w", err)
	}
	defer rows.Close()

	orphans := []Orphan{}
	for rows.Next() {
		var o Orphan
		var recordedAt int64
		var reclaimedAt sql.NullInt64
		if err := rows.Scan(&o.ID, &o.URL, &o.ObjectID, &o.Role, &o.BatchID, &o.ItemName, &o.Reason,
			&recordedAt, &reclaimedAt); err != nil {
			recordQuery("list_orphans", start, err)
			return nil, fmt.Errorf("failed to scan orphan: %w", err)
		}
		o.RecordedAt = time.Unix(recordedAt, 0)
		if reclaimedAt.Valid {
			t := time.Unix(reclaimedAt.Int64, 0)
			o.ReclaimedAt = &t
		}
		orphans = append(orphans, o)
	}
	err = rows.Err()
	recordQuery("list_orphans", start, err)
	return orphans, err
}

// MarkReclaimed flags an orphan as cleaned up by the garbage collector.
func (d *Database) MarkReclaimed(ctx context.Context, id int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	result, err := d.db.ExecContext(ctx,
		"UPDATE orphans SET reclaimed_at = ? WHERE id = ? AND reclaimed_at IS NULL",
		time.Now().Unix(), id)
	recordQuery("mark_reclaimed", start, err)
	if err != nil {
		return fmt.Errorf("failed to mark orphan %d reclaimed: %w", id, err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %d", ErrOrphanNotFound, id)
	}
	return nil
}

// CountOrphans returns the number of unreclaimed orphans.
func (d *Database) CountOrphans(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	start := time.Now()
	var count int
	err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orphans WHERE reclaimed_at IS NULL").Scan(&count)
	recordQuery("count_orphans", start, err)
	return count, err
}
