package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"media-ingest/internal/backend"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
)

// process drives one item through the stages. It returns nil on success,
// an *ItemError for item-fatal failures, an error wrapping ErrBatchPaused
// on a quota violation, or the context error.
func (b *Batch) process(ctx context.Context, it *item) error {
	b.mu.Lock()
	it.status = StatusUploading
	it.errMsg = ""
	st := it.staged
	skipQuota := b.skipQuota
	b.mu.Unlock()

	err := b.stage(ctx, it, &st)

	b.mu.Lock()
	it.staged = st
	b.mu.Unlock()

	if err == nil {
		err = b.register(ctx, it, st, skipQuota)
	}
	return b.finish(ctx, it, err)
}

// stage stores the original, the derivative and the thumbnail, skipping
// whatever an earlier attempt already stored.
func (b *Batch) stage(ctx context.Context, it *item, st *staged) error {
	if st.original != nil && st.web != nil && st.thumbnailURL != "" && st.record != nil {
		return nil
	}

	if b.opt.Memory != nil {
		if err := b.opt.Memory.Wait(ctx); err != nil {
			return err
		}
	}

	data, err := it.raw.ReadAll()
	if err != nil {
		return b.itemError(ctx, it, "read", fmt.Errorf("failed to read %s: %w", it.raw.Name, err))
	}

	if st.record == nil {
		start := time.Now()
		rec := metadata.Record{}
		if b.pipeline.Extractor != nil {
			rec = b.pipeline.Extractor.ExtractFrom(ctx, it.raw, data, it.kind)
		}
		b.observe(stageMetadata, start, nil)
		st.record = &rec
	}
	b.setProgress(it, progressMetadata)
	if err := ctx.Err(); err != nil {
		return err
	}

	contentType := mediatypes.ContentTypeFor(it.raw.Name, it.raw.ContentType)
	ext := mediatypes.Ext(it.raw.Name)

	if st.original == nil {
		start := time.Now()
		obj, err := b.store(ctx, data, backend.RoleOriginal, ext, contentType)
		b.observe(stageOriginal, start, err)
		if err != nil {
			return b.itemError(ctx, it, stageOriginal, err)
		}
		if obj.ObjectID == "" {
			obj.ObjectID = uuid.New().String()
		}
		st.original = &obj
	}
	b.setProgress(it, progressOriginal)
	if err := ctx.Err(); err != nil {
		return err
	}

	if st.web == nil {
		if mediatypes.NeedsNormalization(it.raw.Name, it.raw.ContentType) && b.pipeline.Normalizer != nil {
			start := time.Now()
			derivative, err := b.pipeline.Normalizer.Normalize(ctx, data)
			if err != nil {
				b.observe(stageDerivative, start, err)
				return b.itemError(ctx, it, stageDerivative, err)
			}
			obj, err := b.store(ctx, derivative, backend.RoleWeb, ".jpg", "image/jpeg")
			b.observe(stageDerivative, start, err)
			if err != nil {
				return b.itemError(ctx, it, stageDerivative, err)
			}
			st.web = &obj
			st.webData = derivative
		} else {
			st.web = st.original
		}
	}
	b.setProgress(it, progressDerivative)
	if err := ctx.Err(); err != nil {
		return err
	}

	if st.thumbnailURL == "" {
		// The preview of a normalized item is rendered from its derivative.
		previewSource := data
		if st.webData != nil {
			previewSource = st.webData
		}
		start := time.Now()
		st.thumbnailURL = b.thumbnail(ctx, it, previewSource, *st.record, st.original.URL)
		b.observe(stagePreview, start, nil)
	}
	st.webData = nil
	b.setProgress(it, progressPreview)
	return ctx.Err()
}

// thumbnail renders and stores the preview. Failures are soft: the
// original's URL stands in for the thumbnail.
func (b *Batch) thumbnail(ctx context.Context, it *item, data []byte, rec metadata.Record, fallback string) string {
	if b.pipeline.Previews == nil {
		return fallback
	}

	var duration float64
	if rec.Duration != nil {
		duration = *rec.Duration
	}
	preview, err := b.pipeline.Previews.Generate(ctx, data, it.raw.Name, it.kind, duration)
	if err != nil {
		logging.Debug("Batch %s: no preview for %s: %v", b.id, it.raw.Name, err)
		return fallback
	}

	b.mu.Lock()
	h := it.preview
	b.mu.Unlock()
	if h != nil {
		if err := h.Write(preview); err != nil {
			logging.Debug("Batch %s: could not keep local preview of %s: %v", b.id, it.raw.Name, err)
		} else {
			b.mu.Lock()
			it.previewN++
			b.mu.Unlock()
		}
	}

	obj, err := b.store(ctx, preview, backend.RoleThumbnail, ".jpg", "image/jpeg")
	if err != nil {
		logging.Warn("Batch %s: thumbnail upload failed for %s: %v", b.id, it.raw.Name, err)
		return fallback
	}
	return obj.URL
}

func (b *Batch) register(ctx context.Context, it *item, st staged, skipQuota bool) error {
	b.setProgress(it, progressRegister)

	now := b.opt.Now()
	captured := it.raw.ModTime
	if st.record.CaptureTime != nil {
		captured = *st.record.CaptureTime
	}
	if captured.IsZero() {
		captured = now
	}

	asset := backend.AssetRecord{
		Record:       *st.record,
		OriginalURL:  st.original.URL,
		WebURL:       st.web.URL,
		ThumbnailURL: st.thumbnailURL,
		ObjectID:     st.original.ObjectID,
		CapturedAt:   captured,
		CreatedAt:    now,
		Kind:         it.kind,
		FileName:     it.raw.Name,
		Size:         it.raw.Size,
		MimeType:     mediatypes.ContentTypeFor(it.raw.Name, it.raw.ContentType),
	}

	start := time.Now()
	var err error
	if b.opt.AlbumID == "" {
		_, err = b.pipeline.Registrar.CreateInLibrary(ctx, asset, skipQuota)
	} else {
		var added int
		added, err = b.pipeline.Registrar.AddToAlbum(ctx, b.opt.AlbumID, []backend.AssetRecord{asset}, skipQuota)
		if err == nil && added < 1 {
			err = fmt.Errorf("album %s accepted no assets", b.opt.AlbumID)
		}
	}
	b.observe(stageRegister, start, err)

	var quota *backend.QuotaViolation
	if err != nil && !errors.As(err, &quota) && ctx.Err() == nil {
		return b.itemError(ctx, it, stageRegister, err)
	}
	return err
}

func (b *Batch) finish(ctx context.Context, it *item, err error) error {
	var quota *backend.QuotaViolation
	var itemErr *ItemError

	b.mu.Lock()
	switch {
	case err == nil:
		it.status = StatusSuccess
		it.progress = progressDone
		it.url = it.staged.web.URL
		b.dirty = true
		b.observer.ObserveItem(string(it.kind), string(StatusSuccess))
		logging.Debug("Batch %s: uploaded %s", b.id, it.raw.Name)

	case errors.As(err, &itemErr):
		it.status = StatusError
		it.progress = 0
		it.errMsg = itemErr.Err.Error()
		b.dirty = true
		b.observer.ObserveItem(string(it.kind), string(StatusError))
		logging.Warn("Batch %s: %v", b.id, err)

	case errors.As(err, &quota) && !b.closed:
		// The item stays pending with its staged blobs so an override or
		// retry only repeats registration.
		it.status = StatusPending
		it.progress = 0
		b.pause = &pause{violation: quota, itemID: it.id}
		b.observer.ObserveQuotaPause(string(quota.Kind))
		logging.Info("Batch %s paused at %s: %v", b.id, it.raw.Name, quota)
		err = pausedError(b.pause)

	default:
		it.status = StatusPending
		it.progress = 0
		if quota != nil {
			err = ErrBatchClosed
		}
	}
	closed := b.closed
	succeeded := it.status == StatusSuccess
	b.mu.Unlock()

	// Dispose skips the in-flight item; clean it up now that it is done.
	if closed {
		if succeeded {
			b.releasePreview(it)
		} else {
			b.discard(ctx, it, "disposed")
		}
	}
	return err
}

func (b *Batch) store(ctx context.Context, data []byte, role backend.Role, ext, contentType string) (backend.StoredObject, error) {
	hint := backend.PathHint(b.opt.AccountID, role, ext, b.opt.Now())
	obj, err := b.pipeline.Blobs.Store(ctx, data, hint, contentType)
	b.observer.ObserveBlob(string(role), len(data), err)
	if err != nil {
		return backend.StoredObject{}, fmt.Errorf("failed to store %s: %w", role, err)
	}
	return obj, nil
}

func (b *Batch) setProgress(it *item, progress int) {
	b.mu.Lock()
	it.progress = progress
	b.mu.Unlock()
}

func (b *Batch) observe(stage string, start time.Time, err error) {
	b.observer.ObserveStage(stage, time.Since(start).Seconds(), err)
}

// itemError marks a stage failure as item-fatal unless it was caused by
// cancellation, which leaves the item pending.
func (b *Batch) itemError(ctx context.Context, it *item, stage string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &ItemError{ItemID: it.id, Name: it.raw.Name, Stage: stage, Err: err}
}
