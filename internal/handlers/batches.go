package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/upload"
)

const (
	// multipartMemory is how much of a multipart body is kept in memory
	// before parts spill to temp files.
	multipartMemory = 32 << 20

	maxFilesPerBatch = 500
)

var errPartTooLarge = errors.New("part exceeds the upload size limit")

// ResolveRequest carries a quota decision.
type ResolveRequest struct {
	Action string `json:"action"`
}

// ResolveResponse acknowledges a quota decision.
type ResolveResponse struct {
	Status     string          `json:"status"`
	Action     upload.Action   `json:"action"`
	UpgradeURL string          `json:"upgradeUrl,omitempty"`
	Batch      upload.Snapshot `json:"batch"`
}

// CreateBatchResponse is returned when a batch is created.
type CreateBatchResponse struct {
	Batch    upload.Snapshot    `json:"batch"`
	Rejected []upload.Rejection `json:"rejected"`
}

// CreateBatch accepts a multipart upload ("files" parts, optional "albumId"
// and per-file "lastModified" in Unix milliseconds), creates a batch and
// starts it in the background.
func (h *Handlers) CreateBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSONError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		writeJSONError(w, "At least one file is required", http.StatusBadRequest)
		return
	}
	if len(files) > maxFilesPerBatch {
		writeJSONError(w, fmt.Sprintf("At most %d files per batch", maxFilesPerBatch), http.StatusBadRequest)
		return
	}

	modTimes := r.MultipartForm.Value["lastModified"]
	items := make([]mediatypes.RawItem, 0, len(files))
	for i, fh := range files {
		var modTime time.Time
		if i < len(modTimes) {
			modTime = parseMillis(modTimes[i])
		}
		item, err := h.rawItem(fh, modTime)
		if err != nil {
			writeJSONError(w, fmt.Sprintf("Failed to read %s", fh.Filename), http.StatusBadRequest)
			return
		}
		items = append(items, item)
	}

	batch := h.newBatch(r.FormValue("albumId"))
	res, err := batch.Add(items...)
	if err != nil {
		writeError(w, err)
		return
	}

	h.registry.Register(batch)
	logging.Info("Batch %s created: %d accepted, %d rejected", batch.ID(), len(res.Accepted), len(res.Rejected))

	if len(res.Accepted) > 0 {
		if err := h.registry.Go(batch.ID(), "run", runBatch); err != nil {
			writeError(w, err)
			return
		}
	}

	rejected := res.Rejected
	if rejected == nil {
		rejected = []upload.Rejection{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Location", "/api/batches/"+batch.ID())
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, CreateBatchResponse{Batch: batch.Snapshot(), Rejected: rejected})
}

// rawItem buffers a multipart file so the batch can read it after the
// request ends. Oversized parts are not read; pre-flight rejects them on size.
func (h *Handlers) rawItem(fh *multipart.FileHeader, modTime time.Time) (mediatypes.RawItem, error) {
	name := filepath.Base(fh.Filename)
	contentType := fh.Header.Get("Content-Type")

	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		return mediatypes.NewRawItem(name, contentType, fh.Size, modTime, func() (io.ReadCloser, error) {
			return nil, errPartTooLarge
		}), nil
	}

	f, err := fh.Open()
	if err != nil {
		return mediatypes.RawItem{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return mediatypes.RawItem{}, err
	}
	return mediatypes.FromBytes(name, contentType, data, modTime), nil
}

func parseMillis(s string) time.Time {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func runBatch(ctx context.Context, b *upload.Batch) error {
	return b.Run(ctx)
}

// ListBatches returns snapshots of all live batches
func (h *Handlers) ListBatches(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, h.registry.List())
}

// GetBatch returns a batch snapshot
func (h *Handlers) GetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	writeJSON(w, batch.Snapshot())
}

// RunBatch resumes processing, e.g. after a dismissed quota decision
func (h *Handlers) RunBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	batch, err := h.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := batch.Snapshot()
	if snap.Closed {
		writeError(w, upload.ErrBatchClosed)
		return
	}
	if snap.Paused != nil && !snap.Paused.Dismissed {
		writeError(w, fmt.Errorf("%w: %s", upload.ErrBatchPaused, snap.Paused.Message))
		return
	}

	if err := h.registry.Go(id, "run", runBatch); err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, "running")
}

// ResolveBatch applies a quota decision. Override continues the batch in
// the background; the other actions complete before the response.
func (h *Handlers) ResolveBatch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	batch, err := h.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	action, err := upload.ParseAction(req.Action)
	if err != nil {
		writeError(w, err)
		return
	}

	snap := batch.Snapshot()
	if snap.Closed {
		writeError(w, upload.ErrBatchClosed)
		return
	}
	if snap.Paused == nil {
		writeError(w, upload.ErrNotPaused)
		return
	}

	resp := ResolveResponse{Status: "resolved", Action: action}
	if action == upload.ActionOverride {
		err = h.registry.Go(id, "override", func(ctx context.Context, b *upload.Batch) error {
			return b.Resolve(ctx, action)
		})
		resp.Status = "running"
	} else {
		err = batch.Resolve(context.WithoutCancel(r.Context()), action)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	if action == upload.ActionUpgrade {
		resp.UpgradeURL = h.upgradeURL
	}
	resp.Batch = batch.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, resp)
}

// DeleteBatch disposes a batch, recording orphans for unregistered blobs
func (h *Handlers) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Dispose(context.WithoutCancel(r.Context()), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RetryItem re-processes a failed item in the background
func (h *Handlers) RetryItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, itemID := vars["id"], vars["item"]

	batch, err := h.registry.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := batch.CanRetry(itemID); err != nil {
		writeError(w, err)
		return
	}

	err = h.registry.Go(id, "retry", func(ctx context.Context, b *upload.Batch) error {
		return b.Retry(ctx, itemID)
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSONStatus(w, http.StatusAccepted, "retrying")
}

// RemoveItem drops an item from a batch
func (h *Handlers) RemoveItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	batch, err := h.registry.Get(vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	if err := batch.Remove(context.WithoutCancel(r.Context()), vars["item"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetPreview serves the locally generated preview of an item
func (h *Handlers) GetPreview(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	batch, err := h.registry.Get(vars["id"])
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := batch.Preview(vars["item"])
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		logging.Debug("failed to write preview: %v", err)
	}
}
