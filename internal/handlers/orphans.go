package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"media-ingest/internal/database"
)

// ListOrphans returns orphaned blobs for the garbage collector.
// ?all=true includes reclaimed entries.
func (h *Handlers) ListOrphans(w http.ResponseWriter, r *http.Request) {
	includeReclaimed, _ := strconv.ParseBool(r.URL.Query().Get("all"))

	orphans, err := h.ledger.ListOrphans(r.Context(), includeReclaimed, queryLimit(r, 500, 5000))
	if err != nil {
		writeError(w, err)
		return
	}
	if orphans == nil {
		orphans = []database.Orphan{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, orphans)
}

// MarkOrphanReclaimed records that the garbage collector deleted a blob
func (h *Handlers) MarkOrphanReclaimed(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSONError(w, "Invalid orphan id", http.StatusBadRequest)
		return
	}

	if err := h.ledger.MarkReclaimed(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BatchHistory returns recently finished batches
func (h *Handlers) BatchHistory(w http.ResponseWriter, r *http.Request) {
	batches, err := h.ledger.ListBatches(r.Context(), queryLimit(r, 50, 500))
	if err != nil {
		writeError(w, err)
		return
	}
	if batches == nil {
		batches = []database.BatchRecord{}
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, batches)
}
