package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/upload"
)

// writeJSON encodes v as JSON and writes it to the response writer.
// Any encoding or write errors are logged since we typically cannot
// recover from them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"error": message})
}

// writeJSONStatus writes a simple status response as JSON.
func writeJSONStatus(w http.ResponseWriter, statusCode int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, map[string]string{"status": status})
}

// statusFor maps batch and ledger errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, upload.ErrBatchNotFound),
		errors.Is(err, upload.ErrItemNotFound),
		errors.Is(err, upload.ErrNoPreviewData),
		errors.Is(err, upload.ErrPreviewReleased),
		errors.Is(err, database.ErrOrphanNotFound):
		return http.StatusNotFound
	case errors.Is(err, upload.ErrUnknownAction):
		return http.StatusBadRequest
	case errors.Is(err, upload.ErrBatchClosed):
		return http.StatusGone
	case errors.Is(err, upload.ErrBatchPaused),
		errors.Is(err, upload.ErrItemBusy),
		errors.Is(err, upload.ErrNotRetryable),
		errors.Is(err, upload.ErrNotPaused):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
	}
	writeJSONError(w, err.Error(), code)
}

// queryLimit parses the "limit" query parameter.
func queryLimit(r *http.Request, def, maxLimit int) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
