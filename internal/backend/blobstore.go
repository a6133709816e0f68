package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"

	"github.com/google/uuid"
	"github.com/rclone/rclone/lib/pacer"
	"github.com/rclone/rclone/lib/rest"
)

// HTTPBlobStore stores blobs with PUT /objects/{pathHint}.
type HTTPBlobStore struct {
	srv   *rest.Client
	pacer *pacer.Pacer
}

// NewHTTPBlobStore creates a BlobStore client.
func NewHTTPBlobStore(opt Options) *HTTPBlobStore {
	srv, p := newClient(opt)
	return &HTTPBlobStore{srv: srv, pacer: p}
}

// escapePath escapes each segment of a slash separated path.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// Store implements BlobStore. A response without an object id gets a
// locally generated UUID.
func (s *HTTPBlobStore) Store(ctx context.Context, data []byte, pathHint, contentType string) (StoredObject, error) {
	start := time.Now()
	size := int64(len(data))
	opts := rest.Opts{
		Method:        "PUT",
		Path:          "/objects/" + escapePath(pathHint),
		ContentType:   contentType,
		ContentLength: &size,
	}

	var (
		result StoredObject
		resp   *http.Response
		err    error
	)
	err = s.pacer.Call(func() (bool, error) {
		opts.Body = bytes.NewReader(data)
		result = StoredObject{}
		resp, err = s.srv.CallJSON(ctx, &opts, nil, &result)
		return shouldRetry(ctx, resp, err)
	})
	observeRequest("store", start, err)
	if err != nil {
		return StoredObject{}, fmt.Errorf("couldn't store %s: %w", pathHint, err)
	}
	if result.URL == "" {
		return StoredObject{}, errors.New("blob store returned no url")
	}
	if result.ObjectID == "" {
		result.ObjectID = uuid.New().String()
		logging.Debug("Blob store returned no object id for %s, generated %s", pathHint, result.ObjectID)
	}
	return result, nil
}

// observeRequest records one backend call.
func observeRequest(operation string, start time.Time, err error) {
	status := "success"
	var quota *QuotaViolation
	switch {
	case errors.As(err, &quota):
		status = "quota"
	case err != nil:
		status = "error"
	}
	metrics.BackendRequestsTotal.WithLabelValues(operation, status).Inc()
	metrics.BackendRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
