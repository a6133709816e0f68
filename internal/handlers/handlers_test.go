package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"media-ingest/internal/backend"
	"media-ingest/internal/database"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/startup"
	"media-ingest/internal/upload"
)

type fakeBlobStore struct {
	mu sync.Mutex
	n  int
}

func (f *fakeBlobStore) Store(_ context.Context, _ []byte, pathHint, _ string) (backend.StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return backend.StoredObject{URL: "https://blobs.test/" + pathHint, ObjectID: fmt.Sprintf("obj-%d", f.n)}, nil
}

// fakeRegistrar rejects creations beyond limit unless quota is skipped.
type fakeRegistrar struct {
	mu      sync.Mutex
	created int
	limit   int
}

func (f *fakeRegistrar) CreateInLibrary(_ context.Context, _ backend.AssetRecord, skipQuota bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !skipQuota && f.limit > 0 && f.created >= f.limit {
		return "", &backend.QuotaViolation{
			Kind:    backend.QuotaPhotoLimit,
			Current: int64(f.created),
			Limit:   int64(f.limit),
			Message: "photo limit reached",
		}
	}
	f.created++
	return fmt.Sprintf("asset-%d", f.created), nil
}

func (f *fakeRegistrar) AddToAlbum(ctx context.Context, _ string, assets []backend.AssetRecord, skipQuota bool) (int, error) {
	for _, a := range assets {
		if _, err := f.CreateInLibrary(ctx, a, skipQuota); err != nil {
			return 0, err
		}
	}
	return len(assets), nil
}

type testServer struct {
	handlers *Handlers
	router   *mux.Router
	registry *upload.Registry
	db       *database.Database
	previews *upload.MemoryPreviewStore
}

func newTestServer(t *testing.T, quotaLimit int) *testServer {
	t.Helper()

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "ingest.db"))
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })

	registry := upload.NewRegistry()
	t.Cleanup(func() { registry.Close(context.Background()) })

	previews := upload.NewMemoryPreviewStore()
	pipeline := upload.Pipeline{
		Previews:  stubPreviews{},
		Blobs:     &fakeBlobStore{},
		Registrar: &fakeRegistrar{limit: quotaLimit},
	}
	factory := func(albumID string) *upload.Batch {
		return upload.NewBatch(pipeline, upload.Options{
			AccountID: "acct-1",
			AlbumID:   albumID,
			Ledger:    db,
			Previews:  previews,
		})
	}

	h := New(registry, factory, db, &startup.Config{MaxUploadBytes: 1024, UpgradeURL: "https://example.com/upgrade"})
	return &testServer{handlers: h, router: testRouter(h), registry: registry, db: db, previews: previews}
}

func testRouter(h *Handlers) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/batches", h.ListBatches).Methods("GET")
	api.HandleFunc("/batches", h.CreateBatch).Methods("POST")
	api.HandleFunc("/batches/{id}", h.GetBatch).Methods("GET")
	api.HandleFunc("/batches/{id}", h.DeleteBatch).Methods("DELETE")
	api.HandleFunc("/batches/{id}/run", h.RunBatch).Methods("POST")
	api.HandleFunc("/batches/{id}/resolve", h.ResolveBatch).Methods("POST")
	api.HandleFunc("/batches/{id}/items/{item}/retry", h.RetryItem).Methods("POST")
	api.HandleFunc("/batches/{id}/items/{item}", h.RemoveItem).Methods("DELETE")
	api.HandleFunc("/batches/{id}/items/{item}/preview", h.GetPreview).Methods("GET")
	api.HandleFunc("/orphans", h.ListOrphans).Methods("GET")
	api.HandleFunc("/orphans/{id}/reclaimed", h.MarkOrphanReclaimed).Methods("POST")
	api.HandleFunc("/history", h.BatchHistory).Methods("GET")
	return r
}

type stubPreviews struct{}

func (stubPreviews) Generate(_ context.Context, data []byte, _ string, _ mediatypes.Kind, _ float64) ([]byte, error) {
	return append([]byte("preview:"), data...), nil
}

type uploadFile struct {
	name string
	data string
}

func multipartBody(t *testing.T, files []uploadFile, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile("files", f.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write([]byte(f.data)); err != nil {
			t.Fatal(err)
		}
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func (s *testServer) do(t *testing.T, method, path string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	if body == nil {
		body = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) create(t *testing.T, files ...uploadFile) CreateBatchResponse {
	t.Helper()
	body, ct := multipartBody(t, files, map[string]string{"lastModified": "1700000000000"})
	w := s.do(t, http.MethodPost, "/api/batches", body, ct)
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /api/batches = %d: %s", w.Code, w.Body.String())
	}
	var resp CreateBatchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	return resp
}

func (s *testServer) snapshot(t *testing.T, id string) upload.Snapshot {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/batches/"+id, nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET batch = %d: %s", w.Code, w.Body.String())
	}
	var snap upload.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return snap
}

// waitFor polls the batch until cond holds.
func (s *testServer) waitFor(t *testing.T, id string, cond func(upload.Snapshot) bool) upload.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		snap := s.snapshot(t, id)
		if cond(snap) {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("batch %s did not reach the expected state: %+v", id, snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func complete(s upload.Snapshot) bool { return s.Complete }
func paused(s upload.Snapshot) bool   { return s.Paused != nil }

func jpegs(n int) []uploadFile {
	files := make([]uploadFile, n)
	for i := range files {
		files[i] = uploadFile{name: fmt.Sprintf("%d.jpg", i+1), data: fmt.Sprintf("jpeg-%d", i+1)}
	}
	return files
}

func TestCreateBatchUploadsItems(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.create(t, jpegs(3)...)
	if len(resp.Batch.Items) != 3 {
		t.Fatalf("items = %d, want 3", len(resp.Batch.Items))
	}
	if len(resp.Rejected) != 0 {
		t.Errorf("rejected = %v", resp.Rejected)
	}

	snap := s.waitFor(t, resp.Batch.ID, complete)
	if snap.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", snap.Succeeded)
	}
	for _, it := range snap.Items {
		if it.Status != upload.StatusSuccess || !strings.HasPrefix(it.URL, "https://blobs.test/") {
			t.Errorf("item %s: status=%s url=%q", it.Name, it.Status, it.URL)
		}
	}
}

func TestCreateBatchRejections(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.create(t,
		uploadFile{name: "ok.jpg", data: "jpeg"},
		uploadFile{name: "notes.txt", data: "just some text"},
		uploadFile{name: "huge.jpg", data: strings.Repeat("x", 2048)},
	)

	if len(resp.Batch.Items) != 1 {
		t.Errorf("items = %d, want 1", len(resp.Batch.Items))
	}
	reasons := map[string]string{}
	for _, r := range resp.Rejected {
		reasons[r.Name] = r.Reason
	}
	if reasons["notes.txt"] != "unsupported" {
		t.Errorf("notes.txt reason = %q, want unsupported", reasons["notes.txt"])
	}
	if reasons["huge.jpg"] != "too_large" {
		t.Errorf("huge.jpg reason = %q, want too_large", reasons["huge.jpg"])
	}
}

func TestCreateBatchBadRequests(t *testing.T) {
	s := newTestServer(t, 0)

	w := s.do(t, http.MethodPost, "/api/batches", bytes.NewBufferString("nope"), "text/plain")
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-multipart body = %d, want 400", w.Code)
	}

	body, ct := multipartBody(t, nil, map[string]string{"albumId": "a1"})
	w = s.do(t, http.MethodPost, "/api/batches", body, ct)
	if w.Code != http.StatusBadRequest {
		t.Errorf("no files = %d, want 400", w.Code)
	}
}

func TestQuotaPauseAndOverride(t *testing.T) {
	s := newTestServer(t, 2)
	resp := s.create(t, jpegs(4)...)
	id := resp.Batch.ID

	snap := s.waitFor(t, id, paused)
	if snap.Paused.Kind != backend.QuotaPhotoLimit || snap.Paused.Limit != 2 {
		t.Errorf("paused = %+v", snap.Paused)
	}
	if snap.Succeeded != 2 {
		t.Errorf("succeeded before pause = %d, want 2", snap.Succeeded)
	}

	w := s.do(t, http.MethodPost, "/api/batches/"+id+"/run", nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("run while paused = %d, want 409", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/batches/"+id+"/resolve", bytes.NewBufferString(`{"action":"override"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("resolve override = %d: %s", w.Code, w.Body.String())
	}

	snap = s.waitFor(t, id, complete)
	if snap.Succeeded != 4 {
		t.Errorf("succeeded after override = %d, want 4", snap.Succeeded)
	}
}

func TestQuotaSkipRestRecordsOrphans(t *testing.T) {
	s := newTestServer(t, 1)
	id := s.create(t, jpegs(3)...).Batch.ID
	s.waitFor(t, id, paused)

	w := s.do(t, http.MethodPost, "/api/batches/"+id+"/resolve", bytes.NewBufferString(`{"action":"skip-rest"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("resolve skip-rest = %d: %s", w.Code, w.Body.String())
	}
	var resp ResolveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Batch.Complete || resp.Batch.Succeeded != 1 || resp.Batch.Discarded != 2 {
		t.Errorf("batch after skip-rest = %+v", resp.Batch)
	}

	w = s.do(t, http.MethodGet, "/api/orphans", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/orphans = %d", w.Code)
	}
	var orphans []database.Orphan
	if err := json.NewDecoder(w.Body).Decode(&orphans); err != nil {
		t.Fatal(err)
	}
	// The trigger item had its original and thumbnail stored before the pause.
	if len(orphans) != 2 {
		t.Fatalf("orphans = %d, want 2", len(orphans))
	}

	w = s.do(t, http.MethodPost, fmt.Sprintf("/api/orphans/%d/reclaimed", orphans[0].ID), nil, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("mark reclaimed = %d, want 204", w.Code)
	}
	w = s.do(t, http.MethodPost, "/api/orphans/999999/reclaimed", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("mark unknown reclaimed = %d, want 404", w.Code)
	}
	w = s.do(t, http.MethodPost, "/api/orphans/abc/reclaimed", nil, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("mark bad id = %d, want 400", w.Code)
	}

	w = s.do(t, http.MethodGet, "/api/history", nil, "")
	var history []database.BatchRecord
	if err := json.NewDecoder(w.Body).Decode(&history); err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Outcome != "skipped" {
		t.Errorf("history = %+v", history)
	}
}

func TestQuotaUpgradeReturnsURL(t *testing.T) {
	s := newTestServer(t, 1)
	id := s.create(t, jpegs(2)...).Batch.ID
	s.waitFor(t, id, paused)

	w := s.do(t, http.MethodPost, "/api/batches/"+id+"/resolve", bytes.NewBufferString(`{"action":"upgrade"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("resolve upgrade = %d: %s", w.Code, w.Body.String())
	}
	var resp ResolveResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.UpgradeURL != "https://example.com/upgrade" {
		t.Errorf("upgradeUrl = %q", resp.UpgradeURL)
	}
	if !resp.Batch.Closed {
		t.Error("batch should be closed after upgrade")
	}

	w = s.do(t, http.MethodPost, "/api/batches/"+id+"/resolve", bytes.NewBufferString(`{"action":"cancel"}`), "application/json")
	if w.Code != http.StatusGone {
		t.Errorf("resolve on closed batch = %d, want 410", w.Code)
	}
}

func TestQuotaCancelThenRetry(t *testing.T) {
	s := newTestServer(t, 1)
	id := s.create(t, jpegs(2)...).Batch.ID
	snap := s.waitFor(t, id, paused)
	trigger := snap.Paused.ItemID

	w := s.do(t, http.MethodPost, "/api/batches/"+id+"/items/"+trigger+"/retry", nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("retry while paused = %d, want 409", w.Code)
	}

	w = s.do(t, http.MethodPost, "/api/batches/"+id+"/resolve", bytes.NewBufferString(`{"action":"cancel"}`), "application/json")
	if w.Code != http.StatusOK {
		t.Fatalf("resolve cancel = %d", w.Code)
	}
	if snap = s.snapshot(t, id); snap.Paused == nil || !snap.Paused.Dismissed {
		t.Fatalf("pause after cancel = %+v", snap.Paused)
	}

	w = s.do(t, http.MethodPost, "/api/batches/"+id+"/items/"+trigger+"/retry", nil, "")
	if w.Code != http.StatusAccepted {
		t.Errorf("retry after cancel = %d, want 202", w.Code)
	}
	// The registrar is still at its limit, so the retry pauses again.
	s.waitFor(t, id, func(s upload.Snapshot) bool { return s.Paused != nil && !s.Paused.Dismissed })
}

func TestResolveErrors(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t, jpegs(1)...).Batch.ID
	s.waitFor(t, id, complete)

	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{"unknown batch", "/api/batches/nope/resolve", `{"action":"cancel"}`, http.StatusNotFound},
		{"bad body", "/api/batches/" + id + "/resolve", `{`, http.StatusBadRequest},
		{"unknown action", "/api/batches/" + id + "/resolve", `{"action":"shrug"}`, http.StatusBadRequest},
		{"not paused", "/api/batches/" + id + "/resolve", `{"action":"cancel"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, tt.path, bytes.NewBufferString(tt.body), "application/json")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestItemEndpoints(t *testing.T) {
	s := newTestServer(t, 0)
	resp := s.create(t, jpegs(2)...)
	id := resp.Batch.ID
	s.waitFor(t, id, complete)
	itemID := resp.Batch.Items[0].ID

	w := s.do(t, http.MethodGet, "/api/batches/"+id+"/items/"+itemID+"/preview", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET preview = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "image/jpeg" {
		t.Errorf("preview Content-Type = %q", got)
	}
	if !strings.HasPrefix(w.Body.String(), "preview:") {
		t.Errorf("preview body = %q", w.Body.String())
	}

	w = s.do(t, http.MethodPost, "/api/batches/"+id+"/items/"+itemID+"/retry", nil, "")
	if w.Code != http.StatusConflict {
		t.Errorf("retry uploaded item = %d, want 409", w.Code)
	}

	w = s.do(t, http.MethodDelete, "/api/batches/"+id+"/items/"+itemID, nil, "")
	if w.Code != http.StatusNoContent {
		t.Errorf("DELETE item = %d, want 204", w.Code)
	}
	w = s.do(t, http.MethodGet, "/api/batches/"+id+"/items/"+itemID+"/preview", nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("preview of removed item = %d, want 404", w.Code)
	}
	w = s.do(t, http.MethodDelete, "/api/batches/"+id+"/items/"+itemID, nil, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("DELETE removed item = %d, want 404", w.Code)
	}
}

func TestDeleteBatch(t *testing.T) {
	s := newTestServer(t, 0)
	id := s.create(t, jpegs(1)...).Batch.ID
	s.waitFor(t, id, complete)

	w := s.do(t, http.MethodGet, "/api/batches", nil, "")
	var list []upload.Snapshot
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("live batches = %d, want 1", len(list))
	}

	if w := s.do(t, http.MethodDelete, "/api/batches/"+id, nil, ""); w.Code != http.StatusNoContent {
		t.Errorf("DELETE batch = %d, want 204", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/batches/"+id, nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("GET disposed batch = %d, want 404", w.Code)
	}
	if w := s.do(t, http.MethodDelete, "/api/batches/"+id, nil, ""); w.Code != http.StatusNotFound {
		t.Errorf("DELETE disposed batch = %d, want 404", w.Code)
	}
	if n := s.previews.Len(); n != 0 {
		t.Errorf("previews held after dispose = %d, want 0", n)
	}
}

type fakeMemoryStatus struct {
	usage  float64
	paused bool
}

func (f fakeMemoryStatus) Usage() float64 { return f.usage }
func (f fakeMemoryStatus) IsPaused() bool { return f.paused }

func TestHealthReportsMemoryPressure(t *testing.T) {
	s := newTestServer(t, 0)
	s.handlers.SetMemoryStatus(fakeMemoryStatus{usage: 0.92, paused: true})

	w := s.do(t, http.MethodGet, "/health", nil, "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.MemoryUsage != 0.92 {
		t.Errorf("MemoryUsage = %v, want 0.92", health.MemoryUsage)
	}
	if !health.MemoryPaused {
		t.Error("MemoryPaused = false, want true")
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, 0)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/livez", http.StatusOK},
		{http.MethodHead, "/livez", http.StatusOK},
		{http.MethodGet, "/readyz", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := s.do(t, tt.method, tt.path, nil, "")
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
			if tt.method == http.MethodHead && w.Body.Len() != 0 {
				t.Error("HEAD response has a body")
			}
		})
	}

	w := s.do(t, http.MethodGet, "/health", nil, "")
	var health HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != statusHealthy || !health.Ready {
		t.Errorf("health = %+v", health)
	}

	s.db.Close()
	if w := s.do(t, http.MethodGet, "/readyz", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with closed db = %d, want 503", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/health", nil, ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("health with closed db = %d, want 503", w.Code)
	}
}

func TestGetVersion(t *testing.T) {
	h := &Handlers{}
	w := httptest.NewRecorder()
	h.GetVersion(w, httptest.NewRequest(http.MethodGet, "/version", http.NoBody))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Cache-Control = %q", got)
	}
	var info startup.BuildInfo
	if err := json.NewDecoder(w.Body).Decode(&info); err != nil {
		t.Fatal(err)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion missing")
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{upload.ErrBatchNotFound, http.StatusNotFound},
		{fmt.Errorf("wrapped: %w", upload.ErrItemNotFound), http.StatusNotFound},
		{database.ErrOrphanNotFound, http.StatusNotFound},
		{upload.ErrUnknownAction, http.StatusBadRequest},
		{upload.ErrBatchClosed, http.StatusGone},
		{upload.ErrItemBusy, http.StatusConflict},
		{upload.ErrNotPaused, http.StatusConflict},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestQueryLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=-1", 50},
		{"limit=abc", 50},
		{"limit=100000", 500},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/history?"+tt.query, http.NoBody)
		if got := queryLimit(r, 50, 500); got != tt.want {
			t.Errorf("queryLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}
