package upload

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"media-ingest/internal/backend"
	"media-ingest/internal/database"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
)

var testTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func jpegItem(name string) mediatypes.RawItem {
	return mediatypes.FromBytes(name, "image/jpeg", []byte("jpeg:"+name), testTime)
}

func heicItem(name string) mediatypes.RawItem {
	return mediatypes.FromBytes(name, "image/heic", []byte("heic:"+name), testTime)
}

type storeCall struct {
	hint        string
	contentType string
	data        string
}

type fakeBlobStore struct {
	mu    sync.Mutex
	calls []storeCall
	// fail returns an error for a path hint, or nil.
	fail func(hint string) error
}

func (f *fakeBlobStore) Store(_ context.Context, data []byte, hint, contentType string) (backend.StoredObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(hint); err != nil {
			return backend.StoredObject{}, err
		}
	}
	f.calls = append(f.calls, storeCall{hint: hint, contentType: contentType, data: string(data)})
	return backend.StoredObject{
		URL:      "https://blobs.test/" + hint,
		ObjectID: fmt.Sprintf("obj-%d", len(f.calls)),
	}, nil
}

func (f *fakeBlobStore) count(role backend.Role) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.Contains(c.hint, "/"+string(role)+"/") {
			n++
		}
	}
	return n
}

func (f *fakeBlobStore) setFail(fn func(hint string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = fn
}

type registerCall struct {
	asset     backend.AssetRecord
	albumID   string
	skipQuota bool
}

type fakeRegistrar struct {
	mu    sync.Mutex
	calls []registerCall
	// rejectAt makes the n-th call (1-based) fail with a photo-limit
	// violation unless quota is skipped. Zero disables it.
	rejectAt int
	// fail returns an item-fatal error for a file name, or nil.
	fail func(name string) error
}

func (f *fakeRegistrar) record(asset backend.AssetRecord, albumID string, skipQuota bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, registerCall{asset: asset, albumID: albumID, skipQuota: skipQuota})
	if f.fail != nil {
		if err := f.fail(asset.FileName); err != nil {
			return err
		}
	}
	if len(f.calls) == f.rejectAt && !skipQuota {
		return &backend.QuotaViolation{
			Kind:    backend.QuotaPhotoLimit,
			Current: 48,
			Limit:   50,
			Message: "Your plan allows 50 photos",
		}
	}
	return nil
}

func (f *fakeRegistrar) CreateInLibrary(_ context.Context, asset backend.AssetRecord, skipQuota bool) (string, error) {
	if err := f.record(asset, "", skipQuota); err != nil {
		return "", err
	}
	return "asset-" + asset.FileName, nil
}

func (f *fakeRegistrar) AddToAlbum(_ context.Context, albumID string, assets []backend.AssetRecord, skipQuota bool) (int, error) {
	for _, a := range assets {
		if err := f.record(a, albumID, skipQuota); err != nil {
			return 0, err
		}
	}
	return len(assets), nil
}

func (f *fakeRegistrar) registered() []registerCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]registerCall(nil), f.calls...)
}

type fakeExtractor struct{}

func (fakeExtractor) ExtractFrom(_ context.Context, item mediatypes.RawItem, _ []byte, kind mediatypes.Kind) metadata.Record {
	captured := time.Date(2023, 8, 14, 9, 30, 0, 0, time.UTC)
	rec := metadata.Record{CaptureTime: &captured}
	if kind == mediatypes.KindVideo {
		d := 12.5
		rec.Duration = &d
	}
	return rec
}

type fakeNormalizer struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeNormalizer) Normalize(_ context.Context, data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]byte("normalized:"), data...), nil
}

type fakePreviews struct {
	mu      sync.Mutex
	sources []string
	err     error
}

func (f *fakePreviews) Generate(_ context.Context, data []byte, name string, _ mediatypes.Kind, _ float64) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sources = append(f.sources, string(data))
	if f.err != nil {
		return nil, f.err
	}
	return []byte("preview:" + name), nil
}

type countingHandle struct {
	store *countingPreviewStore
	id    string
	data  []byte
}

func (h *countingHandle) Write(data []byte) error {
	h.data = data
	return nil
}

func (h *countingHandle) Read() ([]byte, error) {
	if h.data == nil {
		return nil, ErrNoPreviewData
	}
	return h.data, nil
}

func (h *countingHandle) Release() error {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.releases[h.id]++
	return nil
}

type countingPreviewStore struct {
	mu       sync.Mutex
	acquired []string
	releases map[string]int
}

func newCountingPreviewStore() *countingPreviewStore {
	return &countingPreviewStore{releases: make(map[string]int)}
}

func (s *countingPreviewStore) Acquire(itemID string) (PreviewHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.acquired = append(s.acquired, itemID)
	return &countingHandle{store: s, id: itemID}, nil
}

func (s *countingPreviewStore) releaseCount(itemID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.releases[itemID]
}

type fakeLedger struct {
	mu      sync.Mutex
	orphans []database.Orphan
	batches []database.BatchRecord
}

func (f *fakeLedger) RecordOrphan(_ context.Context, o database.Orphan) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orphans = append(f.orphans, o)
	return nil
}

func (f *fakeLedger) RecordBatch(_ context.Context, b database.BatchRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, b)
	return nil
}

func (f *fakeLedger) orphanList() []database.Orphan {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]database.Orphan(nil), f.orphans...)
}

func (f *fakeLedger) outcomes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, b := range f.batches {
		out = append(out, b.Outcome)
	}
	return out
}

type harness struct {
	blobs      *fakeBlobStore
	registrar  *fakeRegistrar
	normalizer *fakeNormalizer
	previews   *fakePreviews
	store      *countingPreviewStore
	ledger     *fakeLedger

	mu        sync.Mutex
	completed []int
	upgrades  []PauseSummary
	batch     *Batch
}

func newHarness(opts ...func(*Options)) *harness {
	h := &harness{
		blobs:      &fakeBlobStore{},
		registrar:  &fakeRegistrar{},
		normalizer: &fakeNormalizer{},
		previews:   &fakePreviews{},
		store:      newCountingPreviewStore(),
		ledger:     &fakeLedger{},
	}
	opt := Options{
		AccountID: "acct-1",
		OnComplete: func(n int) {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.completed = append(h.completed, n)
		},
		Ledger:   h.ledger,
		Previews: h.store,
		Upgrade: UpgradeFunc(func(_ context.Context, p PauseSummary) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.upgrades = append(h.upgrades, p)
			return nil
		}),
		Now: func() time.Time { return testTime },
	}
	for _, o := range opts {
		o(&opt)
	}
	h.batch = NewBatch(Pipeline{
		Extractor:  fakeExtractor{},
		Normalizer: h.normalizer,
		Previews:   h.previews,
		Blobs:      h.blobs,
		Registrar:  h.registrar,
	}, opt)
	return h
}

func (h *harness) completions() []int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]int(nil), h.completed...)
}

func statuses(s Snapshot) []Status {
	out := make([]Status, len(s.Items))
	for i, it := range s.Items {
		out[i] = it.Status
	}
	return out
}
