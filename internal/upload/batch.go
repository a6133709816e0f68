package upload

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"media-ingest/internal/backend"
	"media-ingest/internal/database"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"
	"media-ingest/internal/metadata"
)

// ItemError reports an item-fatal failure. The item is left in StatusError
// and may be retried.
type ItemError struct {
	ItemID string
	Name   string
	Stage  string
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s: %s stage failed: %v", e.Name, e.Stage, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

type item struct {
	id       string
	raw      mediatypes.RawItem
	kind     mediatypes.Kind
	status   Status
	progress int
	url      string
	errMsg   string
	preview  PreviewHandle
	previewN int
	staged   staged
}

// staged holds what an item already has in the blob store. A retried or
// overridden item resumes from here instead of uploading again.
type staged struct {
	record       *metadata.Record
	original     *backend.StoredObject
	web          *backend.StoredObject
	thumbnailURL string

	// webData is the derivative payload, kept until the preview is rendered.
	webData []byte
}

func (s staged) empty() bool {
	return s.original == nil && s.web == nil && s.thumbnailURL == ""
}

type pause struct {
	violation *backend.QuotaViolation
	itemID    string
	dismissed bool
}

// Batch is a set of items uploaded together. Items are processed strictly
// one at a time so a quota violation stops the batch after the fewest
// possible transfers.
//
// Run, Retry and Resolve are serialized; Snapshot, Add and Remove may be
// called from other goroutines while a run is in progress.
type Batch struct {
	id        string
	pipeline  Pipeline
	opt       Options
	observer  Observer
	createdAt time.Time

	runMu sync.Mutex

	mu        sync.Mutex
	items     []*item
	pause     *pause
	skipQuota bool
	closed    bool
	disposed  bool
	dirty     bool
	discarded int
}

// NewBatch creates an empty batch.
func NewBatch(p Pipeline, opt Options) *Batch {
	if opt.Now == nil {
		opt.Now = time.Now
	}
	observer := opt.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	return &Batch{
		id:        uuid.New().String(),
		pipeline:  p,
		opt:       opt,
		observer:  observer,
		createdAt: opt.Now(),
	}
}

// ID returns the batch identifier.
func (b *Batch) ID() string {
	return b.id
}

// Add runs pre-flight checks and appends the accepted items as pending.
// Unsupported or oversized items are excluded and reported in the result.
func (b *Batch) Add(items ...mediatypes.RawItem) (AddResult, error) {
	res := AddResult{Accepted: []string{}}
	accepted := make([]*item, 0, len(items))

	for _, raw := range items {
		kind, err := mediatypes.Preflight(raw, b.opt.MaxBytes)
		if err != nil {
			reason := "unsupported"
			if errors.Is(err, mediatypes.ErrTooLarge) {
				reason = "too_large"
			}
			b.observer.ObserveRejected(reason)
			logging.Debug("Batch %s: excluding %s: %v", b.id, raw.Name, err)
			res.Rejected = append(res.Rejected, Rejection{Name: raw.Name, Reason: reason})
			continue
		}
		accepted = append(accepted, &item{
			id:     uuid.New().String(),
			raw:    raw,
			kind:   kind,
			status: StatusPending,
		})
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return AddResult{}, ErrBatchClosed
	}

	for _, it := range accepted {
		if b.opt.Previews != nil {
			h, err := b.opt.Previews.Acquire(it.id)
			if err != nil {
				logging.Warn("Batch %s: no preview handle for %s: %v", b.id, it.raw.Name, err)
			} else {
				it.preview = h
			}
		}
		b.items = append(b.items, it)
		res.Accepted = append(res.Accepted, it.id)
	}

	if len(res.Rejected) > 0 {
		logging.Debug("Batch %s: accepted %d items, rejected %d", b.id, len(res.Accepted), len(res.Rejected))
	}
	return res, nil
}

// Run processes every pending item in order. It returns an error wrapping
// ErrBatchPaused and the *backend.QuotaViolation when registration is
// rejected for quota, or ctx.Err() when cancelled between stages. A pause
// that was dismissed with ActionCancel is cleared and quota is enforced
// again.
func (b *Batch) Run(ctx context.Context) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBatchClosed
	}
	if b.pause != nil {
		if !b.pause.dismissed {
			err := pausedError(b.pause)
			b.mu.Unlock()
			return err
		}
		logging.Info("Batch %s: resuming after dismissed quota decision", b.id)
		b.pause = nil
		b.dirty = true
	}
	b.mu.Unlock()

	return b.run(ctx)
}

func (b *Batch) run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		it, err := b.nextPending()
		if err != nil {
			return err
		}
		if it == nil {
			break
		}

		if err := b.process(ctx, it); err != nil {
			var itemErr *ItemError
			if errors.As(err, &itemErr) {
				continue
			}
			return err
		}
	}

	b.settle(ctx, "completed")
	return nil
}

func (b *Batch) nextPending() (*item, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBatchClosed
	}
	for _, it := range b.items {
		if it.status == StatusPending {
			return it, nil
		}
	}
	return nil, nil
}

// Retry re-processes a single failed item. A pending item may also be
// retried once its quota decision was dismissed.
func (b *Batch) Retry(ctx context.Context, itemID string) error {
	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.mu.Lock()
	it, err := b.retryableLocked(itemID)
	b.mu.Unlock()
	if err != nil {
		return err
	}

	logging.Info("Batch %s: retrying %s", b.id, it.raw.Name)
	if err := b.process(ctx, it); err != nil {
		return err
	}

	b.mu.Lock()
	if b.pause != nil && b.pause.itemID == itemID {
		b.pause = nil
	}
	b.mu.Unlock()

	b.settle(ctx, "completed")
	return nil
}

// CanRetry reports the error Retry would return before doing any work.
func (b *Batch) CanRetry(itemID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.retryableLocked(itemID)
	return err
}

func (b *Batch) retryableLocked(itemID string) (*item, error) {
	if b.closed {
		return nil, ErrBatchClosed
	}
	it := b.findLocked(itemID)
	if it == nil {
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	switch it.status {
	case StatusUploading:
		return nil, ErrItemBusy
	case StatusSuccess:
		return nil, fmt.Errorf("%w: %s already uploaded", ErrNotRetryable, it.raw.Name)
	}
	if b.pause != nil && !b.pause.dismissed {
		return nil, pausedError(b.pause)
	}
	return it, nil
}

// Resolve applies the user's decision for a quota-paused batch.
func (b *Batch) Resolve(ctx context.Context, action Action) error {
	if _, err := ParseAction(string(action)); err != nil {
		return fmt.Errorf("%w: %q", err, action)
	}

	b.runMu.Lock()
	defer b.runMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBatchClosed
	}
	if b.pause == nil {
		b.mu.Unlock()
		return ErrNotPaused
	}
	b.mu.Unlock()

	b.observer.ObserveResolution(string(action))
	logging.Info("Batch %s: quota decision %s", b.id, action)

	switch action {
	case ActionCancel:
		b.mu.Lock()
		if b.pause != nil {
			b.pause.dismissed = true
		}
		b.mu.Unlock()
		return nil

	case ActionSkipRest:
		b.skipRest(ctx)
		return nil

	case ActionOverride:
		b.mu.Lock()
		b.pause = nil
		b.skipQuota = true
		b.mu.Unlock()
		return b.run(ctx)

	default:
		return b.upgrade(ctx)
	}
}

func (b *Batch) skipRest(ctx context.Context) {
	b.mu.Lock()
	var dropped []*item
	kept := make([]*item, 0, len(b.items))
	for _, it := range b.items {
		if it.status == StatusPending {
			dropped = append(dropped, it)
			continue
		}
		kept = append(kept, it)
	}
	b.items = kept
	b.discarded += len(dropped)
	b.pause = nil
	b.dirty = true
	b.mu.Unlock()

	for _, it := range dropped {
		b.discard(ctx, it, string(ActionSkipRest))
	}
	b.settle(ctx, "skipped")
}

func (b *Batch) upgrade(ctx context.Context) error {
	b.mu.Lock()
	summary := b.pauseSummaryLocked()
	b.closed = true
	b.pause = nil
	var abandoned []*item
	for _, it := range b.items {
		if it.status == StatusPending {
			abandoned = append(abandoned, it)
		}
	}
	rec := b.batchRecordLocked("upgrade")
	b.mu.Unlock()

	for _, it := range abandoned {
		b.discard(ctx, it, string(ActionUpgrade))
	}
	b.observer.ObserveBatchOutcome("upgrade")
	b.recordBatch(ctx, rec)

	if b.opt.Upgrade == nil {
		logging.Warn("Batch %s: upgrade requested but no upgrade flow is configured", b.id)
		return nil
	}
	if err := b.opt.Upgrade.BeginUpgrade(ctx, summary); err != nil {
		return fmt.Errorf("failed to start upgrade: %w", err)
	}
	return nil
}

// Remove drops an item from the batch and releases its preview. Items
// being uploaded cannot be removed.
func (b *Batch) Remove(ctx context.Context, itemID string) error {
	b.mu.Lock()
	idx := slices.IndexFunc(b.items, func(it *item) bool { return it.id == itemID })
	if idx < 0 {
		b.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	it := b.items[idx]
	if it.status == StatusUploading {
		b.mu.Unlock()
		return ErrItemBusy
	}
	b.items = slices.Delete(b.items, idx, idx+1)
	if it.status != StatusSuccess {
		b.discarded++
	}
	b.dirty = true
	b.mu.Unlock()

	logging.Debug("Batch %s: removed %s", b.id, it.raw.Name)
	if it.status == StatusSuccess {
		b.releasePreview(it)
	} else {
		b.discard(ctx, it, "removed")
	}
	b.settle(ctx, "completed")
	return nil
}

// Dispose tears the batch down: every preview is released and blobs of
// items that never registered are recorded as orphans. It is safe to call
// more than once.
func (b *Batch) Dispose(ctx context.Context) {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return
	}
	b.disposed = true
	wasClosed := b.closed
	unfinished := b.pause != nil || b.countLocked(StatusPending) > 0
	b.closed = true
	b.pause = nil

	// An uploading item is finished by the run that owns it.
	var items []*item
	for _, it := range b.items {
		if it.status != StatusUploading {
			items = append(items, it)
		}
	}
	rec := b.batchRecordLocked("disposed")
	b.mu.Unlock()

	for _, it := range items {
		if it.status == StatusSuccess {
			b.releasePreview(it)
			continue
		}
		b.discard(ctx, it, "disposed")
	}

	if !wasClosed && unfinished {
		b.observer.ObserveBatchOutcome("disposed")
		b.recordBatch(ctx, rec)
	}
	logging.Debug("Batch %s disposed", b.id)
}

// Preview returns the generated preview of an item.
func (b *Batch) Preview(itemID string) ([]byte, error) {
	b.mu.Lock()
	it := b.findLocked(itemID)
	if it == nil {
		b.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}
	h := it.preview
	b.mu.Unlock()

	if h == nil {
		return nil, ErrNoPreviewData
	}
	return h.Read()
}

// Snapshot returns a consistent copy of the batch state.
func (b *Batch) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := Snapshot{
		ID:        b.id,
		AlbumID:   b.opt.AlbumID,
		CreatedAt: b.createdAt,
		Items:     make([]ItemSnapshot, 0, len(b.items)),
		Discarded: b.discarded,
		Closed:    b.closed,
		SkipQuota: b.skipQuota,
	}
	for _, it := range b.items {
		s.Items = append(s.Items, ItemSnapshot{
			ID:         it.id,
			Name:       it.raw.Name,
			Kind:       it.kind,
			Size:       it.raw.Size,
			Status:     it.status,
			Progress:   it.progress,
			URL:        it.url,
			Error:      it.errMsg,
			HasPreview: it.previewN > 0 && it.preview != nil,
		})
		switch it.status {
		case StatusPending:
			s.Pending++
		case StatusSuccess:
			s.Succeeded++
		case StatusError:
			s.Failed++
		}
	}
	if b.pause != nil {
		summary := b.pauseSummaryLocked()
		s.Paused = &summary
	}
	s.Complete = !b.closed && b.pause == nil && s.Pending == 0 && b.countLocked(StatusUploading) == 0
	return s
}

// settle reports completion once no pending or in-flight item is left and
// no quota decision is outstanding.
func (b *Batch) settle(ctx context.Context, outcome string) {
	b.mu.Lock()
	if b.closed || b.pause != nil || !b.dirty ||
		b.countLocked(StatusPending) > 0 || b.countLocked(StatusUploading) > 0 {
		b.mu.Unlock()
		return
	}
	b.dirty = false
	succeeded := b.countLocked(StatusSuccess)
	rec := b.batchRecordLocked(outcome)
	onComplete := b.opt.OnComplete
	b.mu.Unlock()

	logging.Info("Batch %s complete: %d succeeded, %d failed, %d discarded",
		b.id, rec.Succeeded, rec.Failed, rec.Discarded)
	b.observer.ObserveBatchOutcome(outcome)
	b.recordBatch(ctx, rec)

	if onComplete != nil {
		onComplete(succeeded)
	}
}

// discard releases an item's preview and hands any blobs it stored to the
// orphan ledger.
func (b *Batch) discard(ctx context.Context, it *item, reason string) {
	b.releasePreview(it)

	b.mu.Lock()
	st := it.staged
	it.staged = staged{}
	b.mu.Unlock()

	b.recordOrphans(ctx, it, st, reason)
}

func (b *Batch) releasePreview(it *item) {
	b.mu.Lock()
	h := it.preview
	it.preview = nil
	b.mu.Unlock()

	if h == nil {
		return
	}
	if err := h.Release(); err != nil {
		logging.Warn("Batch %s: failed to release preview of %s: %v", b.id, it.raw.Name, err)
	}
}

func (b *Batch) recordOrphans(ctx context.Context, it *item, st staged, reason string) {
	if st.empty() {
		return
	}

	type blob struct {
		role     backend.Role
		url      string
		objectID string
	}
	var blobs []blob
	seen := map[string]bool{"": true}
	add := func(role backend.Role, url, objectID string) {
		if seen[url] {
			return
		}
		seen[url] = true
		blobs = append(blobs, blob{role, url, objectID})
	}
	if st.original != nil {
		add(backend.RoleOriginal, st.original.URL, st.original.ObjectID)
	}
	if st.web != nil {
		add(backend.RoleWeb, st.web.URL, st.web.ObjectID)
	}
	add(backend.RoleThumbnail, st.thumbnailURL, "")

	// Ledger writes must survive the cancellation that caused the discard.
	ctx = context.WithoutCancel(ctx)
	for _, bl := range blobs {
		b.observer.ObserveOrphan(string(bl.role))
		if b.opt.Ledger == nil {
			logging.Warn("Batch %s: orphaned %s blob %s of %s (%s)", b.id, bl.role, bl.url, it.raw.Name, reason)
			continue
		}
		err := b.opt.Ledger.RecordOrphan(ctx, database.Orphan{
			URL:      bl.url,
			ObjectID: bl.objectID,
			Role:     string(bl.role),
			BatchID:  b.id,
			ItemName: it.raw.Name,
			Reason:   reason,
		})
		if err != nil {
			logging.Error("Batch %s: failed to record orphan %s: %v", b.id, bl.url, err)
		}
	}
}

func (b *Batch) recordBatch(ctx context.Context, rec database.BatchRecord) {
	if b.opt.Ledger == nil {
		return
	}
	if err := b.opt.Ledger.RecordBatch(context.WithoutCancel(ctx), rec); err != nil {
		logging.Error("Batch %s: failed to record outcome: %v", b.id, err)
	}
}

func (b *Batch) findLocked(itemID string) *item {
	for _, it := range b.items {
		if it.id == itemID {
			return it
		}
	}
	return nil
}

func (b *Batch) countLocked(status Status) int {
	n := 0
	for _, it := range b.items {
		if it.status == status {
			n++
		}
	}
	return n
}

func (b *Batch) pauseSummaryLocked() PauseSummary {
	if b.pause == nil {
		return PauseSummary{}
	}
	v := b.pause.violation
	return PauseSummary{
		Kind:      v.Kind,
		Current:   v.Current,
		Limit:     v.Limit,
		Message:   v.Message,
		ItemID:    b.pause.itemID,
		Pending:   b.countLocked(StatusPending),
		Succeeded: b.countLocked(StatusSuccess),
		Dismissed: b.pause.dismissed,
	}
}

func (b *Batch) batchRecordLocked(outcome string) database.BatchRecord {
	return database.BatchRecord{
		ID:          b.id,
		AlbumID:     b.opt.AlbumID,
		CreatedAt:   b.createdAt,
		CompletedAt: b.opt.Now(),
		Succeeded:   b.countLocked(StatusSuccess),
		Failed:      b.countLocked(StatusError),
		Discarded:   b.discarded,
		Outcome:     outcome,
	}
}

func pausedError(p *pause) error {
	return fmt.Errorf("%w: %w", ErrBatchPaused, p.violation)
}
