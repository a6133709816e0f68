package upload

import (
	"context"
	"errors"
	"sync"

	"media-ingest/internal/logging"
	"media-ingest/internal/metrics"
)

// ErrBatchNotFound is returned for unknown batch ids.
var ErrBatchNotFound = errors.New("batch not found")

type entry struct {
	batch  *Batch
	ctx    context.Context
	cancel context.CancelFunc
}

// Registry tracks live batches and the background work running on them.
type Registry struct {
	mu      sync.RWMutex
	batches map[string]*entry
	wg      sync.WaitGroup
}

func NewRegistry() *Registry {
	return &Registry{batches: make(map[string]*entry)}
}

// Register adds a batch. Background work started through Go runs under a
// context that is cancelled when the batch is disposed.
func (r *Registry) Register(b *Batch) {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[b.ID()] = &entry{batch: b, ctx: ctx, cancel: cancel}
}

// Get returns a registered batch.
func (r *Registry) Get(id string) (*Batch, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.batches[id]
	if !ok {
		return nil, ErrBatchNotFound
	}
	return e.batch, nil
}

// Go runs fn against a batch in the background.
func (r *Registry) Go(id string, name string, fn func(ctx context.Context, b *Batch) error) error {
	r.mu.RLock()
	e, ok := r.batches[id]
	r.mu.RUnlock()
	if !ok {
		return ErrBatchNotFound
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := fn(e.ctx, e.batch); err != nil {
			if errors.Is(err, ErrBatchPaused) {
				logging.Info("Batch %s %s: %v", id, name, err)
				return
			}
			logging.Warn("Batch %s %s failed: %v", id, name, err)
		}
	}()
	return nil
}

// Dispose cancels background work on a batch, tears it down and forgets it.
func (r *Registry) Dispose(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.batches[id]
	delete(r.batches, id)
	r.mu.Unlock()

	if !ok {
		return ErrBatchNotFound
	}
	e.cancel()
	e.batch.Dispose(ctx)
	return nil
}

// Close disposes every batch and waits for background work to stop.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.batches))
	for id, e := range r.batches {
		entries = append(entries, e)
		delete(r.batches, id)
	}
	r.mu.Unlock()

	for _, e := range entries {
		e.cancel()
		e.batch.Dispose(ctx)
	}
	r.wg.Wait()
}

// List returns snapshots of all batches.
func (r *Registry) List() []Snapshot {
	r.mu.RLock()
	batches := make([]*Batch, 0, len(r.batches))
	for _, e := range r.batches {
		batches = append(batches, e.batch)
	}
	r.mu.RUnlock()

	snapshots := make([]Snapshot, 0, len(batches))
	for _, b := range batches {
		snapshots = append(snapshots, b.Snapshot())
	}
	return snapshots
}

// Stats summarizes the registry for the metrics collector.
func (r *Registry) Stats() metrics.Stats {
	var s metrics.Stats
	for _, snap := range r.List() {
		if snap.Closed {
			continue
		}
		s.ActiveBatches++
		if snap.Paused != nil {
			s.PausedBatches++
		}
		s.PendingItems += snap.Pending
	}
	return s
}
