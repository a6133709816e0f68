package upload

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrPreviewReleased is returned when a released handle is used.
var ErrPreviewReleased = errors.New("preview handle released")

// ErrNoPreviewData is returned by Read before a preview was written.
var ErrNoPreviewData = errors.New("preview not generated yet")

// PreviewHandle is the local preview owned by one item.
type PreviewHandle interface {
	Write(data []byte) error
	Read() ([]byte, error)
	Release() error
}

// PreviewStore hands out preview handles.
type PreviewStore interface {
	Acquire(itemID string) (PreviewHandle, error)
}

// FilePreviewStore keeps previews as files in a directory.
type FilePreviewStore struct {
	dir string
}

// NewFilePreviewStore creates the directory if needed.
func NewFilePreviewStore(dir string) (*FilePreviewStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create preview directory: %w", err)
	}
	return &FilePreviewStore{dir: dir}, nil
}

func (s *FilePreviewStore) Acquire(itemID string) (PreviewHandle, error) {
	return &filePreview{path: filepath.Join(s.dir, itemID+".jpg")}, nil
}

type filePreview struct {
	path     string
	mu       sync.Mutex
	released bool
}

func (p *filePreview) Write(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrPreviewReleased
	}

	tmp := p.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write preview: %w", err)
	}
	if err := os.Rename(tmp, p.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write preview: %w", err)
	}
	return nil
}

func (p *filePreview) Read() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, ErrPreviewReleased
	}

	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoPreviewData
	}
	return data, err
}

// Release removes the file. Only the first call has an effect.
func (p *filePreview) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.released = true

	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove preview: %w", err)
	}
	return nil
}

// MemoryPreviewStore keeps previews in memory. It is used when no writable
// preview directory is configured.
type MemoryPreviewStore struct {
	mu       sync.Mutex
	previews map[string][]byte
	live     map[string]bool
}

func NewMemoryPreviewStore() *MemoryPreviewStore {
	return &MemoryPreviewStore{
		previews: make(map[string][]byte),
		live:     make(map[string]bool),
	}
}

func (s *MemoryPreviewStore) Acquire(itemID string) (PreviewHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.live[itemID] = true
	return &memoryPreview{store: s, id: itemID}, nil
}

// Len returns the number of handles not yet released.
func (s *MemoryPreviewStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

type memoryPreview struct {
	store *MemoryPreviewStore
	id    string
}

func (p *memoryPreview) Write(data []byte) error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if !p.store.live[p.id] {
		return ErrPreviewReleased
	}
	p.store.previews[p.id] = append([]byte(nil), data...)
	return nil
}

func (p *memoryPreview) Read() ([]byte, error) {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	if !p.store.live[p.id] {
		return nil, ErrPreviewReleased
	}
	data, ok := p.store.previews[p.id]
	if !ok {
		return nil, ErrNoPreviewData
	}
	return data, nil
}

func (p *memoryPreview) Release() error {
	p.store.mu.Lock()
	defer p.store.mu.Unlock()
	delete(p.store.live, p.id)
	delete(p.store.previews, p.id)
	return nil
}
