package mediatypes

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"media-ingest/internal/filesystem"

	"github.com/gabriel-vasile/mimetype"
)

// sniffLen is how much of the payload is read when an item has a generic
// declared type and an unknown extension.
const sniffLen = 3072

// RawItem is an opaque handle to user-supplied content plus what the
// source knows about it without parsing. It is immutable once created.
type RawItem struct {
	Name        string
	ContentType string
	Size        int64
	ModTime     time.Time

	open func() (io.ReadCloser, error)
}

// NewRawItem wraps an arbitrary opener.
func NewRawItem(name, contentType string, size int64, modTime time.Time, open func() (io.ReadCloser, error)) RawItem {
	return RawItem{
		Name:        name,
		ContentType: contentType,
		Size:        size,
		ModTime:     modTime,
		open:        open,
	}
}

// FromBytes builds an item backed by an in-memory payload.
func FromBytes(name, contentType string, data []byte, modTime time.Time) RawItem {
	return NewRawItem(name, contentType, int64(len(data)), modTime, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

// FromFile builds an item backed by a file on disk. The content type is
// derived from the extension.
func FromFile(path string) (RawItem, error) {
	info, err := filesystem.StatWithRetry(path, filesystem.DefaultRetryConfig())
	if err != nil {
		return RawItem{}, err
	}
	if info.IsDir() {
		return RawItem{}, fmt.Errorf("%s is a directory", path)
	}
	name := filepath.Base(path)
	return NewRawItem(name, GetMimeType(Ext(name)), info.Size(), info.ModTime(), func() (io.ReadCloser, error) {
		f, err := filesystem.OpenWithRetry(path, filesystem.DefaultRetryConfig())
		if err != nil {
			return nil, err
		}
		return f, nil
	}), nil
}

// Open returns a fresh reader over the payload.
func (r RawItem) Open() (io.ReadCloser, error) {
	if r.open == nil {
		return nil, errors.New("raw item has no content")
	}
	return r.open()
}

// ReadAll loads the whole payload into memory.
func (r RawItem) ReadAll() ([]byte, error) {
	rc, err := r.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Sniff detects the content type from the leading bytes of the payload.
func (r RawItem) Sniff() (string, error) {
	rc, err := r.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}
	return mimetype.Detect(head[:n]).String(), nil
}

// Preflight decides whether an item may enter a batch. It returns the
// detected kind, or ErrUnsupportedType / ErrTooLarge.
func Preflight(item RawItem, maxBytes int64) (Kind, error) {
	if err := CheckSize(item.Size, maxBytes); err != nil {
		return KindUnknown, err
	}

	kind := Classify(item.Name, item.ContentType)
	if kind != KindUnknown {
		return kind, nil
	}
	if !IsGenericType(item.ContentType) {
		return KindUnknown, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, item.Name, item.ContentType)
	}

	sniffed, err := item.Sniff()
	if err != nil {
		return KindUnknown, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if kind = KindFromContentType(sniffed); kind != KindUnknown {
		return kind, nil
	}
	return KindUnknown, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, item.Name, sniffed)
}
