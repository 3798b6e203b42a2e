package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
)

// Backend is an in-memory implementation of the contentrepo.BlobStore
// interface. Payloads are held as byte slices under their opaque keys.
type Backend struct {
	mu        sync.RWMutex
	blobs     map[string][]byte
	mimeTypes map[string]string
	updatedAt map[string]time.Time
}

// New creates a new in-memory content backend.
func New() contentrepo.BlobStore {
	return &Backend{
		blobs:     make(map[string][]byte),
		mimeTypes: make(map[string]string),
		updatedAt: make(map[string]time.Time),
	}
}

func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, mimeType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return &contentrepo.StorageError{Backend: "memory", Key: key, Op: "upload", Err: err}
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.blobs[key] = data
	b.mimeTypes[key] = mimeType
	b.updatedAt[key] = time.Now().UTC()
	return nil
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, &contentrepo.StorageError{Backend: "memory", Key: key, Op: "download", Err: contentrepo.ErrObjectNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *Backend) DownloadRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, &contentrepo.StorageError{Backend: "memory", Key: key, Op: "download", Err: contentrepo.ErrObjectNotFound}
	}
	if offset < 0 || offset > int64(len(data)) {
		return nil, &contentrepo.StorageError{Backend: "memory", Key: key, Op: "download",
			Err: fmt.Errorf("%w: offset %d out of range", contentrepo.ErrInvalidArgument, offset)}
	}

	end := int64(len(data))
	if length > 0 && offset+length < end {
		end = offset + length
	}
	return io.NopCloser(bytes.NewReader(data[offset:end])), nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.blobs[key]; !exists {
		return &contentrepo.StorageError{Backend: "memory", Key: key, Op: "delete", Err: contentrepo.ErrObjectNotFound}
	}
	delete(b.blobs, key)
	delete(b.mimeTypes, key)
	delete(b.updatedAt, key)
	return nil
}

func (b *Backend) Meta(ctx context.Context, key string) (*contentrepo.BlobInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.blobs[key]
	if !exists {
		return nil, &contentrepo.StorageError{Backend: "memory", Key: key, Op: "meta", Err: contentrepo.ErrObjectNotFound}
	}
	return &contentrepo.BlobInfo{
		Key:         key,
		Size:        int64(len(data)),
		ContentType: b.mimeTypes[key],
		UpdatedAt:   b.updatedAt[key],
	}, nil
}

// GetDownloadURL is unsupported: in-memory payloads have no address outside
// the process.
func (b *Backend) GetDownloadURL(ctx context.Context, key string, downloadFilename string) (string, error) {
	return "", &contentrepo.StorageError{Backend: "memory", Key: key, Op: "download-url", Err: contentrepo.ErrNotSupported}
}
