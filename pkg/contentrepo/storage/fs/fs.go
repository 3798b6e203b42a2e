package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
)

// Backend is a filesystem implementation of the contentrepo.BlobStore
// interface. Keys map to paths below the base directory; the MIME type is
// stored in a sidecar file next to the payload.
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend.
type Config struct {
	BaseDir   string // Base directory for storing payloads
	URLPrefix string // Optional URL prefix for download URLs
}

const mimeTypeSuffix = ".mimetype"

// New creates a new filesystem content backend, creating the base directory
// if needed.
func New(config Config) (contentrepo.BlobStore, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: config.URLPrefix,
	}, nil
}

func (b *Backend) path(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(key))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("%w: invalid object key %q", contentrepo.ErrInvalidArgument, key)
	}
	return filepath.Join(b.baseDir, cleaned), nil
}

func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader, mimeType string) error {
	filePath, err := b.path(key)
	if err != nil {
		return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}

	file, err := os.Create(filePath)
	if err != nil {
		return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}
	defer file.Close()

	if _, err := io.Copy(file, reader); err != nil {
		return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}
	if mimeType != "" {
		if err := os.WriteFile(filePath+mimeTypeSuffix, []byte(mimeType), 0644); err != nil {
			return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
		}
	}
	return nil
}

func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	return b.DownloadRange(ctx, key, 0, -1)
}

func (b *Backend) DownloadRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error) {
	filePath, err := b.path(key)
	if err != nil {
		return nil, &contentrepo.StorageError{Backend: "fs", Key: key, Op: "download", Err: err}
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, &contentrepo.StorageError{Backend: "fs", Key: key, Op: "download", Err: contentrepo.ErrObjectNotFound}
	} else if err != nil {
		return nil, &contentrepo.StorageError{Backend: "fs", Key: key, Op: "download", Err: err}
	}

	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, &contentrepo.StorageError{Backend: "fs", Key: key, Op: "download", Err: err}
		}
	}
	if length <= 0 {
		return file, nil
	}
	return &limitedFile{Reader: io.LimitReader(file, length), file: file}, nil
}

// limitedFile bounds reads to the requested range while keeping the
// underlying file closable.
type limitedFile struct {
	io.Reader
	file *os.File
}

func (l *limitedFile) Close() error { return l.file.Close() }

func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.path(key)
	if err != nil {
		return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "delete", Err: err}
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "delete", Err: contentrepo.ErrObjectNotFound}
	}
	if err := os.Remove(filePath); err != nil {
		return &contentrepo.StorageError{Backend: "fs", Key: key, Op: "delete", Err: err}
	}
	os.Remove(filePath + mimeTypeSuffix)
	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

func (b *Backend) Meta(ctx context.Context, key string) (*contentrepo.BlobInfo, error) {
	filePath, err := b.path(key)
	if err != nil {
		return nil, &contentrepo.StorageError{Backend: "fs", Key: key, Op: "meta", Err: err}
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return nil, &contentrepo.StorageError{Backend: "fs", Key: key, Op: "meta", Err: contentrepo.ErrObjectNotFound}
	} else if err != nil {
		return nil, &contentrepo.StorageError{Backend: "fs", Key: key, Op: "meta", Err: err}
	}

	contentType := "application/octet-stream"
	if sidecar, err := os.ReadFile(filePath + mimeTypeSuffix); err == nil && len(sidecar) > 0 {
		contentType = string(sidecar)
	} else if file, err := os.Open(filePath); err == nil {
		buffer := make([]byte, 512)
		if n, err := file.Read(buffer); err == nil {
			contentType = http.DetectContentType(buffer[:n])
		}
		file.Close()
	}

	return &contentrepo.BlobInfo{
		Key:         key,
		Size:        info.Size(),
		ContentType: contentType,
		UpdatedAt:   info.ModTime(),
	}, nil
}

// GetDownloadURL returns a URL under the configured prefix, if any.
func (b *Backend) GetDownloadURL(ctx context.Context, key string, downloadFilename string) (string, error) {
	if b.urlPrefix == "" {
		return "", &contentrepo.StorageError{Backend: "fs", Key: key, Op: "download-url", Err: contentrepo.ErrNotSupported}
	}
	if downloadFilename != "" {
		return fmt.Sprintf("%s/download/%s?filename=%s", b.urlPrefix, key, url.QueryEscape(downloadFilename)), nil
	}
	return fmt.Sprintf("%s/download/%s", b.urlPrefix, key), nil
}

// cleanupEmptyDirectories removes empty directories up to, but not including,
// the base directory.
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
