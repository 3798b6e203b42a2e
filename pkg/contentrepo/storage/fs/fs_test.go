package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
	"github.com/contentrepo/contentrepo/pkg/contentrepo/storage/fs"
)

func newBackend(t *testing.T, urlPrefix string) (contentrepo.BlobStore, string) {
	t.Helper()
	baseDir := t.TempDir()
	backend, err := fs.New(fs.Config{BaseDir: baseDir, URLPrefix: urlPrefix})
	require.NoError(t, err)
	return backend, baseDir
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestFSBackend(t *testing.T) {
	ctx := context.Background()
	backend, baseDir := newBackend(t, "")

	t.Run("RequiresBaseDir", func(t *testing.T) {
		_, err := fs.New(fs.Config{})
		assert.Error(t, err)
	})

	t.Run("UploadAndDownload", func(t *testing.T) {
		err := backend.Upload(ctx, "O/owner/blob", strings.NewReader("hello world"), "text/plain")
		require.NoError(t, err)

		rc, err := backend.Download(ctx, "O/owner/blob")
		require.NoError(t, err)
		assert.Equal(t, "hello world", readAll(t, rc))

		// Keys become nested paths below the base directory.
		_, err = os.Stat(filepath.Join(baseDir, "O", "owner", "blob"))
		assert.NoError(t, err)
	})

	t.Run("Meta", func(t *testing.T) {
		info, err := backend.Meta(ctx, "O/owner/blob")
		require.NoError(t, err)
		assert.Equal(t, int64(11), info.Size)
		assert.Equal(t, "text/plain", info.ContentType)
	})

	t.Run("MimeTypeDetectedWithoutSidecar", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "detect-me", strings.NewReader("<html><body>hi</body></html>"), ""))
		info, err := backend.Meta(ctx, "detect-me")
		require.NoError(t, err)
		assert.Contains(t, info.ContentType, "text/html")
	})

	t.Run("DownloadRange", func(t *testing.T) {
		rc, err := backend.DownloadRange(ctx, "O/owner/blob", 6, 5)
		require.NoError(t, err)
		assert.Equal(t, "world", readAll(t, rc))

		rc, err = backend.DownloadRange(ctx, "O/owner/blob", 6, -1)
		require.NoError(t, err)
		assert.Equal(t, "world", readAll(t, rc))

		// Zero length reads to the end, same as -1.
		rc, err = backend.DownloadRange(ctx, "O/owner/blob", 6, 0)
		require.NoError(t, err)
		assert.Equal(t, "world", readAll(t, rc))
	})

	t.Run("TraversalRejected", func(t *testing.T) {
		for _, key := range []string{"../escape", "/etc/passwd", "a/../../b", "."} {
			_, err := backend.Download(ctx, key)
			assert.ErrorIs(t, err, contentrepo.ErrInvalidArgument, "key %q", key)
		}
	})

	t.Run("MissingKey", func(t *testing.T) {
		_, err := backend.Download(ctx, "nope")
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)
		_, err = backend.Meta(ctx, "nope")
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)
		err = backend.Delete(ctx, "nope")
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)
	})

	t.Run("DeleteCleansUpDirectories", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, "O/owner/blob"))

		_, err := backend.Download(ctx, "O/owner/blob")
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)

		// Sidecar and now-empty parent directories are gone too.
		_, err = os.Stat(filepath.Join(baseDir, "O"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("NoDownloadURLWithoutPrefix", func(t *testing.T) {
		_, err := backend.GetDownloadURL(ctx, "any", "")
		assert.ErrorIs(t, err, contentrepo.ErrNotSupported)
	})
}

func TestFSDownloadURL(t *testing.T) {
	ctx := context.Background()
	backend, _ := newBackend(t, "http://localhost:8080/files")

	url, err := backend.GetDownloadURL(ctx, "O/owner/blob", "report q3.pdf")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/download/O/owner/blob?filename=report+q3.pdf", url)

	url, err = backend.GetDownloadURL(ctx, "O/owner/blob", "")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/download/O/owner/blob", url)
}
