package memory_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
	"github.com/contentrepo/contentrepo/pkg/contentrepo/storage/memory"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestMemoryBackend(t *testing.T) {
	ctx := context.Background()
	backend := memory.New()

	t.Run("UploadAndDownload", func(t *testing.T) {
		err := backend.Upload(ctx, "a/b", strings.NewReader("hello world"), "text/plain")
		require.NoError(t, err)

		rc, err := backend.Download(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, "hello world", readAll(t, rc))
	})

	t.Run("Meta", func(t *testing.T) {
		info, err := backend.Meta(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, int64(11), info.Size)
		assert.Equal(t, "text/plain", info.ContentType)
		assert.False(t, info.UpdatedAt.IsZero())
	})

	t.Run("DefaultMimeType", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "raw", strings.NewReader("x"), ""))
		info, err := backend.Meta(ctx, "raw")
		require.NoError(t, err)
		assert.Equal(t, "application/octet-stream", info.ContentType)
	})

	t.Run("DownloadRange", func(t *testing.T) {
		rc, err := backend.DownloadRange(ctx, "a/b", 6, 5)
		require.NoError(t, err)
		assert.Equal(t, "world", readAll(t, rc))

		rc, err = backend.DownloadRange(ctx, "a/b", 6, -1)
		require.NoError(t, err)
		assert.Equal(t, "world", readAll(t, rc))

		// Zero length reads to the end, same as -1.
		rc, err = backend.DownloadRange(ctx, "a/b", 6, 0)
		require.NoError(t, err)
		assert.Equal(t, "world", readAll(t, rc))

		// Range past the end is clamped.
		rc, err = backend.DownloadRange(ctx, "a/b", 6, 100)
		require.NoError(t, err)
		assert.Equal(t, "world", readAll(t, rc))

		_, err = backend.DownloadRange(ctx, "a/b", 42, 1)
		assert.ErrorIs(t, err, contentrepo.ErrInvalidArgument)
		_, err = backend.DownloadRange(ctx, "a/b", -1, 1)
		assert.ErrorIs(t, err, contentrepo.ErrInvalidArgument)
	})

	t.Run("OverwriteReplaces", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "a/b", strings.NewReader("short"), "text/plain"))
		info, err := backend.Meta(ctx, "a/b")
		require.NoError(t, err)
		assert.Equal(t, int64(5), info.Size)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, "a/b"))

		_, err := backend.Download(ctx, "a/b")
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)
		var storageErr *contentrepo.StorageError
		require.ErrorAs(t, err, &storageErr)
		assert.Equal(t, "memory", storageErr.Backend)

		err = backend.Delete(ctx, "a/b")
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)
	})

	t.Run("MetaMissing", func(t *testing.T) {
		_, err := backend.Meta(ctx, "no-such-key")
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)
	})

	t.Run("NoDownloadURL", func(t *testing.T) {
		_, err := backend.GetDownloadURL(ctx, "raw", "file.bin")
		assert.ErrorIs(t, err, contentrepo.ErrNotSupported)
	})
}
