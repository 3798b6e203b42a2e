package contentrepo

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Repository is the object table: it owns every stored object and all
// relationships between them, indexed by id. Each method is atomic with
// respect to the objects it touches; a failed call leaves the table
// unchanged. Returned objects are detached copies with ParentIDs populated.
type Repository interface {
	// RootID returns the id of the root folder.
	RootID(ctx context.Context) (uuid.UUID, error)

	// CreateObject registers a folder or document. A nil parent files nothing
	// (unfiled document); folders other than the root require a parent.
	CreateObject(ctx context.Context, obj *StoredObject, parentID *uuid.UUID) error

	// CreateSeries registers a version series together with its first
	// checked-in version.
	CreateSeries(ctx context.Context, series, first *StoredObject, parentID *uuid.UUID) error

	GetObject(ctx context.Context, id uuid.UUID) (*StoredObject, error)
	GetByPath(ctx context.Context, path string) (*StoredObject, error)
	GetChildren(ctx context.Context, folderID uuid.UUID) ([]*StoredObject, error)

	// UpdateProperties renames and/or replaces the given properties after
	// verifying the expected change token. An empty name keeps the current
	// one. Supplied properties overwrite per id; others are untouched.
	UpdateProperties(ctx context.Context, id uuid.UUID, expectedToken, name string, props Properties, user string) (*StoredObject, error)

	// SetContent attaches the reference, replacing any previous one. With
	// overwrite false the call fails if non-empty content exists. The
	// replaced reference, if any, is returned for blob cleanup.
	SetContent(ctx context.Context, id uuid.UUID, ref *ContentRef, overwrite bool, user string) (*StoredObject, *ContentRef, error)

	// Move refiles the object from source to target folder.
	Move(ctx context.Context, objectID, sourceID, targetID uuid.UUID, user string) (*StoredObject, error)

	// AddParent files a non-folder object under an additional folder.
	AddParent(ctx context.Context, objectID, folderID uuid.UUID, user string) error

	// RemoveParent unfiles the object from the folder. Removing the last
	// parent leaves the object unfiled.
	RemoveParent(ctx context.Context, objectID, folderID uuid.UUID, user string) error

	// DeleteObject removes the object and returns every record that went with
	// it so the caller can release content. On a series or checked-in version,
	// allVersions selects between the whole series and a single version.
	DeleteObject(ctx context.Context, id uuid.UUID, allVersions bool) ([]*StoredObject, error)

	// DeleteTree removes the folder recursively. With continueOnFailure it
	// keeps going past failures and reports the ids it could not remove.
	DeleteTree(ctx context.Context, folderID uuid.UUID, continueOnFailure bool) (removed []*StoredObject, failed []uuid.UUID, err error)

	// CheckOut reserves the series for user and returns the new private
	// working copy. Fails immediately if already checked out.
	CheckOut(ctx context.Context, seriesID uuid.UUID, pwcID uuid.UUID, content *ContentRef, user string) (*StoredObject, error)

	// CheckIn promotes the working copy to the newest version. The replaced
	// working-copy content reference is returned when new content supersedes it.
	CheckIn(ctx context.Context, seriesID uuid.UUID, user string, major bool, props Properties, content *ContentRef, comment string) (*StoredObject, *ContentRef, error)

	// CancelCheckOut discards the working copy and returns it for cleanup.
	CancelCheckOut(ctx context.Context, seriesID uuid.UUID, user string) (*StoredObject, error)

	GetAllVersions(ctx context.Context, seriesID uuid.UUID) ([]*StoredObject, error)
	GetLatestVersion(ctx context.Context, seriesID uuid.UUID, majorOnly bool) (*StoredObject, error)

	// ApplyACL merges the entries into the object ACL under the table lock.
	ApplyACL(ctx context.Context, id uuid.UUID, add, remove []Ace, user string) (*StoredObject, error)
}

// BlobStore is a content backend. Keys are opaque and write-once.
type BlobStore interface {
	// Upload stores the stream under key.
	Upload(ctx context.Context, key string, reader io.Reader, mimeType string) error

	// Download returns the full payload.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// DownloadRange returns length bytes starting at offset; length <= 0
	// reads to the end.
	DownloadRange(ctx context.Context, key string, offset, length int64) (io.ReadCloser, error)

	// Delete removes the payload.
	Delete(ctx context.Context, key string) error

	// Meta describes the stored payload.
	Meta(ctx context.Context, key string) (*BlobInfo, error)

	// GetDownloadURL returns a direct-access URL, when the backend supports
	// one.
	GetDownloadURL(ctx context.Context, key string, downloadFilename string) (string, error)
}

// BlobInfo describes a payload held by a BlobStore.
type BlobInfo struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string
	UpdatedAt   time.Time
}
