package contentrepo

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service is the object store: the id/path-addressed operation set exposed to
// protocol bindings. Every mutating call is atomic with respect to the
// objects it declares it will touch.
type Service interface {
	// Create operations
	CreateFolder(ctx context.Context, req CreateFolderRequest) (*StoredObject, error)
	CreateDocument(ctx context.Context, req CreateDocumentRequest) (*StoredObject, error)
	CreateVersionedDocument(ctx context.Context, req CreateVersionedDocumentRequest) (*StoredObject, error)

	// Lookup
	GetObject(ctx context.Context, id uuid.UUID) (*StoredObject, error)
	GetObjectByPath(ctx context.Context, path string) (*StoredObject, error)
	GetChildren(ctx context.Context, folderID uuid.UUID) ([]*StoredObject, error)
	GetFolderPath(ctx context.Context, id uuid.UUID) (string, error)

	// Mutation
	UpdateProperties(ctx context.Context, req UpdatePropertiesRequest) (*StoredObject, error)
	DeleteObject(ctx context.Context, id uuid.UUID, allVersions bool, user string) error
	DeleteTree(ctx context.Context, req DeleteTreeRequest) ([]uuid.UUID, error)

	// Filing
	Move(ctx context.Context, req MoveRequest) (*StoredObject, error)
	AddObjectToFolder(ctx context.Context, objectID, folderID uuid.UUID, user string) error
	RemoveObjectFromFolder(ctx context.Context, objectID, folderID uuid.UUID, user string) error

	// Versioning
	CheckOut(ctx context.Context, req CheckOutRequest) (*StoredObject, error)
	CheckIn(ctx context.Context, req CheckInRequest) (*StoredObject, error)
	CancelCheckOut(ctx context.Context, req CancelCheckOutRequest) error
	GetAllVersions(ctx context.Context, seriesID uuid.UUID) ([]*StoredObject, error)
	GetLatestVersion(ctx context.Context, seriesID uuid.UUID, majorOnly bool) (*StoredObject, error)

	// Content
	SetContent(ctx context.Context, req SetContentRequest) (*StoredObject, error)
	GetContent(ctx context.Context, req GetContentRequest) (io.ReadCloser, *ContentRef, error)
	GetContentURL(ctx context.Context, id uuid.UUID) (string, error)

	// ACL and capabilities
	ApplyACL(ctx context.Context, req ApplyACLRequest) (*StoredObject, error)
	GetACL(ctx context.Context, id uuid.UUID) (*Acl, error)
	GetAllowableActions(ctx context.Context, id uuid.UUID, user string) (*AllowableActions, error)

	// Types
	Types() *TypeRegistry

	// Storage backends
	RegisterBackend(name string, store BlobStore)
	GetBackend(name string) (BlobStore, error)
}
