package contentrepo

import (
	"io"

	"github.com/google/uuid"
)

// Request DTOs. User names the calling principal; an empty user is treated as
// the internal system principal.

// ContentPayload carries an inbound content stream.
type ContentPayload struct {
	Reader   io.Reader
	MimeType string
	FileName string
}

// CreateFolderRequest contains parameters for creating a folder.
type CreateFolderRequest struct {
	ParentID   uuid.UUID
	TypeID     string
	Name       string
	Properties Properties
	ACL        []Ace
	User       string
}

// CreateDocumentRequest contains parameters for creating an unversioned
// document. A nil ParentID creates the document unfiled.
type CreateDocumentRequest struct {
	ParentID   *uuid.UUID
	TypeID     string
	Name       string
	Properties Properties
	Content    *ContentPayload
	ACL        []Ace
	User       string
}

// CreateVersionedDocumentRequest contains parameters for creating a version
// series with its initial version.
type CreateVersionedDocumentRequest struct {
	ParentID   *uuid.UUID
	TypeID     string
	Name       string
	Properties Properties
	Content    *ContentPayload
	ACL        []Ace
	// Major marks the initial version as a major version.
	Major          bool
	CheckinComment string
	User           string
}

// UpdatePropertiesRequest contains parameters for a property update gated by
// the optimistic-concurrency token.
type UpdatePropertiesRequest struct {
	ID          uuid.UUID
	ChangeToken string
	// Name, when non-empty, renames the object.
	Name       string
	Properties Properties
	User       string
}

// MoveRequest contains parameters for refiling an object.
type MoveRequest struct {
	ID             uuid.UUID
	SourceFolderID uuid.UUID
	TargetFolderID uuid.UUID
	User           string
}

// DeleteTreeRequest contains parameters for a recursive folder delete.
type DeleteTreeRequest struct {
	FolderID          uuid.UUID
	ContinueOnFailure bool
	User              string
}

// CheckOutRequest contains parameters for an exclusive checkout.
type CheckOutRequest struct {
	SeriesID uuid.UUID
	User     string
}

// CheckInRequest contains parameters for promoting the working copy.
type CheckInRequest struct {
	SeriesID   uuid.UUID
	Major      bool
	Properties Properties
	Content    *ContentPayload
	Comment    string
	User       string
}

// CancelCheckOutRequest contains parameters for discarding the working copy.
type CancelCheckOutRequest struct {
	SeriesID uuid.UUID
	User     string
}

// SetContentRequest contains parameters for replacing a content stream.
type SetContentRequest struct {
	ID        uuid.UUID
	Overwrite bool
	Content   ContentPayload
	User      string
}

// GetContentRequest contains parameters for a byte-range read. Length <= 0
// reads to the end.
type GetContentRequest struct {
	ID     uuid.UUID
	Offset int64
	Length int64
}

// ApplyACLRequest contains parameters for an ACL change.
type ApplyACLRequest struct {
	ID          uuid.UUID
	Add         []Ace
	Remove      []Ace
	Propagation AclPropagation
	User        string
}
