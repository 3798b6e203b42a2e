package contentrepo

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error kinds. Every failure returned by the service wraps exactly one of
// these; callers classify with errors.Is.
var (
	// ErrInvalidArgument indicates a malformed id, name, or filter.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrObjectNotFound indicates an unknown object id, path, or type id.
	ErrObjectNotFound = errors.New("object not found")

	// ErrConstraintViolation indicates a schema or structural rule was broken:
	// missing required property, content on a content-less type, deleting a
	// non-empty folder, filing cycle, unfiling a folder.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrUpdateConflict indicates a stale change token, a double checkout, or
	// a checkout ownership violation.
	ErrUpdateConflict = errors.New("update conflict")

	// ErrPermissionDenied indicates the caller lacks the permission the
	// operation requires.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotSupported indicates a capability the repository does not
	// implement, such as cascading ACL propagation.
	ErrNotSupported = errors.New("not supported")

	// ErrContentAlreadyExists indicates a non-overwriting content write hit
	// existing content.
	ErrContentAlreadyExists = errors.New("content already exists")
)

// ObjectError decorates a failure with the operation and target object.
type ObjectError struct {
	ObjectID uuid.UUID
	Op       string
	Err      error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("object operation %s failed for %s: %v", e.Op, e.ObjectID, e.Err)
}

func (e *ObjectError) Unwrap() error { return e.Err }

// TypeError decorates a failure with the operation and type id.
type TypeError struct {
	TypeID string
	Op     string
	Err    error
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("type operation %s failed for %q: %v", e.Op, e.TypeID, e.Err)
}

func (e *TypeError) Unwrap() error { return e.Err }

// StorageError decorates a blob-store failure.
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }
