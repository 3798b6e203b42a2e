package contentrepo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// service implements the Service interface.
type service struct {
	repository     Repository
	types          *TypeRegistry
	blobStores     map[string]BlobStore
	defaultBackend string
}

// Option represents a functional option for configuring the service.
type Option func(*service)

// WithRepository sets the object table for the service.
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithTypeRegistry sets the type registry. Without it a registry seeded with
// the built-in base types is used.
func WithTypeRegistry(types *TypeRegistry) Option {
	return func(s *service) {
		s.types = types
	}
}

// WithBlobStore adds a content storage backend. The first registered backend
// becomes the default unless WithDefaultBackend overrides it.
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[string]BlobStore)
		}
		s.blobStores[name] = store
		if s.defaultBackend == "" {
			s.defaultBackend = name
		}
	}
}

// WithDefaultBackend selects the backend used for new content.
func WithDefaultBackend(name string) Option {
	return func(s *service) {
		s.defaultBackend = name
	}
}

// New creates a new service instance with the given options.
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[string]BlobStore),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.types == nil {
		s.types = NewTypeRegistry()
	}
	if s.defaultBackend != "" {
		if _, exists := s.blobStores[s.defaultBackend]; !exists {
			return nil, fmt.Errorf("default backend %q is not registered", s.defaultBackend)
		}
	}

	return s, nil
}

// Create operations

func (s *service) CreateFolder(ctx context.Context, req CreateFolderRequest) (*StoredObject, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	def, err := s.types.Get(req.TypeID)
	if err != nil {
		return nil, err
	}
	if def.BaseType != KindFolder {
		return nil, &TypeError{TypeID: req.TypeID, Op: "create_folder", Err: fmt.Errorf("%w: type is not a folder type", ErrConstraintViolation)}
	}
	props, err := ValidateProperties(def, req.Properties, true, false)
	if err != nil {
		return nil, err
	}
	if err := s.requireWriteOn(ctx, req.ParentID, req.User); err != nil {
		return nil, err
	}

	obj := s.newObject(KindFolder, req.TypeID, req.Name, req.User, props, req.ACL)
	if err := s.repository.CreateObject(ctx, obj, &req.ParentID); err != nil {
		return nil, &ObjectError{ObjectID: obj.ID, Op: "create_folder", Err: err}
	}
	return s.repository.GetObject(ctx, obj.ID)
}

func (s *service) CreateDocument(ctx context.Context, req CreateDocumentRequest) (*StoredObject, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	def, err := s.types.Get(req.TypeID)
	if err != nil {
		return nil, err
	}
	if def.BaseType != KindDocument {
		return nil, &TypeError{TypeID: req.TypeID, Op: "create_document", Err: fmt.Errorf("%w: type is not a document type", ErrConstraintViolation)}
	}
	if def.Versionable {
		return nil, &TypeError{TypeID: req.TypeID, Op: "create_document", Err: fmt.Errorf("%w: versionable type requires a versioned document", ErrConstraintViolation)}
	}
	if req.Content != nil && !def.ContentAllowed {
		return nil, &TypeError{TypeID: req.TypeID, Op: "create_document", Err: fmt.Errorf("%w: content not allowed for type", ErrConstraintViolation)}
	}
	props, err := ValidateProperties(def, req.Properties, true, false)
	if err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if err := s.requireWriteOn(ctx, *req.ParentID, req.User); err != nil {
			return nil, err
		}
	}

	obj := s.newObject(KindDocument, req.TypeID, req.Name, req.User, props, req.ACL)
	if req.Content != nil {
		ref, err := s.uploadPayload(ctx, obj.ID, req.Content)
		if err != nil {
			return nil, err
		}
		obj.Content = ref
	}

	if err := s.repository.CreateObject(ctx, obj, req.ParentID); err != nil {
		s.releaseContent(ctx, obj.Content)
		return nil, &ObjectError{ObjectID: obj.ID, Op: "create_document", Err: err}
	}
	return s.repository.GetObject(ctx, obj.ID)
}

func (s *service) CreateVersionedDocument(ctx context.Context, req CreateVersionedDocumentRequest) (*StoredObject, error) {
	if err := validateName(req.Name); err != nil {
		return nil, err
	}
	def, err := s.types.Get(req.TypeID)
	if err != nil {
		return nil, err
	}
	if def.BaseType != KindDocument || !def.Versionable {
		return nil, &TypeError{TypeID: req.TypeID, Op: "create_versioned_document", Err: fmt.Errorf("%w: type is not versionable", ErrConstraintViolation)}
	}
	if req.Content != nil && !def.ContentAllowed {
		return nil, &TypeError{TypeID: req.TypeID, Op: "create_versioned_document", Err: fmt.Errorf("%w: content not allowed for type", ErrConstraintViolation)}
	}
	props, err := ValidateProperties(def, req.Properties, true, false)
	if err != nil {
		return nil, err
	}
	if req.ParentID != nil {
		if err := s.requireWriteOn(ctx, *req.ParentID, req.User); err != nil {
			return nil, err
		}
	}

	series := s.newObject(KindVersionSeries, req.TypeID, req.Name, req.User, props, req.ACL)
	series.Series = &SeriesInfo{}

	label := "0.1"
	if req.Major {
		label = "1.0"
	}
	first := s.newObject(KindVersion, req.TypeID, req.Name, req.User, props.Clone(), req.ACL)
	first.Version = &VersionInfo{
		SeriesID:       series.ID,
		Major:          req.Major,
		Sequence:       1,
		Label:          label,
		CheckinComment: req.CheckinComment,
	}
	if req.Content != nil {
		ref, err := s.uploadPayload(ctx, first.ID, req.Content)
		if err != nil {
			return nil, err
		}
		first.Content = ref
	}

	if err := s.repository.CreateSeries(ctx, series, first, req.ParentID); err != nil {
		s.releaseContent(ctx, first.Content)
		return nil, &ObjectError{ObjectID: series.ID, Op: "create_versioned_document", Err: err}
	}
	return s.repository.GetObject(ctx, series.ID)
}

// Lookup

func (s *service) GetObject(ctx context.Context, id uuid.UUID) (*StoredObject, error) {
	return s.repository.GetObject(ctx, id)
}

func (s *service) GetObjectByPath(ctx context.Context, path string) (*StoredObject, error) {
	if path == "" || !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("%w: path must be absolute", ErrInvalidArgument)
	}
	return s.repository.GetByPath(ctx, path)
}

func (s *service) GetChildren(ctx context.Context, folderID uuid.UUID) ([]*StoredObject, error) {
	return s.repository.GetChildren(ctx, folderID)
}

// GetFolderPath computes the path from the root to the object by walking its
// first-parent chain. Paths are derived, never persisted.
func (s *service) GetFolderPath(ctx context.Context, id uuid.UUID) (string, error) {
	obj, err := s.repository.GetObject(ctx, id)
	if err != nil {
		return "", err
	}
	if obj.IsRoot() {
		return "/", nil
	}
	segments := []string{}
	for {
		if len(obj.ParentIDs) == 0 {
			return "", &ObjectError{ObjectID: id, Op: "get_path", Err: fmt.Errorf("%w: object is unfiled", ErrConstraintViolation)}
		}
		segments = append([]string{obj.Name}, segments...)
		parent, err := s.repository.GetObject(ctx, obj.ParentIDs[0])
		if err != nil {
			return "", err
		}
		if parent.IsRoot() {
			return "/" + strings.Join(segments, "/"), nil
		}
		obj = parent
	}
}

// Mutation

func (s *service) UpdateProperties(ctx context.Context, req UpdatePropertiesRequest) (*StoredObject, error) {
	if req.ChangeToken == "" {
		return nil, fmt.Errorf("%w: change token is required", ErrInvalidArgument)
	}
	if req.Name != "" {
		if err := validateName(req.Name); err != nil {
			return nil, err
		}
	}
	obj, err := s.repository.GetObject(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWrite(obj, req.User, "update_properties"); err != nil {
		return nil, err
	}
	if obj.IsRoot() && req.Name != "" {
		return nil, &ObjectError{ObjectID: req.ID, Op: "update_properties", Err: fmt.Errorf("%w: root folder cannot be renamed", ErrConstraintViolation)}
	}
	isPWC := obj.Version != nil && obj.Version.PWC
	if obj.Kind == KindVersion && !isPWC {
		return nil, &ObjectError{ObjectID: req.ID, Op: "update_properties", Err: fmt.Errorf("%w: checked-in versions are immutable", ErrConstraintViolation)}
	}
	def, err := s.types.Get(obj.TypeID)
	if err != nil {
		return nil, err
	}
	props, err := ValidateProperties(def, req.Properties, false, isPWC)
	if err != nil {
		return nil, err
	}

	updated, err := s.repository.UpdateProperties(ctx, req.ID, req.ChangeToken, req.Name, props, principal(req.User))
	if err != nil {
		return nil, &ObjectError{ObjectID: req.ID, Op: "update_properties", Err: err}
	}
	return updated, nil
}

func (s *service) DeleteObject(ctx context.Context, id uuid.UUID, allVersions bool, user string) error {
	obj, err := s.repository.GetObject(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireWrite(obj, user, "delete"); err != nil {
		return err
	}
	if obj.IsRoot() {
		return &ObjectError{ObjectID: id, Op: "delete", Err: fmt.Errorf("%w: root folder cannot be deleted", ErrConstraintViolation)}
	}

	removed, err := s.repository.DeleteObject(ctx, id, allVersions)
	if err != nil {
		return &ObjectError{ObjectID: id, Op: "delete", Err: err}
	}
	for _, gone := range removed {
		s.releaseContent(ctx, gone.Content)
	}
	return nil
}

func (s *service) DeleteTree(ctx context.Context, req DeleteTreeRequest) ([]uuid.UUID, error) {
	folder, err := s.repository.GetObject(ctx, req.FolderID)
	if err != nil {
		return nil, err
	}
	if folder.Kind != KindFolder {
		return nil, &ObjectError{ObjectID: req.FolderID, Op: "delete_tree", Err: fmt.Errorf("%w: not a folder", ErrInvalidArgument)}
	}
	if folder.IsRoot() {
		return nil, &ObjectError{ObjectID: req.FolderID, Op: "delete_tree", Err: fmt.Errorf("%w: root folder cannot be deleted", ErrConstraintViolation)}
	}
	if err := s.requireWrite(folder, req.User, "delete_tree"); err != nil {
		return nil, err
	}

	removed, failed, err := s.repository.DeleteTree(ctx, req.FolderID, req.ContinueOnFailure)
	for _, gone := range removed {
		s.releaseContent(ctx, gone.Content)
	}
	if err != nil {
		return failed, &ObjectError{ObjectID: req.FolderID, Op: "delete_tree", Err: err}
	}
	return failed, nil
}

// Filing

func (s *service) Move(ctx context.Context, req MoveRequest) (*StoredObject, error) {
	obj, err := s.repository.GetObject(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWrite(obj, req.User, "move"); err != nil {
		return nil, err
	}
	if obj.IsRoot() {
		return nil, &ObjectError{ObjectID: req.ID, Op: "move", Err: fmt.Errorf("%w: root folder cannot be moved", ErrConstraintViolation)}
	}
	if obj.Kind == KindVersion {
		return nil, &ObjectError{ObjectID: req.ID, Op: "move", Err: fmt.Errorf("%w: versions are filed through their series", ErrNotSupported)}
	}
	if err := s.requireWriteOn(ctx, req.TargetFolderID, req.User); err != nil {
		return nil, err
	}

	moved, err := s.repository.Move(ctx, req.ID, req.SourceFolderID, req.TargetFolderID, principal(req.User))
	if err != nil {
		return nil, &ObjectError{ObjectID: req.ID, Op: "move", Err: err}
	}
	return moved, nil
}

func (s *service) AddObjectToFolder(ctx context.Context, objectID, folderID uuid.UUID, user string) error {
	obj, err := s.repository.GetObject(ctx, objectID)
	if err != nil {
		return err
	}
	if obj.Kind == KindFolder {
		return &ObjectError{ObjectID: objectID, Op: "add_to_folder", Err: fmt.Errorf("%w: folders cannot be multi-filed", ErrConstraintViolation)}
	}
	if obj.Kind == KindVersion {
		return &ObjectError{ObjectID: objectID, Op: "add_to_folder", Err: fmt.Errorf("%w: versions are filed through their series", ErrNotSupported)}
	}
	if err := s.requireWrite(obj, user, "add_to_folder"); err != nil {
		return err
	}
	if err := s.requireWriteOn(ctx, folderID, user); err != nil {
		return err
	}
	if err := s.repository.AddParent(ctx, objectID, folderID, principal(user)); err != nil {
		return &ObjectError{ObjectID: objectID, Op: "add_to_folder", Err: err}
	}
	return nil
}

func (s *service) RemoveObjectFromFolder(ctx context.Context, objectID, folderID uuid.UUID, user string) error {
	obj, err := s.repository.GetObject(ctx, objectID)
	if err != nil {
		return err
	}
	if obj.Kind == KindFolder {
		return &ObjectError{ObjectID: objectID, Op: "remove_from_folder", Err: fmt.Errorf("%w: folders cannot be unfiled", ErrConstraintViolation)}
	}
	if obj.Kind == KindVersion {
		return &ObjectError{ObjectID: objectID, Op: "remove_from_folder", Err: fmt.Errorf("%w: versions are filed through their series", ErrNotSupported)}
	}
	if err := s.requireWrite(obj, user, "remove_from_folder"); err != nil {
		return err
	}
	if err := s.repository.RemoveParent(ctx, objectID, folderID, principal(user)); err != nil {
		return &ObjectError{ObjectID: objectID, Op: "remove_from_folder", Err: err}
	}
	return nil
}

// Versioning

func (s *service) CheckOut(ctx context.Context, req CheckOutRequest) (*StoredObject, error) {
	series, err := s.resolveSeries(ctx, req.SeriesID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWrite(series, req.User, "checkout"); err != nil {
		return nil, err
	}
	if series.Series.CheckedOut() {
		return nil, &ObjectError{ObjectID: series.ID, Op: "checkout", Err: fmt.Errorf("%w: series already checked out by %s", ErrUpdateConflict, series.Series.CheckedOutBy)}
	}

	// Clone the latest version's content into a private key so the working
	// copy never shares bytes with an immutable version.
	pwcID := uuid.New()
	var ref *ContentRef
	latest, err := s.repository.GetLatestVersion(ctx, series.ID, false)
	if err != nil {
		return nil, err
	}
	if latest.Content != nil {
		ref, err = s.copyContent(ctx, pwcID, latest.Content)
		if err != nil {
			return nil, err
		}
	}

	pwc, err := s.repository.CheckOut(ctx, series.ID, pwcID, ref, principal(req.User))
	if err != nil {
		s.releaseContent(ctx, ref)
		return nil, &ObjectError{ObjectID: series.ID, Op: "checkout", Err: err}
	}
	return pwc, nil
}

func (s *service) CheckIn(ctx context.Context, req CheckInRequest) (*StoredObject, error) {
	series, err := s.resolveSeries(ctx, req.SeriesID)
	if err != nil {
		return nil, err
	}
	if !series.Series.CheckedOut() {
		return nil, &ObjectError{ObjectID: series.ID, Op: "checkin", Err: fmt.Errorf("%w: series is not checked out", ErrUpdateConflict)}
	}
	if series.Series.CheckedOutBy != principal(req.User) {
		return nil, &ObjectError{ObjectID: series.ID, Op: "checkin", Err: fmt.Errorf("%w: working copy is owned by %s", ErrUpdateConflict, series.Series.CheckedOutBy)}
	}
	def, err := s.types.Get(series.TypeID)
	if err != nil {
		return nil, err
	}
	props, err := ValidateProperties(def, req.Properties, false, true)
	if err != nil {
		return nil, err
	}

	var ref *ContentRef
	if req.Content != nil {
		if !def.ContentAllowed {
			return nil, &TypeError{TypeID: series.TypeID, Op: "checkin", Err: fmt.Errorf("%w: content not allowed for type", ErrConstraintViolation)}
		}
		ref, err = s.uploadPayload(ctx, *series.Series.PWCID, req.Content)
		if err != nil {
			return nil, err
		}
	}

	version, replaced, err := s.repository.CheckIn(ctx, series.ID, principal(req.User), req.Major, props, ref, req.Comment)
	if err != nil {
		s.releaseContent(ctx, ref)
		return nil, &ObjectError{ObjectID: series.ID, Op: "checkin", Err: err}
	}
	s.releaseContent(ctx, replaced)
	return version, nil
}

func (s *service) CancelCheckOut(ctx context.Context, req CancelCheckOutRequest) error {
	series, err := s.resolveSeries(ctx, req.SeriesID)
	if err != nil {
		return err
	}
	pwc, err := s.repository.CancelCheckOut(ctx, series.ID, principal(req.User))
	if err != nil {
		return &ObjectError{ObjectID: series.ID, Op: "cancel_checkout", Err: err}
	}
	s.releaseContent(ctx, pwc.Content)
	return nil
}

func (s *service) GetAllVersions(ctx context.Context, seriesID uuid.UUID) ([]*StoredObject, error) {
	series, err := s.resolveSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return s.repository.GetAllVersions(ctx, series.ID)
}

func (s *service) GetLatestVersion(ctx context.Context, seriesID uuid.UUID, majorOnly bool) (*StoredObject, error) {
	series, err := s.resolveSeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}
	return s.repository.GetLatestVersion(ctx, series.ID, majorOnly)
}

// Content

func (s *service) SetContent(ctx context.Context, req SetContentRequest) (*StoredObject, error) {
	obj, err := s.repository.GetObject(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWrite(obj, req.User, "set_content"); err != nil {
		return nil, err
	}
	def, err := s.types.Get(obj.TypeID)
	if err != nil {
		return nil, err
	}
	if !def.ContentAllowed {
		return nil, &ObjectError{ObjectID: req.ID, Op: "set_content", Err: fmt.Errorf("%w: content not allowed for type %q", ErrConstraintViolation, obj.TypeID)}
	}
	switch obj.Kind {
	case KindDocument:
	case KindVersion:
		if obj.Version == nil || !obj.Version.PWC {
			return nil, &ObjectError{ObjectID: req.ID, Op: "set_content", Err: fmt.Errorf("%w: checked-in versions are immutable", ErrConstraintViolation)}
		}
	default:
		return nil, &ObjectError{ObjectID: req.ID, Op: "set_content", Err: fmt.Errorf("%w: object carries no content stream", ErrConstraintViolation)}
	}
	if !req.Overwrite && obj.HasContent() {
		return nil, &ObjectError{ObjectID: req.ID, Op: "set_content", Err: ErrContentAlreadyExists}
	}

	ref, err := s.uploadPayload(ctx, obj.ID, &req.Content)
	if err != nil {
		return nil, err
	}
	updated, replaced, err := s.repository.SetContent(ctx, req.ID, ref, req.Overwrite, principal(req.User))
	if err != nil {
		s.releaseContent(ctx, ref)
		return nil, &ObjectError{ObjectID: req.ID, Op: "set_content", Err: err}
	}
	s.releaseContent(ctx, replaced)
	return updated, nil
}

func (s *service) GetContent(ctx context.Context, req GetContentRequest) (io.ReadCloser, *ContentRef, error) {
	if req.Offset < 0 || req.Length < -1 {
		return nil, nil, fmt.Errorf("%w: negative offset or length", ErrInvalidArgument)
	}
	obj, err := s.repository.GetObject(ctx, req.ID)
	if err != nil {
		return nil, nil, err
	}
	def, err := s.types.Get(obj.TypeID)
	if err != nil {
		return nil, nil, err
	}
	if !def.ContentAllowed {
		return nil, nil, &ObjectError{ObjectID: req.ID, Op: "get_content", Err: fmt.Errorf("%w: content not allowed for type %q", ErrConstraintViolation, obj.TypeID)}
	}
	if obj.Content == nil {
		return nil, nil, &ObjectError{ObjectID: req.ID, Op: "get_content", Err: fmt.Errorf("%w: object has no content", ErrObjectNotFound)}
	}

	backend, err := s.GetBackend(obj.Content.BackendName)
	if err != nil {
		return nil, nil, err
	}
	var reader io.ReadCloser
	if req.Offset == 0 && req.Length <= 0 {
		reader, err = backend.Download(ctx, obj.Content.Key)
	} else {
		reader, err = backend.DownloadRange(ctx, obj.Content.Key, req.Offset, req.Length)
	}
	if err != nil {
		return nil, nil, &StorageError{Backend: obj.Content.BackendName, Key: obj.Content.Key, Op: "download", Err: err}
	}
	ref := *obj.Content
	return reader, &ref, nil
}

func (s *service) GetContentURL(ctx context.Context, id uuid.UUID) (string, error) {
	obj, err := s.repository.GetObject(ctx, id)
	if err != nil {
		return "", err
	}
	if obj.Content == nil {
		return "", &ObjectError{ObjectID: id, Op: "get_content_url", Err: fmt.Errorf("%w: object has no content", ErrObjectNotFound)}
	}
	backend, err := s.GetBackend(obj.Content.BackendName)
	if err != nil {
		return "", err
	}
	return backend.GetDownloadURL(ctx, obj.Content.Key, obj.Content.FileName)
}

// ACL and capabilities

func (s *service) ApplyACL(ctx context.Context, req ApplyACLRequest) (*StoredObject, error) {
	switch req.Propagation {
	case "", AclPropagationObjectOnly, AclPropagationRepositoryDetermined:
	default:
		return nil, &ObjectError{ObjectID: req.ID, Op: "apply_acl", Err: fmt.Errorf("%w: acl propagation %q", ErrNotSupported, req.Propagation)}
	}
	obj, err := s.repository.GetObject(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireWrite(obj, req.User, "apply_acl"); err != nil {
		return nil, err
	}
	updated, err := s.repository.ApplyACL(ctx, req.ID, req.Add, req.Remove, principal(req.User))
	if err != nil {
		return nil, &ObjectError{ObjectID: req.ID, Op: "apply_acl", Err: err}
	}
	return updated, nil
}

func (s *service) GetACL(ctx context.Context, id uuid.UUID) (*Acl, error) {
	obj, err := s.repository.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	acl := obj.ACL.Clone()
	return &acl, nil
}

func (s *service) GetAllowableActions(ctx context.Context, id uuid.UUID, user string) (*AllowableActions, error) {
	obj, err := s.repository.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	actions := ComputeAllowableActions(obj, principal(user))
	return &actions, nil
}

// Types

func (s *service) Types() *TypeRegistry { return s.types }

// Storage backend operations

func (s *service) RegisterBackend(name string, store BlobStore) {
	s.blobStores[name] = store
	if s.defaultBackend == "" {
		s.defaultBackend = name
	}
}

func (s *service) GetBackend(name string) (BlobStore, error) {
	backend, exists := s.blobStores[name]
	if !exists {
		return nil, fmt.Errorf("%w: storage backend %q", ErrObjectNotFound, name)
	}
	return backend, nil
}

// Helper methods

func (s *service) newObject(kind ObjectKind, typeID, name, user string, props Properties, extraACL []Ace) *StoredObject {
	now := time.Now().UTC()
	who := principal(user)
	return &StoredObject{
		ID:          uuid.New(),
		Kind:        kind,
		TypeID:      typeID,
		Name:        name,
		CreatedBy:   who,
		CreatedAt:   now,
		ModifiedBy:  who,
		ModifiedAt:  now,
		ChangeToken: uuid.NewString(),
		Properties:  props,
		ACL:         MergeACL(DefaultACL(who), extraACL, nil),
	}
}

func (s *service) requireWrite(obj *StoredObject, user, op string) error {
	if !HasPermission(obj.ACL, principal(user), PermissionWrite) {
		return &ObjectError{ObjectID: obj.ID, Op: op, Err: fmt.Errorf("%w: %s may not write %s", ErrPermissionDenied, principal(user), obj.ID)}
	}
	return nil
}

func (s *service) requireWriteOn(ctx context.Context, id uuid.UUID, user string) error {
	obj, err := s.repository.GetObject(ctx, id)
	if err != nil {
		return err
	}
	if obj.Kind != KindFolder {
		return &ObjectError{ObjectID: id, Op: "file", Err: fmt.Errorf("%w: parent is not a folder", ErrConstraintViolation)}
	}
	return s.requireWrite(obj, user, "file")
}

// resolveSeries accepts a series id or a version id and returns the series.
func (s *service) resolveSeries(ctx context.Context, id uuid.UUID) (*StoredObject, error) {
	obj, err := s.repository.GetObject(ctx, id)
	if err != nil {
		return nil, err
	}
	if obj.Kind == KindVersion && obj.Version != nil {
		obj, err = s.repository.GetObject(ctx, obj.Version.SeriesID)
		if err != nil {
			return nil, err
		}
	}
	if obj.Kind != KindVersionSeries || obj.Series == nil {
		return nil, &ObjectError{ObjectID: id, Op: "resolve_series", Err: fmt.Errorf("%w: object is not versionable", ErrConstraintViolation)}
	}
	return obj, nil
}

func (s *service) uploadPayload(ctx context.Context, ownerID uuid.UUID, payload *ContentPayload) (*ContentRef, error) {
	if s.defaultBackend == "" {
		return nil, fmt.Errorf("%w: no storage backend registered", ErrConstraintViolation)
	}
	backend := s.blobStores[s.defaultBackend]
	key := contentKey(ownerID)

	if err := backend.Upload(ctx, key, payload.Reader, payload.MimeType); err != nil {
		return nil, &StorageError{Backend: s.defaultBackend, Key: key, Op: "upload", Err: err}
	}
	info, err := backend.Meta(ctx, key)
	if err != nil {
		return nil, &StorageError{Backend: s.defaultBackend, Key: key, Op: "meta", Err: err}
	}
	return &ContentRef{
		BackendName: s.defaultBackend,
		Key:         key,
		Size:        info.Size,
		MimeType:    info.ContentType,
		FileName:    payload.FileName,
	}, nil
}

// copyContent duplicates an existing payload under a fresh key owned by
// ownerID. The copy happens outside any repository lock.
func (s *service) copyContent(ctx context.Context, ownerID uuid.UUID, src *ContentRef) (*ContentRef, error) {
	backend, err := s.GetBackend(src.BackendName)
	if err != nil {
		return nil, err
	}
	reader, err := backend.Download(ctx, src.Key)
	if err != nil {
		return nil, &StorageError{Backend: src.BackendName, Key: src.Key, Op: "download", Err: err}
	}
	defer reader.Close()

	key := contentKey(ownerID)
	if err := backend.Upload(ctx, key, reader, src.MimeType); err != nil {
		return nil, &StorageError{Backend: src.BackendName, Key: key, Op: "upload", Err: err}
	}
	ref := *src
	ref.Key = key
	return &ref, nil
}

// releaseContent deletes a blob best-effort; the object table is already
// consistent by the time it runs.
func (s *service) releaseContent(ctx context.Context, ref *ContentRef) {
	if ref == nil {
		return
	}
	if backend, err := s.GetBackend(ref.BackendName); err == nil {
		_ = backend.Delete(ctx, ref.Key)
	}
}

func contentKey(ownerID uuid.UUID) string {
	return fmt.Sprintf("O/%s/%s", ownerID, uuid.New())
}

func principal(user string) string {
	if user == "" {
		return PrincipalSystem
	}
	return user
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidArgument)
	}
	if strings.ContainsAny(name, "/\x00") {
		return fmt.Errorf("%w: name %q contains reserved characters", ErrInvalidArgument, name)
	}
	return nil
}
