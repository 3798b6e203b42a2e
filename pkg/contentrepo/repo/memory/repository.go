package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
)

// Repository implements contentrepo.Repository with an id-indexed in-memory
// table. One RWMutex guards the whole table, so every operation is atomic
// across all the objects it touches. Relationships are kept as id indexes
// beside the table, never as pointers between records.
type Repository struct {
	mu      sync.RWMutex
	objects map[uuid.UUID]*contentrepo.StoredObject

	// children maps folder id -> path segment -> child id.
	children map[uuid.UUID]map[string]uuid.UUID
	// parents maps object id -> folder id -> path segment. Folders have at
	// most one entry; the root has none.
	parents map[uuid.UUID]map[uuid.UUID]string

	// versions maps series id -> checked-in version ids in ascending
	// sequence order. The private working copy is never listed here.
	versions map[uuid.UUID][]uuid.UUID
	// lastSeq maps series id -> last assigned version sequence.
	lastSeq map[uuid.UUID]int

	rootID uuid.UUID
}

// New creates an in-memory object table with a freshly minted root folder.
// The root is writable by anyone; access control below it is up to the
// objects' own ACLs.
func New() contentrepo.Repository {
	now := time.Now().UTC()
	root := &contentrepo.StoredObject{
		ID:          uuid.New(),
		Kind:        contentrepo.KindFolder,
		TypeID:      contentrepo.TypeFolder,
		Name:        "",
		CreatedBy:   contentrepo.PrincipalSystem,
		CreatedAt:   now,
		ModifiedBy:  contentrepo.PrincipalSystem,
		ModifiedAt:  now,
		ChangeToken: uuid.NewString(),
		ACL: contentrepo.Acl{Entries: []contentrepo.Ace{
			{Principal: contentrepo.PrincipalAnyone, Permissions: []contentrepo.Permission{contentrepo.PermissionAll}, Direct: true},
		}},
	}

	r := &Repository{
		objects:  make(map[uuid.UUID]*contentrepo.StoredObject),
		children: make(map[uuid.UUID]map[string]uuid.UUID),
		parents:  make(map[uuid.UUID]map[uuid.UUID]string),
		versions: make(map[uuid.UUID][]uuid.UUID),
		lastSeq:  make(map[uuid.UUID]int),
		rootID:   root.ID,
	}
	r.objects[root.ID] = root
	return r
}

func (r *Repository) RootID(ctx context.Context) (uuid.UUID, error) {
	return r.rootID, nil
}

// Create operations

func (r *Repository) CreateObject(ctx context.Context, obj *contentrepo.StoredObject, parentID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[obj.ID]; exists {
		return fmt.Errorf("%w: duplicate object id %s", contentrepo.ErrConstraintViolation, obj.ID)
	}
	if obj.Kind == contentrepo.KindFolder && parentID == nil {
		return fmt.Errorf("%w: folders must be filed", contentrepo.ErrConstraintViolation)
	}
	if parentID != nil {
		if err := r.fileLocked(obj, *parentID); err != nil {
			return err
		}
	}
	r.objects[obj.ID] = obj.Clone()
	return nil
}

func (r *Repository) CreateSeries(ctx context.Context, series, first *contentrepo.StoredObject, parentID *uuid.UUID) error {
	if first.Version == nil || first.Version.SeriesID != series.ID {
		return fmt.Errorf("%w: first version does not reference the series", contentrepo.ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.objects[series.ID]; exists {
		return fmt.Errorf("%w: duplicate object id %s", contentrepo.ErrConstraintViolation, series.ID)
	}
	if parentID != nil {
		if err := r.fileLocked(series, *parentID); err != nil {
			return err
		}
	}

	stored := series.Clone()
	latestID := first.ID
	stored.Series = &contentrepo.SeriesInfo{LatestVersionID: &latestID}
	r.objects[series.ID] = stored
	r.objects[first.ID] = first.Clone()
	r.versions[series.ID] = []uuid.UUID{first.ID}
	r.lastSeq[series.ID] = first.Version.Sequence
	return nil
}

// Lookup

func (r *Repository) GetObject(ctx context.Context, id uuid.UUID) (*contentrepo.StoredObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	obj, exists := r.objects[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, id)
	}
	return r.snapshotLocked(obj), nil
}

func (r *Repository) GetByPath(ctx context.Context, path string) (*contentrepo.StoredObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current := r.rootID
	if path != "/" {
		for _, segment := range strings.Split(strings.Trim(path, "/"), "/") {
			if segment == "" {
				return nil, fmt.Errorf("%w: empty path segment in %q", contentrepo.ErrInvalidArgument, path)
			}
			childID, exists := r.children[current][segment]
			if !exists {
				return nil, fmt.Errorf("%w: path %q", contentrepo.ErrObjectNotFound, path)
			}
			current = childID
		}
	}
	return r.snapshotLocked(r.objects[current]), nil
}

func (r *Repository) GetChildren(ctx context.Context, folderID uuid.UUID) ([]*contentrepo.StoredObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	folder, exists := r.objects[folderID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, folderID)
	}
	if folder.Kind != contentrepo.KindFolder {
		return nil, fmt.Errorf("%w: %s is not a folder", contentrepo.ErrInvalidArgument, folderID)
	}

	segments := make([]string, 0, len(r.children[folderID]))
	for segment := range r.children[folderID] {
		segments = append(segments, segment)
	}
	sort.Strings(segments)

	result := make([]*contentrepo.StoredObject, 0, len(segments))
	for _, segment := range segments {
		result = append(result, r.snapshotLocked(r.objects[r.children[folderID][segment]]))
	}
	return result, nil
}

// Mutation

func (r *Repository) UpdateProperties(ctx context.Context, id uuid.UUID, expectedToken, name string, props contentrepo.Properties, user string) (*contentrepo.StoredObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, exists := r.objects[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, id)
	}
	if obj.ChangeToken != expectedToken {
		return nil, fmt.Errorf("%w: stale change token", contentrepo.ErrUpdateConflict)
	}

	if name != "" && name != obj.Name {
		for folderID := range r.parents[id] {
			if _, taken := r.children[folderID][name]; taken {
				return nil, fmt.Errorf("%w: name %q already exists in folder %s", contentrepo.ErrConstraintViolation, name, folderID)
			}
		}
		for folderID, segment := range r.parents[id] {
			delete(r.children[folderID], segment)
			r.children[folderID][name] = id
			r.parents[id][folderID] = name
		}
		obj.Name = name
	}

	if len(props) > 0 && obj.Properties == nil {
		obj.Properties = contentrepo.Properties{}
	}
	for propID, value := range props {
		obj.Properties[propID] = value.Clone()
	}

	r.touchLocked(obj, user)
	return r.snapshotLocked(obj), nil
}

func (r *Repository) SetContent(ctx context.Context, id uuid.UUID, ref *contentrepo.ContentRef, overwrite bool, user string) (*contentrepo.StoredObject, *contentrepo.ContentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, exists := r.objects[id]
	if !exists {
		return nil, nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, id)
	}
	if !overwrite && obj.HasContent() {
		return nil, nil, contentrepo.ErrContentAlreadyExists
	}

	replaced := obj.Content
	if ref != nil {
		refCopy := *ref
		obj.Content = &refCopy
	} else {
		obj.Content = nil
	}
	r.touchLocked(obj, user)
	return r.snapshotLocked(obj), replaced, nil
}

// Filing

func (r *Repository) Move(ctx context.Context, objectID, sourceID, targetID uuid.UUID, user string) (*contentrepo.StoredObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, exists := r.objects[objectID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, objectID)
	}
	target, exists := r.objects[targetID]
	if !exists {
		return nil, fmt.Errorf("%w: target folder %s", contentrepo.ErrObjectNotFound, targetID)
	}
	if target.Kind != contentrepo.KindFolder {
		return nil, fmt.Errorf("%w: target %s is not a folder", contentrepo.ErrConstraintViolation, targetID)
	}
	segment, filed := r.parents[objectID][sourceID]
	if !filed {
		return nil, fmt.Errorf("%w: %s is not a parent of %s", contentrepo.ErrInvalidArgument, sourceID, objectID)
	}

	// Cycle prevention: walking the target's ancestry to the root must not
	// pass through the moved object. O(depth); folders are single-filed.
	if obj.Kind == contentrepo.KindFolder {
		for walk := targetID; walk != r.rootID; {
			if walk == objectID {
				return nil, fmt.Errorf("%w: cannot move %s below itself", contentrepo.ErrNotSupported, objectID)
			}
			parent, ok := r.singleParentLocked(walk)
			if !ok {
				break
			}
			walk = parent
		}
	}

	if existing, taken := r.children[targetID][segment]; taken && existing != objectID {
		return nil, fmt.Errorf("%w: name %q already exists in target folder", contentrepo.ErrConstraintViolation, segment)
	}

	delete(r.children[sourceID], segment)
	delete(r.parents[objectID], sourceID)
	r.attachLocked(objectID, targetID, segment)
	r.touchLocked(obj, user)
	return r.snapshotLocked(obj), nil
}

func (r *Repository) AddParent(ctx context.Context, objectID, folderID uuid.UUID, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, exists := r.objects[objectID]
	if !exists {
		return fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, objectID)
	}
	if obj.Kind == contentrepo.KindFolder {
		return fmt.Errorf("%w: folders cannot be multi-filed", contentrepo.ErrConstraintViolation)
	}
	folder, exists := r.objects[folderID]
	if !exists {
		return fmt.Errorf("%w: folder %s", contentrepo.ErrObjectNotFound, folderID)
	}
	if folder.Kind != contentrepo.KindFolder {
		return fmt.Errorf("%w: %s is not a folder", contentrepo.ErrConstraintViolation, folderID)
	}
	if _, already := r.parents[objectID][folderID]; already {
		return fmt.Errorf("%w: already filed under %s", contentrepo.ErrConstraintViolation, folderID)
	}
	if _, taken := r.children[folderID][obj.Name]; taken {
		return fmt.Errorf("%w: name %q already exists in folder", contentrepo.ErrConstraintViolation, obj.Name)
	}

	r.attachLocked(objectID, folderID, obj.Name)
	r.touchLocked(obj, user)
	return nil
}

func (r *Repository) RemoveParent(ctx context.Context, objectID, folderID uuid.UUID, user string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, exists := r.objects[objectID]
	if !exists {
		return fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, objectID)
	}
	if obj.Kind == contentrepo.KindFolder {
		return fmt.Errorf("%w: folders cannot be unfiled", contentrepo.ErrConstraintViolation)
	}
	segment, filed := r.parents[objectID][folderID]
	if !filed {
		return fmt.Errorf("%w: %s is not filed under %s", contentrepo.ErrInvalidArgument, objectID, folderID)
	}

	delete(r.children[folderID], segment)
	delete(r.parents[objectID], folderID)
	r.touchLocked(obj, user)
	return nil
}

// Delete

func (r *Repository) DeleteObject(ctx context.Context, id uuid.UUID, allVersions bool) ([]*contentrepo.StoredObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deleteLocked(id, allVersions)
}

func (r *Repository) DeleteTree(ctx context.Context, folderID uuid.UUID, continueOnFailure bool) ([]*contentrepo.StoredObject, []uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	folder, exists := r.objects[folderID]
	if !exists {
		return nil, nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, folderID)
	}
	if folder.Kind != contentrepo.KindFolder {
		return nil, nil, fmt.Errorf("%w: %s is not a folder", contentrepo.ErrInvalidArgument, folderID)
	}

	var removed []*contentrepo.StoredObject
	var failed []uuid.UUID
	var walk func(id uuid.UUID) bool

	walk = func(id uuid.UUID) bool {
		ok := true
		for _, childID := range r.childIDsLocked(id) {
			child, exists := r.objects[childID]
			if !exists {
				continue
			}
			if child.Kind == contentrepo.KindFolder {
				if !walk(childID) {
					ok = false
					failed = append(failed, childID)
					if !continueOnFailure {
						return false
					}
					continue
				}
			}
			gone, err := r.deleteLocked(childID, true)
			if err != nil {
				ok = false
				failed = append(failed, childID)
				if !continueOnFailure {
					return false
				}
				continue
			}
			removed = append(removed, gone...)
		}
		return ok
	}

	if !walk(folderID) && !continueOnFailure {
		return removed, failed, fmt.Errorf("%w: delete tree aborted", contentrepo.ErrConstraintViolation)
	}
	if len(failed) == 0 {
		gone, err := r.deleteLocked(folderID, true)
		if err != nil {
			failed = append(failed, folderID)
		} else {
			removed = append(removed, gone...)
		}
	} else {
		failed = append(failed, folderID)
	}
	return removed, failed, nil
}

// Versioning

func (r *Repository) CheckOut(ctx context.Context, seriesID, pwcID uuid.UUID, content *contentrepo.ContentRef, user string) (*contentrepo.StoredObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series, err := r.seriesLocked(seriesID)
	if err != nil {
		return nil, err
	}
	if series.Series.CheckedOut() {
		return nil, fmt.Errorf("%w: series already checked out by %s", contentrepo.ErrUpdateConflict, series.Series.CheckedOutBy)
	}

	base := series
	if series.Series.LatestVersionID != nil {
		if latest, exists := r.objects[*series.Series.LatestVersionID]; exists {
			base = latest
		}
	}

	now := time.Now().UTC()
	pwc := base.Clone()
	pwc.ID = pwcID
	pwc.CreatedBy = user
	pwc.CreatedAt = now
	pwc.ModifiedBy = user
	pwc.ModifiedAt = now
	pwc.ChangeToken = uuid.NewString()
	pwc.Kind = contentrepo.KindVersion
	pwc.Series = nil
	pwc.ParentIDs = nil
	pwc.Version = &contentrepo.VersionInfo{
		SeriesID: seriesID,
		Label:    "pwc",
		PWC:      true,
	}
	if content != nil {
		refCopy := *content
		pwc.Content = &refCopy
	} else {
		pwc.Content = nil
	}

	r.objects[pwcID] = pwc
	series.Series.PWCID = &pwcID
	series.Series.CheckedOutBy = user
	r.touchLocked(series, user)
	return r.snapshotLocked(pwc), nil
}

func (r *Repository) CheckIn(ctx context.Context, seriesID uuid.UUID, user string, major bool, props contentrepo.Properties, content *contentrepo.ContentRef, comment string) (*contentrepo.StoredObject, *contentrepo.ContentRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series, err := r.seriesLocked(seriesID)
	if err != nil {
		return nil, nil, err
	}
	if !series.Series.CheckedOut() {
		return nil, nil, fmt.Errorf("%w: series is not checked out", contentrepo.ErrUpdateConflict)
	}
	if series.Series.CheckedOutBy != user {
		return nil, nil, fmt.Errorf("%w: working copy is owned by %s", contentrepo.ErrUpdateConflict, series.Series.CheckedOutBy)
	}
	pwc, exists := r.objects[*series.Series.PWCID]
	if !exists {
		return nil, nil, fmt.Errorf("%w: working copy vanished", contentrepo.ErrObjectNotFound)
	}

	if len(props) > 0 && pwc.Properties == nil {
		pwc.Properties = contentrepo.Properties{}
	}
	for propID, value := range props {
		pwc.Properties[propID] = value.Clone()
	}
	var replaced *contentrepo.ContentRef
	if content != nil {
		replaced = pwc.Content
		refCopy := *content
		pwc.Content = &refCopy
	}

	seq := r.lastSeq[seriesID] + 1
	pwc.Version.Major = major
	pwc.Version.Sequence = seq
	pwc.Version.Label = r.versionLabelLocked(seriesID, major)
	pwc.Version.CheckinComment = comment
	pwc.Version.PWC = false
	r.touchLocked(pwc, user)

	r.versions[seriesID] = append(r.versions[seriesID], pwc.ID)
	r.lastSeq[seriesID] = seq
	latestID := pwc.ID
	series.Series.LatestVersionID = &latestID
	series.Series.PWCID = nil
	series.Series.CheckedOutBy = ""
	series.Properties = pwc.Properties.Clone()
	series.Content = nil
	if pwc.Content != nil {
		refCopy := *pwc.Content
		series.Content = &refCopy
	}
	r.touchLocked(series, user)

	return r.snapshotLocked(pwc), replaced, nil
}

func (r *Repository) CancelCheckOut(ctx context.Context, seriesID uuid.UUID, user string) (*contentrepo.StoredObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series, err := r.seriesLocked(seriesID)
	if err != nil {
		return nil, err
	}
	if !series.Series.CheckedOut() {
		return nil, fmt.Errorf("%w: series is not checked out", contentrepo.ErrUpdateConflict)
	}
	if series.Series.CheckedOutBy != user {
		return nil, fmt.Errorf("%w: working copy is owned by %s", contentrepo.ErrUpdateConflict, series.Series.CheckedOutBy)
	}

	pwcID := *series.Series.PWCID
	pwc := r.snapshotLocked(r.objects[pwcID])
	delete(r.objects, pwcID)
	series.Series.PWCID = nil
	series.Series.CheckedOutBy = ""
	r.touchLocked(series, user)
	return pwc, nil
}

func (r *Repository) GetAllVersions(ctx context.Context, seriesID uuid.UUID) ([]*contentrepo.StoredObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, err := r.seriesLocked(seriesID); err != nil {
		return nil, err
	}
	ids := r.versions[seriesID]

	// Newest first.
	result := make([]*contentrepo.StoredObject, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		if obj, exists := r.objects[ids[i]]; exists {
			result = append(result, r.snapshotLocked(obj))
		}
	}
	return result, nil
}

func (r *Repository) GetLatestVersion(ctx context.Context, seriesID uuid.UUID, majorOnly bool) (*contentrepo.StoredObject, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, err := r.seriesLocked(seriesID); err != nil {
		return nil, err
	}
	ids := r.versions[seriesID]
	for i := len(ids) - 1; i >= 0; i-- {
		obj, exists := r.objects[ids[i]]
		if !exists {
			continue
		}
		if majorOnly && !obj.Version.Major {
			continue
		}
		return r.snapshotLocked(obj), nil
	}
	if majorOnly {
		return nil, fmt.Errorf("%w: series %s has no major version", contentrepo.ErrObjectNotFound, seriesID)
	}
	return nil, fmt.Errorf("%w: series %s has no versions", contentrepo.ErrObjectNotFound, seriesID)
}

// ACL

func (r *Repository) ApplyACL(ctx context.Context, id uuid.UUID, add, remove []contentrepo.Ace, user string) (*contentrepo.StoredObject, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	obj, exists := r.objects[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, id)
	}
	obj.ACL = contentrepo.MergeACL(obj.ACL, add, remove)
	r.touchLocked(obj, user)
	return r.snapshotLocked(obj), nil
}

// Internal helpers. All require the write lock unless noted.

// fileLocked attaches obj under parentID, validating kind and name.
func (r *Repository) fileLocked(obj *contentrepo.StoredObject, parentID uuid.UUID) error {
	parent, exists := r.objects[parentID]
	if !exists {
		return fmt.Errorf("%w: parent folder %s", contentrepo.ErrObjectNotFound, parentID)
	}
	if parent.Kind != contentrepo.KindFolder {
		return fmt.Errorf("%w: parent %s is not a folder", contentrepo.ErrConstraintViolation, parentID)
	}
	if _, taken := r.children[parentID][obj.Name]; taken {
		return fmt.Errorf("%w: name %q already exists in folder", contentrepo.ErrConstraintViolation, obj.Name)
	}
	r.attachLocked(obj.ID, parentID, obj.Name)
	return nil
}

func (r *Repository) attachLocked(objectID, folderID uuid.UUID, segment string) {
	if r.children[folderID] == nil {
		r.children[folderID] = make(map[string]uuid.UUID)
	}
	if r.parents[objectID] == nil {
		r.parents[objectID] = make(map[uuid.UUID]string)
	}
	r.children[folderID][segment] = objectID
	r.parents[objectID][folderID] = segment
}

// singleParentLocked returns the sole parent of a single-filed object. Safe
// under the read lock.
func (r *Repository) singleParentLocked(id uuid.UUID) (uuid.UUID, bool) {
	for parentID := range r.parents[id] {
		return parentID, true
	}
	return uuid.Nil, false
}

func (r *Repository) childIDsLocked(folderID uuid.UUID) []uuid.UUID {
	segments := make([]string, 0, len(r.children[folderID]))
	for segment := range r.children[folderID] {
		segments = append(segments, segment)
	}
	sort.Strings(segments)
	ids := make([]uuid.UUID, 0, len(segments))
	for _, segment := range segments {
		ids = append(ids, r.children[folderID][segment])
	}
	return ids
}

// deleteLocked removes one object and whatever hangs off it, returning every
// removed record so content can be released. For versioned objects allVersions
// selects between the whole series and just the latest (or named) version.
func (r *Repository) deleteLocked(id uuid.UUID, allVersions bool) ([]*contentrepo.StoredObject, error) {
	obj, exists := r.objects[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, id)
	}

	switch obj.Kind {
	case contentrepo.KindFolder:
		if id == r.rootID {
			return nil, fmt.Errorf("%w: root folder cannot be deleted", contentrepo.ErrConstraintViolation)
		}
		if len(r.children[id]) > 0 {
			return nil, fmt.Errorf("%w: folder %s is not empty", contentrepo.ErrConstraintViolation, id)
		}
		removed := []*contentrepo.StoredObject{r.snapshotLocked(obj)}
		r.dropLocked(id)
		return removed, nil

	case contentrepo.KindDocument:
		removed := []*contentrepo.StoredObject{r.snapshotLocked(obj)}
		r.dropLocked(id)
		return removed, nil

	case contentrepo.KindVersionSeries:
		if !allVersions {
			if obj.Series != nil && obj.Series.LatestVersionID != nil {
				if latest, exists := r.objects[*obj.Series.LatestVersionID]; exists {
					return r.deleteVersionLocked(latest)
				}
			}
			return nil, fmt.Errorf("%w: series %s has no versions", contentrepo.ErrObjectNotFound, id)
		}
		var removed []*contentrepo.StoredObject
		for _, versionID := range r.versions[id] {
			if version, exists := r.objects[versionID]; exists {
				removed = append(removed, r.snapshotLocked(version))
				r.dropLocked(versionID)
			}
		}
		if obj.Series != nil && obj.Series.PWCID != nil {
			if pwc, exists := r.objects[*obj.Series.PWCID]; exists {
				removed = append(removed, r.snapshotLocked(pwc))
				r.dropLocked(pwc.ID)
			}
		}
		// The series record mirrors the latest version's content reference;
		// the version copy above already covers it.
		series := r.snapshotLocked(obj)
		series.Content = nil
		removed = append(removed, series)
		r.dropLocked(id)
		delete(r.versions, id)
		delete(r.lastSeq, id)
		return removed, nil

	case contentrepo.KindVersion:
		if allVersions && !obj.Version.PWC {
			if _, exists := r.objects[obj.Version.SeriesID]; exists {
				return r.deleteLocked(obj.Version.SeriesID, true)
			}
		}
		return r.deleteVersionLocked(obj)
	}
	return nil, fmt.Errorf("%w: object kind %q", contentrepo.ErrNotSupported, obj.Kind)
}

// deleteVersionLocked removes a single version. Deleting the working copy is
// equivalent to cancelling the checkout; deleting the last remaining version
// removes the whole series.
func (r *Repository) deleteVersionLocked(version *contentrepo.StoredObject) ([]*contentrepo.StoredObject, error) {
	seriesID := version.Version.SeriesID
	series, exists := r.objects[seriesID]
	if !exists {
		removed := []*contentrepo.StoredObject{r.snapshotLocked(version)}
		r.dropLocked(version.ID)
		return removed, nil
	}

	if version.Version.PWC {
		removed := []*contentrepo.StoredObject{r.snapshotLocked(version)}
		r.dropLocked(version.ID)
		series.Series.PWCID = nil
		series.Series.CheckedOutBy = ""
		r.touchLocked(series, version.ModifiedBy)
		return removed, nil
	}

	ids := r.versions[seriesID]
	kept := ids[:0]
	for _, id := range ids {
		if id != version.ID {
			kept = append(kept, id)
		}
	}
	r.versions[seriesID] = kept

	removed := []*contentrepo.StoredObject{r.snapshotLocked(version)}
	r.dropLocked(version.ID)

	if len(kept) == 0 && !series.Series.CheckedOut() {
		seriesSnap := r.snapshotLocked(series)
		seriesSnap.Content = nil
		removed = append(removed, seriesSnap)
		r.dropLocked(seriesID)
		delete(r.versions, seriesID)
		delete(r.lastSeq, seriesID)
		return removed, nil
	}

	if len(kept) > 0 {
		latestID := kept[len(kept)-1]
		series.Series.LatestVersionID = &latestID
	} else {
		series.Series.LatestVersionID = nil
	}
	r.touchLocked(series, version.ModifiedBy)
	return removed, nil
}

// dropLocked erases the record and every filing index entry pointing at it.
func (r *Repository) dropLocked(id uuid.UUID) {
	for folderID, segment := range r.parents[id] {
		delete(r.children[folderID], segment)
	}
	delete(r.parents, id)
	delete(r.children, id)
	delete(r.objects, id)
}

func (r *Repository) seriesLocked(seriesID uuid.UUID) (*contentrepo.StoredObject, error) {
	series, exists := r.objects[seriesID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", contentrepo.ErrObjectNotFound, seriesID)
	}
	if series.Kind != contentrepo.KindVersionSeries || series.Series == nil {
		return nil, fmt.Errorf("%w: %s is not a version series", contentrepo.ErrConstraintViolation, seriesID)
	}
	return series, nil
}

// versionLabelLocked derives the next label from the checked-in history:
// majors count up and reset the minor counter.
func (r *Repository) versionLabelLocked(seriesID uuid.UUID, major bool) string {
	majors, minors := 0, 0
	for _, id := range r.versions[seriesID] {
		version, exists := r.objects[id]
		if !exists {
			continue
		}
		if version.Version.Major {
			majors++
			minors = 0
		} else {
			minors++
		}
	}
	if major {
		return fmt.Sprintf("%d.0", majors+1)
	}
	return fmt.Sprintf("%d.%d", majors, minors+1)
}

func (r *Repository) touchLocked(obj *contentrepo.StoredObject, user string) {
	if user == "" {
		user = contentrepo.PrincipalSystem
	}
	obj.ModifiedBy = user
	obj.ModifiedAt = time.Now().UTC()
	obj.ChangeToken = uuid.NewString()
}

// snapshotLocked returns a detached copy with ParentIDs populated. Safe under
// the read lock.
func (r *Repository) snapshotLocked(obj *contentrepo.StoredObject) *contentrepo.StoredObject {
	out := obj.Clone()
	out.ParentIDs = nil
	for parentID := range r.parents[obj.ID] {
		out.ParentIDs = append(out.ParentIDs, parentID)
	}
	sort.Slice(out.ParentIDs, func(i, j int) bool {
		return out.ParentIDs[i].String() < out.ParentIDs[j].String()
	})
	return out
}
