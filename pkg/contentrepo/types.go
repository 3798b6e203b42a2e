package contentrepo

import (
	"time"

	"github.com/google/uuid"
)

// ObjectKind discriminates the stored-object record. Callers branch on the
// kind or check a facet pointer, never on concrete types.
type ObjectKind string

const (
	KindFolder        ObjectKind = "folder"
	KindDocument      ObjectKind = "document"
	KindVersionSeries ObjectKind = "version-series"
	KindVersion       ObjectKind = "version"
	KindRelationship  ObjectKind = "relationship"
)

// PropertyType is the datatype tag of a property value.
type PropertyType string

const (
	PropertyTypeString   PropertyType = "string"
	PropertyTypeInteger  PropertyType = "integer"
	PropertyTypeBoolean  PropertyType = "boolean"
	PropertyTypeDateTime PropertyType = "datetime"
	PropertyTypeDecimal  PropertyType = "decimal"
	PropertyTypeID       PropertyType = "id"
)

// Cardinality of a property definition.
type Cardinality string

const (
	CardinalitySingle Cardinality = "single"
	CardinalityMulti  Cardinality = "multi"
)

// Updatability of a property definition.
type Updatability string

const (
	UpdatabilityReadWrite       Updatability = "readwrite"
	UpdatabilityReadOnly        Updatability = "readonly"
	UpdatabilityOnCreate        Updatability = "oncreate"
	UpdatabilityWhenCheckedOut  Updatability = "whencheckedout"
)

// PropertyValue is a tagged union: Type names the datatype, Values holds the
// elements. Single-valued properties carry exactly one element. Elements are
// normalized by the validator to the Go type matching Type (string, int64,
// bool, time.Time, float64).
type PropertyValue struct {
	Type   PropertyType `json:"type"`
	Values []any        `json:"values"`
}

// StringValue builds a string-typed property value.
func StringValue(vs ...string) PropertyValue {
	out := PropertyValue{Type: PropertyTypeString, Values: make([]any, 0, len(vs))}
	for _, v := range vs {
		out.Values = append(out.Values, v)
	}
	return out
}

// IntegerValue builds an integer-typed property value.
func IntegerValue(vs ...int64) PropertyValue {
	out := PropertyValue{Type: PropertyTypeInteger, Values: make([]any, 0, len(vs))}
	for _, v := range vs {
		out.Values = append(out.Values, v)
	}
	return out
}

// BooleanValue builds a boolean-typed property value.
func BooleanValue(vs ...bool) PropertyValue {
	out := PropertyValue{Type: PropertyTypeBoolean, Values: make([]any, 0, len(vs))}
	for _, v := range vs {
		out.Values = append(out.Values, v)
	}
	return out
}

// DateTimeValue builds a datetime-typed property value.
func DateTimeValue(vs ...time.Time) PropertyValue {
	out := PropertyValue{Type: PropertyTypeDateTime, Values: make([]any, 0, len(vs))}
	for _, v := range vs {
		out.Values = append(out.Values, v.UTC())
	}
	return out
}

// DecimalValue builds a decimal-typed property value.
func DecimalValue(vs ...float64) PropertyValue {
	out := PropertyValue{Type: PropertyTypeDecimal, Values: make([]any, 0, len(vs))}
	for _, v := range vs {
		out.Values = append(out.Values, v)
	}
	return out
}

// IDValue builds an id-typed property value.
func IDValue(vs ...string) PropertyValue {
	out := PropertyValue{Type: PropertyTypeID, Values: make([]any, 0, len(vs))}
	for _, v := range vs {
		out.Values = append(out.Values, v)
	}
	return out
}

// First returns the first element, or nil for an empty value.
func (v PropertyValue) First() any {
	if len(v.Values) == 0 {
		return nil
	}
	return v.Values[0]
}

// FirstString returns the first element as a string.
func (v PropertyValue) FirstString() (string, bool) {
	s, ok := v.First().(string)
	return s, ok
}

// FirstInteger returns the first element as an int64.
func (v PropertyValue) FirstInteger() (int64, bool) {
	i, ok := v.First().(int64)
	return i, ok
}

// IsEmpty reports whether the value holds no elements.
func (v PropertyValue) IsEmpty() bool { return len(v.Values) == 0 }

// Clone returns a deep copy of the value.
func (v PropertyValue) Clone() PropertyValue {
	out := PropertyValue{Type: v.Type}
	if v.Values != nil {
		out.Values = append([]any(nil), v.Values...)
	}
	return out
}

// Properties maps property id to its typed value(s).
type Properties map[string]PropertyValue

// Clone returns a deep copy of the property map.
func (p Properties) Clone() Properties {
	if p == nil {
		return nil
	}
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v.Clone()
	}
	return out
}

// Permission granted by an access-control entry.
type Permission string

const (
	PermissionRead  Permission = "read"
	PermissionWrite Permission = "write"
	PermissionAll   Permission = "all"
)

// Well-known principals.
const (
	// PrincipalAnyone matches every caller.
	PrincipalAnyone = "anyone"
	// PrincipalSystem is the internal caller; it bypasses permission checks.
	PrincipalSystem = "system"
)

// Ace associates a principal with a set of permissions.
type Ace struct {
	Principal   string       `json:"principal"`
	Permissions []Permission `json:"permissions"`
	Direct      bool         `json:"direct"`
}

// Clone returns a deep copy of the entry.
func (a Ace) Clone() Ace {
	out := a
	out.Permissions = append([]Permission(nil), a.Permissions...)
	return out
}

// Acl is an ordered list of access-control entries.
type Acl struct {
	Entries []Ace `json:"entries"`
}

// Clone returns a deep copy of the list.
func (a Acl) Clone() Acl {
	out := Acl{}
	for _, e := range a.Entries {
		out.Entries = append(out.Entries, e.Clone())
	}
	return out
}

// AclPropagation controls how an ACL change spreads.
type AclPropagation string

const (
	// AclPropagationObjectOnly applies the change to the target object alone.
	AclPropagationObjectOnly AclPropagation = "objectonly"
	// AclPropagationPropagate would cascade to descendants; not implemented.
	AclPropagationPropagate AclPropagation = "propagate"
	// AclPropagationRepositoryDetermined defers to the repository default,
	// which is object-only.
	AclPropagationRepositoryDetermined AclPropagation = "repositorydetermined"
)

// ContentRef points at the binary payload of a document or version. Keys are
// write-once: replacing content always writes a new key, so references are
// never shared between live objects.
type ContentRef struct {
	BackendName string `json:"backend_name"`
	Key         string `json:"key"`
	Size        int64  `json:"size"`
	MimeType    string `json:"mime_type,omitempty"`
	FileName    string `json:"file_name,omitempty"`
}

// VersionInfo is the facet carried by version objects and private working
// copies.
type VersionInfo struct {
	SeriesID       uuid.UUID `json:"series_id"`
	Label          string    `json:"label"`
	Major          bool      `json:"major"`
	Sequence       int       `json:"sequence"`
	CheckinComment string    `json:"checkin_comment,omitempty"`
	PWC            bool      `json:"pwc"`
}

// SeriesInfo is the facet carried by version-series objects.
type SeriesInfo struct {
	CheckedOutBy    string     `json:"checked_out_by,omitempty"`
	PWCID           *uuid.UUID `json:"pwc_id,omitempty"`
	LatestVersionID *uuid.UUID `json:"latest_version_id,omitempty"`
}

// CheckedOut reports whether the series currently has a private working copy.
func (s *SeriesInfo) CheckedOut() bool { return s != nil && s.PWCID != nil }

// StoredObject is the one entity record for every object kind. Relationships
// are stored as ids and resolved through the repository, never as pointers.
type StoredObject struct {
	ID          uuid.UUID  `json:"id"`
	Kind        ObjectKind `json:"kind"`
	TypeID      string     `json:"type_id"`
	Name        string     `json:"name"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedBy  string     `json:"modified_by"`
	ModifiedAt  time.Time  `json:"modified_at"`
	ChangeToken string     `json:"change_token"`
	Properties  Properties `json:"properties,omitempty"`
	ACL         Acl        `json:"acl"`

	// ParentIDs lists the folders the object is filed under. Folders have at
	// most one entry; the root has none.
	ParentIDs []uuid.UUID `json:"parent_ids,omitempty"`

	// Facets. Nil when the kind does not carry the capability.
	Content *ContentRef  `json:"content,omitempty"`
	Version *VersionInfo `json:"version,omitempty"`
	Series  *SeriesInfo  `json:"series,omitempty"`
}

// IsRoot reports whether the object is the root folder.
func (o *StoredObject) IsRoot() bool {
	return o.Kind == KindFolder && len(o.ParentIDs) == 0
}

// HasContent reports whether a payload is attached.
func (o *StoredObject) HasContent() bool {
	return o.Content != nil && o.Content.Size > 0
}

// Clone returns a deep copy of the record.
func (o *StoredObject) Clone() *StoredObject {
	out := *o
	out.Properties = o.Properties.Clone()
	out.ACL = o.ACL.Clone()
	out.ParentIDs = append([]uuid.UUID(nil), o.ParentIDs...)
	if o.Content != nil {
		c := *o.Content
		out.Content = &c
	}
	if o.Version != nil {
		v := *o.Version
		out.Version = &v
	}
	if o.Series != nil {
		s := *o.Series
		if s.PWCID != nil {
			id := *s.PWCID
			s.PWCID = &id
		}
		if s.LatestVersionID != nil {
			id := *s.LatestVersionID
			s.LatestVersionID = &id
		}
		out.Series = &s
	}
	return &out
}

// PropertyDefinition describes one property of a type.
type PropertyDefinition struct {
	ID           string         `json:"id"`
	Description  string         `json:"description,omitempty"`
	Type         PropertyType   `json:"type"`
	Cardinality  Cardinality    `json:"cardinality"`
	Updatability Updatability   `json:"updatability"`
	Required     bool           `json:"required"`
	Default      *PropertyValue `json:"default,omitempty"`
	Inherited    bool           `json:"inherited"`
}

// TypeDefinition describes an object type. Inherited property definitions are
// materialized into PropertyDefs at registration time.
type TypeDefinition struct {
	ID             string                        `json:"id"`
	Description    string                        `json:"description,omitempty"`
	BaseType       ObjectKind                    `json:"base_type"`
	ParentTypeID   string                        `json:"parent_type_id,omitempty"`
	Versionable    bool                          `json:"versionable"`
	ContentAllowed bool                          `json:"content_allowed"`
	PropertyDefs   map[string]PropertyDefinition `json:"property_defs,omitempty"`
}

// Clone returns a deep copy of the definition.
func (t *TypeDefinition) Clone() *TypeDefinition {
	out := *t
	out.PropertyDefs = make(map[string]PropertyDefinition, len(t.PropertyDefs))
	for id, def := range t.PropertyDefs {
		if def.Default != nil {
			d := def.Default.Clone()
			def.Default = &d
		}
		out.PropertyDefs[id] = def
	}
	return &out
}

// AllowableActions is the derived capability set for one object and caller.
// It is recomputed on every call and never cached.
type AllowableActions struct {
	CanGetProperties          bool `json:"can_get_properties"`
	CanUpdateProperties       bool `json:"can_update_properties"`
	CanDeleteObject           bool `json:"can_delete_object"`
	CanMoveObject             bool `json:"can_move_object"`
	CanGetChildren            bool `json:"can_get_children"`
	CanCreateDocument         bool `json:"can_create_document"`
	CanCreateFolder           bool `json:"can_create_folder"`
	CanDeleteTree             bool `json:"can_delete_tree"`
	CanGetContentStream       bool `json:"can_get_content_stream"`
	CanSetContentStream       bool `json:"can_set_content_stream"`
	CanCheckOut               bool `json:"can_check_out"`
	CanCheckIn                bool `json:"can_check_in"`
	CanCancelCheckOut         bool `json:"can_cancel_check_out"`
	CanGetAllVersions         bool `json:"can_get_all_versions"`
	CanAddObjectToFolder      bool `json:"can_add_object_to_folder"`
	CanRemoveObjectFromFolder bool `json:"can_remove_object_from_folder"`
	CanGetACL                 bool `json:"can_get_acl"`
	CanApplyACL               bool `json:"can_apply_acl"`
}
