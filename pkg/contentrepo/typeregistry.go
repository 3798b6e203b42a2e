package contentrepo

import (
	"fmt"
	"sort"
	"sync"
)

// Built-in type ids registered by NewTypeRegistry.
const (
	TypeFolder              = "folder"
	TypeDocument            = "document"
	TypeVersionableDocument = "versionable-document"
)

// TypeRegistry holds type definitions. Registration materializes inherited
// property definitions, so lookups never walk the parent chain.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[string]*TypeDefinition
}

// NewTypeRegistry creates a registry seeded with the built-in base types.
func NewTypeRegistry() *TypeRegistry {
	r := &TypeRegistry{types: make(map[string]*TypeDefinition)}
	r.types[TypeFolder] = &TypeDefinition{
		ID:           TypeFolder,
		Description:  "base folder type",
		BaseType:     KindFolder,
		PropertyDefs: map[string]PropertyDefinition{},
	}
	r.types[TypeDocument] = &TypeDefinition{
		ID:             TypeDocument,
		Description:    "base document type",
		BaseType:       KindDocument,
		ContentAllowed: true,
		PropertyDefs:   map[string]PropertyDefinition{},
	}
	r.types[TypeVersionableDocument] = &TypeDefinition{
		ID:             TypeVersionableDocument,
		Description:    "base versionable document type",
		BaseType:       KindDocument,
		Versionable:    true,
		ContentAllowed: true,
		PropertyDefs:   map[string]PropertyDefinition{},
	}
	return r
}

// Register adds a type definition. When ParentTypeID is set the parent's
// property definitions are copied in and marked inherited; re-declaring an
// inherited property id is rejected.
func (r *TypeRegistry) Register(def TypeDefinition) error {
	if def.ID == "" {
		return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: empty type id", ErrInvalidArgument)}
	}
	for id, pd := range def.PropertyDefs {
		if pd.ID != "" && pd.ID != id {
			return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: property key %q does not match definition id %q", ErrInvalidArgument, id, pd.ID)}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[def.ID]; exists {
		return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: type already registered", ErrConstraintViolation)}
	}

	stored := def.Clone()
	if stored.PropertyDefs == nil {
		stored.PropertyDefs = map[string]PropertyDefinition{}
	}
	for id := range stored.PropertyDefs {
		pd := stored.PropertyDefs[id]
		pd.ID = id
		pd.Inherited = false
		if pd.Cardinality == "" {
			pd.Cardinality = CardinalitySingle
		}
		if pd.Updatability == "" {
			pd.Updatability = UpdatabilityReadWrite
		}
		stored.PropertyDefs[id] = pd
	}

	if def.ParentTypeID != "" {
		parent, exists := r.types[def.ParentTypeID]
		if !exists {
			return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: parent type %q", ErrObjectNotFound, def.ParentTypeID)}
		}
		if def.BaseType == "" {
			stored.BaseType = parent.BaseType
		} else if def.BaseType != parent.BaseType {
			return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: base type %q differs from parent base %q", ErrConstraintViolation, def.BaseType, parent.BaseType)}
		}
		for id, pd := range parent.PropertyDefs {
			if _, clash := stored.PropertyDefs[id]; clash {
				return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: property %q re-declares an inherited definition", ErrConstraintViolation, id)}
			}
			inherited := pd
			if pd.Default != nil {
				d := pd.Default.Clone()
				inherited.Default = &d
			}
			inherited.Inherited = true
			stored.PropertyDefs[id] = inherited
		}
	}

	switch stored.BaseType {
	case KindFolder, KindDocument:
	default:
		return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: base type %q", ErrInvalidArgument, stored.BaseType)}
	}
	if stored.BaseType == KindFolder && (stored.Versionable || stored.ContentAllowed) {
		return &TypeError{TypeID: def.ID, Op: "register", Err: fmt.Errorf("%w: folder types cannot be versionable or carry content", ErrConstraintViolation)}
	}

	r.types[stored.ID] = stored
	return nil
}

// Get returns a copy of the definition.
func (r *TypeRegistry) Get(typeID string) (*TypeDefinition, error) {
	if typeID == "" {
		return nil, &TypeError{TypeID: typeID, Op: "get", Err: fmt.Errorf("%w: empty type id", ErrInvalidArgument)}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	def, exists := r.types[typeID]
	if !exists {
		return nil, &TypeError{TypeID: typeID, Op: "get", Err: fmt.Errorf("%w: type %q", ErrObjectNotFound, typeID)}
	}
	return def.Clone(), nil
}

// List returns copies of all definitions sorted by id.
func (r *TypeRegistry) List() []*TypeDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*TypeDefinition, 0, len(r.types))
	for _, def := range r.types {
		out = append(out, def.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
