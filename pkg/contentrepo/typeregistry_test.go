package contentrepo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
)

func TestTypeRegistry(t *testing.T) {
	t.Run("BuiltinsSeeded", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()

		folder, err := r.Get(contentrepo.TypeFolder)
		require.NoError(t, err)
		assert.Equal(t, contentrepo.KindFolder, folder.BaseType)
		assert.False(t, folder.ContentAllowed)

		doc, err := r.Get(contentrepo.TypeDocument)
		require.NoError(t, err)
		assert.True(t, doc.ContentAllowed)
		assert.False(t, doc.Versionable)

		versionable, err := r.Get(contentrepo.TypeVersionableDocument)
		require.NoError(t, err)
		assert.True(t, versionable.Versionable)
	})

	t.Run("InheritanceMaterialized", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()

		require.NoError(t, r.Register(contentrepo.TypeDefinition{
			ID:           "record",
			BaseType:     contentrepo.KindDocument,
			ParentTypeID: contentrepo.TypeDocument,
			PropertyDefs: map[string]contentrepo.PropertyDefinition{
				"record:id": {Type: contentrepo.PropertyTypeString, Required: true},
			},
		}))
		require.NoError(t, r.Register(contentrepo.TypeDefinition{
			ID:           "tax-record",
			ParentTypeID: "record",
			PropertyDefs: map[string]contentrepo.PropertyDefinition{
				"tax:year": {Type: contentrepo.PropertyTypeInteger},
			},
		}))

		def, err := r.Get("tax-record")
		require.NoError(t, err)
		assert.Equal(t, contentrepo.KindDocument, def.BaseType)

		inherited, ok := def.PropertyDefs["record:id"]
		require.True(t, ok)
		assert.True(t, inherited.Inherited)
		assert.True(t, inherited.Required)

		own, ok := def.PropertyDefs["tax:year"]
		require.True(t, ok)
		assert.False(t, own.Inherited)
		// Omitted fields are defaulted.
		assert.Equal(t, contentrepo.CardinalitySingle, own.Cardinality)
		assert.Equal(t, contentrepo.UpdatabilityReadWrite, own.Updatability)
	})

	t.Run("RedeclaredInheritedRejected", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()

		require.NoError(t, r.Register(contentrepo.TypeDefinition{
			ID:           "base",
			BaseType:     contentrepo.KindDocument,
			ParentTypeID: contentrepo.TypeDocument,
			PropertyDefs: map[string]contentrepo.PropertyDefinition{
				"base:name": {Type: contentrepo.PropertyTypeString},
			},
		}))

		err := r.Register(contentrepo.TypeDefinition{
			ID:           "child",
			ParentTypeID: "base",
			PropertyDefs: map[string]contentrepo.PropertyDefinition{
				"base:name": {Type: contentrepo.PropertyTypeInteger},
			},
		})
		assert.ErrorIs(t, err, contentrepo.ErrConstraintViolation)
	})

	t.Run("UnknownParentRejected", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()
		err := r.Register(contentrepo.TypeDefinition{
			ID:           "orphan",
			ParentTypeID: "no-such-type",
		})
		assert.ErrorIs(t, err, contentrepo.ErrObjectNotFound)
	})

	t.Run("DuplicateRejected", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()
		err := r.Register(contentrepo.TypeDefinition{
			ID:       contentrepo.TypeDocument,
			BaseType: contentrepo.KindDocument,
		})
		assert.ErrorIs(t, err, contentrepo.ErrConstraintViolation)
	})

	t.Run("VersionableFolderRejected", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()
		err := r.Register(contentrepo.TypeDefinition{
			ID:          "weird-folder",
			BaseType:    contentrepo.KindFolder,
			Versionable: true,
		})
		assert.ErrorIs(t, err, contentrepo.ErrConstraintViolation)
	})

	t.Run("BaseTypeMismatchRejected", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()
		err := r.Register(contentrepo.TypeDefinition{
			ID:           "confused",
			BaseType:     contentrepo.KindFolder,
			ParentTypeID: contentrepo.TypeDocument,
		})
		assert.ErrorIs(t, err, contentrepo.ErrConstraintViolation)
	})

	t.Run("ListSorted", func(t *testing.T) {
		r := contentrepo.NewTypeRegistry()
		list := r.List()
		require.Len(t, list, 3)
		assert.Equal(t, contentrepo.TypeDocument, list[0].ID)
		assert.Equal(t, contentrepo.TypeFolder, list[1].ID)
		assert.Equal(t, contentrepo.TypeVersionableDocument, list[2].ID)
	})
}
