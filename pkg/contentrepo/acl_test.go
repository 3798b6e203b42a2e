package contentrepo_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contentrepo/contentrepo/pkg/contentrepo"
)

func aclFor(entries ...contentrepo.Ace) contentrepo.Acl {
	return contentrepo.Acl{Entries: entries}
}

func TestMergeACL(t *testing.T) {
	base := aclFor(
		contentrepo.Ace{Principal: "alice", Permissions: []contentrepo.Permission{contentrepo.PermissionAll}, Direct: true},
		contentrepo.Ace{Principal: contentrepo.PrincipalAnyone, Permissions: []contentrepo.Permission{contentrepo.PermissionRead}, Direct: true},
	)

	t.Run("AddNewPrincipal", func(t *testing.T) {
		out := contentrepo.MergeACL(base, []contentrepo.Ace{
			{Principal: "bob", Permissions: []contentrepo.Permission{contentrepo.PermissionWrite}},
		}, nil)
		assert.Len(t, out.Entries, 3)
		assert.True(t, contentrepo.HasPermission(out, "bob", contentrepo.PermissionWrite))
	})

	t.Run("AddUnionsPermissions", func(t *testing.T) {
		out := contentrepo.MergeACL(base, []contentrepo.Ace{
			{Principal: contentrepo.PrincipalAnyone, Permissions: []contentrepo.Permission{contentrepo.PermissionRead, contentrepo.PermissionWrite}},
		}, nil)
		require.Len(t, out.Entries, 2)
		assert.True(t, contentrepo.HasPermission(out, "stranger", contentrepo.PermissionWrite))
	})

	t.Run("RemoveSinglePermission", func(t *testing.T) {
		granted := contentrepo.MergeACL(base, []contentrepo.Ace{
			{Principal: "bob", Permissions: []contentrepo.Permission{contentrepo.PermissionRead, contentrepo.PermissionWrite}},
		}, nil)
		out := contentrepo.MergeACL(granted, nil, []contentrepo.Ace{
			{Principal: "bob", Permissions: []contentrepo.Permission{contentrepo.PermissionWrite}},
		})
		assert.False(t, hasDirect(out, "bob", contentrepo.PermissionWrite))
		assert.True(t, hasDirect(out, "bob", contentrepo.PermissionRead))
	})

	t.Run("RemoveWithEmptySetDropsPrincipal", func(t *testing.T) {
		out := contentrepo.MergeACL(base, nil, []contentrepo.Ace{{Principal: "alice"}})
		for _, e := range out.Entries {
			assert.NotEqual(t, "alice", e.Principal)
		}
	})

	t.Run("EmptiedEntryDropped", func(t *testing.T) {
		granted := aclFor(contentrepo.Ace{Principal: "bob", Permissions: []contentrepo.Permission{contentrepo.PermissionRead}, Direct: true})
		out := contentrepo.MergeACL(granted, nil, []contentrepo.Ace{
			{Principal: "bob", Permissions: []contentrepo.Permission{contentrepo.PermissionRead}},
		})
		assert.Empty(t, out.Entries)
	})

	t.Run("InputUntouched", func(t *testing.T) {
		_ = contentrepo.MergeACL(base, []contentrepo.Ace{
			{Principal: "carol", Permissions: []contentrepo.Permission{contentrepo.PermissionAll}},
		}, nil)
		assert.Len(t, base.Entries, 2)
	})
}

// hasDirect checks a literal permission grant, ignoring the implied-by-all
// and anyone shortcuts HasPermission applies.
func hasDirect(acl contentrepo.Acl, principal string, perm contentrepo.Permission) bool {
	for _, e := range acl.Entries {
		if e.Principal != principal {
			continue
		}
		for _, p := range e.Permissions {
			if p == perm {
				return true
			}
		}
	}
	return false
}

func TestHasPermission(t *testing.T) {
	acl := aclFor(
		contentrepo.Ace{Principal: "alice", Permissions: []contentrepo.Permission{contentrepo.PermissionAll}},
		contentrepo.Ace{Principal: "bob", Permissions: []contentrepo.Permission{contentrepo.PermissionRead}},
	)

	assert.True(t, contentrepo.HasPermission(acl, "alice", contentrepo.PermissionWrite), "all implies write")
	assert.True(t, contentrepo.HasPermission(acl, "bob", contentrepo.PermissionRead))
	assert.False(t, contentrepo.HasPermission(acl, "bob", contentrepo.PermissionWrite))
	assert.False(t, contentrepo.HasPermission(acl, "eve", contentrepo.PermissionRead))
	assert.True(t, contentrepo.HasPermission(acl, contentrepo.PrincipalSystem, contentrepo.PermissionWrite), "system bypasses")
	assert.True(t, contentrepo.HasPermission(acl, "", contentrepo.PermissionWrite), "empty principal is system")

	open := aclFor(contentrepo.Ace{Principal: contentrepo.PrincipalAnyone, Permissions: []contentrepo.Permission{contentrepo.PermissionRead}})
	assert.True(t, contentrepo.HasPermission(open, "anybody", contentrepo.PermissionRead))
}

func TestComputeAllowableActions(t *testing.T) {
	writerACL := aclFor(
		contentrepo.Ace{Principal: "alice", Permissions: []contentrepo.Permission{contentrepo.PermissionAll}},
		contentrepo.Ace{Principal: contentrepo.PrincipalAnyone, Permissions: []contentrepo.Permission{contentrepo.PermissionRead}},
	)

	t.Run("RootFolderProtections", func(t *testing.T) {
		root := &contentrepo.StoredObject{Kind: contentrepo.KindFolder, ACL: writerACL}
		actions := contentrepo.ComputeAllowableActions(root, "alice")
		assert.True(t, actions.CanCreateFolder)
		assert.False(t, actions.CanDeleteObject)
		assert.False(t, actions.CanMoveObject)
		assert.False(t, actions.CanUpdateProperties)
	})

	t.Run("DocumentForReader", func(t *testing.T) {
		doc := &contentrepo.StoredObject{
			Kind:    contentrepo.KindDocument,
			ACL:     writerACL,
			Content: &contentrepo.ContentRef{Key: "k", Size: 3},
		}
		actions := contentrepo.ComputeAllowableActions(doc, "eve")
		assert.True(t, actions.CanGetProperties)
		assert.True(t, actions.CanGetContentStream)
		assert.False(t, actions.CanSetContentStream)
		assert.False(t, actions.CanDeleteObject)
	})

	t.Run("SeriesCheckoutGating", func(t *testing.T) {
		series := &contentrepo.StoredObject{
			Kind:   contentrepo.KindVersionSeries,
			ACL:    writerACL,
			Series: &contentrepo.SeriesInfo{},
		}
		actions := contentrepo.ComputeAllowableActions(series, "alice")
		assert.True(t, actions.CanCheckOut)
		assert.False(t, actions.CanCheckIn)
		assert.False(t, actions.CanCancelCheckOut)

		pwcID := uuid.New()
		series.Series.PWCID = &pwcID
		series.Series.CheckedOutBy = "alice"

		actions = contentrepo.ComputeAllowableActions(series, "alice")
		assert.False(t, actions.CanCheckOut)
		assert.True(t, actions.CanCheckIn)
		assert.True(t, actions.CanCancelCheckOut)
		assert.False(t, actions.CanUpdateProperties)

		// A different writer sees the series as locked.
		other := contentrepo.ComputeAllowableActions(series, "system")
		assert.False(t, other.CanCheckIn)
	})

	t.Run("WorkingCopyWritable", func(t *testing.T) {
		pwc := &contentrepo.StoredObject{
			Kind:    contentrepo.KindVersion,
			ACL:     writerACL,
			Version: &contentrepo.VersionInfo{PWC: true},
		}
		actions := contentrepo.ComputeAllowableActions(pwc, "alice")
		assert.True(t, actions.CanSetContentStream)
		assert.True(t, actions.CanUpdateProperties)

		checked := &contentrepo.StoredObject{
			Kind:    contentrepo.KindVersion,
			ACL:     writerACL,
			Version: &contentrepo.VersionInfo{},
		}
		actions = contentrepo.ComputeAllowableActions(checked, "alice")
		assert.False(t, actions.CanSetContentStream)
		assert.False(t, actions.CanUpdateProperties)
	})
}
