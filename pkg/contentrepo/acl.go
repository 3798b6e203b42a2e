package contentrepo

// DefaultACL grants the creator full control and everyone read access.
func DefaultACL(creator string) Acl {
	entries := []Ace{}
	if creator != "" && creator != PrincipalSystem {
		entries = append(entries, Ace{Principal: creator, Permissions: []Permission{PermissionAll}, Direct: true})
	}
	entries = append(entries, Ace{Principal: PrincipalAnyone, Permissions: []Permission{PermissionRead}, Direct: true})
	return Acl{Entries: entries}
}

// MergeACL applies add and remove entries to an ACL and returns the result.
// Added permissions are unioned per principal. A remove entry with an empty
// permission set drops the principal entirely; otherwise only the listed
// permissions are withdrawn, and an entry left without permissions is
// dropped.
func MergeACL(acl Acl, add, remove []Ace) Acl {
	out := acl.Clone()

	for _, ace := range add {
		idx := -1
		for i, existing := range out.Entries {
			if existing.Principal == ace.Principal {
				idx = i
				break
			}
		}
		if idx < 0 {
			entry := ace.Clone()
			entry.Direct = true
			out.Entries = append(out.Entries, entry)
			continue
		}
		for _, perm := range ace.Permissions {
			if !hasPermissionLiteral(out.Entries[idx].Permissions, perm) {
				out.Entries[idx].Permissions = append(out.Entries[idx].Permissions, perm)
			}
		}
	}

	for _, ace := range remove {
		kept := out.Entries[:0]
		for _, existing := range out.Entries {
			if existing.Principal != ace.Principal {
				kept = append(kept, existing)
				continue
			}
			if len(ace.Permissions) == 0 {
				continue
			}
			remaining := existing.Permissions[:0]
			for _, perm := range existing.Permissions {
				if !hasPermissionLiteral(ace.Permissions, perm) {
					remaining = append(remaining, perm)
				}
			}
			if len(remaining) > 0 {
				existing.Permissions = remaining
				kept = append(kept, existing)
			}
		}
		out.Entries = kept
	}

	return out
}

func hasPermissionLiteral(perms []Permission, perm Permission) bool {
	for _, p := range perms {
		if p == perm {
			return true
		}
	}
	return false
}

// HasPermission reports whether the principal holds the permission, either
// directly, through the anyone principal, or through the all permission. The
// system principal always passes.
func HasPermission(acl Acl, principal string, perm Permission) bool {
	if principal == "" || principal == PrincipalSystem {
		return true
	}
	for _, ace := range acl.Entries {
		if ace.Principal != principal && ace.Principal != PrincipalAnyone {
			continue
		}
		for _, p := range ace.Permissions {
			if p == perm || p == PermissionAll {
				return true
			}
		}
	}
	return false
}

// ComputeAllowableActions derives the capability set for one object and
// caller. Pure: it reads only its arguments and must be recomputed on every
// call.
func ComputeAllowableActions(obj *StoredObject, user string) AllowableActions {
	readable := HasPermission(obj.ACL, user, PermissionRead)
	writable := HasPermission(obj.ACL, user, PermissionWrite)
	isRoot := obj.IsRoot()

	actions := AllowableActions{
		CanGetProperties: readable,
		CanGetACL:        readable,
		CanApplyACL:      writable,
	}

	switch obj.Kind {
	case KindFolder:
		actions.CanGetChildren = readable
		actions.CanCreateDocument = writable
		actions.CanCreateFolder = writable
		actions.CanUpdateProperties = writable && !isRoot
		actions.CanDeleteObject = writable && !isRoot
		actions.CanDeleteTree = writable && !isRoot
		actions.CanMoveObject = writable && !isRoot

	case KindDocument:
		actions.CanUpdateProperties = writable
		actions.CanDeleteObject = writable
		actions.CanMoveObject = writable
		actions.CanAddObjectToFolder = writable
		actions.CanRemoveObjectFromFolder = writable
		actions.CanGetContentStream = readable && obj.HasContent()
		actions.CanSetContentStream = writable

	case KindVersionSeries:
		checkedOut := obj.Series.CheckedOut()
		owner := checkedOut && obj.Series.CheckedOutBy == user
		actions.CanUpdateProperties = writable && !checkedOut
		actions.CanDeleteObject = writable
		actions.CanMoveObject = writable
		actions.CanAddObjectToFolder = writable
		actions.CanRemoveObjectFromFolder = writable
		actions.CanGetAllVersions = readable
		actions.CanCheckOut = writable && !checkedOut
		actions.CanCheckIn = owner
		actions.CanCancelCheckOut = owner

	case KindVersion:
		pwc := obj.Version != nil && obj.Version.PWC
		actions.CanGetContentStream = readable && obj.HasContent()
		actions.CanSetContentStream = writable && pwc
		actions.CanUpdateProperties = writable && pwc
		actions.CanGetAllVersions = readable
		actions.CanDeleteObject = writable
	}

	return actions
}
