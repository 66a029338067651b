// Package policy decides which content actions an identity may perform.
// Every function is pure: no I/O, same answer for the same input.
// Reads of posts and categories never consult it.
package policy

import "scribe/models"

// Identity is a resolved, authenticated caller. The zero value is anonymous.
type Identity struct {
	UserID string
	Role   models.Role
}

// Authenticated reports whether the identity was resolved from a valid token.
func (id Identity) Authenticated() bool {
	return id.UserID != ""
}

func isAdmin(id Identity) bool {
	if !id.Authenticated() {
		return false
	}
	switch id.Role {
	case models.RoleAdmin:
		return true
	case models.RoleReader:
		return false
	default:
		return false
	}
}

// CanCreateCategory is true only for admins.
func CanCreateCategory(id Identity) bool {
	return isAdmin(id)
}

// CanMutateCategory covers update and delete; same rule as create.
func CanMutateCategory(id Identity) bool {
	return isAdmin(id)
}

// CanCreatePost is true for any authenticated caller.
func CanCreatePost(id Identity) bool {
	return id.Authenticated()
}

// CanMutatePost allows the post's author and admins.
func CanMutatePost(id Identity, post models.Post) bool {
	if !id.Authenticated() {
		return false
	}
	return isAdmin(id) || id.UserID == post.AuthorID
}

// CanComment is true for any authenticated caller.
func CanComment(id Identity) bool {
	return id.Authenticated()
}
