package access

import (
	"errors"
	"fmt"
	"strings"
)

// Role governs what a user may do with a wishlist.
type Role string

const (
	// RoleOwner is implied by Wishlist.OwnerID and never stored as a grant.
	RoleOwner Role = "owner"
	// RoleViewEdit may read the wishlist and mutate its items.
	RoleViewEdit Role = "view_edit"
	// RoleViewOnly may read the wishlist.
	RoleViewOnly Role = "view_only"
	// RoleNone has no access.
	RoleNone Role = "none"
)

// ErrInvalidRole indicates a role value that cannot be granted.
var ErrInvalidRole = errors.New("access: invalid role")

// ParseGrantRole accepts only the roles that can be stored on a grant or invitation.
func ParseGrantRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleViewOnly:
		return RoleViewOnly, nil
	case RoleViewEdit:
		return RoleViewEdit, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, raw)
	}
}

// CanView reports whether the role grants read access.
func (r Role) CanView() bool {
	switch r {
	case RoleOwner, RoleViewEdit, RoleViewOnly:
		return true
	case RoleNone:
		return false
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}
