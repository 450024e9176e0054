// Package permissions resolves a caller's role on a wishlist and enforces the
// view, edit and owner requirements of each route.
package permissions

import (
	"context"
	"errors"
	"fmt"

	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"github.com/MarcoPoloResearchLab/wishlist/internal/config"
	"go.uber.org/zap"
)

var (
	// ErrAccessDenied indicates the caller holds no role on the wishlist.
	ErrAccessDenied = errors.New("permissions: access denied")
	// ErrInsufficientRole indicates the caller's role does not permit the action.
	ErrInsufficientRole = errors.New("permissions: insufficient role")
)

const (
	opResolve      = "permissions.resolve"
	opRequireView  = "permissions.require_view"
	opRequireEdit  = "permissions.require_edit"
	opRequireOwner = "permissions.require_owner"
)

// OwnerLookup resolves the owner of a wishlist, failing with a NotFound error for unknown ids.
type OwnerLookup interface {
	OwnerOf(ctx context.Context, wishlistID int64) (int64, error)
}

// GrantLookup finds the grant a user holds on a wishlist.
type GrantLookup interface {
	Lookup(ctx context.Context, wishlistID, userID int64) (access.Grant, bool, error)
}

// ResolverConfig describes the dependencies of the Resolver.
type ResolverConfig struct {
	Owners     OwnerLookup
	Grants     GrantLookup
	EditPolicy config.EditPolicy
	Logger     *zap.Logger
}

// Resolver answers role questions fresh on every call.
type Resolver struct {
	owners OwnerLookup
	grants GrantLookup
	policy config.EditPolicy
	logger *zap.Logger
}

// NewResolver validates the configuration and constructs a Resolver.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Owners == nil || cfg.Grants == nil {
		return nil, errors.New("permissions: owner and grant lookups are required")
	}
	policy := cfg.EditPolicy
	if policy == "" {
		policy = config.EditPolicyOwnerOrEditor
	}
	switch policy {
	case config.EditPolicyOwnerOrEditor, config.EditPolicyOwnerOnly:
	default:
		return nil, fmt.Errorf("permissions: unsupported edit policy %q", policy)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{owners: cfg.Owners, grants: cfg.Grants, policy: policy, logger: logger}, nil
}

// Resolve returns the caller's role, RoleNone when there is no grant.
// Unknown wishlists surface the owner lookup's NotFound error.
func (r *Resolver) Resolve(ctx context.Context, userID, wishlistID int64) (access.Role, error) {
	ownerID, err := r.owners.OwnerOf(ctx, wishlistID)
	if err != nil {
		return access.RoleNone, err
	}
	if ownerID == userID {
		return access.RoleOwner, nil
	}
	grant, found, err := r.grants.Lookup(ctx, wishlistID, userID)
	if err != nil {
		return access.RoleNone, err
	}
	if !found {
		return access.RoleNone, nil
	}
	switch grant.Role {
	case access.RoleViewOnly, access.RoleViewEdit:
		return grant.Role, nil
	default:
		r.logger.Warn("ignoring grant with unsupported role",
			zap.String("operation", opResolve),
			zap.Int64("wishlist_id", wishlistID),
			zap.Int64("user_id", userID),
			zap.String("role", grant.Role.String()))
		return access.RoleNone, nil
	}
}

// CanEdit reports whether role may add or remove items under the configured policy.
func (r *Resolver) CanEdit(role access.Role) bool {
	switch role {
	case access.RoleOwner:
		return true
	case access.RoleViewEdit:
		return r.policy == config.EditPolicyOwnerOrEditor
	case access.RoleViewOnly, access.RoleNone:
		return false
	default:
		return false
	}
}

// RequireView fails with an Authorization error unless the caller can read the wishlist.
func (r *Resolver) RequireView(ctx context.Context, userID, wishlistID int64) (access.Role, error) {
	role, err := r.Resolve(ctx, userID, wishlistID)
	if err != nil {
		return access.RoleNone, err
	}
	if !role.CanView() {
		return access.RoleNone, apperr.Wrap(apperr.KindAuthorization, opRequireView+".denied", "Access denied", ErrAccessDenied)
	}
	return role, nil
}

// RequireEdit fails with an Authorization error unless the caller may mutate items.
func (r *Resolver) RequireEdit(ctx context.Context, userID, wishlistID int64) (access.Role, error) {
	role, err := r.Resolve(ctx, userID, wishlistID)
	if err != nil {
		return access.RoleNone, err
	}
	if !r.CanEdit(role) {
		return role, apperr.Wrap(apperr.KindAuthorization, opRequireEdit+".denied", "insufficient permissions", ErrInsufficientRole)
	}
	return role, nil
}

// RequireOwner fails with an Authorization error unless the caller owns the wishlist.
func (r *Resolver) RequireOwner(ctx context.Context, userID, wishlistID int64) error {
	role, err := r.Resolve(ctx, userID, wishlistID)
	if err != nil {
		return err
	}
	if role != access.RoleOwner {
		return apperr.Wrap(apperr.KindAuthorization, opRequireOwner+".denied", "only the owner can manage this wishlist", ErrInsufficientRole)
	}
	return nil
}
