package access

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opLookup          = "access.lookup"
	opListForUser     = "access.list_for_user"
	opListForWishlist = "access.list_for_wishlist"
	opUpsert          = "access.upsert"
	opInsert          = "access.insert"
	opUpdate          = "access.update"
	opRevoke          = "access.revoke"
)

var grantKeyColumns = []clause.Column{{Name: "wishlist_id"}, {Name: "user_id"}}

// Lookup returns the grant for (wishlistID, userID). The boolean is false when none exists.
func (s *Service) Lookup(ctx context.Context, wishlistID, userID int64) (Grant, bool, error) {
	var grant Grant
	err := s.db.WithContext(ctx).Where("wishlist_id = ? AND user_id = ?", wishlistID, userID).Take(&grant).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Grant{}, false, nil
	}
	if err != nil {
		return Grant{}, false, s.queryFailed(opLookup, err, zap.Int64("wishlist_id", wishlistID), zap.Int64("user_id", userID))
	}
	return grant, true, nil
}

// ListForUser returns the grants held by userID ordered by wishlist id.
func (s *Service) ListForUser(ctx context.Context, userID int64) ([]Grant, error) {
	grants := make([]Grant, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("wishlist_id ASC").Find(&grants).Error; err != nil {
		return nil, s.queryFailed(opListForUser, err, zap.Int64("user_id", userID))
	}
	return grants, nil
}

// ListForWishlist returns the collaborators of a wishlist in invitation order.
func (s *Service) ListForWishlist(ctx context.Context, wishlistID int64) ([]Grant, error) {
	grants := make([]Grant, 0)
	if err := s.db.WithContext(ctx).Where("wishlist_id = ?", wishlistID).Order("invited_at ASC, user_id ASC").Find(&grants).Error; err != nil {
		return nil, s.queryFailed(opListForWishlist, err, zap.Int64("wishlist_id", wishlistID))
	}
	return grants, nil
}

// Upsert writes a grant in a single statement. An existing row gets the new role and
// keeps its display name unless a non-blank one is supplied.
func (s *Service) Upsert(ctx context.Context, input GrantInput) (Grant, error) {
	grant, err := s.newGrant(opUpsert, input)
	if err != nil {
		return Grant{}, err
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: grantKeyColumns,
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "role"}, Value: gorm.Expr("excluded.role")},
			{Column: clause.Column{Name: "display_name"}, Value: gorm.Expr("COALESCE(excluded.display_name, wishlist_access.display_name)")},
		},
	}).Create(&grant).Error
	if err != nil {
		return Grant{}, s.queryFailed(opUpsert, err, zap.Int64("wishlist_id", input.WishlistID), zap.Int64("user_id", input.UserID))
	}
	return s.mustLookup(ctx, opUpsert, input.WishlistID, input.UserID)
}

// Insert writes a grant only when none exists. The boolean is false when a grant was already present.
func (s *Service) Insert(ctx context.Context, input GrantInput) (Grant, bool, error) {
	grant, err := s.newGrant(opInsert, input)
	if err != nil {
		return Grant{}, false, err
	}
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{Columns: grantKeyColumns, DoNothing: true}).Create(&grant)
	if result.Error != nil {
		return Grant{}, false, s.queryFailed(opInsert, result.Error, zap.Int64("wishlist_id", input.WishlistID), zap.Int64("user_id", input.UserID))
	}
	if result.RowsAffected == 0 {
		return Grant{}, false, nil
	}
	return grant, true, nil
}

// Update changes the role and/or display name of an existing grant.
// A blank display name clears the override.
func (s *Service) Update(ctx context.Context, wishlistID, userID int64, update GrantUpdate) (Grant, error) {
	changes := map[string]any{}
	if update.Role != nil {
		if _, err := ParseGrantRole(update.Role.String()); err != nil {
			return Grant{}, apperr.Wrap(apperr.KindValidation, opUpdate+".invalid_role", "role must be view_only or view_edit", err)
		}
		changes["role"] = *update.Role
	}
	if update.DisplayName != nil {
		changes["display_name"] = optionalName(*update.DisplayName)
	}
	if len(changes) == 0 {
		grant, found, err := s.Lookup(ctx, wishlistID, userID)
		if err != nil {
			return Grant{}, err
		}
		if !found {
			return Grant{}, grantNotFound(opUpdate)
		}
		return grant, nil
	}
	result := s.db.WithContext(ctx).Model(&Grant{}).Where("wishlist_id = ? AND user_id = ?", wishlistID, userID).Updates(changes)
	if result.Error != nil {
		return Grant{}, s.queryFailed(opUpdate, result.Error, zap.Int64("wishlist_id", wishlistID), zap.Int64("user_id", userID))
	}
	if result.RowsAffected == 0 {
		return Grant{}, grantNotFound(opUpdate)
	}
	return s.mustLookup(ctx, opUpdate, wishlistID, userID)
}

// Revoke removes a grant. Removing a missing grant is not an error.
func (s *Service) Revoke(ctx context.Context, wishlistID, userID int64) error {
	if err := s.db.WithContext(ctx).Where("wishlist_id = ? AND user_id = ?", wishlistID, userID).Delete(&Grant{}).Error; err != nil {
		return s.queryFailed(opRevoke, err, zap.Int64("wishlist_id", wishlistID), zap.Int64("user_id", userID))
	}
	return nil
}

func (s *Service) newGrant(operation string, input GrantInput) (Grant, error) {
	if _, err := ParseGrantRole(input.Role.String()); err != nil {
		return Grant{}, apperr.Wrap(apperr.KindValidation, operation+".invalid_role", "role must be view_only or view_edit", err)
	}
	return Grant{
		WishlistID:  input.WishlistID,
		UserID:      input.UserID,
		Role:        input.Role,
		DisplayName: optionalName(input.DisplayName),
		InvitedBy:   input.InvitedBy,
		InvitedAt:   s.now().UTC(),
	}, nil
}

func (s *Service) mustLookup(ctx context.Context, operation string, wishlistID, userID int64) (Grant, error) {
	grant, found, err := s.Lookup(ctx, wishlistID, userID)
	if err != nil {
		return Grant{}, err
	}
	if !found {
		return Grant{}, apperr.Internal(operation+".missing_after_write", ErrGrantNotFound)
	}
	return grant, nil
}

func grantNotFound(operation string) error {
	return apperr.Wrap(apperr.KindNotFound, operation+".not_found", "access record not found", ErrGrantNotFound)
}

func optionalName(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
