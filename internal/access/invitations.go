package access

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateInvitation = "access.create_invitation"
	opActiveInvitation = "access.active_invitation"
	opDeleteInvitation = "access.delete_invitation"
)

// CreateInvitation persists an invitation.
func (s *Service) CreateInvitation(ctx context.Context, input NewInvitation) (Invitation, error) {
	if _, err := ParseGrantRole(input.Role.String()); err != nil {
		return Invitation{}, apperr.Wrap(apperr.KindValidation, opCreateInvitation+".invalid_role", "access_type must be view_only or view_edit", err)
	}
	now := s.now().UTC()
	token := strings.TrimSpace(input.Token)
	if token == "" || !input.ExpiresAt.After(now) {
		return Invitation{}, apperr.Internal(opCreateInvitation+".invalid", ErrInvalidInvitation)
	}
	invitation := Invitation{
		Token:            token,
		WishlistID:       input.WishlistID,
		Role:             input.Role,
		CreatedBy:        input.CreatedBy,
		CreatedAtSeconds: now.Unix(),
		ExpiresAtSeconds: input.ExpiresAt.Unix(),
	}
	if err := s.db.WithContext(ctx).Create(&invitation).Error; err != nil {
		return Invitation{}, s.queryFailed(opCreateInvitation, err, zap.Int64("wishlist_id", input.WishlistID))
	}
	return invitation, nil
}

// ActiveInvitation returns the invitation for token when its deadline is strictly after now.
func (s *Service) ActiveInvitation(ctx context.Context, token string) (Invitation, error) {
	var invitation Invitation
	err := s.db.WithContext(ctx).
		Where("token = ? AND expires_at_s > ?", strings.TrimSpace(token), s.now().Unix()).
		Take(&invitation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Invitation{}, apperr.Wrap(apperr.KindNotFound, opActiveInvitation+".not_found", "invite not found or expired", ErrInvitationNotFound)
	}
	if err != nil {
		return Invitation{}, s.queryFailed(opActiveInvitation, err)
	}
	return invitation, nil
}

// DeleteInvitation removes an invitation so it cannot be accepted again.
func (s *Service) DeleteInvitation(ctx context.Context, token string) error {
	if err := s.db.WithContext(ctx).Where("token = ?", token).Delete(&Invitation{}).Error; err != nil {
		return s.queryFailed(opDeleteInvitation, err)
	}
	return nil
}
