package access

import "time"

// Grant gives a non-owner access to a wishlist. One row per (wishlist, user).
type Grant struct {
	WishlistID  int64     `gorm:"column:wishlist_id;primaryKey;autoIncrement:false" json:"wishlist_id"`
	UserID      int64     `gorm:"column:user_id;primaryKey;autoIncrement:false;index:idx_access_user" json:"user_id"`
	Role        Role      `gorm:"column:role;size:16;not null" json:"role"`
	DisplayName *string   `gorm:"column:display_name;size:320" json:"display_name"`
	InvitedBy   int64     `gorm:"column:invited_by;not null;default:0" json:"invited_by"`
	InvitedAt   time.Time `gorm:"column:invited_at;not null" json:"invited_at"`
}

// TableName provides the explicit table binding for GORM.
func (Grant) TableName() string {
	return "wishlist_access"
}

// Invitation is a time-limited token granting Role on acceptance.
type Invitation struct {
	Token            string `gorm:"column:token;primaryKey;size:64"`
	WishlistID       int64  `gorm:"column:wishlist_id;not null;index:idx_invites_wishlist"`
	Role             Role   `gorm:"column:role;size:16;not null"`
	CreatedBy        int64  `gorm:"column:created_by;not null"`
	CreatedAtSeconds int64  `gorm:"column:created_at_s;not null"`
	ExpiresAtSeconds int64  `gorm:"column:expires_at_s;not null;index:idx_invites_expiry"`
}

// TableName provides the explicit table binding for GORM.
func (Invitation) TableName() string {
	return "wishlist_invites"
}

// ExpiresAt returns the absolute deadline in UTC.
func (i Invitation) ExpiresAt() time.Time {
	return time.Unix(i.ExpiresAtSeconds, 0).UTC()
}

// CreatedAt returns the creation time in UTC.
func (i Invitation) CreatedAt() time.Time {
	return time.Unix(i.CreatedAtSeconds, 0).UTC()
}

// GrantInput describes a grant to write.
type GrantInput struct {
	WishlistID  int64
	UserID      int64
	Role        Role
	DisplayName string
	InvitedBy   int64
}

// GrantUpdate carries the optional fields of an owner's role update.
type GrantUpdate struct {
	Role        *Role
	DisplayName *string
}

// NewInvitation describes an invitation to persist.
type NewInvitation struct {
	Token      string
	WishlistID int64
	Role       Role
	CreatedBy  int64
	ExpiresAt  time.Time
}
