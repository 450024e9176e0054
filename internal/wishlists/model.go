package wishlists

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Privacy is informational only; access is governed by ownership and grants.
type Privacy string

const (
	PrivacyPrivate Privacy = "Private"
	PrivacyShared  Privacy = "Shared"
	PrivacyPublic  Privacy = "Public"
)

const maxNameLength = 200

// ErrInvalidPrivacy indicates a privacy value outside the supported set.
var ErrInvalidPrivacy = errors.New("wishlists: invalid privacy")

// ParsePrivacy validates raw input case-insensitively. Blank input means Private.
func ParsePrivacy(raw string) (Privacy, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "private":
		return PrivacyPrivate, nil
	case "shared":
		return PrivacyShared, nil
	case "public":
		return PrivacyPublic, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPrivacy, raw)
	}
}

// Wishlist is a named list owned by exactly one user.
type Wishlist struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name      string    `gorm:"column:name;size:200;not null" json:"name"`
	OwnerID   int64     `gorm:"column:owner_id;not null;index:idx_wishlists_owner" json:"owner_id"`
	Privacy   Privacy   `gorm:"column:privacy;size:16;not null;default:Private" json:"privacy"`
	CreatedAt time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Wishlist) TableName() string {
	return "wishlists"
}

// Item is a line in a wishlist. ProductID may dangle; Title is the display fallback.
type Item struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	WishlistID int64     `gorm:"column:wishlist_id;not null;index:idx_items_wishlist_priority,priority:1" json:"wishlist_id"`
	ProductID  int64     `gorm:"column:product_id;not null" json:"product_id"`
	Title      string    `gorm:"column:title;size:320;not null;default:''" json:"title"`
	Priority   int       `gorm:"column:priority;not null;default:0;index:idx_items_wishlist_priority,priority:2" json:"priority"`
	AddedBy    int64     `gorm:"column:added_by;not null" json:"added_by"`
	CreatedAt  time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

// TableName provides the explicit table binding for GORM.
func (Item) TableName() string {
	return "wishlist_items"
}

// NewWishlist is the input for Create.
type NewWishlist struct {
	Name    string
	Privacy string
}

// NewItem is the input for AddItem.
type NewItem struct {
	WishlistID int64
	ProductID  int64
	Title      string
	Priority   int
	AddedBy    int64
}
