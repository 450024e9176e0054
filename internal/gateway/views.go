package gateway

import (
	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"github.com/MarcoPoloResearchLab/wishlist/internal/wishlists"
)

// OwnedWishlist is a wishlist with its owner's profile attached.
type OwnedWishlist struct {
	wishlists.Wishlist
	Owner users.User `json:"owner"`
}

// SharedWishlist is a wishlist shared with the caller, with the caller's role.
type SharedWishlist struct {
	wishlists.Wishlist
	Role  access.Role `json:"role"`
	Owner users.User  `json:"owner"`
}

// EnrichedItem is a wishlist item with its catalog product attached.
type EnrichedItem struct {
	wishlists.Item
	Product catalog.Product `json:"product"`
}

// WishlistDetail is the full view of one wishlist for a caller who can read it.
type WishlistDetail struct {
	Wishlist wishlists.Wishlist `json:"wishlist"`
	Owner    users.User         `json:"owner"`
	Items    []EnrichedItem     `json:"items"`
	Role     access.Role        `json:"role"`
}

// Collaborator is a grant with the grantee's profile attached.
type Collaborator struct {
	access.Grant
	User users.User `json:"user"`
}

// AccessSummary is one of the caller's raw grants.
type AccessSummary struct {
	WishlistID int64       `json:"wishlist_id"`
	Role       access.Role `json:"role"`
}

// ItemInput is the caller-supplied part of a new item.
type ItemInput struct {
	ProductID int64
	Title     string
	Priority  int
}
