// Package gateway composes the leaf stores into the response shapes served by
// the HTTP layer: permission checks first, then the primary fetch, then
// enrichment that degrades to placeholders instead of failing.
package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"github.com/MarcoPoloResearchLab/wishlist/internal/auth"
	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/enrich"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"github.com/MarcoPoloResearchLab/wishlist/internal/wishlists"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const opLogin = "gateway.login"

// UserDirectory is the identity provider's record store.
type UserDirectory interface {
	Login(ctx context.Context, username string) (users.User, error)
	Get(ctx context.Context, id int64) (users.User, error)
	GetMany(ctx context.Context, ids []int64) ([]users.User, error)
}

// Catalog is the product catalog, local or remote.
type Catalog interface {
	List(ctx context.Context, filter catalog.ListFilter) (catalog.Page, error)
	Search(ctx context.Context, filter catalog.SearchFilter) (catalog.Page, error)
	Categories(ctx context.Context) ([]string, error)
	Get(ctx context.Context, id int64) (catalog.Product, error)
	GetMany(ctx context.Context, ids []int64) ([]catalog.Product, error)
}

// ListStore is the wishlist and item store.
type ListStore interface {
	Create(ctx context.Context, ownerID int64, input wishlists.NewWishlist) (wishlists.Wishlist, error)
	Get(ctx context.Context, id int64) (wishlists.Wishlist, error)
	GetMany(ctx context.Context, ids []int64) ([]wishlists.Wishlist, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]wishlists.Wishlist, error)
	ListItems(ctx context.Context, wishlistID int64) ([]wishlists.Item, error)
	AddItem(ctx context.Context, input wishlists.NewItem) (wishlists.Item, error)
	RemoveItem(ctx context.Context, wishlistID, itemID int64) error
}

// GrantStore is the collaborator grant store.
type GrantStore interface {
	ListForUser(ctx context.Context, userID int64) ([]access.Grant, error)
	ListForWishlist(ctx context.Context, wishlistID int64) ([]access.Grant, error)
	Update(ctx context.Context, wishlistID, userID int64, update access.GrantUpdate) (access.Grant, error)
	Revoke(ctx context.Context, wishlistID, userID int64) error
}

// Permissions enforces per-route role requirements.
type Permissions interface {
	RequireView(ctx context.Context, userID, wishlistID int64) (access.Role, error)
	RequireEdit(ctx context.Context, userID, wishlistID int64) (access.Role, error)
	RequireOwner(ctx context.Context, userID, wishlistID int64) error
}

// TokenIssuer signs bearer tokens for logged-in users.
type TokenIssuer interface {
	IssueToken(ctx context.Context, principal auth.Principal) (string, int64, error)
}

// ServiceConfig describes the collaborators of the gateway.
type ServiceConfig struct {
	Users       UserDirectory
	Catalog     Catalog
	Lists       ListStore
	Grants      GrantStore
	Permissions Permissions
	Tokens      TokenIssuer
	Profiles    *enrich.Enricher[int64, users.User]
	Products    *enrich.Enricher[int64, catalog.Product]
	Logger      *zap.Logger
}

// Service is the enrichment gateway.
type Service struct {
	users       UserDirectory
	catalog     Catalog
	lists       ListStore
	grants      GrantStore
	permissions Permissions
	tokens      TokenIssuer
	profiles    *enrich.Enricher[int64, users.User]
	products    *enrich.Enricher[int64, catalog.Product]
	logger      *zap.Logger
}

// NewService validates the configuration and constructs the gateway.
func NewService(cfg ServiceConfig) (*Service, error) {
	switch {
	case cfg.Users == nil:
		return nil, errors.New("gateway: user directory required")
	case cfg.Catalog == nil:
		return nil, errors.New("gateway: catalog required")
	case cfg.Lists == nil:
		return nil, errors.New("gateway: list store required")
	case cfg.Grants == nil:
		return nil, errors.New("gateway: grant store required")
	case cfg.Permissions == nil:
		return nil, errors.New("gateway: permissions required")
	case cfg.Tokens == nil:
		return nil, errors.New("gateway: token issuer required")
	case cfg.Profiles == nil || cfg.Products == nil:
		return nil, errors.New("gateway: enrichers required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:       cfg.Users,
		catalog:     cfg.Catalog,
		lists:       cfg.Lists,
		grants:      cfg.Grants,
		permissions: cfg.Permissions,
		tokens:      cfg.Tokens,
		profiles:    cfg.Profiles,
		products:    cfg.Products,
		logger:      logger,
	}, nil
}

// Login exchanges a known username for a bearer token.
func (s *Service) Login(ctx context.Context, username string) (string, error) {
	user, err := s.users.Login(ctx, username)
	if err != nil {
		return "", err
	}
	token, _, err := s.tokens.IssueToken(ctx, auth.Principal{UserID: user.ID, DisplayName: user.PublicName})
	if err != nil {
		s.logger.Error("failed to issue token", zap.Int64("user_id", user.ID), zap.Error(err))
		return "", apperr.Internal(opLogin+".token_issue_failed", err)
	}
	return token, nil
}

// User returns one profile.
func (s *Service) User(ctx context.Context, id int64) (users.User, error) {
	return s.users.Get(ctx, id)
}

// Users returns the existing profiles among ids in a single lookup.
func (s *Service) Users(ctx context.Context, ids []int64) ([]users.User, error) {
	return s.users.GetMany(ctx, ids)
}

// Products lists the catalog.
func (s *Service) Products(ctx context.Context, filter catalog.ListFilter) (catalog.Page, error) {
	return s.catalog.List(ctx, filter)
}

// SearchProducts runs the advanced catalog search.
func (s *Service) SearchProducts(ctx context.Context, filter catalog.SearchFilter) (catalog.Page, error) {
	return s.catalog.Search(ctx, filter)
}

// Categories lists the catalog categories.
func (s *Service) Categories(ctx context.Context) ([]string, error) {
	return s.catalog.Categories(ctx)
}

// Product returns one catalog entry.
func (s *Service) Product(ctx context.Context, id int64) (catalog.Product, error) {
	return s.catalog.Get(ctx, id)
}

// ProductsByIDs returns the existing products among ids in a single lookup.
func (s *Service) ProductsByIDs(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	return s.catalog.GetMany(ctx, ids)
}

// MyWishlists returns the caller's own wishlists with the owner profile attached.
func (s *Service) MyWishlists(ctx context.Context, userID int64) ([]OwnedWishlist, error) {
	owned, err := s.lists.ListByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	owners := s.profiles.Many(ctx, ownerIDs(owned), func(_ int, id int64) users.User {
		return users.Placeholder(id, "")
	})
	result := make([]OwnedWishlist, len(owned))
	for index, wishlist := range owned {
		result[index] = OwnedWishlist{Wishlist: wishlist, Owner: owners[index]}
	}
	return result, nil
}

// FriendsWishlists returns the wishlists shared with the caller. The grant role is
// joined in memory after one batched wishlist fetch and one batched owner fetch.
func (s *Service) FriendsWishlists(ctx context.Context, userID int64) ([]SharedWishlist, error) {
	grants, err := s.grants.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return []SharedWishlist{}, nil
	}
	roles := make(map[int64]access.Role, len(grants))
	ids := make([]int64, 0, len(grants))
	for _, grant := range grants {
		roles[grant.WishlistID] = grant.Role
		ids = append(ids, grant.WishlistID)
	}
	shared, err := s.lists.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	owners := s.profiles.Many(ctx, ownerIDs(shared), func(_ int, id int64) users.User {
		return users.Placeholder(id, "")
	})
	result := make([]SharedWishlist, len(shared))
	for index, wishlist := range shared {
		result[index] = SharedWishlist{Wishlist: wishlist, Role: roles[wishlist.ID], Owner: owners[index]}
	}
	return result, nil
}

// WishlistsByIDs returns the wishlists among ids that the caller owns or holds a grant on.
func (s *Service) WishlistsByIDs(ctx context.Context, userID int64, ids []int64) ([]wishlists.Wishlist, error) {
	found, err := s.lists.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	grants, err := s.grants.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	granted := make(map[int64]struct{}, len(grants))
	for _, grant := range grants {
		granted[grant.WishlistID] = struct{}{}
	}
	visible := make([]wishlists.Wishlist, 0, len(found))
	for _, wishlist := range found {
		if _, ok := granted[wishlist.ID]; ok || wishlist.OwnerID == userID {
			visible = append(visible, wishlist)
		}
	}
	return visible, nil
}

// MyAccess returns the caller's raw grants.
func (s *Service) MyAccess(ctx context.Context, userID int64) ([]AccessSummary, error) {
	grants, err := s.grants.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	summaries := make([]AccessSummary, len(grants))
	for index, grant := range grants {
		summaries[index] = AccessSummary{WishlistID: grant.WishlistID, Role: grant.Role}
	}
	return summaries, nil
}

// CreateWishlist creates a wishlist owned by the caller.
func (s *Service) CreateWishlist(ctx context.Context, userID int64, input wishlists.NewWishlist) (wishlists.Wishlist, error) {
	return s.lists.Create(ctx, userID, input)
}

// WishlistDetail returns the wishlist, its owner, its enriched items and the caller's role.
// The owner lookup and the items-then-products fan-out run concurrently.
func (s *Service) WishlistDetail(ctx context.Context, userID, wishlistID int64) (WishlistDetail, error) {
	role, err := s.permissions.RequireView(ctx, userID, wishlistID)
	if err != nil {
		return WishlistDetail{}, err
	}

	var (
		wishlist wishlists.Wishlist
		owner    users.User
		items    []EnrichedItem
	)
	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		var err error
		wishlist, err = s.lists.Get(groupCtx, wishlistID)
		if err != nil {
			return err
		}
		owner = s.profiles.One(groupCtx, wishlist.OwnerID, func(id int64) users.User {
			return users.Placeholder(id, "")
		})
		return nil
	})
	group.Go(func() error {
		var err error
		items, err = s.enrichedItems(groupCtx, wishlistID)
		return err
	})
	if err := group.Wait(); err != nil {
		return WishlistDetail{}, err
	}

	return WishlistDetail{Wishlist: wishlist, Owner: owner, Items: items, Role: role}, nil
}

// WishlistItems returns the enriched items of a wishlist the caller can read.
func (s *Service) WishlistItems(ctx context.Context, userID, wishlistID int64) ([]EnrichedItem, error) {
	if _, err := s.permissions.RequireView(ctx, userID, wishlistID); err != nil {
		return nil, err
	}
	return s.enrichedItems(ctx, wishlistID)
}

// AddItem adds an item for a caller with edit rights. A blank title is filled from the catalog when possible.
func (s *Service) AddItem(ctx context.Context, userID, wishlistID int64, input ItemInput) (wishlists.Item, error) {
	if _, err := s.permissions.RequireEdit(ctx, userID, wishlistID); err != nil {
		return wishlists.Item{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" && input.ProductID > 0 {
		product, err := s.catalog.Get(ctx, input.ProductID)
		if err != nil {
			s.logger.Debug("title snapshot unavailable", zap.Int64("product_id", input.ProductID), zap.Error(err))
		} else {
			title = product.Title
		}
	}
	return s.lists.AddItem(ctx, wishlists.NewItem{
		WishlistID: wishlistID,
		ProductID:  input.ProductID,
		Title:      title,
		Priority:   input.Priority,
		AddedBy:    userID,
	})
}

// RemoveItem removes an item for a caller with edit rights.
func (s *Service) RemoveItem(ctx context.Context, userID, wishlistID, itemID int64) error {
	if _, err := s.permissions.RequireEdit(ctx, userID, wishlistID); err != nil {
		return err
	}
	return s.lists.RemoveItem(ctx, wishlistID, itemID)
}

// Collaborators returns the grants on a wishlist with profiles attached. Owner only.
// An unresolvable profile falls back to the grant's display name.
func (s *Service) Collaborators(ctx context.Context, userID, wishlistID int64) ([]Collaborator, error) {
	if err := s.permissions.RequireOwner(ctx, userID, wishlistID); err != nil {
		return nil, err
	}
	grants, err := s.grants.ListForWishlist(ctx, wishlistID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(grants))
	for index, grant := range grants {
		ids[index] = grant.UserID
	}
	profiles := s.profiles.Many(ctx, ids, func(index int, id int64) users.User {
		name := ""
		if grants[index].DisplayName != nil {
			name = *grants[index].DisplayName
		}
		return users.Placeholder(id, name)
	})
	result := make([]Collaborator, len(grants))
	for index, grant := range grants {
		result[index] = Collaborator{Grant: grant, User: profiles[index]}
	}
	return result, nil
}

// UpdateCollaborator changes a collaborator's role or display name. Owner only.
func (s *Service) UpdateCollaborator(ctx context.Context, userID, wishlistID, targetID int64, update access.GrantUpdate) (access.Grant, error) {
	if err := s.permissions.RequireOwner(ctx, userID, wishlistID); err != nil {
		return access.Grant{}, err
	}
	return s.grants.Update(ctx, wishlistID, targetID, update)
}

// RevokeCollaborator removes a collaborator's grant. Owner only.
func (s *Service) RevokeCollaborator(ctx context.Context, userID, wishlistID, targetID int64) error {
	if err := s.permissions.RequireOwner(ctx, userID, wishlistID); err != nil {
		return err
	}
	return s.grants.Revoke(ctx, wishlistID, targetID)
}

func (s *Service) enrichedItems(ctx context.Context, wishlistID int64) ([]EnrichedItem, error) {
	items, err := s.lists.ListItems(ctx, wishlistID)
	if err != nil {
		return nil, err
	}
	productIDs := make([]int64, len(items))
	for index, item := range items {
		productIDs[index] = item.ProductID
	}
	products := s.products.Many(ctx, productIDs, func(index int, id int64) catalog.Product {
		return catalog.Placeholder(id, items[index].Title)
	})
	enriched := make([]EnrichedItem, len(items))
	for index, item := range items {
		enriched[index] = EnrichedItem{Item: item, Product: products[index]}
	}
	return enriched, nil
}

func ownerIDs(list []wishlists.Wishlist) []int64 {
	ids := make([]int64, len(list))
	for index, wishlist := range list {
		ids[index] = wishlist.OwnerID
	}
	return ids
}
