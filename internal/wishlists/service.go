package wishlists

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrWishlistNotFound indicates the id has no wishlist row.
	ErrWishlistNotFound = errors.New("wishlists: wishlist not found")
	// ErrItemNotFound indicates the item does not exist in the given wishlist.
	ErrItemNotFound = errors.New("wishlists: item not found")
	// ErrInvalidWishlist indicates a creation request without a usable name.
	ErrInvalidWishlist = errors.New("wishlists: invalid wishlist")
	// ErrInvalidItem indicates an item without a product reference.
	ErrInvalidItem = errors.New("wishlists: invalid item")
)

const (
	opCreate      = "wishlists.create"
	opGet         = "wishlists.get"
	opGetMany     = "wishlists.get_many"
	opListByOwner = "wishlists.list_by_owner"
	opOwnerOf     = "wishlists.owner_of"
	opListItems   = "wishlists.list_items"
	opAddItem     = "wishlists.add_item"
	opRemoveItem  = "wishlists.remove_item"

	itemOrder = "priority ASC, id ASC"
)

// ServiceConfig describes the dependencies of the list store.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service stores wishlists and their items.
type Service struct {
	db     *gorm.DB
	now    func() time.Time
	logger *zap.Logger
}

// NewService constructs the list store.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errors.New("wishlists: database connection required")
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{db: cfg.Database, now: clock, logger: logger}, nil
}

// Create persists a wishlist owned by ownerID.
func (s *Service) Create(ctx context.Context, ownerID int64, input NewWishlist) (Wishlist, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" || len(name) > maxNameLength {
		return Wishlist{}, apperr.Wrap(apperr.KindValidation, opCreate+".invalid_name", "name is required and must be at most 200 characters", ErrInvalidWishlist)
	}
	privacy, err := ParsePrivacy(input.Privacy)
	if err != nil {
		return Wishlist{}, apperr.Wrap(apperr.KindValidation, opCreate+".invalid_privacy", "privacy must be one of Private, Shared, Public", err)
	}
	wishlist := Wishlist{
		Name:      name,
		OwnerID:   ownerID,
		Privacy:   privacy,
		CreatedAt: s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&wishlist).Error; err != nil {
		return Wishlist{}, s.queryFailed(opCreate, err)
	}
	return wishlist, nil
}

// Get returns the wishlist with the given id.
func (s *Service) Get(ctx context.Context, id int64) (Wishlist, error) {
	var wishlist Wishlist
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&wishlist).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Wishlist{}, notFound(opGet)
	}
	if err != nil {
		return Wishlist{}, s.queryFailed(opGet, err)
	}
	return wishlist, nil
}

// GetMany returns the wishlists that exist among ids, ordered by id.
func (s *Service) GetMany(ctx context.Context, ids []int64) ([]Wishlist, error) {
	ids = positiveUnique(ids)
	if len(ids) == 0 {
		return []Wishlist{}, nil
	}
	var found []Wishlist
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&found).Error; err != nil {
		return nil, s.queryFailed(opGetMany, err)
	}
	return found, nil
}

// ListByOwner returns every wishlist owned by ownerID, ordered by id.
func (s *Service) ListByOwner(ctx context.Context, ownerID int64) ([]Wishlist, error) {
	found := make([]Wishlist, 0)
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id ASC").Find(&found).Error; err != nil {
		return nil, s.queryFailed(opListByOwner, err)
	}
	return found, nil
}

// OwnerOf returns the owner id of the wishlist.
func (s *Service) OwnerOf(ctx context.Context, id int64) (int64, error) {
	var ownerIDs []int64
	if err := s.db.WithContext(ctx).Model(&Wishlist{}).Where("id = ?", id).Limit(1).Pluck("owner_id", &ownerIDs).Error; err != nil {
		return 0, s.queryFailed(opOwnerOf, err)
	}
	if len(ownerIDs) == 0 {
		return 0, notFound(opOwnerOf)
	}
	return ownerIDs[0], nil
}

// ListItems returns the items of a wishlist ordered by priority, then id.
func (s *Service) ListItems(ctx context.Context, wishlistID int64) ([]Item, error) {
	items := make([]Item, 0)
	if err := s.db.WithContext(ctx).Where("wishlist_id = ?", wishlistID).Order(itemOrder).Find(&items).Error; err != nil {
		return nil, s.queryFailed(opListItems, err)
	}
	return items, nil
}

// AddItem appends an item to a wishlist. Authorization is the caller's concern.
func (s *Service) AddItem(ctx context.Context, input NewItem) (Item, error) {
	if input.ProductID <= 0 {
		return Item{}, apperr.Wrap(apperr.KindValidation, opAddItem+".invalid_product", "product_id must be a positive integer", ErrInvalidItem)
	}
	item := Item{
		WishlistID: input.WishlistID,
		ProductID:  input.ProductID,
		Title:      strings.TrimSpace(input.Title),
		Priority:   input.Priority,
		AddedBy:    input.AddedBy,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&item).Error; err != nil {
		return Item{}, s.queryFailed(opAddItem, err)
	}
	return item, nil
}

// RemoveItem deletes an item from a wishlist.
func (s *Service) RemoveItem(ctx context.Context, wishlistID, itemID int64) error {
	result := s.db.WithContext(ctx).Where("id = ? AND wishlist_id = ?", itemID, wishlistID).Delete(&Item{})
	if result.Error != nil {
		return s.queryFailed(opRemoveItem, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.Wrap(apperr.KindNotFound, opRemoveItem+".not_found", "item not found", ErrItemNotFound)
	}
	return nil
}

func notFound(operation string) error {
	return apperr.Wrap(apperr.KindNotFound, operation+".not_found", "not found", ErrWishlistNotFound)
}

func (s *Service) queryFailed(operation string, err error) error {
	s.logger.Error("wishlist query failed", zap.String("operation", operation), zap.Error(err))
	return apperr.Internal(operation+".query_failed", err)
}

func positiveUnique(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	unique := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	return unique
}
