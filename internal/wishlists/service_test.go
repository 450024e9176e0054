package wishlists

import (
	"context"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var fixedNow = time.Date(2024, time.March, 3, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Wishlist{}, &Item{}))

	service, err := NewService(ServiceConfig{Database: db, Clock: func() time.Time { return fixedNow }})
	require.NoError(t, err)
	return service
}

func TestCreateAssignsOwnerAndPrivacy(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	created, err := service.Create(ctx, 1, NewWishlist{Name: "  Bday ", Privacy: "shared"})
	require.NoError(t, err)
	require.Positive(t, created.ID)
	require.Equal(t, "Bday", created.Name)
	require.EqualValues(t, 1, created.OwnerID)
	require.Equal(t, PrivacyShared, created.Privacy)
	require.Equal(t, fixedNow, created.CreatedAt)

	defaulted, err := service.Create(ctx, 1, NewWishlist{Name: "Misc"})
	require.NoError(t, err)
	require.Equal(t, PrivacyPrivate, defaulted.Privacy)
}

func TestCreateRejectsInvalidInput(t *testing.T) {
	service := newTestService(t)

	_, err := service.Create(context.Background(), 1, NewWishlist{Name: "   "})
	require.ErrorIs(t, err, ErrInvalidWishlist)
	require.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = service.Create(context.Background(), 1, NewWishlist{Name: "Ok", Privacy: "secret"})
	require.ErrorIs(t, err, ErrInvalidPrivacy)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestGetAndOwnerOfMissingWishlist(t *testing.T) {
	service := newTestService(t)

	_, err := service.Get(context.Background(), 42)
	require.ErrorIs(t, err, ErrWishlistNotFound)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = service.OwnerOf(context.Background(), 42)
	require.ErrorIs(t, err, ErrWishlistNotFound)
}

func TestOwnerOfAndListByOwner(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	first, err := service.Create(ctx, 1, NewWishlist{Name: "A"})
	require.NoError(t, err)
	_, err = service.Create(ctx, 2, NewWishlist{Name: "B"})
	require.NoError(t, err)
	third, err := service.Create(ctx, 1, NewWishlist{Name: "C"})
	require.NoError(t, err)

	owner, err := service.OwnerOf(ctx, first.ID)
	require.NoError(t, err)
	require.EqualValues(t, 1, owner)

	owned, err := service.ListByOwner(ctx, 1)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	require.Equal(t, first.ID, owned[0].ID)
	require.Equal(t, third.ID, owned[1].ID)

	none, err := service.ListByOwner(ctx, 9)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestGetManyMatchesIndividualGets(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"A", "B", "C"} {
		_, err := service.Create(ctx, 1, NewWishlist{Name: name})
		require.NoError(t, err)
	}
	ids := []int64{3, 99, 1, 3, -1}

	batch, err := service.GetMany(ctx, ids)
	require.NoError(t, err)

	var individual []Wishlist
	seen := map[int64]bool{}
	for _, id := range ids {
		wishlist, err := service.Get(ctx, id)
		if err != nil || seen[id] {
			continue
		}
		seen[id] = true
		individual = append(individual, wishlist)
	}
	require.ElementsMatch(t, individual, batch)
}

func TestListItemsOrdersByPriorityThenID(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	wishlist, err := service.Create(ctx, 1, NewWishlist{Name: "Ordered"})
	require.NoError(t, err)

	priorities := []int{3, 1, 2, 1, 0}
	for index, priority := range priorities {
		_, err := service.AddItem(ctx, NewItem{
			WishlistID: wishlist.ID,
			ProductID:  int64(index + 1),
			Title:      "item",
			Priority:   priority,
			AddedBy:    1,
		})
		require.NoError(t, err)
	}

	items, err := service.ListItems(ctx, wishlist.ID)
	require.NoError(t, err)
	require.Len(t, items, len(priorities))

	var productOrder []int64
	for _, item := range items {
		productOrder = append(productOrder, item.ProductID)
	}
	require.Equal(t, []int64{5, 2, 4, 3, 1}, productOrder)
}

func TestAddItemRequiresProduct(t *testing.T) {
	service := newTestService(t)

	_, err := service.AddItem(context.Background(), NewItem{WishlistID: 1, AddedBy: 1})
	require.ErrorIs(t, err, ErrInvalidItem)
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRemoveItemScopedToWishlist(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()

	first, err := service.Create(ctx, 1, NewWishlist{Name: "First"})
	require.NoError(t, err)
	second, err := service.Create(ctx, 1, NewWishlist{Name: "Second"})
	require.NoError(t, err)
	item, err := service.AddItem(ctx, NewItem{WishlistID: first.ID, ProductID: 7, Title: "Lego", Priority: 1, AddedBy: 1})
	require.NoError(t, err)

	err = service.RemoveItem(ctx, second.ID, item.ID)
	require.ErrorIs(t, err, ErrItemNotFound)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, service.RemoveItem(ctx, first.ID, item.ID))
	items, err := service.ListItems(ctx, first.ID)
	require.NoError(t, err)
	require.Empty(t, items)
}
