package catalog

import (
	"context"
	"testing"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testProducts = []Product{
	{ID: 1, Title: "Lego Castle", Description: "Medieval brick set", Category: "Toys", Price: 89.99, Rating: 4.8, Retailer: "BrickShop"},
	{ID: 2, Title: "Espresso Machine", Description: "15 bar pump", Category: "Kitchen", Price: 249.00, Rating: 4.5, Retailer: "HomeGoods"},
	{ID: 3, Title: "Chef Knife", Description: "Forged 100% steel", Category: "kitchen", Price: 59.50, Rating: 4.9, Retailer: "HomeGoods"},
	{ID: 4, Title: "Puzzle 1000", Description: "Landscape puzzle", Category: "Toys", Price: 19.99, Rating: 3.9, Retailer: "GameHouse"},
	{ID: 7, Title: "Board Game", Description: "Strategy for four", Category: "Games", Price: 39.00, Rating: 4.5, Retailer: "GameHouse"},
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Product{}))

	service, err := NewService(ServiceConfig{Database: db})
	require.NoError(t, err)
	for _, product := range testProducts {
		_, err := service.Create(context.Background(), product)
		require.NoError(t, err)
	}
	return service
}

func TestListFiltersByCategoryCaseInsensitively(t *testing.T) {
	service := newTestService(t)

	page, err := service.List(context.Background(), ListFilter{Category: "KITCHEN"})
	require.NoError(t, err)
	require.EqualValues(t, 2, page.Total)
	require.Equal(t, []int64{2, 3}, productIDs(page.Products))
	require.Equal(t, DefaultListLimit, page.Limit)
}

func TestListSearchAndPagination(t *testing.T) {
	service := newTestService(t)

	page, err := service.List(context.Background(), ListFilter{Search: "PUZZLE"})
	require.NoError(t, err)
	require.Equal(t, []int64{4}, productIDs(page.Products))

	page, err = service.List(context.Background(), ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.EqualValues(t, len(testProducts), page.Total)
	require.Equal(t, []int64{3, 4}, productIDs(page.Products))
	require.Equal(t, 2, page.Offset)
}

func TestListEscapesWildcards(t *testing.T) {
	service := newTestService(t)

	page, err := service.List(context.Background(), ListFilter{Search: "100%"})
	require.NoError(t, err)
	require.Equal(t, []int64{3}, productIDs(page.Products))
}

func TestSearchAppliesBoundsAndRatingOrder(t *testing.T) {
	service := newTestService(t)
	minPrice := 30.0
	maxPrice := 250.0
	minRating := 4.5

	page, err := service.Search(context.Background(), SearchFilter{
		MinPrice:  &minPrice,
		MaxPrice:  &maxPrice,
		MinRating: &minRating,
	})
	require.NoError(t, err)
	require.Equal(t, []int64{3, 1, 2, 7}, productIDs(page.Products))
	require.Equal(t, DefaultSearchLimit, page.Limit)
}

func TestSearchMatchesRetailer(t *testing.T) {
	service := newTestService(t)

	page, err := service.Search(context.Background(), SearchFilter{Query: "gamehouse", Category: "toys"})
	require.NoError(t, err)
	require.Equal(t, []int64{4}, productIDs(page.Products))
}

func TestCategoriesDistinctSorted(t *testing.T) {
	service := newTestService(t)

	categories, err := service.Categories(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"Games", "Kitchen", "Toys", "kitchen"}, categories)
}

func TestGetMissingProduct(t *testing.T) {
	service := newTestService(t)

	_, err := service.Get(context.Background(), 404)
	require.ErrorIs(t, err, ErrProductNotFound)
	require.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestGetManyEquivalentToIndividualGets(t *testing.T) {
	service := newTestService(t)
	ctx := context.Background()
	ids := []int64{7, 1, 99, 7, 3}

	batch, err := service.GetMany(ctx, ids)
	require.NoError(t, err)

	var individual []int64
	seen := map[int64]bool{}
	for _, id := range ids {
		product, err := service.Get(ctx, id)
		if apperr.Is(err, apperr.KindNotFound) || seen[id] {
			continue
		}
		require.NoError(t, err)
		seen[id] = true
		individual = append(individual, product.ID)
	}
	require.ElementsMatch(t, individual, productIDs(batch))
}

func productIDs(products []Product) []int64 {
	ids := make([]int64, 0, len(products))
	for _, product := range products {
		ids = append(ids, product.ID)
	}
	return ids
}
