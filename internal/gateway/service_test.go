package gateway

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"github.com/MarcoPoloResearchLab/wishlist/internal/auth"
	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/config"
	"github.com/MarcoPoloResearchLab/wishlist/internal/permissions"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"github.com/MarcoPoloResearchLab/wishlist/internal/wishlists"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type countingCatalog struct {
	*catalog.Service
	batchCalls  atomic.Int32
	singleCalls atomic.Int32
	failBatch   bool
}

func (c *countingCatalog) Get(ctx context.Context, id int64) (catalog.Product, error) {
	c.singleCalls.Add(1)
	return c.Service.Get(ctx, id)
}

func (c *countingCatalog) GetMany(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	c.batchCalls.Add(1)
	if c.failBatch {
		return nil, apperr.Upstream("test.catalog", errors.New("catalog down"))
	}
	return c.Service.GetMany(ctx, ids)
}

type fixture struct {
	gateway *Service
	catalog *countingCatalog
	lists   *wishlists.Service
	grants  *access.Service
	alice   users.User
	bob     users.User
	carol   users.User
}

func newFixture(t *testing.T, policy config.EditPolicy) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&users.User{}, &catalog.Product{}, &wishlists.Wishlist{}, &wishlists.Item{}, &access.Grant{}, &access.Invitation{}))

	userService, err := users.NewService(users.ServiceConfig{Database: db})
	require.NoError(t, err)
	catalogService, err := catalog.NewService(catalog.ServiceConfig{Database: db})
	require.NoError(t, err)
	listService, err := wishlists.NewService(wishlists.ServiceConfig{Database: db})
	require.NoError(t, err)
	accessService, err := access.NewService(access.ServiceConfig{Database: db})
	require.NoError(t, err)
	resolver, err := permissions.NewResolver(permissions.ResolverConfig{Owners: listService, Grants: accessService, EditPolicy: policy})
	require.NoError(t, err)
	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte("secret"), Issuer: "wishlist-auth"})
	require.NoError(t, err)

	counting := &countingCatalog{Service: catalogService}
	options := EnrichOptions{Timeout: time.Second, Concurrency: 4}
	profiles, err := NewProfileEnricher(userService, options)
	require.NoError(t, err)
	products, err := NewProductEnricher(counting, options)
	require.NoError(t, err)

	gateway, err := NewService(ServiceConfig{
		Users:       userService,
		Catalog:     counting,
		Lists:       listService,
		Grants:      accessService,
		Permissions: resolver,
		Tokens:      issuer,
		Profiles:    profiles,
		Products:    products,
	})
	require.NoError(t, err)

	ctx := context.Background()
	alice, err := userService.Create(ctx, users.NewUser{Username: "alice", PublicName: "Alice"})
	require.NoError(t, err)
	bob, err := userService.Create(ctx, users.NewUser{Username: "bob", PublicName: "Bob"})
	require.NoError(t, err)
	carol, err := userService.Create(ctx, users.NewUser{Username: "carol", PublicName: "Carol"})
	require.NoError(t, err)
	for _, product := range []catalog.Product{
		{ID: 7, Title: "Lego Castle", Category: "Toys", Price: 89.99, Rating: 4.8},
		{ID: 8, Title: "Kite", Category: "Outdoors", Price: 25, Rating: 4.1},
	} {
		_, err := catalogService.Create(ctx, product)
		require.NoError(t, err)
	}

	return &fixture{
		gateway: gateway,
		catalog: counting,
		lists:   listService,
		grants:  accessService,
		alice:   alice,
		bob:     bob,
		carol:   carol,
	}
}

func (f *fixture) wishlistWithItems(t *testing.T) wishlists.Wishlist {
	t.Helper()
	ctx := context.Background()
	wishlist, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Bday", Privacy: "Shared"})
	require.NoError(t, err)
	_, err = f.gateway.AddItem(ctx, f.alice.ID, wishlist.ID, ItemInput{ProductID: 8, Title: "Kite", Priority: 2})
	require.NoError(t, err)
	_, err = f.gateway.AddItem(ctx, f.alice.ID, wishlist.ID, ItemInput{ProductID: 7, Title: "Lego", Priority: 1})
	require.NoError(t, err)
	_, err = f.gateway.AddItem(ctx, f.alice.ID, wishlist.ID, ItemInput{ProductID: 404, Title: "Vintage radio", Priority: 1})
	require.NoError(t, err)
	return wishlist
}

func TestWishlistDetailEnrichesAndDegrades(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	wishlist := f.wishlistWithItems(t)
	f.catalog.batchCalls.Store(0)

	detail, err := f.gateway.WishlistDetail(context.Background(), f.alice.ID, wishlist.ID)
	require.NoError(t, err)

	require.Equal(t, access.RoleOwner, detail.Role)
	require.Equal(t, "Alice", detail.Owner.PublicName)
	require.Equal(t, "Bday", detail.Wishlist.Name)
	require.Len(t, detail.Items, 3)
	require.Equal(t, int64(7), detail.Items[0].ProductID)
	require.Equal(t, "Lego Castle", detail.Items[0].Product.Title)
	require.Equal(t, int64(404), detail.Items[1].ProductID)
	require.Equal(t, catalog.Product{ID: 404, Title: "Vintage radio"}, detail.Items[1].Product)
	require.Equal(t, int64(8), detail.Items[2].ProductID)
	require.EqualValues(t, 1, f.catalog.batchCalls.Load())
}

func TestWishlistDetailSurvivesCatalogOutage(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	wishlist := f.wishlistWithItems(t)
	f.catalog.failBatch = true

	detail, err := f.gateway.WishlistDetail(context.Background(), f.alice.ID, wishlist.ID)
	require.NoError(t, err)
	require.Len(t, detail.Items, 3)
	require.Equal(t, "Lego", detail.Items[0].Product.Title)
	require.Equal(t, "Kite", detail.Items[2].Product.Title)
}

func TestWishlistDetailAuthorization(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	wishlist := f.wishlistWithItems(t)
	ctx := context.Background()

	_, err := f.gateway.WishlistDetail(ctx, f.bob.ID, wishlist.ID)
	require.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = f.gateway.WishlistDetail(ctx, f.bob.ID, 999)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: wishlist.ID, UserID: f.bob.ID, Role: access.RoleViewOnly})
	require.NoError(t, err)
	detail, err := f.gateway.WishlistDetail(ctx, f.bob.ID, wishlist.ID)
	require.NoError(t, err)
	require.Equal(t, access.RoleViewOnly, detail.Role)

	items, err := f.gateway.WishlistItems(ctx, f.bob.ID, wishlist.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
}

func TestItemMutationFollowsEditPolicy(t *testing.T) {
	for _, policy := range []config.EditPolicy{config.EditPolicyOwnerOrEditor, config.EditPolicyOwnerOnly} {
		t.Run(string(policy), func(t *testing.T) {
			f := newFixture(t, policy)
			ctx := context.Background()
			wishlist, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Gifts"})
			require.NoError(t, err)
			_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: wishlist.ID, UserID: f.bob.ID, Role: access.RoleViewEdit})
			require.NoError(t, err)
			_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: wishlist.ID, UserID: f.carol.ID, Role: access.RoleViewOnly})
			require.NoError(t, err)

			_, err = f.gateway.AddItem(ctx, f.carol.ID, wishlist.ID, ItemInput{ProductID: 7})
			require.True(t, apperr.Is(err, apperr.KindAuthorization))

			item, err := f.gateway.AddItem(ctx, f.bob.ID, wishlist.ID, ItemInput{ProductID: 7})
			if policy == config.EditPolicyOwnerOnly {
				require.True(t, apperr.Is(err, apperr.KindAuthorization))
				return
			}
			require.NoError(t, err)
			require.Equal(t, f.bob.ID, item.AddedBy)

			require.True(t, apperr.Is(f.gateway.RemoveItem(ctx, f.carol.ID, wishlist.ID, item.ID), apperr.KindAuthorization))
			require.NoError(t, f.gateway.RemoveItem(ctx, f.bob.ID, wishlist.ID, item.ID))
		})
	}
}

func TestAddItemSnapshotsCatalogTitle(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	ctx := context.Background()
	wishlist, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Gifts"})
	require.NoError(t, err)

	item, err := f.gateway.AddItem(ctx, f.alice.ID, wishlist.ID, ItemInput{ProductID: 7})
	require.NoError(t, err)
	require.Equal(t, "Lego Castle", item.Title)

	dangling, err := f.gateway.AddItem(ctx, f.alice.ID, wishlist.ID, ItemInput{ProductID: 555})
	require.NoError(t, err)
	require.Empty(t, dangling.Title)
}

func TestFriendsWishlistsJoinsRoles(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	ctx := context.Background()
	first, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Alice list"})
	require.NoError(t, err)
	second, err := f.gateway.CreateWishlist(ctx, f.carol.ID, wishlists.NewWishlist{Name: "Carol list"})
	require.NoError(t, err)
	_, err = f.gateway.CreateWishlist(ctx, f.carol.ID, wishlists.NewWishlist{Name: "Hidden"})
	require.NoError(t, err)
	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: first.ID, UserID: f.bob.ID, Role: access.RoleViewOnly})
	require.NoError(t, err)
	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: second.ID, UserID: f.bob.ID, Role: access.RoleViewEdit})
	require.NoError(t, err)

	shared, err := f.gateway.FriendsWishlists(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Len(t, shared, 2)
	require.Equal(t, access.RoleViewOnly, shared[0].Role)
	require.Equal(t, "Alice", shared[0].Owner.PublicName)
	require.Equal(t, access.RoleViewEdit, shared[1].Role)
	require.Equal(t, "Carol", shared[1].Owner.PublicName)

	none, err := f.gateway.FriendsWishlists(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Empty(t, none)

	summaries, err := f.gateway.MyAccess(ctx, f.bob.ID)
	require.NoError(t, err)
	require.Equal(t, []AccessSummary{{WishlistID: first.ID, Role: access.RoleViewOnly}, {WishlistID: second.ID, Role: access.RoleViewEdit}}, summaries)
}

func TestWishlistsByIDsHidesInaccessibleLists(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	ctx := context.Background()
	own, err := f.gateway.CreateWishlist(ctx, f.bob.ID, wishlists.NewWishlist{Name: "Mine"})
	require.NoError(t, err)
	shared, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Shared"})
	require.NoError(t, err)
	hidden, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Hidden"})
	require.NoError(t, err)
	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: shared.ID, UserID: f.bob.ID, Role: access.RoleViewOnly})
	require.NoError(t, err)

	visible, err := f.gateway.WishlistsByIDs(ctx, f.bob.ID, []int64{own.ID, shared.ID, hidden.ID, 999})
	require.NoError(t, err)
	require.Len(t, visible, 2)
	require.Equal(t, own.ID, visible[0].ID)
	require.Equal(t, shared.ID, visible[1].ID)
}

func TestMyWishlistsAttachesOwner(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	ctx := context.Background()
	_, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "One"})
	require.NoError(t, err)

	owned, err := f.gateway.MyWishlists(ctx, f.alice.ID)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.Equal(t, "Alice", owned[0].Owner.PublicName)
}

func TestCollaboratorsOwnerOnlyWithPlaceholders(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	ctx := context.Background()
	wishlist, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Gifts"})
	require.NoError(t, err)
	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: wishlist.ID, UserID: f.bob.ID, Role: access.RoleViewOnly})
	require.NoError(t, err)
	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: wishlist.ID, UserID: 77, Role: access.RoleViewEdit, DisplayName: "Ghost"})
	require.NoError(t, err)
	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: wishlist.ID, UserID: 78, Role: access.RoleViewOnly})
	require.NoError(t, err)

	_, err = f.gateway.Collaborators(ctx, f.bob.ID, wishlist.ID)
	require.True(t, apperr.Is(err, apperr.KindAuthorization))

	collaborators, err := f.gateway.Collaborators(ctx, f.alice.ID, wishlist.ID)
	require.NoError(t, err)
	require.Len(t, collaborators, 3)
	names := map[int64]string{}
	for _, collaborator := range collaborators {
		names[collaborator.UserID] = collaborator.User.PublicName
	}
	require.Equal(t, "Bob", names[f.bob.ID])
	require.Equal(t, "Ghost", names[77])
	require.Equal(t, users.UnknownName, names[78])
}

func TestUpdateAndRevokeCollaborator(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	ctx := context.Background()
	wishlist, err := f.gateway.CreateWishlist(ctx, f.alice.ID, wishlists.NewWishlist{Name: "Gifts"})
	require.NoError(t, err)
	_, err = f.grants.Upsert(ctx, access.GrantInput{WishlistID: wishlist.ID, UserID: f.bob.ID, Role: access.RoleViewOnly})
	require.NoError(t, err)

	role := access.RoleViewEdit
	_, err = f.gateway.UpdateCollaborator(ctx, f.bob.ID, wishlist.ID, f.bob.ID, access.GrantUpdate{Role: &role})
	require.True(t, apperr.Is(err, apperr.KindAuthorization))

	updated, err := f.gateway.UpdateCollaborator(ctx, f.alice.ID, wishlist.ID, f.bob.ID, access.GrantUpdate{Role: &role})
	require.NoError(t, err)
	require.Equal(t, access.RoleViewEdit, updated.Role)

	_, err = f.gateway.UpdateCollaborator(ctx, f.alice.ID, wishlist.ID, f.carol.ID, access.GrantUpdate{Role: &role})
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	require.NoError(t, f.gateway.RevokeCollaborator(ctx, f.alice.ID, wishlist.ID, f.bob.ID))
	_, err = f.gateway.WishlistDetail(ctx, f.bob.ID, wishlist.ID)
	require.True(t, apperr.Is(err, apperr.KindAuthorization))
}

func TestLogin(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)

	token, err := f.gateway.Login(context.Background(), "ALICE")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	_, err = f.gateway.Login(context.Background(), "mallory")
	require.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestUsersBatchMatchesIndividualLookups(t *testing.T) {
	f := newFixture(t, config.EditPolicyOwnerOrEditor)
	ctx := context.Background()
	ids := []int64{f.carol.ID, 500, f.alice.ID}

	batch, err := f.gateway.Users(ctx, ids)
	require.NoError(t, err)

	var individual []users.User
	for _, id := range ids {
		user, err := f.gateway.User(ctx, id)
		if apperr.Is(err, apperr.KindNotFound) {
			continue
		}
		require.NoError(t, err)
		individual = append(individual, user)
	}
	require.ElementsMatch(t, individual, batch)

	products, err := f.gateway.ProductsByIDs(ctx, []int64{8, 7, 1})
	require.NoError(t, err)
	require.Len(t, products, 2)
}
