package access

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	sqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(value time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = value
}

func newTestService(t *testing.T) (*Service, *testClock) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&Grant{}, &Invitation{}))

	clock := &testClock{now: time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC)}
	service, err := NewService(ServiceConfig{Database: db, Clock: clock.Now})
	require.NoError(t, err)
	return service, clock
}

func TestLookupMissingGrant(t *testing.T) {
	service, _ := newTestService(t)

	_, found, err := service.Lookup(context.Background(), 1, 2)
	require.NoError(t, err)
	require.False(t, found)
}

func TestUpsertKeepsSingleRowAndDisplayName(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	first, err := service.Upsert(ctx, GrantInput{WishlistID: 1, UserID: 2, Role: RoleViewEdit, DisplayName: " Bobby ", InvitedBy: 1})
	require.NoError(t, err)
	require.Equal(t, RoleViewEdit, first.Role)
	require.NotNil(t, first.DisplayName)
	require.Equal(t, "Bobby", *first.DisplayName)

	second, err := service.Upsert(ctx, GrantInput{WishlistID: 1, UserID: 2, Role: RoleViewOnly, InvitedBy: 3})
	require.NoError(t, err)
	require.Equal(t, RoleViewOnly, second.Role)
	require.NotNil(t, second.DisplayName)
	require.Equal(t, "Bobby", *second.DisplayName)
	require.EqualValues(t, 1, second.InvitedBy)

	grants, err := service.ListForWishlist(ctx, 1)
	require.NoError(t, err)
	require.Len(t, grants, 1)
}

func TestConcurrentUpsertsProduceOneGrant(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for index := 0; index < 16; index++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := service.Upsert(ctx, GrantInput{WishlistID: 5, UserID: 9, Role: RoleViewOnly, InvitedBy: 1})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	grants, err := service.ListForUser(ctx, 9)
	require.NoError(t, err)
	require.Len(t, grants, 1)
}

func TestInsertRefusesExistingGrant(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	grant, created, err := service.Insert(ctx, GrantInput{WishlistID: 1, UserID: 2, Role: RoleViewOnly, InvitedBy: 1})
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, RoleViewOnly, grant.Role)

	_, created, err = service.Insert(ctx, GrantInput{WishlistID: 1, UserID: 2, Role: RoleViewEdit, InvitedBy: 1})
	require.NoError(t, err)
	require.False(t, created)

	stored, found, err := service.Lookup(ctx, 1, 2)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, RoleViewOnly, stored.Role)
}

func TestWritesRejectNonGrantRoles(t *testing.T) {
	service, _ := newTestService(t)

	_, err := service.Upsert(context.Background(), GrantInput{WishlistID: 1, UserID: 2, Role: RoleOwner})
	require.ErrorIs(t, err, ErrInvalidRole)
	require.True(t, apperr.Is(err, apperr.KindValidation))

	role := Role("admin")
	_, err = service.Update(context.Background(), 1, 2, GrantUpdate{Role: &role})
	require.ErrorIs(t, err, ErrInvalidRole)
}

func TestUpdateGrant(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Upsert(ctx, GrantInput{WishlistID: 1, UserID: 2, Role: RoleViewOnly, DisplayName: "B"})
	require.NoError(t, err)

	role := RoleViewEdit
	blank := "  "
	updated, err := service.Update(ctx, 1, 2, GrantUpdate{Role: &role, DisplayName: &blank})
	require.NoError(t, err)
	require.Equal(t, RoleViewEdit, updated.Role)
	require.Nil(t, updated.DisplayName)

	_, err = service.Update(ctx, 1, 3, GrantUpdate{Role: &role})
	require.ErrorIs(t, err, ErrGrantNotFound)
	require.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = service.Update(ctx, 1, 3, GrantUpdate{})
	require.ErrorIs(t, err, ErrGrantNotFound)
}

func TestRevokeIsIdempotent(t *testing.T) {
	service, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Upsert(ctx, GrantInput{WishlistID: 1, UserID: 2, Role: RoleViewOnly})
	require.NoError(t, err)

	require.NoError(t, service.Revoke(ctx, 1, 2))
	require.NoError(t, service.Revoke(ctx, 1, 2))

	_, found, err := service.Lookup(ctx, 1, 2)
	require.NoError(t, err)
	require.False(t, found)
}

func TestActiveInvitationExpiryBoundary(t *testing.T) {
	testCases := []struct {
		name   string
		offset time.Duration
		active bool
	}{
		{name: "one-second-before-deadline", offset: -time.Second, active: true},
		{name: "at-deadline", offset: 0, active: false},
		{name: "one-second-after-deadline", offset: time.Second, active: false},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			service, clock := newTestService(t)
			ctx := context.Background()
			deadline := clock.Now().Add(time.Hour)

			_, err := service.CreateInvitation(ctx, NewInvitation{
				Token:      "token-" + testCase.name,
				WishlistID: 1,
				Role:       RoleViewOnly,
				CreatedBy:  1,
				ExpiresAt:  deadline,
			})
			require.NoError(t, err)

			clock.Set(deadline.Add(testCase.offset))
			invitation, err := service.ActiveInvitation(ctx, "token-"+testCase.name)
			if !testCase.active {
				require.ErrorIs(t, err, ErrInvitationNotFound)
				require.True(t, apperr.Is(err, apperr.KindNotFound))
				return
			}
			require.NoError(t, err)
			require.Equal(t, deadline, invitation.ExpiresAt())
			require.Equal(t, RoleViewOnly, invitation.Role)
		})
	}
}

func TestDeleteInvitation(t *testing.T) {
	service, clock := newTestService(t)
	ctx := context.Background()

	_, err := service.CreateInvitation(ctx, NewInvitation{Token: "abc", WishlistID: 1, Role: RoleViewEdit, CreatedBy: 1, ExpiresAt: clock.Now().Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, service.DeleteInvitation(ctx, "abc"))

	_, err = service.ActiveInvitation(ctx, "abc")
	require.ErrorIs(t, err, ErrInvitationNotFound)
}

func TestCreateInvitationRejectsOwnerRole(t *testing.T) {
	service, clock := newTestService(t)

	_, err := service.CreateInvitation(context.Background(), NewInvitation{Token: "abc", WishlistID: 1, Role: RoleOwner, ExpiresAt: clock.Now().Add(time.Hour)})
	require.ErrorIs(t, err, ErrInvalidRole)
}
