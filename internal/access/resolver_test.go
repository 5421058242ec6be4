package access_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/access/accesstest"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func shopIDs(shops []*models.Shop) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(shops))
	for _, s := range shops {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestResolver_Accessible(t *testing.T) {
	store := accesstest.New()
	admin := store.AddUser(auth.RoleSuperAdmin, auth.StatusActive)
	owner := store.AddUser(auth.RoleShopOwner, auth.StatusActive)
	other := store.AddUser(auth.RoleShopOwner, auth.StatusActive)
	worker := store.AddUser(auth.RoleShopWorker, auth.StatusActive)

	s1 := store.AddShop(owner.ID, models.ShopStatusActive)
	s2 := store.AddShop(owner.ID, models.ShopStatusInactive)
	s3 := store.AddShop(other.ID, models.ShopStatusActive)
	s4 := store.AddShop(owner.ID, models.ShopStatusActive)

	store.Assign(worker.ID, s1.ID, true)
	store.Assign(worker.ID, s2.ID, true)  // shop inactive
	store.Assign(worker.ID, s3.ID, false) // assignment inactive
	store.Assign(worker.ID, s4.ID, true)

	r := access.NewResolver(store)
	ctx := context.Background()

	tests := []struct {
		name string
		user *models.User
		want []uuid.UUID
	}{
		{"admin sees all active shops", admin, []uuid.UUID{s1.ID, s3.ID, s4.ID}},
		{"owner sees own active shops", owner, []uuid.UUID{s1.ID, s4.ID}},
		{"other owner sees only their shop", other, []uuid.UUID{s3.ID}},
		{"worker sees active assignments on active shops", worker, []uuid.UUID{s1.ID, s4.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shops, err := r.Accessible(ctx, tt.user.Principal())
			require.NoError(t, err)
			assert.Equal(t, tt.want, shopIDs(shops))
		})
	}
}

func TestResolver_Resolve(t *testing.T) {
	store := accesstest.New()
	owner := store.AddUser(auth.RoleShopOwner, auth.StatusActive)
	first := store.AddShop(owner.ID, models.ShopStatusActive)
	second := store.AddShop(owner.ID, models.ShopStatusActive)
	r := access.NewResolver(store)
	ctx := context.Background()

	t.Run("defaults to the oldest shop", func(t *testing.T) {
		scope, err := r.Resolve(ctx, owner.Principal(), nil)
		require.NoError(t, err)
		assert.Equal(t, first.ID, scope.ShopID())
		assert.True(t, scope.IsOwner())
	})

	t.Run("requested shop", func(t *testing.T) {
		scope, err := r.Resolve(ctx, owner.Principal(), &second.ID)
		require.NoError(t, err)
		assert.Equal(t, second.ID, scope.ShopID())
		assert.Equal(t, owner.ID, scope.Principal.ID)
	})

	t.Run("nonexistent shop is denied", func(t *testing.T) {
		missing := uuid.New()
		_, err := r.Resolve(ctx, owner.Principal(), &missing)
		assert.ErrorIs(t, err, access.ErrAccessDenied)
	})

	t.Run("no accessible shop", func(t *testing.T) {
		worker := store.AddUser(auth.RoleShopWorker, auth.StatusActive)
		_, err := r.Resolve(ctx, worker.Principal(), nil)
		assert.ErrorIs(t, err, access.ErrNoAccessibleShop)
	})

	t.Run("non-active principals are denied", func(t *testing.T) {
		for _, st := range []auth.Status{auth.StatusInactive, auth.StatusSuspended, auth.StatusPendingVerification} {
			p := owner.Principal()
			p.Status = st
			_, err := r.Resolve(ctx, p, nil)
			assert.ErrorIs(t, err, access.ErrAccessDenied, st)
		}
	})

	t.Run("unknown role is denied", func(t *testing.T) {
		p := auth.Principal{ID: owner.ID, Role: auth.Role("AUDITOR"), Status: auth.StatusActive}
		_, err := r.Resolve(ctx, p, &first.ID)
		assert.ErrorIs(t, err, access.ErrAccessDenied)
	})
}

// Every principal without an ownership, assignment or admin relation to a shop is denied it.
func TestResolver_Isolation(t *testing.T) {
	store := accesstest.New()
	owner := store.AddUser(auth.RoleShopOwner, auth.StatusActive)
	target := store.AddShop(owner.ID, models.ShopStatusActive)

	otherOwner := store.AddUser(auth.RoleShopOwner, auth.StatusActive)
	otherShop := store.AddShop(otherOwner.ID, models.ShopStatusActive)

	unassigned := store.AddUser(auth.RoleShopWorker, auth.StatusActive)
	elsewhere := store.AddUser(auth.RoleShopWorker, auth.StatusActive)
	store.Assign(elsewhere.ID, otherShop.ID, true)
	removed := store.AddUser(auth.RoleShopWorker, auth.StatusActive)
	store.Assign(removed.ID, target.ID, false)

	r := access.NewResolver(store)
	for _, u := range []*models.User{otherOwner, unassigned, elsewhere, removed} {
		_, err := r.Resolve(context.Background(), u.Principal(), &target.ID)
		assert.ErrorIs(t, err, access.ErrAccessDenied, "user %s (%s)", u.ID, u.Role)
	}
}

func TestResolver_InactiveShopHiddenFromAdmin(t *testing.T) {
	store := accesstest.New()
	admin := store.AddUser(auth.RoleSuperAdmin, auth.StatusActive)
	owner := store.AddUser(auth.RoleShopOwner, auth.StatusActive)
	inactive := store.AddShop(owner.ID, models.ShopStatusInactive)

	_, err := access.NewResolver(store).Resolve(context.Background(), admin.Principal(), &inactive.ID)
	assert.ErrorIs(t, err, access.ErrAccessDenied)
}
