package access_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func grant(userID uuid.UUID, m auth.Module, p auth.Permission) *models.PermissionGrant {
	return &models.PermissionGrant{ID: uuid.New(), UserID: userID, Module: m, Permission: p, IsActive: true}
}

func TestDecide_DefaultDeny(t *testing.T) {
	worker := auth.Principal{ID: uuid.New(), Role: auth.RoleShopWorker, Status: auth.StatusActive}
	scope := &access.TenantScope{Shop: &models.Shop{ID: uuid.New(), OwnerID: uuid.New()}, Principal: worker}

	for _, m := range auth.AllModules() {
		for _, p := range auth.AllPermissions() {
			assert.False(t, access.Decide(worker, scope, m, p, nil), "%s:%s", m, p)
		}
	}
}

func TestDecide(t *testing.T) {
	ownerID := uuid.New()
	shop := &models.Shop{ID: uuid.New(), OwnerID: ownerID, Status: models.ShopStatusActive}
	active := func(id uuid.UUID, role auth.Role) auth.Principal {
		return auth.Principal{ID: id, Role: role, Status: auth.StatusActive}
	}
	workerID := uuid.New()
	worker := active(workerID, auth.RoleShopWorker)

	inactiveGrant := grant(workerID, auth.ModuleProductManagement, auth.PermissionEdit)
	inactiveGrant.IsActive = false

	tests := []struct {
		name   string
		p      auth.Principal
		module auth.Module
		perm   auth.Permission
		grants []*models.PermissionGrant
		want   bool
	}{
		{"admin", active(uuid.New(), auth.RoleSuperAdmin), auth.ModuleSettings, auth.PermissionDelete, nil, true},
		{"owner of the shop", active(ownerID, auth.RoleShopOwner), auth.ModuleProductManagement, auth.PermissionEdit, nil, true},
		{"owner of another shop", active(uuid.New(), auth.RoleShopOwner), auth.ModuleProductManagement, auth.PermissionView, nil, false},
		{"worker exact grant", worker, auth.ModuleProductManagement, auth.PermissionEdit,
			[]*models.PermissionGrant{grant(workerID, auth.ModuleProductManagement, auth.PermissionEdit)}, true},
		{"worker grant on other action", worker, auth.ModuleProductManagement, auth.PermissionDelete,
			[]*models.PermissionGrant{grant(workerID, auth.ModuleProductManagement, auth.PermissionEdit)}, false},
		{"worker grant on other module", worker, auth.ModuleSupplierManagement, auth.PermissionEdit,
			[]*models.PermissionGrant{grant(workerID, auth.ModuleProductManagement, auth.PermissionEdit)}, false},
		{"manage subsumes delete", worker, auth.ModuleProductManagement, auth.PermissionDelete,
			[]*models.PermissionGrant{grant(workerID, auth.ModuleProductManagement, auth.PermissionManage)}, true},
		{"manage does not cross modules", worker, auth.ModuleSupplierManagement, auth.PermissionView,
			[]*models.PermissionGrant{grant(workerID, auth.ModuleProductManagement, auth.PermissionManage)}, false},
		{"edit does not imply view", worker, auth.ModuleProductManagement, auth.PermissionView,
			[]*models.PermissionGrant{grant(workerID, auth.ModuleProductManagement, auth.PermissionEdit)}, false},
		{"inactive grant", worker, auth.ModuleProductManagement, auth.PermissionEdit,
			[]*models.PermissionGrant{inactiveGrant}, false},
		{"grant of another user", worker, auth.ModuleProductManagement, auth.PermissionEdit,
			[]*models.PermissionGrant{grant(uuid.New(), auth.ModuleProductManagement, auth.PermissionEdit)}, false},
		{"suspended admin", auth.Principal{ID: uuid.New(), Role: auth.RoleSuperAdmin, Status: auth.StatusSuspended},
			auth.ModuleReports, auth.PermissionView, nil, false},
		{"unknown role", active(uuid.New(), auth.Role("AUDITOR")), auth.ModuleReports, auth.PermissionView, nil, false},
		{"unknown module", active(uuid.New(), auth.RoleSuperAdmin), auth.Module("BILLING"), auth.PermissionView, nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := &access.TenantScope{Shop: shop, Principal: tt.p}
			assert.Equal(t, tt.want, access.Decide(tt.p, scope, tt.module, tt.perm, tt.grants))
		})
	}

	t.Run("nil scope", func(t *testing.T) {
		assert.False(t, access.Decide(active(uuid.New(), auth.RoleSuperAdmin), nil, auth.ModuleReports, auth.PermissionView, nil))
	})
}

func TestCanActDirectly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := f.scope(t, f.worker, f.shop.ID)
	q := f.store.Reader()

	ok, err := access.CanActDirectly(ctx, q, f.worker.Principal(), scope, auth.ModuleProductManagement, auth.PermissionEdit)
	require.NoError(t, err)
	assert.False(t, ok)

	f.store.Grant(f.worker.ID, auth.ModuleProductManagement, auth.PermissionManage)
	ok, err = access.CanActDirectly(ctx, q, f.worker.Principal(), scope, auth.ModuleProductManagement, auth.PermissionEdit)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = access.CanActDirectly(ctx, q, f.owner.Principal(), f.scope(t, f.owner, f.shop.ID), auth.ModuleSettings, auth.PermissionManage)
	require.NoError(t, err)
	assert.True(t, ok)
}
