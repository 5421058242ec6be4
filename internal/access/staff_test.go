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

func TestStaff_GrantAndRevoke(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownerScope := f.scope(t, f.owner, f.shop.ID)
	workerScope := f.scope(t, f.worker, f.shop.ID)
	owner := f.owner.Principal()

	g, err := f.engine.Staff.GrantPermission(ctx, ownerScope, owner, f.worker.ID, auth.ModuleProductManagement, auth.PermissionEdit)
	require.NoError(t, err)
	assert.True(t, g.IsActive)
	assert.Equal(t, owner.ID, *g.GrantedBy)

	ok, err := access.CanActDirectly(ctx, f.store.Reader(), f.worker.Principal(), workerScope, auth.ModuleProductManagement, auth.PermissionEdit)
	require.NoError(t, err)
	assert.True(t, ok)

	again, err := f.engine.Staff.GrantPermission(ctx, ownerScope, owner, f.worker.ID, auth.ModuleProductManagement, auth.PermissionEdit)
	require.NoError(t, err)
	assert.Equal(t, g.ID, again.ID)
	assert.Len(t, f.store.AuditLogs(), 1)

	grants, err := f.engine.Staff.ListGrants(ctx, workerScope, f.worker.Principal(), f.worker.ID)
	require.NoError(t, err)
	require.Len(t, grants, 1)

	require.NoError(t, f.engine.Staff.RevokePermission(ctx, ownerScope, owner, f.worker.ID, auth.ModuleProductManagement, auth.PermissionEdit))
	ok, err = access.CanActDirectly(ctx, f.store.Reader(), f.worker.Principal(), workerScope, auth.ModuleProductManagement, auth.PermissionEdit)
	require.NoError(t, err)
	assert.False(t, ok)

	err = f.engine.Staff.RevokePermission(ctx, ownerScope, owner, f.worker.ID, auth.ModuleProductManagement, auth.PermissionEdit)
	assert.ErrorIs(t, err, access.ErrNotFound)

	logs := f.store.AuditLogs()
	assert.Equal(t, []models.AuditAction{models.AuditActionPermissionGranted, models.AuditActionPermissionRevoked}, actions(logs))
	assert.Equal(t, g.ID.String(), logs[1].RecordID)
	assert.Equal(t, models.TablePermissionGrant, logs[1].TableName)

	regranted, err := f.engine.Staff.GrantPermission(ctx, ownerScope, owner, f.worker.ID, auth.ModuleProductManagement, auth.PermissionEdit)
	require.NoError(t, err)
	assert.Equal(t, g.ID, regranted.ID)
}

func TestStaff_GrantAuthority(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	otherOwner := f.store.AddUser(auth.RoleShopOwner, auth.StatusActive)
	otherShop := f.store.AddShop(otherOwner.ID, models.ShopStatusActive)
	shared := f.store.AddUser(auth.RoleShopWorker, auth.StatusActive)
	f.store.Assign(shared.ID, f.shop.ID, true)
	f.store.Assign(shared.ID, otherShop.ID, true)
	unassigned := f.store.AddUser(auth.RoleShopWorker, auth.StatusActive)

	ownerScope := f.scope(t, f.owner, f.shop.ID)
	grantAs := func(scope *access.TenantScope, actor *models.User, worker uuid.UUID) error {
		_, err := f.engine.Staff.GrantPermission(ctx, scope, actor.Principal(), worker, auth.ModulePOSSystem, auth.PermissionCreate)
		return err
	}

	assert.ErrorIs(t, grantAs(f.scope(t, f.worker, f.shop.ID), f.worker, f.worker.ID), access.ErrAccessDenied)
	assert.ErrorIs(t, grantAs(ownerScope, f.owner, shared.ID), access.ErrAccessDenied)
	assert.ErrorIs(t, grantAs(ownerScope, f.owner, unassigned.ID), access.ErrNotFound)
	assert.ErrorIs(t, grantAs(ownerScope, f.owner, otherOwner.ID), access.ErrInvalidInput)
	assert.Empty(t, f.store.AuditLogs())

	assert.NoError(t, grantAs(f.scope(t, f.admin, f.shop.ID), f.admin, shared.ID))

	_, err := f.engine.Staff.GrantPermission(ctx, ownerScope, f.owner.Principal(), f.worker.ID, auth.Module("BILLING"), auth.PermissionView)
	assert.ErrorIs(t, err, access.ErrInvalidInput)

	_, err = f.engine.Staff.ListGrants(ctx, f.scope(t, shared, f.shop.ID), shared.Principal(), f.worker.ID)
	assert.ErrorIs(t, err, access.ErrAccessDenied)
}

func TestStaff_AssignAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ownerScope := f.scope(t, f.owner, f.shop.ID)
	hire := f.store.AddUser(auth.RoleShopWorker, auth.StatusActive)
	resolver := f.engine.Resolver

	_, err := resolver.Resolve(ctx, hire.Principal(), &f.shop.ID)
	require.ErrorIs(t, err, access.ErrAccessDenied)

	a, err := f.engine.Staff.AssignWorker(ctx, ownerScope, f.owner.Principal(), hire.ID)
	require.NoError(t, err)
	assert.True(t, a.IsActive)
	_, err = resolver.Resolve(ctx, hire.Principal(), &f.shop.ID)
	require.NoError(t, err)

	_, err = f.engine.Staff.AssignWorker(ctx, ownerScope, f.owner.Principal(), hire.ID)
	require.NoError(t, err)

	require.NoError(t, f.engine.Staff.RemoveWorker(ctx, ownerScope, f.owner.Principal(), hire.ID))
	_, err = resolver.Resolve(ctx, hire.Principal(), &f.shop.ID)
	assert.ErrorIs(t, err, access.ErrAccessDenied)

	err = f.engine.Staff.RemoveWorker(ctx, ownerScope, f.owner.Principal(), hire.ID)
	assert.ErrorIs(t, err, access.ErrNotFound)

	_, err = f.engine.Staff.AssignWorker(ctx, ownerScope, f.owner.Principal(), f.owner.ID)
	assert.ErrorIs(t, err, access.ErrInvalidInput)

	logs := f.store.AuditLogs()
	assert.Equal(t, []models.AuditAction{models.AuditActionWorkerAssigned, models.AuditActionWorkerRemoved}, actions(logs))
	assert.Equal(t, hire.ID.String()+":"+f.shop.ID.String(), logs[0].RecordID)
}

func TestStaff_AssignToInactiveShop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	scope := f.scope(t, f.owner, f.shop.ID)
	_, err := f.engine.Cascade.SetShopStatus(ctx, f.owner.Principal(), f.shop.ID, models.ShopStatusInactive, "")
	require.NoError(t, err)

	_, err = f.engine.Staff.AssignWorker(ctx, scope, f.owner.Principal(), f.worker.ID)
	assert.ErrorIs(t, err, access.ErrInvalidStateTransition)
	assert.False(t, f.store.Assignment(f.worker.ID, f.shop.ID).IsActive)
}
