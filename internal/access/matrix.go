package access

import (
	"context"
	"fmt"

	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// Decide reports whether p may perform perm on module in scope without approval, given the grants
// held by p. SUPER_ADMIN and the scope's owner always may. A worker needs an active grant for the
// exact (module, perm), or MANAGE on the same module. Everything else is denied.
func Decide(p auth.Principal, scope *TenantScope, module auth.Module, perm auth.Permission, grants []*models.PermissionGrant) bool {
	if !p.IsActive() || scope == nil || scope.Shop == nil {
		return false
	}
	if !module.Valid() || !perm.Valid() {
		return false
	}

	switch p.Role {
	case auth.RoleSuperAdmin:
		return true
	case auth.RoleShopOwner:
		return scope.Shop.OwnerID == p.ID
	case auth.RoleShopWorker:
		for _, g := range grants {
			if g.IsActive && g.UserID == p.ID && g.Module == module && g.Permission.Implies(perm) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// CanActDirectly loads the current grants of p through q and applies Decide
func CanActDirectly(ctx context.Context, q Queries, p auth.Principal, scope *TenantScope, module auth.Module, perm auth.Permission) (bool, error) {
	if p.Role != auth.RoleShopWorker {
		return Decide(p, scope, module, perm, nil), nil
	}
	grants, err := q.ListGrants(ctx, p.ID, true)
	if err != nil {
		return false, fmt.Errorf("failed to load grants: %w", err)
	}
	return Decide(p, scope, module, perm, grants), nil
}
