package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// Staff manages worker assignments and permission grants of a shop. The actor must be an admin or
// the owner of the scoped shop. Grants are global to a worker, so an owner may only change grants of
// workers whose active assignments are all on shops they own.
type Staff struct {
	*core
}

// GrantPermission gives workerID a direct capability. Granting an active grant again is a no-op.
func (s *Staff) GrantPermission(ctx context.Context, scope *TenantScope, actor auth.Principal, workerID uuid.UUID, module auth.Module, perm auth.Permission) (*models.PermissionGrant, error) {
	if err := s.authorize(scope, actor); err != nil {
		return nil, err
	}
	if !module.Valid() || !perm.Valid() {
		return nil, fmt.Errorf("%w: unknown grant %s:%s", ErrInvalidInput, module, perm)
	}

	var (
		grant *models.PermissionGrant
		log   *models.AuditLog
	)
	err := s.inTx(ctx, func(q Queries) error {
		log = nil
		if err := s.checkWorker(ctx, q, scope, actor, workerID, true); err != nil {
			return err
		}
		existing, err := q.GetGrant(ctx, workerID, module, perm)
		if err != nil {
			return fmt.Errorf("failed to load grant: %w", err)
		}
		if existing != nil && existing.IsActive {
			grant = existing
			return nil
		}

		grant = &models.PermissionGrant{UserID: workerID, Module: module, Permission: perm, GrantedBy: &actor.ID}
		if err := q.UpsertGrant(ctx, grant); err != nil {
			return err
		}
		log, err = s.record(ctx, q, grantEntry(scope, actor, grant, models.AuditActionPermissionGranted, false, true))
		return err
	})
	if err != nil {
		return nil, err
	}
	if log != nil {
		s.logger.Info("permission granted",
			"shop_id", scope.ShopID(), "actor_id", actor.ID, "user_id", workerID, "module", module, "permission", perm)
		s.committed([]*models.AuditLog{log})
	}
	return grant, nil
}

// RevokePermission deactivates a grant. Revoking a grant that is not active fails with ErrNotFound.
func (s *Staff) RevokePermission(ctx context.Context, scope *TenantScope, actor auth.Principal, workerID uuid.UUID, module auth.Module, perm auth.Permission) error {
	if err := s.authorize(scope, actor); err != nil {
		return err
	}
	if !module.Valid() || !perm.Valid() {
		return fmt.Errorf("%w: unknown grant %s:%s", ErrInvalidInput, module, perm)
	}

	var log *models.AuditLog
	err := s.inTx(ctx, func(q Queries) error {
		if err := s.checkWorker(ctx, q, scope, actor, workerID, true); err != nil {
			return err
		}
		grant, err := q.GetGrant(ctx, workerID, module, perm)
		if err != nil {
			return fmt.Errorf("failed to load grant: %w", err)
		}
		if grant == nil || !grant.IsActive {
			return fmt.Errorf("%w: grant %s:%s", ErrNotFound, module, perm)
		}
		if err := q.DeactivateGrant(ctx, grant.ID); err != nil {
			return err
		}
		log, err = s.record(ctx, q, grantEntry(scope, actor, grant, models.AuditActionPermissionRevoked, true, false))
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("permission revoked",
		"shop_id", scope.ShopID(), "actor_id", actor.ID, "user_id", workerID, "module", module, "permission", perm)
	s.committed([]*models.AuditLog{log})
	return nil
}

// ListGrants returns the active grants of a worker assigned to the scoped shop. Workers may list
// their own grants.
func (s *Staff) ListGrants(ctx context.Context, scope *TenantScope, viewer auth.Principal, workerID uuid.UUID) ([]*models.PermissionGrant, error) {
	if err := requireActive(viewer); err != nil {
		return nil, err
	}
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if viewer.ID != workerID && !isShopAuthority(viewer, scope) {
		return nil, fmt.Errorf("%w: cannot list grants of another user", ErrAccessDenied)
	}

	q := s.store.Reader()
	a, err := q.GetAssignment(ctx, workerID, scope.ShopID())
	if err != nil {
		return nil, fmt.Errorf("failed to load assignment: %w", err)
	}
	if a == nil {
		return nil, fmt.Errorf("%w: worker %s is not assigned to shop %s", ErrNotFound, workerID, scope.ShopID())
	}
	grants, err := q.ListGrants(ctx, workerID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	if grants == nil {
		grants = []*models.PermissionGrant{}
	}
	return grants, nil
}

// AssignWorker binds a SHOP_WORKER to the scoped shop, reactivating a previous assignment
func (s *Staff) AssignWorker(ctx context.Context, scope *TenantScope, actor auth.Principal, workerID uuid.UUID) (*models.WorkerAssignment, error) {
	if err := s.authorize(scope, actor); err != nil {
		return nil, err
	}

	var (
		assignment *models.WorkerAssignment
		log        *models.AuditLog
	)
	err := s.inTx(ctx, func(q Queries) error {
		log = nil
		shop, err := q.LockShop(ctx, scope.ShopID())
		if err != nil {
			return fmt.Errorf("failed to load shop: %w", err)
		}
		if shop == nil || !shop.IsActive() {
			return fmt.Errorf("%w: shop %s is not active", ErrInvalidStateTransition, scope.ShopID())
		}
		if err := s.checkWorker(ctx, q, scope, actor, workerID, false); err != nil {
			return err
		}

		existing, err := q.GetAssignment(ctx, workerID, scope.ShopID())
		if err != nil {
			return fmt.Errorf("failed to load assignment: %w", err)
		}
		if existing != nil && existing.IsActive {
			assignment = existing
			return nil
		}

		assignment = &models.WorkerAssignment{UserID: workerID, ShopID: scope.ShopID()}
		if err := q.UpsertAssignment(ctx, assignment); err != nil {
			return err
		}
		var old any
		if existing != nil {
			old = false
		}
		log, err = s.record(ctx, q, audit.Entry{
			ActorID:   actor.ID,
			ShopID:    shopRef(scope.ShopID()),
			Action:    models.AuditActionWorkerAssigned,
			TableName: models.TableWorkerAssignment,
			RecordID:  assignment.RecordID(),
			Changes: models.AuditChanges{
				Fields:    []models.FieldChange{{Field: "is_active", OldValue: old, NewValue: true}},
				ChangedBy: actor.ID.String(),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if log != nil {
		s.logger.Info("worker assigned", "shop_id", scope.ShopID(), "actor_id", actor.ID, "user_id", workerID)
		s.committed([]*models.AuditLog{log})
	}
	return assignment, nil
}

// RemoveWorker deactivates the worker's assignment to the scoped shop
func (s *Staff) RemoveWorker(ctx context.Context, scope *TenantScope, actor auth.Principal, workerID uuid.UUID) error {
	if err := s.authorize(scope, actor); err != nil {
		return err
	}

	var log *models.AuditLog
	err := s.inTx(ctx, func(q Queries) error {
		a, err := q.GetAssignment(ctx, workerID, scope.ShopID())
		if err != nil {
			return fmt.Errorf("failed to load assignment: %w", err)
		}
		if a == nil || !a.IsActive {
			return fmt.Errorf("%w: worker %s is not assigned to shop %s", ErrNotFound, workerID, scope.ShopID())
		}
		if err := q.SetAssignmentActive(ctx, workerID, scope.ShopID(), false); err != nil {
			return err
		}
		log, err = s.record(ctx, q, audit.Entry{
			ActorID:   actor.ID,
			ShopID:    shopRef(scope.ShopID()),
			Action:    models.AuditActionWorkerRemoved,
			TableName: models.TableWorkerAssignment,
			RecordID:  a.RecordID(),
			Changes: models.AuditChanges{
				Fields:    []models.FieldChange{{Field: "is_active", OldValue: true, NewValue: false}},
				ChangedBy: actor.ID.String(),
			},
		})
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("worker removed", "shop_id", scope.ShopID(), "actor_id", actor.ID, "user_id", workerID)
	s.committed([]*models.AuditLog{log})
	return nil
}

func (s *Staff) authorize(scope *TenantScope, actor auth.Principal) error {
	if err := requireActive(actor); err != nil {
		return err
	}
	if err := requireScope(scope); err != nil {
		return err
	}
	if !isShopAuthority(actor, scope) {
		return fmt.Errorf("%w: only the shop owner or an admin manages staff", ErrAccessDenied)
	}
	return nil
}

// checkWorker verifies the target is a SHOP_WORKER and, when assigned is set, that they are actively
// assigned to the scoped shop and under the actor's exclusive authority.
func (s *Staff) checkWorker(ctx context.Context, q Queries, scope *TenantScope, actor auth.Principal, workerID uuid.UUID, assigned bool) error {
	worker, err := q.GetUser(ctx, workerID)
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	if worker == nil {
		return fmt.Errorf("%w: user %s", ErrNotFound, workerID)
	}
	if worker.Role != auth.RoleShopWorker {
		return fmt.Errorf("%w: user %s is not a shop worker", ErrInvalidInput, workerID)
	}
	if !assigned {
		return nil
	}

	a, err := q.GetAssignment(ctx, workerID, scope.ShopID())
	if err != nil {
		return fmt.Errorf("failed to load assignment: %w", err)
	}
	if a == nil || !a.IsActive {
		return fmt.Errorf("%w: worker %s is not assigned to shop %s", ErrNotFound, workerID, scope.ShopID())
	}
	if actor.Role == auth.RoleShopOwner {
		owns, err := ownsWorker(ctx, q, actor.ID, workerID)
		if err != nil {
			return err
		}
		if !owns {
			return fmt.Errorf("%w: worker %s is also assigned to another owner's shop", ErrAccessDenied, workerID)
		}
	}
	return nil
}

func grantEntry(scope *TenantScope, actor auth.Principal, g *models.PermissionGrant, action models.AuditAction, from, to bool) audit.Entry {
	return audit.Entry{
		ActorID:   actor.ID,
		ShopID:    shopRef(scope.ShopID()),
		Action:    action,
		TableName: models.TablePermissionGrant,
		RecordID:  g.ID.String(),
		Changes: models.AuditChanges{
			Fields:    []models.FieldChange{{Field: "is_active", OldValue: from, NewValue: to}},
			ChangedBy: actor.ID.String(),
			Extra: map[string]any{
				"user_id":    g.UserID.String(),
				"module":     g.Module,
				"permission": g.Permission,
			},
		},
	}
}
