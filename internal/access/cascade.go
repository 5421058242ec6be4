package access

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/notify"
	"github.com/shopdesk/shopdesk/internal/telemetry"
)

// Touched is one entity whose status a cascade changed
type Touched struct {
	Table    string `json:"table"`
	RecordID string `json:"record_id"`
	From     string `json:"from"`
	To       string `json:"to"`
}

// CascadeResult lists every entity a status change touched
type CascadeResult struct {
	Principals  []Touched `json:"principals"`
	Shops       []Touched `json:"shops"`
	Assignments []Touched `json:"assignments"`
}

// Len is the number of touched entities
func (r *CascadeResult) Len() int {
	return len(r.Principals) + len(r.Shops) + len(r.Assignments)
}

// Cascade changes principal and shop status. Deactivation propagates downward (owner → owned shops
// → their worker assignments) in one transaction with one audit entry per touched entity.
// Activation never propagates: each level is reactivated explicitly.
type Cascade struct {
	*core
}

// cascadeRun accumulates one attempt of a cascade
type cascadeRun struct {
	c      *core
	q      Queries
	actor  auth.Principal
	reason string
	result *CascadeResult
	logs   []*models.AuditLog
}

// SetPrincipalStatus changes the status of targetID. SUPER_ADMIN may change anyone but
// themselves; an owner may change only workers whose active assignments are all on shops they own.
// Other actors fail with ErrInvalidStateTransition.
func (c *Cascade) SetPrincipalStatus(ctx context.Context, actor auth.Principal, targetID uuid.UUID, status auth.Status, reason string) (*CascadeResult, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}
	if targetID == actor.ID {
		return nil, fmt.Errorf("%w: principals cannot change their own status", ErrInvalidStateTransition)
	}

	var run *cascadeRun
	err := c.inTx(ctx, func(q Queries) error {
		run = c.newRun(q, actor, reason)

		target, err := q.LockUser(ctx, targetID)
		if err != nil {
			return fmt.Errorf("failed to load user: %w", err)
		}
		if target == nil {
			return fmt.Errorf("%w: user %s", ErrNotFound, targetID)
		}
		if err := c.authorizePrincipal(ctx, q, actor, target); err != nil {
			return err
		}
		if target.Status == status {
			return nil
		}

		if err := q.UpdateUserStatus(ctx, target.ID, status); err != nil {
			return err
		}
		if err := run.touched(ctx, nil, models.TableUser, target.ID.String(), string(target.Status), string(status), &run.result.Principals); err != nil {
			return err
		}

		if status == auth.StatusActive || target.Role != auth.RoleShopOwner {
			return nil
		}
		shops, err := q.ListShopsByOwner(ctx, target.ID)
		if err != nil {
			return fmt.Errorf("failed to list owned shops: %w", err)
		}
		for _, shop := range shops {
			if !shop.IsActive() {
				continue
			}
			if err := run.deactivateShop(ctx, shop); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	c.finish(actor, targetID.String(), nil, run)
	return run.result, nil
}

// SetShopStatus changes the status of a shop. SUPER_ADMIN may change any shop, an owner only their
// own. A shop whose owner is not ACTIVE cannot be reactivated.
func (c *Cascade) SetShopStatus(ctx context.Context, actor auth.Principal, shopID uuid.UUID, status models.ShopStatus, reason string) (*CascadeResult, error) {
	if err := requireActive(actor); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown shop status %q", ErrInvalidInput, status)
	}

	var run *cascadeRun
	err := c.inTx(ctx, func(q Queries) error {
		run = c.newRun(q, actor, reason)

		shop, err := q.LockShop(ctx, shopID)
		if err != nil {
			return fmt.Errorf("failed to load shop: %w", err)
		}
		if shop == nil {
			return fmt.Errorf("%w: shop %s", ErrNotFound, shopID)
		}
		switch actor.Role {
		case auth.RoleSuperAdmin:
		case auth.RoleShopOwner:
			if shop.OwnerID != actor.ID {
				return fmt.Errorf("%w: shop %s belongs to another owner", ErrInvalidStateTransition, shopID)
			}
		case auth.RoleShopWorker:
			return fmt.Errorf("%w: workers cannot change shop status", ErrInvalidStateTransition)
		default:
			return fmt.Errorf("%w: unknown role %q", ErrInvalidStateTransition, actor.Role)
		}
		if shop.Status == status {
			return nil
		}

		if status == models.ShopStatusActive {
			owner, err := q.GetUser(ctx, shop.OwnerID)
			if err != nil {
				return fmt.Errorf("failed to load shop owner: %w", err)
			}
			if owner == nil || owner.Status != auth.StatusActive {
				return fmt.Errorf("%w: reactivate the owner of shop %s first", ErrInvalidStateTransition, shopID)
			}
			if err := q.UpdateShopStatus(ctx, shop.ID, status); err != nil {
				return err
			}
			return run.touched(ctx, &shop.ID, models.TableShop, shop.ID.String(), string(shop.Status), string(status), &run.result.Shops)
		}
		return run.deactivateShop(ctx, shop)
	})
	if err != nil {
		return nil, err
	}
	c.finish(actor, shopID.String(), &shopID, run)
	return run.result, nil
}

func (c *Cascade) newRun(q Queries, actor auth.Principal, reason string) *cascadeRun {
	return &cascadeRun{c: c.core, q: q, actor: actor, reason: reason, result: &CascadeResult{}}
}

func (c *Cascade) authorizePrincipal(ctx context.Context, q Queries, actor auth.Principal, target *models.User) error {
	switch actor.Role {
	case auth.RoleSuperAdmin:
		return nil
	case auth.RoleShopOwner:
		if target.Role != auth.RoleShopWorker {
			return fmt.Errorf("%w: owners can only change their workers", ErrInvalidStateTransition)
		}
		owns, err := ownsWorker(ctx, q, actor.ID, target.ID)
		if err != nil {
			return err
		}
		if !owns {
			return fmt.Errorf("%w: worker %s is not exclusively assigned to your shops", ErrInvalidStateTransition, target.ID)
		}
		return nil
	case auth.RoleShopWorker:
		return fmt.Errorf("%w: workers cannot change status", ErrInvalidStateTransition)
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalidStateTransition, actor.Role)
	}
}

func (c *Cascade) finish(actor auth.Principal, subject string, shopID *uuid.UUID, run *cascadeRun) {
	if run.result.Len() == 0 {
		return
	}
	telemetry.StatusCascadeEntitiesTotal.WithLabelValues("principal").Add(float64(len(run.result.Principals)))
	telemetry.StatusCascadeEntitiesTotal.WithLabelValues("shop").Add(float64(len(run.result.Shops)))
	telemetry.StatusCascadeEntitiesTotal.WithLabelValues("assignment").Add(float64(len(run.result.Assignments)))
	c.logger.Info("status changed",
		"actor_id", actor.ID, "subject", subject,
		"principals", len(run.result.Principals), "shops", len(run.result.Shops), "assignments", len(run.result.Assignments))
	c.committed(run.logs, notify.NewEvent(notify.EventStatusCascaded, actor.ID, shopID, subject, map[string]any{
		"principals":  run.result.Principals,
		"shops":       run.result.Shops,
		"assignments": run.result.Assignments,
		"reason":      run.reason,
	}))
}

// deactivateShop sets shop INACTIVE and deactivates its active worker assignments
func (r *cascadeRun) deactivateShop(ctx context.Context, shop *models.Shop) error {
	if err := r.q.UpdateShopStatus(ctx, shop.ID, models.ShopStatusInactive); err != nil {
		return err
	}
	if err := r.touched(ctx, &shop.ID, models.TableShop, shop.ID.String(), string(shop.Status), string(models.ShopStatusInactive), &r.result.Shops); err != nil {
		return err
	}

	assignments, err := r.q.ListActiveAssignmentsByShop(ctx, shop.ID)
	if err != nil {
		return fmt.Errorf("failed to list assignments: %w", err)
	}
	for _, a := range assignments {
		if err := r.q.SetAssignmentActive(ctx, a.UserID, a.ShopID, false); err != nil {
			return err
		}
		if err := r.touched(ctx, &shop.ID, models.TableWorkerAssignment, a.RecordID(), "true", "false", &r.result.Assignments); err != nil {
			return err
		}
	}
	return nil
}

// touched records one status change in the audit trail and the result
func (r *cascadeRun) touched(ctx context.Context, shopID *uuid.UUID, table, recordID, from, to string, into *[]Touched) error {
	field := "status"
	if table == models.TableWorkerAssignment {
		field = "is_active"
	}
	log, err := r.c.record(ctx, r.q, audit.Entry{
		ActorID:   r.actor.ID,
		ShopID:    shopID,
		Action:    models.AuditActionStatusChange,
		TableName: table,
		RecordID:  recordID,
		Changes: models.AuditChanges{
			Fields:    []models.FieldChange{{Field: field, OldValue: from, NewValue: to}},
			Reason:    r.reason,
			ChangedBy: r.actor.ID.String(),
		},
	})
	if err != nil {
		return err
	}
	r.logs = append(r.logs, log)
	*into = append(*into, Touched{Table: table, RecordID: recordID, From: from, To: to})
	return nil
}
