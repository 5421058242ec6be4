package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/catalog"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// Outcome is the result of Execute: either the mutation was applied, or it was queued for review
// and Request holds the pending approval request.
type Outcome struct {
	Applied  bool                    `json:"applied"`
	RecordID *uuid.UUID              `json:"record_id,omitempty"`
	Changes  []models.FieldChange    `json:"changes,omitempty"`
	Request  *models.ApprovalRequest `json:"approval,omitempty"`
}

// Gate is the entry point for mutating and reading shop records. Principals with direct capability
// apply mutations immediately; workers without it are routed into the approval workflow.
type Gate struct {
	*core
	workflow *Workflow
}

// Execute applies m directly when p can act directly on the table's module, and otherwise submits it
// for approval on behalf of a worker.
func (g *Gate) Execute(ctx context.Context, scope *TenantScope, p auth.Principal, m SubmitInput) (*Outcome, error) {
	if err := requireActive(p); err != nil {
		return nil, err
	}
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	table, perm, err := g.prepare(&m)
	if err != nil {
		return nil, err
	}

	var (
		out *Outcome
		log *models.AuditLog
	)
	err = g.inTx(ctx, func(q Queries) error {
		out, log = nil, nil
		if err := requireAssignment(ctx, q, p, scope); err != nil {
			return err
		}
		direct, err := CanActDirectly(ctx, q, p, scope, table.Module(), perm)
		if err != nil || !direct {
			return err
		}

		res, err := table.Apply(ctx, q, catalog.Mutation{
			ShopID:   scope.ShopID(),
			Type:     m.Type,
			RecordID: m.RecordID,
			Data:     m.Data,
		})
		switch {
		case errors.Is(err, catalog.ErrRecordNotFound):
			return fmt.Errorf("%w: %s %s", ErrNotFound, table.Name(), m.RecordID)
		case errors.Is(err, catalog.ErrInvalidPayload):
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		case err != nil:
			return err
		}

		log, err = g.record(ctx, q, audit.Entry{
			ActorID:   p.ID,
			ShopID:    shopRef(scope.ShopID()),
			Action:    directAction(m.Type),
			TableName: table.Name(),
			RecordID:  res.RecordID.String(),
			Changes: models.AuditChanges{
				Fields:    res.Changes,
				Reason:    m.Reason,
				ChangedBy: p.ID.String(),
			},
		})
		if err != nil {
			return err
		}
		out = &Outcome{Applied: true, RecordID: &res.RecordID, Changes: res.Changes}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if out != nil {
		g.logger.Info("record mutated",
			"shop_id", scope.ShopID(), "actor_id", p.ID, "type", m.Type, "table", table.Name(), "record_id", out.RecordID)
		g.committed([]*models.AuditLog{log})
		return out, nil
	}

	if p.Role != auth.RoleShopWorker {
		return nil, fmt.Errorf("%w: %s on %s", ErrAccessDenied, perm, table.Module())
	}
	req, err := g.workflow.Submit(ctx, scope, p, m)
	if err != nil {
		return nil, err
	}
	return &Outcome{Applied: false, RecordID: m.RecordID, Request: req}, nil
}

// View fails with ErrInsufficientPermission unless p may read module in scope
func (g *Gate) View(ctx context.Context, scope *TenantScope, p auth.Principal, module auth.Module) error {
	if err := requireActive(p); err != nil {
		return err
	}
	if err := requireScope(scope); err != nil {
		return err
	}
	ok, err := CanActDirectly(ctx, g.store.Reader(), p, scope, module, auth.PermissionView)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s on %s", ErrInsufficientPermission, auth.PermissionView, module)
	}
	return nil
}

// Read returns one live record of the scoped shop, subject to VIEW on the table's module
func (g *Gate) Read(ctx context.Context, scope *TenantScope, p auth.Principal, tableName string, id uuid.UUID) (any, error) {
	table, err := g.registry.Lookup(tableName)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := g.View(ctx, scope, p, table.Module()); err != nil {
		return nil, err
	}
	rec, err := table.Load(ctx, g.store.Reader(), scope.ShopID(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table.Name(), err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, table.Name(), id)
	}
	return rec, nil
}

// TableInfo describes a table mutations can target
type TableInfo struct {
	Name   string      `json:"name"`
	Module auth.Module `json:"module"`
}

// Tables lists the registered tables by name
func (g *Gate) Tables() []TableInfo {
	names := g.registry.Names()
	out := make([]TableInfo, 0, len(names))
	for _, n := range names {
		t, err := g.registry.Lookup(n)
		if err != nil {
			continue
		}
		out = append(out, TableInfo{Name: t.Name(), Module: t.Module()})
	}
	return out
}

func directAction(typ models.ApprovalType) models.AuditAction {
	switch typ {
	case models.ApprovalTypeCreate:
		return models.AuditActionCreate
	case models.ApprovalTypeDelete:
		return models.AuditActionDelete
	default:
		return models.AuditActionUpdate
	}
}
