package access

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/catalog"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/notify"
	"github.com/shopdesk/shopdesk/internal/telemetry"
)

// Deps are the collaborators shared by the access services
type Deps struct {
	Store    Store
	Registry *catalog.Registry
	Trail    *audit.Trail
	Events   *notify.Dispatcher
	Logger   *slog.Logger
}

// Engine bundles the access services over one store
type Engine struct {
	Resolver  *Resolver
	Approvals *Workflow
	Cascade   *Cascade
	Gate      *Gate
	Staff     *Staff
	Trail     *audit.Trail

	core *core
}

// NewEngine wires the services. Registry and Trail default to the standard catalog and a trail
// reading from the store.
func NewEngine(d Deps) *Engine {
	if d.Registry == nil {
		d.Registry = catalog.NewRegistry()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Trail == nil {
		d.Trail = audit.NewTrail(d.Store.Reader(), nil, d.Logger)
	}

	c := &core{
		store:    d.Store,
		registry: d.Registry,
		trail:    d.Trail,
		events:   d.Events,
		logger:   d.Logger,
	}
	wf := &Workflow{core: c}
	return &Engine{
		Resolver:  NewResolver(d.Store),
		Approvals: wf,
		Cascade:   &Cascade{core: c},
		Gate:      &Gate{core: c, workflow: wf},
		Staff:     &Staff{core: c},
		Trail:     d.Trail,
		core:      c,
	}
}

// AuditLogs pages through the audit trail of the scoped shop. Owners and admins may read it; a
// worker needs VIEW on REPORTS.
func (e *Engine) AuditLogs(ctx context.Context, scope *TenantScope, p auth.Principal, f models.AuditFilter, cursor string, limit int) (*audit.Page, error) {
	if err := e.Gate.View(ctx, scope, p, auth.ModuleReports); err != nil {
		return nil, err
	}
	shopID := scope.ShopID()
	f.ShopID = &shopID

	page, err := e.Trail.Query(ctx, f, cursor, limit)
	if errors.Is(err, audit.ErrInvalidCursor) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return page, err
}

// ExportAuditLogs iterates over every audit entry of the scoped shop matching f, newest first,
// under the same authorization as AuditLogs.
func (e *Engine) ExportAuditLogs(ctx context.Context, scope *TenantScope, p auth.Principal, f models.AuditFilter) (iter.Seq2[*models.AuditLog, error], error) {
	if err := e.Gate.View(ctx, scope, p, auth.ModuleReports); err != nil {
		return nil, err
	}
	shopID := scope.ShopID()
	f.ShopID = &shopID
	return e.Trail.All(ctx, f, 0), nil
}

// RecordLogin writes a LOGIN audit entry for an authenticated principal
func (e *Engine) RecordLogin(ctx context.Context, p auth.Principal, remoteAddr string) error {
	var log *models.AuditLog
	err := e.core.inTx(ctx, func(q Queries) error {
		var err error
		log, err = e.core.record(ctx, q, audit.Entry{
			ActorID:   p.ID,
			Action:    models.AuditActionLogin,
			TableName: "User",
			RecordID:  p.ID.String(),
			Changes: models.AuditChanges{
				ChangedBy: p.ID.String(),
				Extra:     map[string]any{"remote_addr": remoteAddr},
			},
		})
		return err
	})
	if err != nil {
		return err
	}
	e.core.committed([]*models.AuditLog{log})
	return nil
}

// core holds what every service needs: the store, the table registry, the audit trail and the
// post-commit event dispatcher.
type core struct {
	store    Store
	registry *catalog.Registry
	trail    *audit.Trail
	events   *notify.Dispatcher
	logger   *slog.Logger
}

// inTx runs fn in a transaction, retrying once when it loses a serialization race. fn must not
// carry state between attempts.
func (c *core) inTx(ctx context.Context, fn func(q Queries) error) error {
	err := c.store.WithinTx(ctx, fn)
	if !errors.Is(err, ErrTransactionConflict) {
		return err
	}
	telemetry.TransactionConflictsTotal.Inc()
	c.logger.Debug("retrying transaction after conflict", "error", err)

	err = c.store.WithinTx(ctx, fn)
	if errors.Is(err, ErrTransactionConflict) {
		telemetry.TransactionConflictsTotal.Inc()
	}
	return err
}

// committed ships audit entries and publishes events once their transaction has committed
func (c *core) committed(logs []*models.AuditLog, events ...notify.Event) {
	c.trail.Ship(logs...)
	c.events.Dispatch(events...)
}

func (c *core) record(ctx context.Context, q Queries, e audit.Entry) (*models.AuditLog, error) {
	return c.trail.Record(ctx, q, e)
}

func requireActive(p auth.Principal) error {
	if !p.IsActive() {
		return fmt.Errorf("%w: principal is %s", ErrAccessDenied, p.Status)
	}
	return nil
}

func requireScope(scope *TenantScope) error {
	if scope == nil || scope.Shop == nil {
		return fmt.Errorf("%w: no shop scope", ErrAccessDenied)
	}
	return nil
}

// isShopAuthority reports whether p is an admin or the owner of the scoped shop
func isShopAuthority(p auth.Principal, scope *TenantScope) bool {
	switch p.Role {
	case auth.RoleSuperAdmin:
		return true
	case auth.RoleShopOwner:
		return scope.Shop.OwnerID == p.ID
	case auth.RoleShopWorker:
		return false
	default:
		return false
	}
}

// requireAssignment checks, inside a transaction, that a worker is still actively assigned to the
// scoped shop and that the shop is still active.
func requireAssignment(ctx context.Context, q Queries, p auth.Principal, scope *TenantScope) error {
	if p.Role != auth.RoleShopWorker {
		return nil
	}
	a, err := q.GetAssignment(ctx, p.ID, scope.ShopID())
	if err != nil {
		return fmt.Errorf("failed to load assignment: %w", err)
	}
	if a == nil || !a.IsActive {
		return fmt.Errorf("%w: not assigned to shop %s", ErrAccessDenied, scope.ShopID())
	}
	shop, err := q.GetShop(ctx, scope.ShopID())
	if err != nil {
		return fmt.Errorf("failed to load shop: %w", err)
	}
	if shop == nil || !shop.IsActive() {
		return fmt.Errorf("%w: shop %s is not active", ErrAccessDenied, scope.ShopID())
	}
	return nil
}

// ownsWorker reports whether every active assignment of workerID is on a shop owned by ownerID and
// at least one assignment (active or not) is.
func ownsWorker(ctx context.Context, q Queries, ownerID, workerID uuid.UUID) (bool, error) {
	assignments, err := q.ListAssignmentsByWorker(ctx, workerID)
	if err != nil {
		return false, fmt.Errorf("failed to load assignments: %w", err)
	}
	related := false
	for _, a := range assignments {
		shop, err := q.GetShop(ctx, a.ShopID)
		if err != nil {
			return false, fmt.Errorf("failed to load shop: %w", err)
		}
		switch {
		case shop != nil && shop.OwnerID == ownerID:
			related = true
		case a.IsActive:
			return false, nil
		}
	}
	return related, nil
}

func shopRef(id uuid.UUID) *uuid.UUID {
	return &id
}
