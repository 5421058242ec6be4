package accesstest

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// queries implements access.Queries over either the committed state (reader) or a transaction's
// working copy.
type queries struct {
	store  *Store
	d      *data
	locked bool
}

func (q *queries) begin() (*data, func()) {
	if q.locked {
		return q.d, func() {}
	}
	q.store.mu.Lock()
	return q.store.data, q.store.mu.Unlock
}

// users

func (q *queries) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	d, done := q.begin()
	defer done()
	return ptr(d.users, id), nil
}

func (q *queries) LockUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return q.GetUser(ctx, id)
}

func (q *queries) UpdateUserStatus(_ context.Context, id uuid.UUID, status auth.Status) error {
	d, done := q.begin()
	defer done()
	u, ok := d.users[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	u.Status = status
	u.UpdatedAt = q.store.now()
	d.users[id] = u
	return nil
}

// shops

func (q *queries) GetShop(_ context.Context, id uuid.UUID) (*models.Shop, error) {
	d, done := q.begin()
	defer done()
	return ptr(d.shops, id), nil
}

func (q *queries) LockShop(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	return q.GetShop(ctx, id)
}

func (q *queries) listShops(match func(d *data, s models.Shop) bool) []*models.Shop {
	d, done := q.begin()
	defer done()
	var out []*models.Shop
	for _, s := range d.shops {
		if match(d, s) {
			out = append(out, &s)
		}
	}
	sortShops(out)
	return out
}

func (q *queries) ListActiveShops(context.Context) ([]*models.Shop, error) {
	return q.listShops(func(_ *data, s models.Shop) bool { return s.IsActive() }), nil
}

func (q *queries) ListShopsByOwner(_ context.Context, ownerID uuid.UUID) ([]*models.Shop, error) {
	return q.listShops(func(_ *data, s models.Shop) bool { return s.OwnerID == ownerID }), nil
}

func (q *queries) ListShopsForWorker(_ context.Context, workerID uuid.UUID) ([]*models.Shop, error) {
	return q.listShops(func(d *data, s models.Shop) bool {
		a, ok := d.assignments[assignmentKey{workerID, s.ID}]
		return ok && a.IsActive && s.IsActive()
	}), nil
}

func (q *queries) UpdateShopStatus(_ context.Context, id uuid.UUID, status models.ShopStatus) error {
	d, done := q.begin()
	defer done()
	s, ok := d.shops[id]
	if !ok {
		return fmt.Errorf("shop %s not found", id)
	}
	s.Status = status
	s.UpdatedAt = q.store.now()
	d.shops[id] = s
	return nil
}

// assignments

func (q *queries) GetAssignment(_ context.Context, userID, shopID uuid.UUID) (*models.WorkerAssignment, error) {
	d, done := q.begin()
	defer done()
	return ptr(d.assignments, assignmentKey{userID, shopID}), nil
}

func (q *queries) listAssignments(match func(a models.WorkerAssignment) bool) []*models.WorkerAssignment {
	d, done := q.begin()
	defer done()
	var out []*models.WorkerAssignment
	for _, a := range d.assignments {
		if match(a) {
			out = append(out, &a)
		}
	}
	slices.SortFunc(out, func(a, b *models.WorkerAssignment) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.RecordID(), b.RecordID())
	})
	return out
}

func (q *queries) ListActiveAssignmentsByShop(_ context.Context, shopID uuid.UUID) ([]*models.WorkerAssignment, error) {
	return q.listAssignments(func(a models.WorkerAssignment) bool { return a.ShopID == shopID && a.IsActive }), nil
}

func (q *queries) ListAssignmentsByWorker(_ context.Context, userID uuid.UUID) ([]*models.WorkerAssignment, error) {
	return q.listAssignments(func(a models.WorkerAssignment) bool { return a.UserID == userID }), nil
}

func (q *queries) UpsertAssignment(_ context.Context, a *models.WorkerAssignment) error {
	d, done := q.begin()
	defer done()
	key := assignmentKey{a.UserID, a.ShopID}
	now := q.store.now()
	existing, ok := d.assignments[key]
	if !ok {
		existing = models.WorkerAssignment{UserID: a.UserID, ShopID: a.ShopID, CreatedAt: now}
	}
	existing.IsActive = true
	existing.UpdatedAt = now
	d.assignments[key] = existing
	*a = existing
	return nil
}

func (q *queries) SetAssignmentActive(_ context.Context, userID, shopID uuid.UUID, active bool) error {
	d, done := q.begin()
	defer done()
	key := assignmentKey{userID, shopID}
	a, ok := d.assignments[key]
	if !ok {
		return fmt.Errorf("assignment %s:%s not found", userID, shopID)
	}
	a.IsActive = active
	a.UpdatedAt = q.store.now()
	d.assignments[key] = a
	return nil
}

// grants

func (q *queries) ListGrants(_ context.Context, userID uuid.UUID, activeOnly bool) ([]*models.PermissionGrant, error) {
	d, done := q.begin()
	defer done()
	var out []*models.PermissionGrant
	for _, g := range d.grants {
		if g.UserID == userID && (g.IsActive || !activeOnly) {
			out = append(out, &g)
		}
	}
	slices.SortFunc(out, func(a, b *models.PermissionGrant) int {
		return strings.Compare(string(a.Module)+string(a.Permission), string(b.Module)+string(b.Permission))
	})
	return out, nil
}

func (q *queries) GetGrant(_ context.Context, userID uuid.UUID, module auth.Module, perm auth.Permission) (*models.PermissionGrant, error) {
	d, done := q.begin()
	defer done()
	for _, g := range d.grants {
		if g.UserID == userID && g.Module == module && g.Permission == perm {
			return &g, nil
		}
	}
	return nil, nil
}

func (q *queries) UpsertGrant(_ context.Context, g *models.PermissionGrant) error {
	d, done := q.begin()
	defer done()
	now := q.store.now()
	for id, existing := range d.grants {
		if existing.UserID == g.UserID && existing.Module == g.Module && existing.Permission == g.Permission {
			existing.IsActive = true
			existing.GrantedBy = g.GrantedBy
			existing.UpdatedAt = now
			d.grants[id] = existing
			*g = existing
			return nil
		}
	}
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	g.IsActive = true
	g.CreatedAt = now
	g.UpdatedAt = now
	d.grants[g.ID] = *g
	return nil
}

func (q *queries) DeactivateGrant(_ context.Context, id uuid.UUID) error {
	d, done := q.begin()
	defer done()
	g, ok := d.grants[id]
	if !ok {
		return fmt.Errorf("grant %s not found", id)
	}
	g.IsActive = false
	g.UpdatedAt = q.store.now()
	d.grants[id] = g
	return nil
}

// approvals

func (q *queries) CreateApproval(_ context.Context, req *models.ApprovalRequest) error {
	d, done := q.begin()
	defer done()
	if req.ID == uuid.Nil {
		req.ID = uuid.New()
	}
	now := q.store.now()
	req.Status = models.ApprovalStatusPending
	req.CreatedAt = now
	req.UpdatedAt = now
	d.approvals[req.ID] = *req
	return nil
}

func (q *queries) GetApproval(_ context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	d, done := q.begin()
	defer done()
	req := ptr(d.approvals, id)
	if req != nil {
		if u, ok := d.users[req.RequestedBy]; ok {
			req.RequestedByName = u.Name
		}
	}
	return req, nil
}

func (q *queries) LockApproval(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error) {
	return q.GetApproval(ctx, id)
}

func (q *queries) TransitionApproval(_ context.Context, id uuid.UUID, from models.ApprovalStatus, t models.ApprovalTransition) (bool, error) {
	d, done := q.begin()
	defer done()
	req, ok := d.approvals[id]
	if !ok || req.Status != from {
		return false, nil
	}
	req.Status = t.To
	if t.ReviewedBy != nil {
		req.ReviewedBy = t.ReviewedBy
	}
	if t.ReviewNote != nil {
		req.ReviewNote = t.ReviewNote
	}
	if t.FailureReason != nil {
		req.FailureReason = t.FailureReason
	}
	if t.DecidedAt != nil {
		req.DecidedAt = t.DecidedAt
	}
	req.UpdatedAt = q.store.now()
	d.approvals[id] = req
	return true, nil
}

func (q *queries) ListApprovals(_ context.Context, f models.ApprovalFilter) ([]*models.ApprovalRequest, int, error) {
	d, done := q.begin()
	defer done()
	var all []*models.ApprovalRequest
	for _, r := range d.approvals {
		if r.ShopID != f.ShopID {
			continue
		}
		if f.Status != nil && r.Status != *f.Status {
			continue
		}
		if f.RequesterID != nil && r.RequestedBy != *f.RequesterID {
			continue
		}
		all = append(all, &r)
	}
	slices.SortFunc(all, func(a, b *models.ApprovalRequest) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})

	total := len(all)
	if f.Offset >= total {
		return nil, total, nil
	}
	all = all[f.Offset:]
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

// audit

func (q *queries) InsertAuditLog(_ context.Context, log *models.AuditLog) error {
	d, done := q.begin()
	defer done()
	if q.store.auditErr != nil {
		return q.store.auditErr
	}
	d.auditLogs = append(d.auditLogs, *log)
	return nil
}

func (q *queries) QueryAuditLogs(_ context.Context, f models.AuditFilter, after *models.AuditCursor, limit int) ([]*models.AuditLog, error) {
	d, done := q.begin()
	defer done()
	var out []*models.AuditLog
	for _, l := range d.auditLogs {
		if !matchAudit(l, f) {
			continue
		}
		if after != nil {
			c := l.CreatedAt.Compare(after.CreatedAt)
			if c > 0 || (c == 0 && l.ID.String() >= after.ID.String()) {
				continue
			}
		}
		out = append(out, &l)
	}
	slices.SortFunc(out, func(a, b *models.AuditLog) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID.String(), a.ID.String())
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func matchAudit(l models.AuditLog, f models.AuditFilter) bool {
	switch {
	case f.ActorID != nil && l.ActorID != *f.ActorID:
		return false
	case f.ShopID != nil && (l.ShopID == nil || *l.ShopID != *f.ShopID):
		return false
	case f.TableName != "" && l.TableName != f.TableName:
		return false
	case f.RecordID != "" && l.RecordID != f.RecordID:
		return false
	case f.Action != "" && l.Action != f.Action:
		return false
	case f.From != nil && l.CreatedAt.Before(*f.From):
		return false
	case f.To != nil && l.CreatedAt.After(*f.To):
		return false
	}
	return true
}

// records

func (q *queries) InsertProduct(_ context.Context, p *models.Product) error {
	d, done := q.begin()
	defer done()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := q.store.now()
	p.CreatedAt, p.UpdatedAt = now, now
	d.products[p.ID] = *p
	return nil
}

func (q *queries) GetProduct(_ context.Context, shopID, id uuid.UUID) (*models.Product, error) {
	d, done := q.begin()
	defer done()
	p, ok := d.products[id]
	if !ok || p.ShopID != shopID || p.DeletedAt != nil {
		return nil, nil
	}
	return &p, nil
}

func (q *queries) UpdateProduct(_ context.Context, p *models.Product) (bool, error) {
	d, done := q.begin()
	defer done()
	cur, ok := d.products[p.ID]
	if !ok || cur.ShopID != p.ShopID || cur.DeletedAt != nil {
		return false, nil
	}
	p.UpdatedAt = q.store.now()
	d.products[p.ID] = *p
	return true, nil
}

func (q *queries) SoftDeleteProduct(_ context.Context, shopID, id uuid.UUID) (bool, error) {
	d, done := q.begin()
	defer done()
	p, ok := d.products[id]
	if !ok || p.ShopID != shopID || p.DeletedAt != nil {
		return false, nil
	}
	now := q.store.now()
	p.DeletedAt = &now
	d.products[id] = p
	return true, nil
}

func (q *queries) InsertSupplier(_ context.Context, s *models.Supplier) error {
	d, done := q.begin()
	defer done()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	now := q.store.now()
	s.CreatedAt, s.UpdatedAt = now, now
	d.suppliers[s.ID] = *s
	return nil
}

func (q *queries) GetSupplier(_ context.Context, shopID, id uuid.UUID) (*models.Supplier, error) {
	d, done := q.begin()
	defer done()
	s, ok := d.suppliers[id]
	if !ok || s.ShopID != shopID || s.DeletedAt != nil {
		return nil, nil
	}
	return &s, nil
}

func (q *queries) UpdateSupplier(_ context.Context, s *models.Supplier) (bool, error) {
	d, done := q.begin()
	defer done()
	cur, ok := d.suppliers[s.ID]
	if !ok || cur.ShopID != s.ShopID || cur.DeletedAt != nil {
		return false, nil
	}
	s.UpdatedAt = q.store.now()
	d.suppliers[s.ID] = *s
	return true, nil
}

func (q *queries) SoftDeleteSupplier(_ context.Context, shopID, id uuid.UUID) (bool, error) {
	d, done := q.begin()
	defer done()
	s, ok := d.suppliers[id]
	if !ok || s.ShopID != shopID || s.DeletedAt != nil {
		return false, nil
	}
	now := q.store.now()
	s.DeletedAt = &now
	d.suppliers[id] = s
	return true, nil
}
