// Package accesstest provides an in-memory access.Store for tests. Transactions are serialized and
// run against a private copy of the data that replaces the committed state only when fn succeeds,
// so a failed or rolled-back transaction leaves no trace.
package accesstest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopspring/decimal"
)

type assignmentKey struct {
	user, shop uuid.UUID
}

type data struct {
	users       map[uuid.UUID]models.User
	shops       map[uuid.UUID]models.Shop
	assignments map[assignmentKey]models.WorkerAssignment
	grants      map[uuid.UUID]models.PermissionGrant
	approvals   map[uuid.UUID]models.ApprovalRequest
	auditLogs   []models.AuditLog
	products    map[uuid.UUID]models.Product
	suppliers   map[uuid.UUID]models.Supplier
}

func newData() *data {
	return &data{
		users:       map[uuid.UUID]models.User{},
		shops:       map[uuid.UUID]models.Shop{},
		assignments: map[assignmentKey]models.WorkerAssignment{},
		grants:      map[uuid.UUID]models.PermissionGrant{},
		approvals:   map[uuid.UUID]models.ApprovalRequest{},
		products:    map[uuid.UUID]models.Product{},
		suppliers:   map[uuid.UUID]models.Supplier{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d *data) clone() *data {
	return &data{
		users:       cloneMap(d.users),
		shops:       cloneMap(d.shops),
		assignments: cloneMap(d.assignments),
		grants:      cloneMap(d.grants),
		approvals:   cloneMap(d.approvals),
		auditLogs:   slices.Clone(d.auditLogs),
		products:    cloneMap(d.products),
		suppliers:   cloneMap(d.suppliers),
	}
}

// Store is an in-memory access.Store
type Store struct {
	mu        sync.Mutex
	data      *data
	clock     time.Time
	conflicts int
	auditErr  error
	txCount   int
}

var _ access.Store = (*Store)(nil)

// New returns an empty store
func New() *Store {
	return &Store{data: newData(), clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// now returns strictly increasing timestamps so orderings are deterministic. Callers hold mu.
func (s *Store) now() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

// Reader implements access.Store. Each call reads the committed state.
func (s *Store) Reader() access.Queries {
	return &queries{store: s, locked: false}
}

// WithinTx implements access.Store
func (s *Store) WithinTx(ctx context.Context, fn func(q access.Queries) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txCount++
	if s.conflicts > 0 {
		s.conflicts--
		return fmt.Errorf("%w: injected", access.ErrTransactionConflict)
	}

	work := s.data.clone()
	if err := fn(&queries{store: s, d: work, locked: true}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.data = work
	return nil
}

// FailNextTx makes the next n transactions fail with access.ErrTransactionConflict before running
func (s *Store) FailNextTx(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conflicts = n
}

// FailAuditWrites makes every audit insert fail with err until called with nil
func (s *Store) FailAuditWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditErr = err
}

// TxCount is the number of transactions started so far
func (s *Store) TxCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txCount
}

// Seeding helpers. They write directly to the committed state.

// AddUser creates a principal
func (s *Store) AddUser(role auth.Role, status auth.Status) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	u := models.User{
		ID:        uuid.New(),
		Email:     uuid.NewString() + "@shopdesk.test",
		Name:      string(role),
		Role:      role,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.data.users[u.ID] = u
	return &u
}

// AddShop creates a shop owned by ownerID
func (s *Store) AddShop(ownerID uuid.UUID, status models.ShopStatus) *models.Shop {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	shop := models.Shop{ID: uuid.New(), OwnerID: ownerID, Name: "shop", Status: status, CreatedAt: now, UpdatedAt: now}
	s.data.shops[shop.ID] = shop
	return &shop
}

// Assign creates an assignment of userID to shopID
func (s *Store) Assign(userID, shopID uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.data.assignments[assignmentKey{userID, shopID}] = models.WorkerAssignment{
		UserID: userID, ShopID: shopID, IsActive: active, CreatedAt: now, UpdatedAt: now,
	}
}

// Grant creates an active grant
func (s *Store) Grant(userID uuid.UUID, module auth.Module, perm auth.Permission) *models.PermissionGrant {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	g := models.PermissionGrant{
		ID: uuid.New(), UserID: userID, Module: module, Permission: perm, IsActive: true, CreatedAt: now, UpdatedAt: now,
	}
	s.data.grants[g.ID] = g
	return &g
}

// AddProduct creates a product in shopID
func (s *Store) AddProduct(shopID uuid.UUID, name string, price decimal.Decimal) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	p := models.Product{ID: uuid.New(), ShopID: shopID, Name: name, Price: price, CostPrice: price, CreatedAt: now, UpdatedAt: now}
	s.data.products[p.ID] = p
	return &p
}

// SetPassword stores a password hash for a seeded user
func (s *Store) SetPassword(id uuid.UUID, hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.data.users[id]
	u.PasswordHash = hash
	s.data.users[id] = u
}

// LookupPrincipal implements auth.PrincipalLookup over the committed state
func (s *Store) LookupPrincipal(_ context.Context, id uuid.UUID) (*auth.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.data.users[id]
	if !ok {
		return nil, nil
	}
	p := u.Principal()
	return &p, nil
}

// GetUserByEmail returns the committed user with email, or nil
func (s *Store) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.data.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

// Snapshot accessors over the committed state. They return nil when absent.

// User returns a committed user
func (s *Store) User(id uuid.UUID) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptr(s.data.users, id)
}

// Shop returns a committed shop
func (s *Store) Shop(id uuid.UUID) *models.Shop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptr(s.data.shops, id)
}

// Assignment returns a committed assignment
func (s *Store) Assignment(userID, shopID uuid.UUID) *models.WorkerAssignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptr(s.data.assignments, assignmentKey{userID, shopID})
}

// Approval returns a committed approval request
func (s *Store) Approval(id uuid.UUID) *models.ApprovalRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptr(s.data.approvals, id)
}

// Product returns a committed product, including soft-deleted ones
func (s *Store) Product(id uuid.UUID) *models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ptr(s.data.products, id)
}

// Products returns every committed product of shopID, including soft-deleted ones
func (s *Store) Products(shopID uuid.UUID) []*models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Product
	for _, p := range s.data.products {
		if p.ShopID == shopID {
			out = append(out, &p)
		}
	}
	return out
}

// AuditLogs returns every committed audit entry in insertion order
func (s *Store) AuditLogs() []*models.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.AuditLog, 0, len(s.data.auditLogs))
	for _, l := range s.data.auditLogs {
		out = append(out, &l)
	}
	return out
}

func ptr[K comparable, V any](m map[K]V, k K) *V {
	v, ok := m[k]
	if !ok {
		return nil
	}
	return &v
}

func sortShops(shops []*models.Shop) {
	slices.SortFunc(shops, func(a, b *models.Shop) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
