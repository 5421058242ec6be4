package access

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// TenantScope is the shop a request has been authorized to operate on, together with the principal
// it was resolved for. Services take a TenantScope instead of re-deriving shop access.
type TenantScope struct {
	Shop      *models.Shop
	Principal auth.Principal
}

// ShopID returns the id of the scoped shop
func (s *TenantScope) ShopID() uuid.UUID {
	return s.Shop.ID
}

// IsOwner reports whether the scoped principal owns the shop
func (s *TenantScope) IsOwner() bool {
	return s.Principal.Role == auth.RoleShopOwner && s.Shop.OwnerID == s.Principal.ID
}

// Resolver computes which shops a principal may access
type Resolver struct {
	store Store
}

// NewResolver creates a Resolver
func NewResolver(store Store) *Resolver {
	return &Resolver{store: store}
}

// Accessible lists the shops p may access, oldest first
func (r *Resolver) Accessible(ctx context.Context, p auth.Principal) ([]*models.Shop, error) {
	if !p.IsActive() {
		return nil, fmt.Errorf("%w: principal is %s", ErrAccessDenied, p.Status)
	}
	return accessibleShops(ctx, r.store.Reader(), p)
}

// Resolve returns the scope for requested, or for the first accessible shop when requested is nil.
// A shop outside the accessible set fails with ErrAccessDenied whether or not it exists.
func (r *Resolver) Resolve(ctx context.Context, p auth.Principal, requested *uuid.UUID) (*TenantScope, error) {
	shops, err := r.Accessible(ctx, p)
	if err != nil {
		return nil, err
	}

	if requested != nil {
		for _, s := range shops {
			if s.ID == *requested {
				return &TenantScope{Shop: s, Principal: p}, nil
			}
		}
		return nil, fmt.Errorf("%w: shop %s", ErrAccessDenied, requested)
	}

	if len(shops) == 0 {
		return nil, ErrNoAccessibleShop
	}
	return &TenantScope{Shop: shops[0], Principal: p}, nil
}

func accessibleShops(ctx context.Context, q Queries, p auth.Principal) ([]*models.Shop, error) {
	var (
		shops []*models.Shop
		err   error
	)
	switch p.Role {
	case auth.RoleSuperAdmin:
		shops, err = q.ListActiveShops(ctx)
	case auth.RoleShopOwner:
		shops, err = q.ListShopsByOwner(ctx, p.ID)
		shops = slices.DeleteFunc(shops, func(s *models.Shop) bool { return !s.IsActive() })
	case auth.RoleShopWorker:
		shops, err = q.ListShopsForWorker(ctx, p.ID)
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrAccessDenied, p.Role)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list accessible shops: %w", err)
	}

	slices.SortStableFunc(shops, func(a, b *models.Shop) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return shops, nil
}
