package access

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/catalog"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

// Queries is the persistence surface the access services run against. Lookups return (nil, nil)
// when nothing matches. Lock* variants hold a row lock until the enclosing transaction ends.
type Queries interface {
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	LockUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdateUserStatus(ctx context.Context, id uuid.UUID, status auth.Status) error

	GetShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	LockShop(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	ListActiveShops(ctx context.Context) ([]*models.Shop, error)
	ListShopsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*models.Shop, error)
	ListShopsForWorker(ctx context.Context, workerID uuid.UUID) ([]*models.Shop, error)
	UpdateShopStatus(ctx context.Context, id uuid.UUID, status models.ShopStatus) error

	GetAssignment(ctx context.Context, userID, shopID uuid.UUID) (*models.WorkerAssignment, error)
	ListActiveAssignmentsByShop(ctx context.Context, shopID uuid.UUID) ([]*models.WorkerAssignment, error)
	ListAssignmentsByWorker(ctx context.Context, userID uuid.UUID) ([]*models.WorkerAssignment, error)
	UpsertAssignment(ctx context.Context, a *models.WorkerAssignment) error
	SetAssignmentActive(ctx context.Context, userID, shopID uuid.UUID, active bool) error

	ListGrants(ctx context.Context, userID uuid.UUID, activeOnly bool) ([]*models.PermissionGrant, error)
	GetGrant(ctx context.Context, userID uuid.UUID, module auth.Module, perm auth.Permission) (*models.PermissionGrant, error)
	UpsertGrant(ctx context.Context, g *models.PermissionGrant) error
	DeactivateGrant(ctx context.Context, id uuid.UUID) error

	CreateApproval(ctx context.Context, req *models.ApprovalRequest) error
	GetApproval(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error)
	LockApproval(ctx context.Context, id uuid.UUID) (*models.ApprovalRequest, error)
	TransitionApproval(ctx context.Context, id uuid.UUID, from models.ApprovalStatus, t models.ApprovalTransition) (bool, error)
	ListApprovals(ctx context.Context, f models.ApprovalFilter) ([]*models.ApprovalRequest, int, error)

	audit.Writer
	audit.Reader
	catalog.Records
}

// Store is the unit of work. WithinTx commits only when fn returns nil; every mutation and its
// audit entries written through q commit or roll back together.
type Store interface {
	Reader() Queries
	WithinTx(ctx context.Context, fn func(q Queries) error) error
}
