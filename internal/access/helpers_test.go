package access_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/access"
	"github.com/shopdesk/shopdesk/internal/access/accesstest"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// fixture is one shop with an owner, an unprivileged worker and a product, plus an admin
type fixture struct {
	store   *accesstest.Store
	engine  *access.Engine
	admin   *models.User
	owner   *models.User
	worker  *models.User
	shop    *models.Shop
	product *models.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := accesstest.New()
	f := &fixture{
		store:  store,
		engine: newEngine(store),
		admin:  store.AddUser(auth.RoleSuperAdmin, auth.StatusActive),
		owner:  store.AddUser(auth.RoleShopOwner, auth.StatusActive),
		worker: store.AddUser(auth.RoleShopWorker, auth.StatusActive),
	}
	f.shop = store.AddShop(f.owner.ID, models.ShopStatusActive)
	store.Assign(f.worker.ID, f.shop.ID, true)
	f.product = store.AddProduct(f.shop.ID, "Pixel 9", decimal.RequireFromString("799.00"))
	return f
}

func newEngine(store *accesstest.Store) *access.Engine {
	return access.NewEngine(access.Deps{Store: store, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
}

// scope resolves u onto shopID and fails the test if that is not allowed
func (f *fixture) scope(t *testing.T, u *models.User, shopID uuid.UUID) *access.TenantScope {
	t.Helper()
	scope, err := f.engine.Resolver.Resolve(context.Background(), u.Principal(), &shopID)
	require.NoError(t, err)
	return scope
}

// submitUpdate has the fixture worker propose a product price change
func (f *fixture) submitUpdate(t *testing.T, price string) *models.ApprovalRequest {
	t.Helper()
	req, err := f.engine.Approvals.Submit(context.Background(), f.scope(t, f.worker, f.shop.ID), f.worker.Principal(), access.SubmitInput{
		Type:      models.ApprovalTypeUpdate,
		TableName: models.TableProduct,
		RecordID:  &f.product.ID,
		Data:      []byte(`{"price":"` + price + `"}`),
		Reason:    "price correction",
	})
	require.NoError(t, err)
	return req
}

func actions(logs []*models.AuditLog) []models.AuditAction {
	out := make([]models.AuditAction, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.Action)
	}
	return out
}
