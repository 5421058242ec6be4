package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

var shopCols = []string{"id", "owner_id", "name", "status", "created_at", "updated_at"}

func newShopRepo(t *testing.T) (*ShopRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewShopRepository(db), mock
}

func TestGetShop_Found(t *testing.T) {
	repo, mock := newShopRepo(t)
	id, owner := uuid.New(), uuid.New()
	mock.ExpectQuery("SELECT.*FROM shops s WHERE s.id").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(shopCols).AddRow(id.String(), owner.String(), "Main St", "ACTIVE", time.Now(), time.Now()))

	shop, err := repo.GetShop(context.Background(), id)
	if err != nil || shop == nil {
		t.Fatalf("GetShop = %v, %v", shop, err)
	}
	if shop.OwnerID != owner || !shop.IsActive() {
		t.Errorf("unexpected shop %+v", shop)
	}
}

func TestGetShop_NotFound(t *testing.T) {
	repo, mock := newShopRepo(t)
	mock.ExpectQuery("SELECT.*FROM shops").WillReturnRows(sqlmock.NewRows(shopCols))

	shop, err := repo.GetShop(context.Background(), uuid.New())
	if err != nil || shop != nil {
		t.Errorf("GetShop = %v, %v; want nil, nil", shop, err)
	}
}

func TestListShopsForWorker_JoinsActiveAssignments(t *testing.T) {
	repo, mock := newShopRepo(t)
	worker := uuid.New()
	rows := sqlmock.NewRows(shopCols).
		AddRow(uuid.NewString(), uuid.NewString(), "A", "ACTIVE", time.Now().Add(-time.Hour), time.Now()).
		AddRow(uuid.NewString(), uuid.NewString(), "B", "ACTIVE", time.Now(), time.Now())
	mock.ExpectQuery("JOIN worker_assignments wa.*wa.is_active AND s.status = 'ACTIVE'.*ORDER BY s.created_at ASC, s.id ASC").
		WithArgs(worker).
		WillReturnRows(rows)

	shops, err := repo.ListShopsForWorker(context.Background(), worker)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(shops) != 2 || shops[0].Name != "A" {
		t.Errorf("unexpected shops %+v", shops)
	}
}

func TestListActiveShops_Empty(t *testing.T) {
	repo, mock := newShopRepo(t)
	mock.ExpectQuery("WHERE s.status = 'ACTIVE'").WillReturnRows(sqlmock.NewRows(shopCols))

	shops, err := repo.ListActiveShops(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shops == nil || len(shops) != 0 {
		t.Errorf("expected empty non-nil slice, got %v", shops)
	}
}

func TestListShopsByOwner_DBError(t *testing.T) {
	repo, mock := newShopRepo(t)
	mock.ExpectQuery("WHERE s.owner_id").WillReturnError(errDB)

	if _, err := repo.ListShopsByOwner(context.Background(), uuid.New()); err == nil {
		t.Error("expected error")
	}
}

func TestUpdateShopStatus(t *testing.T) {
	repo, mock := newShopRepo(t)
	id := uuid.New()
	mock.ExpectExec("UPDATE shops SET status").
		WithArgs(models.ShopStatusInactive, sqlmock.AnyArg(), id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.UpdateShopStatus(context.Background(), id, models.ShopStatusInactive); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCreateShop_DefaultsActive(t *testing.T) {
	repo, mock := newShopRepo(t)
	mock.ExpectExec("INSERT INTO shops").WillReturnResult(sqlmock.NewResult(1, 1))

	shop := &models.Shop{OwnerID: uuid.New(), Name: "Kiosk"}
	if err := repo.CreateShop(context.Background(), shop); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if shop.Status != models.ShopStatusActive || shop.ID == uuid.Nil {
		t.Errorf("unexpected shop %+v", shop)
	}
}
