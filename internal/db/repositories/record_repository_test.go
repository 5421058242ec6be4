package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopspring/decimal"
)

var productCols = []string{
	"id", "shop_id", "name", "brand", "model", "sku", "price", "cost_price", "stock_quantity",
	"created_at", "updated_at", "deleted_at",
}

func newRecordRepo(t *testing.T) (*RecordRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewRecordRepository(db), mock
}

func TestGetProduct_ScopedToShop(t *testing.T) {
	repo, mock := newRecordRepo(t)
	id, shop := uuid.New(), uuid.New()
	mock.ExpectQuery("FROM products\\s+WHERE id = \\$1 AND shop_id = \\$2 AND deleted_at IS NULL").
		WithArgs(id, shop).
		WillReturnRows(sqlmock.NewRows(productCols).AddRow(
			id.String(), shop.String(), "Galaxy A55", "Samsung", nil, "SKU-1", "349.90", "280.00", 4, time.Now(), time.Now(), nil,
		))

	p, err := repo.GetProduct(context.Background(), shop, id)
	if err != nil || p == nil {
		t.Fatalf("GetProduct = %v, %v", p, err)
	}
	if !p.Price.Equal(decimal.RequireFromString("349.90")) || p.StockQuantity != 4 {
		t.Errorf("unexpected product %+v", p)
	}
}

func TestGetProduct_SoftDeletedIsMissing(t *testing.T) {
	repo, mock := newRecordRepo(t)
	mock.ExpectQuery("FROM products").WillReturnRows(sqlmock.NewRows(productCols))

	p, err := repo.GetProduct(context.Background(), uuid.New(), uuid.New())
	if err != nil || p != nil {
		t.Errorf("GetProduct = %v, %v; want nil, nil", p, err)
	}
}

func TestUpdateProduct_ReportsMissingRow(t *testing.T) {
	repo, mock := newRecordRepo(t)
	mock.ExpectExec("UPDATE products").WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.UpdateProduct(context.Background(), &models.Product{ID: uuid.New(), ShopID: uuid.New(), Name: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected false for a missing row")
	}
}

func TestSoftDeleteProduct(t *testing.T) {
	repo, mock := newRecordRepo(t)
	id, shop := uuid.New(), uuid.New()
	mock.ExpectExec("UPDATE products SET deleted_at").
		WithArgs(sqlmock.AnyArg(), id, shop).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.SoftDeleteProduct(context.Background(), shop, id)
	if err != nil || !ok {
		t.Errorf("SoftDeleteProduct = %v, %v", ok, err)
	}
}

func TestInsertSupplier(t *testing.T) {
	repo, mock := newRecordRepo(t)
	mock.ExpectExec("INSERT INTO suppliers").WillReturnResult(sqlmock.NewResult(1, 1))

	s := &models.Supplier{ShopID: uuid.New(), Name: "Acme Distribution"}
	if err := repo.InsertSupplier(context.Background(), s); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.ID == uuid.Nil {
		t.Error("ID not assigned")
	}
}

func TestUpdateSupplier_DBError(t *testing.T) {
	repo, mock := newRecordRepo(t)
	mock.ExpectExec("UPDATE suppliers").WillReturnError(errDB)

	if _, err := repo.UpdateSupplier(context.Background(), &models.Supplier{ID: uuid.New()}); err == nil {
		t.Error("expected error")
	}
}
