package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

var assignmentCols = []string{"user_id", "shop_id", "is_active", "created_at", "updated_at"}
var grantCols = []string{"id", "user_id", "module", "permission", "is_active", "granted_by", "created_at", "updated_at"}

// ---------------------------------------------------------------------------
// Assignments
// ---------------------------------------------------------------------------

func TestGetAssignment_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssignmentRepository(db)
	mock.ExpectQuery("FROM worker_assignments WHERE user_id").WillReturnRows(sqlmock.NewRows(assignmentCols))

	a, err := repo.GetAssignment(context.Background(), uuid.New(), uuid.New())
	if err != nil || a != nil {
		t.Errorf("GetAssignment = %v, %v; want nil, nil", a, err)
	}
}

func TestUpsertAssignment_Reactivates(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssignmentRepository(db)
	user, shop := uuid.New(), uuid.New()
	mock.ExpectQuery("INSERT INTO worker_assignments.*ON CONFLICT \\(user_id, shop_id\\) DO UPDATE SET is_active = TRUE").
		WithArgs(user, shop, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(assignmentCols).AddRow(user.String(), shop.String(), true, time.Now().Add(-time.Hour), time.Now()))

	a := &models.WorkerAssignment{UserID: user, ShopID: shop}
	if err := repo.UpsertAssignment(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.IsActive {
		t.Error("assignment should be active")
	}
}

func TestListActiveAssignmentsByShop(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssignmentRepository(db)
	shop := uuid.New()
	mock.ExpectQuery("WHERE shop_id = \\$1 AND is_active").
		WithArgs(shop).
		WillReturnRows(sqlmock.NewRows(assignmentCols).
			AddRow(uuid.NewString(), shop.String(), true, time.Now(), time.Now()).
			AddRow(uuid.NewString(), shop.String(), true, time.Now(), time.Now()))

	list, err := repo.ListActiveAssignmentsByShop(context.Background(), shop)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 2 {
		t.Errorf("len = %d, want 2", len(list))
	}
}

func TestSetAssignmentActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewAssignmentRepository(db)
	user, shop := uuid.New(), uuid.New()
	mock.ExpectExec("UPDATE worker_assignments SET is_active").
		WithArgs(false, sqlmock.AnyArg(), user, shop).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SetAssignmentActive(context.Background(), user, shop, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Grants
// ---------------------------------------------------------------------------

func TestListGrants_ActiveOnly(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGrantRepository(db)
	user := uuid.New()
	mock.ExpectQuery("FROM permission_grants WHERE user_id = \\$1 AND is_active ORDER BY module, permission").
		WithArgs(user).
		WillReturnRows(sqlmock.NewRows(grantCols).
			AddRow(uuid.NewString(), user.String(), "PRODUCT_MANAGEMENT", "MANAGE", true, nil, time.Now(), time.Now()))

	grants, err := repo.ListGrants(context.Background(), user, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(grants) != 1 || grants[0].Permission != auth.PermissionManage || grants[0].GrantedBy != nil {
		t.Errorf("unexpected grants %+v", grants)
	}
}

func TestGetGrant_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGrantRepository(db)
	mock.ExpectQuery("FROM permission_grants").WillReturnRows(sqlmock.NewRows(grantCols))

	g, err := repo.GetGrant(context.Background(), uuid.New(), auth.ModuleProductManagement, auth.PermissionEdit)
	if err != nil || g != nil {
		t.Errorf("GetGrant = %v, %v; want nil, nil", g, err)
	}
}

func TestUpsertGrant(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGrantRepository(db)
	user, by := uuid.New(), uuid.New()
	mock.ExpectQuery("INSERT INTO permission_grants.*ON CONFLICT").
		WillReturnRows(sqlmock.NewRows(grantCols).
			AddRow(uuid.NewString(), user.String(), "SALES_MANAGEMENT", "CREATE", true, by.String(), time.Now(), time.Now()))

	g := &models.PermissionGrant{UserID: user, Module: auth.ModuleSalesManagement, Permission: auth.PermissionCreate, GrantedBy: &by}
	if err := repo.UpsertGrant(context.Background(), g); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !g.IsActive || g.GrantedBy == nil || *g.GrantedBy != by {
		t.Errorf("unexpected grant %+v", g)
	}
}

func TestDeactivateGrant_DBError(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewGrantRepository(db)
	mock.ExpectExec("UPDATE permission_grants SET is_active = FALSE").WillReturnError(errDB)

	if err := repo.DeactivateGrant(context.Background(), uuid.New()); err == nil {
		t.Error("expected error")
	}
}
