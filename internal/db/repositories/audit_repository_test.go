package repositories

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/db/models"
)

var auditCols = []string{"id", "actor_id", "shop_id", "action", "table_name", "record_id", "changes", "created_at"}

func newAuditRepo(t *testing.T) (*AuditRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMockDB(t)
	return NewAuditRepository(db), mock
}

func TestInsertAuditLog_AssignsIDAndTime(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.AuditLog{
		ActorID:   uuid.New(),
		Action:    models.AuditActionStatusChange,
		TableName: models.TableShop,
		RecordID:  uuid.NewString(),
		Changes: models.AuditChanges{
			Fields: []models.FieldChange{{Field: "status", OldValue: "ACTIVE", NewValue: "INACTIVE"}},
		},
	}
	if err := repo.InsertAuditLog(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.ID == uuid.Nil || entry.CreatedAt.IsZero() {
		t.Errorf("ID/CreatedAt not assigned: %+v", entry)
	}
}

func TestInsertAuditLog_DBError(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errDB)

	if err := repo.InsertAuditLog(context.Background(), &models.AuditLog{ActorID: uuid.New()}); err == nil {
		t.Error("expected error")
	}
}

func TestQueryAuditLogs_NoFilters(t *testing.T) {
	repo, mock := newAuditRepo(t)
	mock.ExpectQuery("FROM audit_logs\\s+WHERE 1=1 ORDER BY created_at DESC, id DESC LIMIT \\$1").
		WithArgs(50).
		WillReturnRows(sqlmock.NewRows(auditCols).AddRow(
			uuid.NewString(), uuid.NewString(), nil, "LOGIN", "User", uuid.NewString(), []byte(`{}`), time.Now(),
		))

	logs, err := repo.QueryAuditLogs(context.Background(), models.AuditFilter{}, nil, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 || logs[0].ShopID != nil || logs[0].Action != models.AuditActionLogin {
		t.Errorf("unexpected logs %+v", logs)
	}
}

func TestQueryAuditLogs_FiltersAndCursor(t *testing.T) {
	repo, mock := newAuditRepo(t)
	actor, shop := uuid.New(), uuid.New()
	cursor := &models.AuditCursor{CreatedAt: time.Now(), ID: uuid.New()}

	mock.ExpectQuery("AND actor_id = \\$1 AND shop_id = \\$2 AND table_name = \\$3 AND record_id = \\$4 AND \\(created_at, id\\) < \\(\\$5, \\$6\\) ORDER BY created_at DESC, id DESC LIMIT \\$7").
		WithArgs(actor, shop, "Product", "p-1", cursor.CreatedAt, cursor.ID, 10).
		WillReturnRows(sqlmock.NewRows(auditCols).AddRow(
			uuid.NewString(), actor.String(), shop.String(), "UPDATE", "Product", "p-1",
			[]byte(`{"fields":[{"field":"price","old_value":"10","new_value":"12"}],"reason":"price correction"}`), time.Now(),
		))

	logs, err := repo.QueryAuditLogs(context.Background(), models.AuditFilter{
		ActorID: &actor, ShopID: &shop, TableName: "Product", RecordID: "p-1",
	}, cursor, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("len = %d, want 1", len(logs))
	}
	if logs[0].Changes.Reason != "price correction" || len(logs[0].Changes.Fields) != 1 {
		t.Errorf("changes not decoded: %+v", logs[0].Changes)
	}
}

func TestQueryAuditLogs_DateRange(t *testing.T) {
	repo, mock := newAuditRepo(t)
	from, to := time.Now().Add(-24*time.Hour), time.Now()
	mock.ExpectQuery("AND action = \\$1 AND created_at >= \\$2 AND created_at <= \\$3").
		WithArgs(models.AuditActionApprovalApplied, from, to, 5).
		WillReturnRows(sqlmock.NewRows(auditCols))

	logs, err := repo.QueryAuditLogs(context.Background(), models.AuditFilter{
		Action: models.AuditActionApprovalApplied, From: &from, To: &to,
	}, nil, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("expected no logs, got %d", len(logs))
	}
}
