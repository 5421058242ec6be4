// Package models - audit_log.go defines the append-only AuditLog model. Entries carry a structured
// diff of the change and are written in the same transaction as the mutation they describe.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// AuditAction names the privileged transition an entry records
type AuditAction string

const (
	AuditActionCreate              AuditAction = "CREATE"
	AuditActionUpdate              AuditAction = "UPDATE"
	AuditActionDelete              AuditAction = "DELETE"
	AuditActionLogin               AuditAction = "LOGIN"
	AuditActionStatusChange        AuditAction = "STATUS_CHANGE"
	AuditActionRequestSubmitted    AuditAction = "REQUEST_SUBMITTED"
	AuditActionApprovalRejected    AuditAction = "APPROVAL_REJECTED"
	AuditActionApprovalApplied     AuditAction = "APPROVAL_APPLIED"
	AuditActionApprovalApplyFailed AuditAction = "APPROVAL_APPLY_FAILED"
	AuditActionPermissionGranted   AuditAction = "PERMISSION_GRANTED"
	AuditActionPermissionRevoked   AuditAction = "PERMISSION_REVOKED"
	AuditActionWorkerAssigned      AuditAction = "WORKER_ASSIGNED"
	AuditActionWorkerRemoved       AuditAction = "WORKER_REMOVED"
)

// Logical table names used in audit entries and approval requests
const (
	TableUser             = "User"
	TableShop             = "Shop"
	TableWorkerAssignment = "WorkerAssignment"
	TablePermissionGrant  = "PermissionGrant"
	TableApprovalRequest  = "ApprovalRequest"
	TableProduct          = "Product"
	TableSupplier         = "Supplier"
)

// FieldChange is one field-level difference
type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"old_value"`
	NewValue any    `json:"new_value"`
}

// AuditChanges is the structured diff stored in the changes JSONB column
type AuditChanges struct {
	Fields    []FieldChange  `json:"fields,omitempty"`
	Reason    string         `json:"reason,omitempty"`
	ChangedBy string         `json:"changed_by,omitempty"`
	Note      string         `json:"note,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// Value implements driver.Valuer
func (c AuditChanges) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner
func (c *AuditChanges) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = AuditChanges{}
		return nil
	case []byte:
		return json.Unmarshal(v, c)
	case string:
		return json.Unmarshal([]byte(v), c)
	default:
		return errors.New("audit changes: unsupported source type")
	}
}

// AuditLog represents an audit log entry
type AuditLog struct {
	ID        uuid.UUID    `db:"id" json:"id"`
	ActorID   uuid.UUID    `db:"actor_id" json:"actor_id"`
	ShopID    *uuid.UUID   `db:"shop_id" json:"shop_id,omitempty"`
	Action    AuditAction  `db:"action" json:"action"`
	TableName string       `db:"table_name" json:"table_name"`
	RecordID  string       `db:"record_id" json:"record_id"`
	Changes   AuditChanges `db:"changes" json:"changes"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}
