// Package models - filters.go defines the query filters shared by the repositories and the
// services that read approval requests and audit logs.
package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalFilter narrows an approval request listing. ShopID is mandatory.
type ApprovalFilter struct {
	ShopID      uuid.UUID
	Status      *ApprovalStatus
	RequesterID *uuid.UUID
	Limit       int
	Offset      int
}

// AuditFilter narrows an audit log query. Zero values mean "any".
type AuditFilter struct {
	ActorID   *uuid.UUID
	ShopID    *uuid.UUID
	TableName string
	RecordID  string
	Action    AuditAction
	From      *time.Time
	To        *time.Time
}

// AuditCursor is the keyset position of the last entry of a page. Pages are
// ordered by (created_at, id) descending.
type AuditCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// ApprovalTransition describes the fields written when a request leaves its current status.
// Nil fields keep their stored value.
type ApprovalTransition struct {
	To            ApprovalStatus
	ReviewedBy    *uuid.UUID
	ReviewNote    *string
	FailureReason *string
	DecidedAt     *time.Time
}
