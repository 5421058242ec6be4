// Package models - approval_request.go defines the ApprovalRequest model for worker-proposed
// mutations awaiting an owner decision.
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ApprovalType is the kind of mutation proposed
type ApprovalType string

const (
	ApprovalTypeCreate ApprovalType = "CREATE"
	ApprovalTypeUpdate ApprovalType = "UPDATE"
	ApprovalTypeDelete ApprovalType = "DELETE"
)

// Valid reports whether t is a known approval type
func (t ApprovalType) Valid() bool {
	switch t {
	case ApprovalTypeCreate, ApprovalTypeUpdate, ApprovalTypeDelete:
		return true
	}
	return false
}

// ApprovalStatus represents the status of an approval request
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "PENDING"
	ApprovalStatusApproved ApprovalStatus = "APPROVED"
	ApprovalStatusRejected ApprovalStatus = "REJECTED"
	ApprovalStatusApplied  ApprovalStatus = "APPLIED"
	// ApprovalStatusApplyFailed marks a request that was approved but whose mutation could not be
	// applied. It is terminal; the requester must submit a fresh request.
	ApprovalStatusApplyFailed ApprovalStatus = "APPLY_FAILED"
)

// Valid reports whether s is a known approval status
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalStatusPending, ApprovalStatusApproved, ApprovalStatusRejected,
		ApprovalStatusApplied, ApprovalStatusApplyFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is possible
func (s ApprovalStatus) IsTerminal() bool {
	switch s {
	case ApprovalStatusRejected, ApprovalStatusApplied, ApprovalStatusApplyFailed:
		return true
	}
	return false
}

// ApprovalRequest represents a proposed mutation
type ApprovalRequest struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	ShopID      uuid.UUID       `db:"shop_id" json:"shop_id"`
	RequestedBy uuid.UUID       `db:"requested_by" json:"requested_by"`
	Type        ApprovalType    `db:"type" json:"type"`
	TableName   string          `db:"table_name" json:"table_name"`
	RecordID    *uuid.UUID      `db:"record_id" json:"record_id,omitempty"` // NULL for CREATE
	RequestData json.RawMessage `db:"request_data" json:"request_data"`
	Reason      *string         `db:"reason" json:"reason,omitempty"`
	Status      ApprovalStatus  `db:"status" json:"status"`

	// Decision details
	ReviewedBy    *uuid.UUID `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewNote    *string    `db:"review_note" json:"review_note,omitempty"`
	FailureReason *string    `db:"failure_reason" json:"failure_reason,omitempty"`

	CreatedAt time.Time  `db:"created_at" json:"created_at"`
	DecidedAt *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	UpdatedAt time.Time  `db:"updated_at" json:"updated_at"`

	// Joined from users on listing
	RequestedByName string `db:"requested_by_name" json:"requested_by_name,omitempty"`
}
