package access

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/audit"
	"github.com/shopdesk/shopdesk/internal/auth"
	"github.com/shopdesk/shopdesk/internal/catalog"
	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/notify"
	"github.com/shopdesk/shopdesk/internal/telemetry"
)

// Decision is a reviewer's verdict on a pending request
type Decision string

const (
	DecisionApprove Decision = "APPROVE"
	DecisionReject  Decision = "REJECT"
)

const (
	defaultApprovalPageSize = 20
	maxApprovalPageSize     = 100
)

// SubmitInput is a proposed mutation. RecordID is required for UPDATE and DELETE and must be
// absent for CREATE.
type SubmitInput struct {
	Type      models.ApprovalType
	TableName string
	RecordID  *uuid.UUID
	Data      json.RawMessage
	Reason    string
}

// ListFilter narrows an approval listing. Page is 1-based.
type ListFilter struct {
	Status      *models.ApprovalStatus
	RequesterID *uuid.UUID
	Page        int
	PerPage     int
}

// ApprovalPage is one page of a listing
type ApprovalPage struct {
	Requests []*models.ApprovalRequest `json:"requests"`
	Total    int                       `json:"total"`
	Page     int                       `json:"page"`
	PerPage  int                       `json:"per_page"`
}

// Workflow is the approval state machine: PENDING → APPROVED → APPLIED, PENDING → REJECTED, and
// PENDING → APPLY_FAILED when an approved mutation can no longer be applied.
type Workflow struct {
	*core
}

// applyError carries a domain failure of the apply step out of the decision transaction
type applyError struct {
	err error
}

func (e *applyError) Error() string { return e.err.Error() }
func (e *applyError) Unwrap() error { return e.err }

// prepare validates a proposed mutation against the table registry and returns its table and the
// permission it requires.
func (c *core) prepare(in *SubmitInput) (catalog.Table, auth.Permission, error) {
	if !in.Type.Valid() {
		return nil, "", fmt.Errorf("%w: unknown mutation type %q", ErrInvalidInput, in.Type)
	}
	table, err := c.registry.Lookup(in.TableName)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	switch {
	case in.Type == models.ApprovalTypeCreate && in.RecordID != nil:
		return nil, "", fmt.Errorf("%w: create takes no record id", ErrInvalidInput)
	case in.Type != models.ApprovalTypeCreate && in.RecordID == nil:
		return nil, "", fmt.Errorf("%w: %s requires a record id", ErrInvalidInput, in.Type)
	}
	if len(bytes.TrimSpace(in.Data)) == 0 {
		in.Data = json.RawMessage("{}")
	}
	if err := table.Validate(in.Type, in.Data); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	perm, err := catalog.RequiredPermission(in.Type)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return table, perm, nil
}

// Submit queues a worker's mutation for owner review. It fails with ErrNotEligibleForApproval when
// the requester could apply the mutation directly.
func (w *Workflow) Submit(ctx context.Context, scope *TenantScope, requester auth.Principal, in SubmitInput) (*models.ApprovalRequest, error) {
	if err := requireActive(requester); err != nil {
		return nil, err
	}
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if requester.Role != auth.RoleShopWorker {
		return nil, fmt.Errorf("%w: only workers submit requests", ErrNotEligibleForApproval)
	}
	table, perm, err := w.prepare(&in)
	if err != nil {
		return nil, err
	}

	var (
		req *models.ApprovalRequest
		log *models.AuditLog
	)
	err = w.inTx(ctx, func(q Queries) error {
		if err := requireAssignment(ctx, q, requester, scope); err != nil {
			return err
		}
		direct, err := CanActDirectly(ctx, q, requester, scope, table.Module(), perm)
		if err != nil {
			return err
		}
		if direct {
			return fmt.Errorf("%w: %s on %s is granted", ErrNotEligibleForApproval, perm, table.Module())
		}
		if in.RecordID != nil {
			rec, err := table.Load(ctx, q, scope.ShopID(), *in.RecordID)
			if err != nil {
				return fmt.Errorf("failed to load %s: %w", table.Name(), err)
			}
			if rec == nil {
				return fmt.Errorf("%w: %s %s", ErrNotFound, table.Name(), in.RecordID)
			}
		}

		req = &models.ApprovalRequest{
			ShopID:      scope.ShopID(),
			RequestedBy: requester.ID,
			Type:        in.Type,
			TableName:   table.Name(),
			RecordID:    in.RecordID,
			RequestData: in.Data,
		}
		if in.Reason != "" {
			req.Reason = &in.Reason
		}
		if err := q.CreateApproval(ctx, req); err != nil {
			return err
		}

		log, err = w.record(ctx, q, audit.Entry{
			ActorID:   requester.ID,
			ShopID:    shopRef(req.ShopID),
			Action:    models.AuditActionRequestSubmitted,
			TableName: models.TableApprovalRequest,
			RecordID:  req.ID.String(),
			Changes: models.AuditChanges{
				Reason:    in.Reason,
				ChangedBy: requester.ID.String(),
				Extra:     requestExtra(req),
			},
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	telemetry.ApprovalRequestsSubmittedTotal.WithLabelValues(req.TableName).Inc()
	w.logger.Info("approval request submitted",
		"approval_id", req.ID, "shop_id", req.ShopID, "actor_id", requester.ID,
		"type", req.Type, "table", req.TableName)
	w.committed([]*models.AuditLog{log},
		notify.NewEvent(notify.EventApprovalSubmitted, requester.ID, shopRef(req.ShopID), req.ID.String(), requestExtra(req)))
	return req, nil
}

// Decide approves or rejects a pending request. Approval applies the proposed mutation in the same
// transaction that marks the request APPLIED. When the mutation can no longer be applied the
// request is moved to APPLY_FAILED and ErrStaleApprovalTarget is returned. Deciding a request that
// is no longer pending fails with ErrInvalidStateTransition.
func (w *Workflow) Decide(ctx context.Context, scope *TenantScope, reviewer auth.Principal, id uuid.UUID, outcome Decision, note string) (*models.ApprovalRequest, error) {
	if err := requireActive(reviewer); err != nil {
		return nil, err
	}
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if outcome != DecisionApprove && outcome != DecisionReject {
		return nil, fmt.Errorf("%w: unknown decision %q", ErrInvalidInput, outcome)
	}
	if !isShopAuthority(reviewer, scope) {
		return nil, fmt.Errorf("%w: only the shop owner or an admin can decide", ErrAccessDenied)
	}

	var (
		req *models.ApprovalRequest
		log *models.AuditLog
	)
	err := w.inTx(ctx, func(q Queries) error {
		var err error
		req, err = w.lockPending(ctx, q, scope, id)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		t := models.ApprovalTransition{ReviewedBy: &reviewer.ID, DecidedAt: &now}
		if note != "" {
			t.ReviewNote = &note
		}

		if outcome == DecisionReject {
			t.To = models.ApprovalStatusRejected
			if err := transition(ctx, q, req, models.ApprovalStatusPending, t); err != nil {
				return err
			}
			log, err = w.record(ctx, q, audit.Entry{
				ActorID:   reviewer.ID,
				ShopID:    shopRef(req.ShopID),
				Action:    models.AuditActionApprovalRejected,
				TableName: models.TableApprovalRequest,
				RecordID:  req.ID.String(),
				Changes: models.AuditChanges{
					Fields:    []models.FieldChange{{Field: "status", OldValue: models.ApprovalStatusPending, NewValue: models.ApprovalStatusRejected}},
					ChangedBy: reviewer.ID.String(),
					Note:      note,
					Extra:     requestExtra(req),
				},
			})
			return err
		}

		t.To = models.ApprovalStatusApproved
		if err := transition(ctx, q, req, models.ApprovalStatusPending, t); err != nil {
			return err
		}
		res, err := w.apply(ctx, q, req)
		if err != nil {
			return err
		}
		if err := transition(ctx, q, req, models.ApprovalStatusApproved, models.ApprovalTransition{To: models.ApprovalStatusApplied}); err != nil {
			return err
		}

		extra := requestExtra(req)
		extra["approval_id"] = req.ID.String()
		extra["reviewed_by"] = reviewer.ID.String()
		changes := models.AuditChanges{
			Fields:    res.Changes,
			ChangedBy: req.RequestedBy.String(),
			Note:      note,
			Extra:     extra,
		}
		if req.Reason != nil {
			changes.Reason = *req.Reason
		}
		log, err = w.record(ctx, q, audit.Entry{
			ActorID:   reviewer.ID,
			ShopID:    shopRef(req.ShopID),
			Action:    models.AuditActionApprovalApplied,
			TableName: req.TableName,
			RecordID:  res.RecordID.String(),
			Changes:   changes,
		})
		return err
	})

	var ae *applyError
	if errors.As(err, &ae) {
		return nil, w.markApplyFailed(ctx, scope, reviewer, id, note, ae.err)
	}
	if err != nil {
		return nil, err
	}

	telemetry.ApprovalDecisionsTotal.WithLabelValues(string(req.Status)).Inc()
	w.logger.Info("approval request decided",
		"approval_id", req.ID, "shop_id", req.ShopID, "actor_id", reviewer.ID, "status", req.Status)
	w.committed([]*models.AuditLog{log},
		notify.NewEvent(notify.EventApprovalDecided, reviewer.ID, shopRef(req.ShopID), req.ID.String(), map[string]any{
			"status":       req.Status,
			"requested_by": req.RequestedBy.String(),
			"table_name":   req.TableName,
		}))
	return req, nil
}

// lockPending loads and locks a request of the scoped shop, failing unless it is PENDING
func (w *Workflow) lockPending(ctx context.Context, q Queries, scope *TenantScope, id uuid.UUID) (*models.ApprovalRequest, error) {
	req, err := q.LockApproval(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	if req == nil || req.ShopID != scope.ShopID() {
		return nil, fmt.Errorf("%w: approval request %s", ErrNotFound, id)
	}
	if req.Status != models.ApprovalStatusPending {
		return nil, fmt.Errorf("%w: request is %s", ErrInvalidStateTransition, req.Status)
	}
	return req, nil
}

// apply revalidates and applies the stored mutation. Domain failures come back as *applyError.
func (w *Workflow) apply(ctx context.Context, q Queries, req *models.ApprovalRequest) (*catalog.Result, error) {
	table, err := w.registry.Lookup(req.TableName)
	if err != nil {
		return nil, &applyError{err: err}
	}
	if err := table.Validate(req.Type, req.RequestData); err != nil {
		return nil, &applyError{err: err}
	}
	res, err := table.Apply(ctx, q, catalog.Mutation{
		ShopID:   req.ShopID,
		Type:     req.Type,
		RecordID: req.RecordID,
		Data:     req.RequestData,
	})
	if errors.Is(err, catalog.ErrRecordNotFound) || errors.Is(err, catalog.ErrInvalidPayload) {
		return nil, &applyError{err: err}
	}
	return res, err
}

// markApplyFailed records, in a fresh transaction, that an approved request could not be applied
func (w *Workflow) markApplyFailed(ctx context.Context, scope *TenantScope, reviewer auth.Principal, id uuid.UUID, note string, cause error) error {
	reason := cause.Error()
	var (
		req *models.ApprovalRequest
		log *models.AuditLog
	)
	err := w.inTx(ctx, func(q Queries) error {
		var err error
		req, err = w.lockPending(ctx, q, scope, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		t := models.ApprovalTransition{
			To:            models.ApprovalStatusApplyFailed,
			ReviewedBy:    &reviewer.ID,
			FailureReason: &reason,
			DecidedAt:     &now,
		}
		if note != "" {
			t.ReviewNote = &note
		}
		if err := transition(ctx, q, req, models.ApprovalStatusPending, t); err != nil {
			return err
		}

		extra := requestExtra(req)
		extra["failure_reason"] = reason
		log, err = w.record(ctx, q, audit.Entry{
			ActorID:   reviewer.ID,
			ShopID:    shopRef(req.ShopID),
			Action:    models.AuditActionApprovalApplyFailed,
			TableName: models.TableApprovalRequest,
			RecordID:  req.ID.String(),
			Changes: models.AuditChanges{
				Fields:    []models.FieldChange{{Field: "status", OldValue: models.ApprovalStatusPending, NewValue: models.ApprovalStatusApplyFailed}},
				ChangedBy: reviewer.ID.String(),
				Note:      note,
				Extra:     extra,
			},
		})
		return err
	})
	if err != nil {
		return err
	}

	telemetry.ApprovalDecisionsTotal.WithLabelValues(string(models.ApprovalStatusApplyFailed)).Inc()
	w.logger.Warn("approved request could not be applied",
		"approval_id", req.ID, "shop_id", req.ShopID, "actor_id", reviewer.ID, "error", cause)
	w.committed([]*models.AuditLog{log},
		notify.NewEvent(notify.EventApprovalDecided, reviewer.ID, shopRef(req.ShopID), req.ID.String(), map[string]any{
			"status":         req.Status,
			"requested_by":   req.RequestedBy.String(),
			"table_name":     req.TableName,
			"failure_reason": reason,
		}))
	return fmt.Errorf("%w: %w", ErrStaleApprovalTarget, cause)
}

// List pages through the scoped shop's requests, newest first. Workers only see their own.
func (w *Workflow) List(ctx context.Context, scope *TenantScope, viewer auth.Principal, f ListFilter) (*ApprovalPage, error) {
	if err := requireActive(viewer); err != nil {
		return nil, err
	}
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *f.Status)
	}

	switch viewer.Role {
	case auth.RoleSuperAdmin, auth.RoleShopOwner:
		if !isShopAuthority(viewer, scope) {
			return nil, fmt.Errorf("%w: not the owner of shop %s", ErrAccessDenied, scope.ShopID())
		}
	case auth.RoleShopWorker:
		f.RequesterID = &viewer.ID
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrAccessDenied, viewer.Role)
	}

	if f.Page < 1 {
		f.Page = 1
	}
	if f.PerPage < 1 {
		f.PerPage = defaultApprovalPageSize
	}
	if f.PerPage > maxApprovalPageSize {
		f.PerPage = maxApprovalPageSize
	}

	reqs, total, err := w.store.Reader().ListApprovals(ctx, models.ApprovalFilter{
		ShopID:      scope.ShopID(),
		Status:      f.Status,
		RequesterID: f.RequesterID,
		Limit:       f.PerPage,
		Offset:      (f.Page - 1) * f.PerPage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list approval requests: %w", err)
	}
	if reqs == nil {
		reqs = []*models.ApprovalRequest{}
	}
	return &ApprovalPage{Requests: reqs, Total: total, Page: f.Page, PerPage: f.PerPage}, nil
}

// Get returns one request of the scoped shop. Workers can only read their own.
func (w *Workflow) Get(ctx context.Context, scope *TenantScope, viewer auth.Principal, id uuid.UUID) (*models.ApprovalRequest, error) {
	if err := requireActive(viewer); err != nil {
		return nil, err
	}
	if err := requireScope(scope); err != nil {
		return nil, err
	}
	req, err := w.store.Reader().GetApproval(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval request: %w", err)
	}
	if req == nil || req.ShopID != scope.ShopID() {
		return nil, fmt.Errorf("%w: approval request %s", ErrNotFound, id)
	}
	if viewer.Role == auth.RoleShopWorker && req.RequestedBy != viewer.ID {
		return nil, fmt.Errorf("%w: approval request %s", ErrNotFound, id)
	}
	if viewer.Role != auth.RoleShopWorker && !isShopAuthority(viewer, scope) {
		return nil, fmt.Errorf("%w: not the owner of shop %s", ErrAccessDenied, scope.ShopID())
	}
	return req, nil
}

// transition moves req from one status to another with a compare-and-swap and mirrors the change
// on req. Losing the swap means another decision won.
func transition(ctx context.Context, q Queries, req *models.ApprovalRequest, from models.ApprovalStatus, t models.ApprovalTransition) error {
	ok, err := q.TransitionApproval(ctx, req.ID, from, t)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: request is no longer %s", ErrInvalidStateTransition, from)
	}
	req.Status = t.To
	if t.ReviewedBy != nil {
		req.ReviewedBy = t.ReviewedBy
	}
	if t.ReviewNote != nil {
		req.ReviewNote = t.ReviewNote
	}
	if t.FailureReason != nil {
		req.FailureReason = t.FailureReason
	}
	if t.DecidedAt != nil {
		req.DecidedAt = t.DecidedAt
	}
	return nil
}

func requestExtra(req *models.ApprovalRequest) map[string]any {
	extra := map[string]any{
		"type":       req.Type,
		"table_name": req.TableName,
	}
	if req.RecordID != nil {
		extra["record_id"] = req.RecordID.String()
	}
	return extra
}
