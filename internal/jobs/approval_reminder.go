// Package jobs holds long-running background loops started by the server.
//
// approval_reminder.go implements ApprovalReminder, which periodically looks for approval requests
// that have stayed PENDING longer than a threshold and publishes an approval.reminder event for
// each through the notification sink, so owners hear about requests nobody has reviewed.
// Reminders are not persisted: a request still pending on the next tick is announced again.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopdesk/shopdesk/internal/db/models"
	"github.com/shopdesk/shopdesk/internal/notify"
)

// maxRemindersPerRun caps one run so a large backlog cannot flood the sink
const maxRemindersPerRun = 500

// StalePendingLister finds approval requests pending since before a cutoff
type StalePendingLister interface {
	ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]*models.ApprovalRequest, error)
}

// ApprovalReminder periodically announces long-pending approval requests
type ApprovalReminder struct {
	approvals StalePendingLister
	sink      notify.Sink
	after     time.Duration
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	stopChan  chan struct{}
}

// NewApprovalReminder creates an ApprovalReminder. Requests pending longer than after are
// announced every interval (default 1h).
func NewApprovalReminder(approvals StalePendingLister, sink notify.Sink, after, interval time.Duration, logger *slog.Logger) *ApprovalReminder {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ApprovalReminder{
		approvals: approvals,
		sink:      sink,
		after:     after,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
		stopChan:  make(chan struct{}),
	}
}

// Start runs a check immediately and then on every interval until ctx is cancelled or Stop is
// called. It returns at once when the reminder threshold is not positive.
func (r *ApprovalReminder) Start(ctx context.Context) {
	if r.after <= 0 {
		r.logger.Info("approval reminder disabled (approvals.reminder_after not set)")
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("approval reminder started", "interval", r.interval, "after", r.after)
	r.runCheck(ctx)

	for {
		select {
		case <-ticker.C:
			r.runCheck(ctx)
		case <-r.stopChan:
			r.logger.Info("approval reminder stopped")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop signals the loop to exit
func (r *ApprovalReminder) Stop() {
	close(r.stopChan)
}

// runCheck publishes one reminder per stale request and returns how many were delivered
func (r *ApprovalReminder) runCheck(ctx context.Context) int {
	now := r.now().UTC()
	reqs, err := r.approvals.ListStalePending(ctx, now.Add(-r.after), maxRemindersPerRun)
	if err != nil {
		r.logger.Error("approval reminder: failed to query pending requests", "error", err)
		return 0
	}
	if len(reqs) == 0 {
		return 0
	}

	sent := 0
	for _, req := range reqs {
		shopID := req.ShopID
		e := notify.NewEvent(notify.EventApprovalReminder, req.RequestedBy, &shopID, req.ID.String(), map[string]any{
			"type":           req.Type,
			"table_name":     req.TableName,
			"pending_since":  req.CreatedAt.UTC(),
			"pending_for_ms": now.Sub(req.CreatedAt).Milliseconds(),
		})
		if err := r.sink.Publish(ctx, e); err != nil {
			r.logger.Warn("approval reminder: delivery failed", "approval_id", req.ID, "shop_id", req.ShopID, "error", err)
			continue
		}
		sent++
	}
	r.logger.Info("approval reminders sent", "pending", len(reqs), "sent", sent)
	return sent
}
