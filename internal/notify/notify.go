// Package notify emits domain events (approval submitted or decided, status cascaded) to external
// subscribers. Events are published only after the transaction that produced them has committed,
// and delivery failures are logged without affecting the caller.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopdesk/shopdesk/internal/safego"
)

// EventType names an event
type EventType string

const (
	EventApprovalSubmitted EventType = "approval.submitted"
	EventApprovalDecided   EventType = "approval.decided"
	EventStatusCascaded    EventType = "status.cascaded"
	EventApprovalReminder  EventType = "approval.reminder"
)

// Event is one committed occurrence. Subject is the id of the approval request or the entity whose
// status changed.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Type       EventType      `json:"type"`
	ShopID     *uuid.UUID     `json:"shop_id,omitempty"`
	ActorID    uuid.UUID      `json:"actor_id"`
	Subject    string         `json:"subject"`
	Data       map[string]any `json:"data,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// NewEvent stamps a new event
func NewEvent(typ EventType, actorID uuid.UUID, shopID *uuid.UUID, subject string, data map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Type:       typ,
		ShopID:     shopID,
		ActorID:    actorID,
		Subject:    subject,
		Data:       data,
		OccurredAt: time.Now().UTC(),
	}
}

// Sink delivers events to one destination
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink
type SinkFunc func(ctx context.Context, e Event) error

// Publish implements Sink
func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Dispatcher publishes events in the background. A nil Dispatcher drops events.
type Dispatcher struct {
	sink    Sink
	logger  *slog.Logger
	timeout time.Duration
}

// NewDispatcher wraps sink. timeout bounds each delivery (default 10s).
func NewDispatcher(sink Sink, logger *slog.Logger, timeout time.Duration) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Dispatcher{sink: sink, logger: logger, timeout: timeout}
}

// Dispatch hands events to the sink without blocking the caller
func (d *Dispatcher) Dispatch(events ...Event) {
	if d == nil || d.sink == nil || len(events) == 0 {
		return
	}
	safego.Go("notify-dispatch", func() {
		for _, e := range events {
			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			if err := d.sink.Publish(ctx, e); err != nil {
				d.logger.Warn("event delivery failed", "event_id", e.ID, "event_type", e.Type, "error", err)
			}
			cancel()
		}
	})
}
