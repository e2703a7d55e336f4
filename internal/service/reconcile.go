package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/internal/repository"
	apperrors "github.com/vipogroup/vipo-orders/pkg/errors"
	pkgkafka "github.com/vipogroup/vipo-orders/pkg/kafka"
)

// Reconciler ingests payment gateway events and drives the order lifecycle
// from them. Events are deduplicated by their idempotency key, persisted to
// the append-only payment event log, and then translated into a status
// update.
type Reconciler struct {
	events    repository.PaymentEventRepository
	lifecycle *OrderLifecycle
	seen      pkgkafka.IdempotencyStore
	logger    *slog.Logger
}

// NewReconciler creates a payment event reconciler.
func NewReconciler(
	events repository.PaymentEventRepository,
	lifecycle *OrderLifecycle,
	seen pkgkafka.IdempotencyStore,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		events:    events,
		lifecycle: lifecycle,
		seen:      seen,
		logger:    logger,
	}
}

// IngestPaymentEventInput is a trusted, already-verified gateway event.
type IngestPaymentEventInput struct {
	EventID       string
	OrderID       string
	TransactionID string
	Type          string
	Amount        int64
	Currency      string
	Source        string
}

// Ingest processes one payment gateway event. Duplicates are skipped, unknown
// event types are stored and marked ignored, and a transition rejected by the
// lifecycle marks the event failed without crashing ingestion (the event
// stays queryable for operators). Infrastructure errors propagate.
func (r *Reconciler) Ingest(ctx context.Context, input IngestPaymentEventInput) (*domain.PaymentEvent, error) {
	if input.EventID == "" {
		return nil, apperrors.InvalidInput("event_id is required")
	}
	if input.OrderID == "" {
		return nil, apperrors.InvalidInput("order_id is required")
	}

	if dup, err := r.seen.Contains(ctx, input.EventID); err != nil {
		// A broken dedup store must not drop payments; fall through to the
		// unique event_id constraint.
		r.logger.WarnContext(ctx, "idempotency store lookup failed",
			slog.String("event_id", input.EventID),
			slog.String("error", err.Error()),
		)
	} else if dup {
		r.logger.InfoContext(ctx, "skipping duplicate payment event",
			slog.String("event_id", input.EventID),
			slog.String("order_id", input.OrderID),
		)
		return r.events.GetByEventID(ctx, input.EventID)
	}

	paymentEvent := &domain.PaymentEvent{
		ID:            uuid.New().String(),
		EventID:       input.EventID,
		OrderID:       input.OrderID,
		TransactionID: input.TransactionID,
		Type:          input.Type,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Status:        domain.PaymentEventStatusReceived,
		CreatedAt:     time.Now().UTC(),
	}

	if err := r.events.Create(ctx, paymentEvent); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			r.logger.InfoContext(ctx, "payment event already stored, skipping",
				slog.String("event_id", input.EventID),
			)
			return r.events.GetByEventID(ctx, input.EventID)
		}
		return nil, fmt.Errorf("store payment event: %w", err)
	}

	nextStatus, nextPaymentStatus, ok := domain.StatusForPaymentEvent(input.Type)
	if !ok {
		r.logger.WarnContext(ctx, "unknown payment event type, ignoring",
			slog.String("event_id", input.EventID),
			slog.String("type", input.Type),
		)
		r.markEvent(ctx, paymentEvent, domain.PaymentEventStatusIgnored, fmt.Sprintf("unknown event type %q", input.Type))
		return paymentEvent, nil
	}

	source := input.Source
	if source == "" {
		source = "gateway"
	}

	_, err := r.lifecycle.ApplyStatusUpdate(ctx, ApplyStatusUpdateInput{
		OrderID:           input.OrderID,
		NextStatus:        nextStatus,
		NextPaymentStatus: nextPaymentStatus,
		Actor:             domain.WebhookActor(source),
		Reason:            fmt.Sprintf("payment event %s", input.Type),
		Metadata: map[string]string{
			"event_id":       input.EventID,
			"transaction_id": input.TransactionID,
		},
	})
	if err != nil {
		var blocked *domain.TransitionBlockedError
		if errors.As(err, &blocked) {
			// The order already moved past this event (e.g. a late success
			// after a cancel). Record and move on.
			r.logger.WarnContext(ctx, "payment event rejected by transition guard",
				slog.String("event_id", input.EventID),
				slog.String("order_id", input.OrderID),
				slog.String("from", blocked.From),
				slog.String("to", blocked.To),
			)
			r.markEvent(ctx, paymentEvent, domain.PaymentEventStatusFailed, blocked.Error())
			return paymentEvent, nil
		}
		r.markEvent(ctx, paymentEvent, domain.PaymentEventStatusFailed, err.Error())
		return nil, fmt.Errorf("apply payment event %s: %w", input.EventID, err)
	}

	r.markEvent(ctx, paymentEvent, domain.PaymentEventStatusProcessed, "")

	if err := r.seen.Add(ctx, input.EventID); err != nil {
		r.logger.WarnContext(ctx, "failed to record event in idempotency store",
			slog.String("event_id", input.EventID),
			slog.String("error", err.Error()),
		)
	}

	return paymentEvent, nil
}

// OrderPaymentEvents returns the stored payment events for an order, newest
// first.
func (r *Reconciler) OrderPaymentEvents(ctx context.Context, orderID string) ([]domain.PaymentEvent, error) {
	events, err := r.events.ListByOrder(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	return events, nil
}

// markEvent records the processing outcome on the stored event. Failures are
// logged, not escalated: the primary update already happened (or was
// deliberately rejected).
func (r *Reconciler) markEvent(ctx context.Context, e *domain.PaymentEvent, status, processingError string) {
	e.Status = status
	e.Error = processingError
	e.ProcessedAt = time.Now().UTC()
	if err := r.events.MarkStatus(ctx, e.EventID, status, processingError); err != nil {
		r.logger.WarnContext(ctx, "failed to mark payment event status",
			slog.String("event_id", e.EventID),
			slog.String("status", status),
			slog.String("error", err.Error()),
		)
	}
}
