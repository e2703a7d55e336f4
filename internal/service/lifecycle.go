package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/internal/event"
	"github.com/vipogroup/vipo-orders/internal/repository"
)

var (
	orderStatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Total number of applied order status transitions",
		},
		[]string{"from", "to", "override"},
	)

	orderTransitionsBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_blocked_total",
			Help: "Total number of order status transitions denied by the transition graph",
		},
		[]string{"from", "to"},
	)
)

// OrderLifecycle is the single entry point for mutating an order's status and
// payment status. Webhook handlers, admin actions, and reconciliation jobs
// all go through ApplyStatusUpdate.
type OrderLifecycle struct {
	orders   repository.OrderRepository
	audit    repository.AuditLogRepository
	producer *event.Producer
	logger   *slog.Logger
}

// NewOrderLifecycle creates a new lifecycle orchestrator.
func NewOrderLifecycle(
	orders repository.OrderRepository,
	audit repository.AuditLogRepository,
	producer *event.Producer,
	logger *slog.Logger,
) *OrderLifecycle {
	return &OrderLifecycle{
		orders:   orders,
		audit:    audit,
		producer: producer,
		logger:   logger,
	}
}

// ApplyStatusUpdateInput holds the parameters for a status update.
type ApplyStatusUpdateInput struct {
	// Order is the already-loaded order document. When nil, OrderID is used
	// to load it.
	Order   *domain.Order
	OrderID string

	// NextStatus is the desired order status; legacy and gateway spellings
	// are accepted. Empty keeps the current status.
	NextStatus string

	// NextPaymentStatus is the desired payment status. Empty keeps the
	// current payment status (it is still coerced against NextStatus).
	NextPaymentStatus string

	Actor  domain.Actor
	Reason string

	// AllowIllegal forces the update through a denied transition. The forced
	// change is always written to the audit trail as a distinct override
	// entry. Callers decide which actor roles may set this.
	AllowIllegal bool

	// SkipTransitionCheck bypasses the transition guard entirely. Reserved
	// for trusted migration/backfill paths.
	SkipTransitionCheck bool

	Metadata map[string]string
}

// StatusUpdateResult summarizes an applied (or idempotently skipped) update.
type StatusUpdateResult struct {
	OrderID          string `json:"order_id"`
	OldStatus        string `json:"old_status"`
	NewStatus        string `json:"new_status"`
	OldPaymentStatus string `json:"old_payment_status"`
	NewPaymentStatus string `json:"new_payment_status"`
	Changed          bool   `json:"changed"`
}

// ApplyStatusUpdate runs the canonical status update pipeline: normalize the
// requested status, coerce the payment status, check the transition graph,
// re-assert the pair invariant, persist, settle commission exactly once, and
// write audit entries for every decision.
//
// A denied transition without AllowIllegal returns *domain.TransitionBlockedError
// and leaves the order untouched. An invariant violation after coercion
// returns *domain.InvariantError and indicates an upstream programming error.
func (l *OrderLifecycle) ApplyStatusUpdate(ctx context.Context, input ApplyStatusUpdateInput) (*StatusUpdateResult, error) {
	order := input.Order
	if order == nil {
		var err error
		order, err = l.orders.GetByID(ctx, input.OrderID)
		if err != nil {
			return nil, fmt.Errorf("load order %s: %w", input.OrderID, err)
		}
	}

	actor := input.Actor.OrDefault()
	oldStatus := order.Status
	oldPaymentStatus := order.PaymentStatus

	nextStatus := input.NextStatus
	if nextStatus == "" {
		nextStatus = order.Status
	}
	normalizedStatus := domain.NormalizeOrderStatus(nextStatus)

	candidatePayment := input.NextPaymentStatus
	if candidatePayment == "" {
		candidatePayment = order.PaymentStatus
	}
	coercedPayment := domain.CoercePaymentStatusForOrderStatus(normalizedStatus, candidatePayment)

	transitionAllowed := input.SkipTransitionCheck ||
		domain.CanTransitionOrderStatus(order.Status, normalizedStatus, domain.TransitionOptions{
			ActorRole: actor.Type,
		})

	if !transitionAllowed && !input.AllowIllegal {
		orderTransitionsBlocked.WithLabelValues(order.Status, normalizedStatus).Inc()
		l.writeAudit(ctx, &domain.AuditEntry{
			EventType:  domain.AuditTransitionBlocked,
			Severity:   domain.SeverityError,
			Actor:      actor,
			TargetType: "order",
			TargetID:   order.ID,
			Details: mergeDetails(input.Metadata, map[string]string{
				"from":   order.Status,
				"to":     normalizedStatus,
				"reason": orDefault(input.Reason, "transition blocked"),
			}),
		})
		return nil, &domain.TransitionBlockedError{OrderID: order.ID, From: order.Status, To: normalizedStatus}
	}

	// Defense in depth: the pair must be legal after coercion no matter which
	// path brought us here.
	status, paymentStatus, err := domain.AssertOrderStatusInvariant(normalizedStatus, coercedPayment)
	if err != nil {
		return nil, fmt.Errorf("order %s: %w", order.ID, err)
	}

	settleCommission := status == domain.OrderStatusPaid &&
		order.CommissionAmount > 0 &&
		!order.CommissionSettled

	changedStatus := oldStatus != status
	changedPayment := oldPaymentStatus != paymentStatus
	changed := changedStatus || changedPayment

	if changed || settleCommission {
		update := repository.StatusUpdate{
			Status:           status,
			PaymentStatus:    paymentStatus,
			SettleCommission: settleCommission,
			ExpectedStatus:   oldStatus,
			UpdatedAt:        time.Now().UTC(),
		}
		if status == domain.OrderStatusCancelled {
			update.CancelReason = input.Reason
		}
		if err := l.orders.UpdateStatus(ctx, order.ID, update); err != nil {
			return nil, fmt.Errorf("persist status update for order %s: %w", order.ID, err)
		}
	}

	override := !transitionAllowed && input.AllowIllegal
	if changedStatus {
		orderStatusTransitions.WithLabelValues(oldStatus, status, boolLabel(override)).Inc()
	}

	auditDetails := mergeDetails(input.Metadata, map[string]string{
		"old_status":         oldStatus,
		"new_status":         status,
		"old_payment_status": oldPaymentStatus,
		"new_payment_status": paymentStatus,
		"reason":             input.Reason,
	})

	if changedStatus {
		l.writeAudit(ctx, &domain.AuditEntry{
			EventType:  domain.AuditOrderStatusNormalized,
			Severity:   domain.SeverityInfo,
			Actor:      actor,
			TargetType: "order",
			TargetID:   order.ID,
			Details:    auditDetails,
		})
	}

	if requested := strings.ToLower(strings.TrimSpace(candidatePayment)); requested != paymentStatus {
		l.writeAudit(ctx, &domain.AuditEntry{
			EventType:  domain.AuditPaymentStatusCoerced,
			Severity:   domain.SeverityInfo,
			Actor:      actor,
			TargetType: "order",
			TargetID:   order.ID,
			Details: mergeDetails(auditDetails, map[string]string{
				"requested_payment_status": requested,
			}),
		})
	}

	if override {
		l.writeAudit(ctx, &domain.AuditEntry{
			EventType:  domain.AuditTransitionOverride,
			Severity:   domain.SeverityWarning,
			Actor:      actor,
			TargetType: "order",
			TargetID:   order.ID,
			Details: mergeDetails(auditDetails, map[string]string{
				"note": "illegal transition forced by override",
			}),
		})
	}

	if settleCommission {
		l.writeAudit(ctx, &domain.AuditEntry{
			EventType:  domain.AuditCommissionSettled,
			Severity:   domain.SeverityInfo,
			Actor:      actor,
			TargetType: "order",
			TargetID:   order.ID,
			Details: mergeDetails(input.Metadata, map[string]string{
				"commission_amount": fmt.Sprintf("%d", order.CommissionAmount),
				"agent_id":          order.AgentID,
			}),
		})
		if err := l.producer.PublishCommissionSettled(ctx, event.CommissionSettledData{
			OrderID:          order.ID,
			TenantID:         order.TenantID,
			AgentID:          order.AgentID,
			CommissionAmount: order.CommissionAmount,
		}); err != nil {
			l.logger.ErrorContext(ctx, "failed to publish commission.settled event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if changed {
		if err := l.producer.PublishOrderStatusChanged(ctx, event.OrderStatusChangedData{
			OrderID:          order.ID,
			TenantID:         order.TenantID,
			OldStatus:        oldStatus,
			NewStatus:        status,
			OldPaymentStatus: oldPaymentStatus,
			NewPaymentStatus: paymentStatus,
			Override:         override,
			Reason:           input.Reason,
		}); err != nil {
			l.logger.ErrorContext(ctx, "failed to publish order.status_changed event",
				slog.String("order_id", order.ID),
				slog.String("error", err.Error()),
			)
		}

		l.logger.InfoContext(ctx, "order status updated",
			slog.String("order_id", order.ID),
			slog.String("old_status", oldStatus),
			slog.String("new_status", status),
			slog.String("old_payment_status", oldPaymentStatus),
			slog.String("new_payment_status", paymentStatus),
			slog.Bool("override", override),
			slog.String("actor_type", actor.Type),
		)
	}

	return &StatusUpdateResult{
		OrderID:          order.ID,
		OldStatus:        oldStatus,
		NewStatus:        status,
		OldPaymentStatus: oldPaymentStatus,
		NewPaymentStatus: paymentStatus,
		Changed:          changed,
	}, nil
}

// writeAudit stores an audit entry. Audit failures are logged and swallowed;
// they never break the primary flow.
func (l *OrderLifecycle) writeAudit(ctx context.Context, entry *domain.AuditEntry) {
	entry.ID = uuid.New().String()
	entry.CreatedAt = time.Now().UTC()
	if err := l.audit.Create(ctx, entry); err != nil {
		l.logger.WarnContext(ctx, "audit log write failed",
			slog.String("event_type", entry.EventType),
			slog.String("target_id", entry.TargetID),
			slog.String("error", err.Error()),
		)
	}
}

func mergeDetails(base, extra map[string]string) map[string]string {
	merged := make(map[string]string, len(base)+len(extra))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range extra {
		if v != "" {
			merged[k] = v
		}
	}
	return merged
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
