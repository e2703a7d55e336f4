package repository

import (
	"context"
	"time"

	"github.com/vipogroup/vipo-orders/internal/domain"
)

// OrderFilter defines filter criteria for listing orders.
type OrderFilter struct {
	TenantID *string
	AgentID  *string
	Status   *string
	Page     int
	PerPage  int
}

// StatusUpdate describes the persisted outcome of a lifecycle decision.
// ExpectedStatus is the order status read before the decision was made; the
// write only applies if the stored status still matches (compare-and-swap),
// so a racing update surfaces as a conflict instead of being silently lost.
type StatusUpdate struct {
	Status           string
	PaymentStatus    string
	SettleCommission bool
	CancelReason     string
	ExpectedStatus   string
	UpdatedAt        time.Time
}

// OrderRepository defines the interface for order persistence operations.
// Implementations must re-assert the status invariant on every write path.
type OrderRepository interface {
	// Create inserts a new order.
	Create(ctx context.Context, order *domain.Order) error

	// GetByID retrieves an order by its unique identifier.
	GetByID(ctx context.Context, id string) (*domain.Order, error)

	// List returns orders matching the given filter along with the total count.
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, int, error)

	// UpdateStatus applies a status update conditioned on update.ExpectedStatus.
	UpdateStatus(ctx context.Context, id string, update StatusUpdate) error
}

// PaymentEventRepository stores the append-only payment event log.
type PaymentEventRepository interface {
	// Create inserts a payment event. Inserting a duplicate event_id returns
	// an already-exists error.
	Create(ctx context.Context, event *domain.PaymentEvent) error

	// GetByEventID retrieves a payment event by its idempotency key.
	GetByEventID(ctx context.Context, eventID string) (*domain.PaymentEvent, error)

	// MarkStatus records the processing outcome of an event.
	MarkStatus(ctx context.Context, eventID, status, processingError string) error

	// ListByOrder returns all events for an order, newest first.
	ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentEvent, error)
}

// AuditLogRepository stores the append-only audit trail.
type AuditLogRepository interface {
	// Create inserts an audit entry.
	Create(ctx context.Context, entry *domain.AuditEntry) error

	// ListByTarget returns audit entries for a target, newest first.
	ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditEntry, error)
}
