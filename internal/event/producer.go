package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/vipogroup/vipo-orders/pkg/kafka"
)

// Kafka topic constants for order lifecycle events.
const (
	TopicOrderStatusChanged = "vipo.order.status_changed"
	TopicCommissionSettled  = "vipo.order.commission_settled"
	TopicPaymentEvents      = "vipo.payment.events"
)

// Aggregate type constant.
const AggregateTypeOrder = "order"

// Source identifier for events originating from this service.
const SourceOrderService = "vipo-orders"

// OrderStatusChangedData is the payload for an order.status_changed event.
type OrderStatusChangedData struct {
	OrderID          string `json:"order_id"`
	TenantID         string `json:"tenant_id"`
	OldStatus        string `json:"old_status"`
	NewStatus        string `json:"new_status"`
	OldPaymentStatus string `json:"old_payment_status"`
	NewPaymentStatus string `json:"new_payment_status"`
	Override         bool   `json:"override,omitempty"`
	Reason           string `json:"reason,omitempty"`
}

// CommissionSettledData is the payload for a commission.settled event.
type CommissionSettledData struct {
	OrderID          string `json:"order_id"`
	TenantID         string `json:"tenant_id"`
	AgentID          string `json:"agent_id,omitempty"`
	CommissionAmount int64  `json:"commission_amount"`
}

// PaymentEventData is the payload consumed from the payment events topic.
// The gateway adapter that produces it owns signature verification and field
// mapping; by the time it lands here it is already trusted.
type PaymentEventData struct {
	EventID       string `json:"event_id"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Type          string `json:"type"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Source        string `json:"source,omitempty"`
}

// Producer publishes order lifecycle events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the order lifecycle.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishOrderStatusChanged publishes an order.status_changed event.
func (p *Producer) PublishOrderStatusChanged(ctx context.Context, data OrderStatusChangedData) error {
	event, err := pkgkafka.NewEvent(TopicOrderStatusChanged, data.OrderID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create order.status_changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicOrderStatusChanged, event); err != nil {
		return fmt.Errorf("publish order.status_changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published order.status_changed event",
		slog.String("order_id", data.OrderID),
		slog.String("old_status", data.OldStatus),
		slog.String("new_status", data.NewStatus),
	)

	return nil
}

// PublishCommissionSettled publishes a commission.settled event.
func (p *Producer) PublishCommissionSettled(ctx context.Context, data CommissionSettledData) error {
	event, err := pkgkafka.NewEvent(TopicCommissionSettled, data.OrderID, AggregateTypeOrder, SourceOrderService, data)
	if err != nil {
		return fmt.Errorf("create commission.settled event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCommissionSettled, event); err != nil {
		return fmt.Errorf("publish commission.settled event: %w", err)
	}

	p.logger.DebugContext(ctx, "published commission.settled event",
		slog.String("order_id", data.OrderID),
		slog.String("agent_id", data.AgentID),
		slog.Int64("commission_amount", data.CommissionAmount),
	)

	return nil
}
