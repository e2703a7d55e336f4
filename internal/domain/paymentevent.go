package domain

import "time"

// Payment gateway event types, as delivered by the payment provider webhook
// or the payment events topic.
const (
	PaymentEventInitiated     = "initiated"
	PaymentEventPending       = "pending"
	PaymentEventSuccess       = "success"
	PaymentEventFailed        = "failed"
	PaymentEventRefund        = "refund"
	PaymentEventPartialRefund = "partial_refund"
	PaymentEventChargeback    = "chargeback"
	PaymentEventCancelled     = "cancelled"
)

// Processing states for a stored payment event.
const (
	PaymentEventStatusReceived  = "received"
	PaymentEventStatusProcessed = "processed"
	PaymentEventStatusFailed    = "failed"
	PaymentEventStatusIgnored   = "ignored"
)

// PaymentEvent is an append-only record of a payment gateway event. EventID
// is the idempotency key: the same gateway event is never applied twice.
type PaymentEvent struct {
	ID            string    `json:"id"`
	EventID       string    `json:"event_id"`
	OrderID       string    `json:"order_id"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Type          string    `json:"type"`
	Amount        int64     `json:"amount"`
	Currency      string    `json:"currency"`
	Status        string    `json:"status"`
	Error         string    `json:"error,omitempty"`
	ProcessedAt   time.Time `json:"processed_at,omitzero"`
	CreatedAt     time.Time `json:"created_at"`
}

// StatusForPaymentEvent maps a gateway event type to the target
// (order status, payment status) pair the order should move to. The returned
// pair is always legal per AllowedPaymentStatuses. Unknown event types return
// ok=false and must be ignored by the caller.
func StatusForPaymentEvent(eventType string) (orderStatus, paymentStatus string, ok bool) {
	switch eventType {
	case PaymentEventInitiated:
		return OrderStatusPending, PaymentStatusInitiated, true
	case PaymentEventPending:
		return OrderStatusPending, PaymentStatusProcessing, true
	case PaymentEventSuccess:
		return OrderStatusPaid, PaymentStatusSuccess, true
	case PaymentEventFailed:
		return OrderStatusFailed, PaymentStatusFailed, true
	case PaymentEventRefund:
		return OrderStatusFailed, PaymentStatusRefunded, true
	case PaymentEventPartialRefund:
		return OrderStatusFailed, PaymentStatusPartialRefund, true
	case PaymentEventChargeback:
		return OrderStatusFailed, PaymentStatusChargeback, true
	case PaymentEventCancelled:
		return OrderStatusCancelled, PaymentStatusCancelled, true
	}
	return "", "", false
}
