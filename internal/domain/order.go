package domain

import "time"

// Order represents a storefront order with its lifecycle and commission state.
// Amounts are in minor currency units (agorot/cents).
type Order struct {
	ID                string    `json:"id"`
	TenantID          string    `json:"tenant_id"`
	UserID            string    `json:"user_id"`
	AgentID           string    `json:"agent_id,omitempty"`
	Status            string    `json:"status"`
	PaymentStatus     string    `json:"payment_status"`
	SubtotalAmount    int64     `json:"subtotal_amount"`
	TotalAmount       int64     `json:"total_amount"`
	Currency          string    `json:"currency"`
	CommissionAmount  int64     `json:"commission_amount"`
	CommissionSettled bool      `json:"commission_settled"`
	Notes             string    `json:"notes,omitempty"`
	CancelReason      string    `json:"cancel_reason,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// CanTransitionTo checks if the order can move to the target status without
// an override.
func (o *Order) CanTransitionTo(target string) bool {
	return CanTransitionOrderStatus(o.Status, target, TransitionOptions{})
}

// IsTerminal reports whether the order is in a terminal lifecycle status.
func (o *Order) IsTerminal() bool {
	switch NormalizeOrderStatus(o.Status) {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// Actor types.
const (
	ActorTypeSystem  = "system"
	ActorTypeUser    = "user"
	ActorTypeAdmin   = "admin"
	ActorTypeWebhook = "webhook"
)

// Actor identifies who requested an order mutation. It is attached to every
// audit entry.
type Actor struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Email string `json:"email,omitempty"`
}

// SystemActor returns the actor used for internal jobs and defaults.
func SystemActor() Actor {
	return Actor{Type: ActorTypeSystem}
}

// AdminActor returns an actor for an authenticated admin user.
func AdminActor(id, email string) Actor {
	return Actor{Type: ActorTypeAdmin, ID: id, Email: email}
}

// WebhookActor returns an actor for an inbound gateway webhook. The id names
// the source gateway.
func WebhookActor(source string) Actor {
	return Actor{Type: ActorTypeWebhook, ID: source}
}

// OrDefault returns the actor, substituting the system actor when the type is
// unset.
func (a Actor) OrDefault() Actor {
	if a.Type == "" {
		return SystemActor()
	}
	return a
}
