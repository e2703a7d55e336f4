package domain

import "strings"

// Canonical order statuses. These describe the business/fulfillment lifecycle
// of an order, not the payment gateway state (see payment statuses below).
const (
	OrderStatusDraft     = "draft"
	OrderStatusPending   = "pending"
	OrderStatusPaid      = "paid"
	OrderStatusCompleted = "completed"
	OrderStatusCancelled = "cancelled"
	OrderStatusFailed    = "failed"
)

// Payment statuses. The payment-gateway-facing state carried alongside the
// order status. Not every value is a legal resting state for every order
// status; AllowedPaymentStatuses is the single source of truth.
const (
	PaymentStatusPending       = "pending"
	PaymentStatusProcessing    = "processing"
	PaymentStatusInitiated     = "initiated"
	PaymentStatusSuccess       = "success"
	PaymentStatusFinalSuccess  = "final-success"
	PaymentStatusFailed        = "failed"
	PaymentStatusFinalFailed   = "final-failed"
	PaymentStatusCancelled     = "cancelled"
	PaymentStatusRefunded      = "refunded"
	PaymentStatusPartialRefund = "partial_refund"
	PaymentStatusChargeback    = "chargeback"
)

// OrderStatusValues returns all canonical order statuses.
func OrderStatusValues() []string {
	return []string{
		OrderStatusDraft,
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusCompleted,
		OrderStatusCancelled,
		OrderStatusFailed,
	}
}

// PaymentStatusValues returns all known payment statuses.
func PaymentStatusValues() []string {
	return []string{
		PaymentStatusPending,
		PaymentStatusProcessing,
		PaymentStatusInitiated,
		PaymentStatusSuccess,
		PaymentStatusFinalSuccess,
		PaymentStatusFailed,
		PaymentStatusFinalFailed,
		PaymentStatusCancelled,
		PaymentStatusRefunded,
		PaymentStatusPartialRefund,
		PaymentStatusChargeback,
	}
}

// IsOrderStatus checks if s is a canonical order status.
func IsOrderStatus(s string) bool {
	switch s {
	case OrderStatusDraft, OrderStatusPending, OrderStatusPaid,
		OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed:
		return true
	}
	return false
}

// IsPaymentStatus checks if s is a known payment status.
func IsPaymentStatus(s string) bool {
	switch s {
	case PaymentStatusPending, PaymentStatusProcessing, PaymentStatusInitiated,
		PaymentStatusSuccess, PaymentStatusFinalSuccess,
		PaymentStatusFailed, PaymentStatusFinalFailed,
		PaymentStatusCancelled, PaymentStatusRefunded,
		PaymentStatusPartialRefund, PaymentStatusChargeback:
		return true
	}
	return false
}

// AllowedPaymentStatuses defines which payment statuses are legal while an
// order is in a given status. Every legality decision in the codebase goes
// through this table; nothing may hand-roll these rules. An order status with
// no entry here is invalid input everywhere (fail closed).
func AllowedPaymentStatuses() map[string][]string {
	return map[string][]string{
		OrderStatusDraft:     {PaymentStatusPending, PaymentStatusProcessing, PaymentStatusInitiated},
		OrderStatusPending:   {PaymentStatusPending, PaymentStatusProcessing, PaymentStatusInitiated},
		OrderStatusPaid:      {PaymentStatusSuccess, PaymentStatusFinalSuccess},
		OrderStatusCompleted: {PaymentStatusSuccess, PaymentStatusFinalSuccess},
		OrderStatusCancelled: {PaymentStatusCancelled},
		OrderStatusFailed: {
			PaymentStatusFailed,
			PaymentStatusFinalFailed,
			PaymentStatusChargeback,
			PaymentStatusRefunded,
			PaymentStatusPartialRefund,
		},
	}
}

// fallbackPaymentStatus is the coercion target per order status when the
// candidate payment status is not legal for that status.
var fallbackPaymentStatus = map[string]string{
	OrderStatusDraft:     PaymentStatusPending,
	OrderStatusPending:   PaymentStatusPending,
	OrderStatusPaid:      PaymentStatusSuccess,
	OrderStatusCompleted: PaymentStatusSuccess,
	OrderStatusCancelled: PaymentStatusCancelled,
	OrderStatusFailed:    PaymentStatusFailed,
}

// StatusTransitions defines the legal forward edges of the order lifecycle.
// Self-transitions are always legal and are not listed. completed, cancelled,
// and failed are terminal.
func StatusTransitions() map[string][]string {
	return map[string][]string{
		OrderStatusDraft:     {OrderStatusPending, OrderStatusCancelled},
		OrderStatusPending:   {OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed},
		OrderStatusPaid:      {OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed},
		OrderStatusCompleted: {},
		OrderStatusCancelled: {},
		OrderStatusFailed:    {},
	}
}

// legacyStatusMap folds status strings from older storefront versions and
// external gateways onto the canonical set.
var legacyStatusMap = map[string]string{
	// pending variants
	"processing":        OrderStatusPending,
	"in-progress":       OrderStatusPending,
	"in_progress":       OrderStatusPending,
	"awaiting":          OrderStatusPending,
	"queued":            OrderStatusPending,
	"hold":              OrderStatusPending,
	"on-hold":           OrderStatusPending,
	"on_hold":           OrderStatusPending,
	"awaiting-payment":  OrderStatusPending,
	"awaiting_payment":  OrderStatusPending,
	"awaiting-shipment": OrderStatusPending,
	"awaiting_shipment": OrderStatusPending,
	// paid variants
	"success":  OrderStatusPaid,
	"approved": OrderStatusPaid,
	// completed variants
	"fulfilled":        OrderStatusCompleted,
	"shipped":          OrderStatusCompleted,
	"shipping":         OrderStatusCompleted,
	"delivered":        OrderStatusCompleted,
	"ready-for-pickup": OrderStatusCompleted,
	"ready_for_pickup": OrderStatusCompleted,
	"settled":          OrderStatusCompleted,
	// cancelled variants
	"canceled":  OrderStatusCancelled,
	"void":      OrderStatusCancelled,
	"rejected":  OrderStatusCancelled,
	"declined":  OrderStatusCancelled,
	"abandoned": OrderStatusCancelled,
	"expired":   OrderStatusCancelled,
	// failed variants
	"failure":        OrderStatusFailed,
	"error":          OrderStatusFailed,
	"chargeback":     OrderStatusFailed,
	"dispute":        OrderStatusFailed,
	"lost":           OrderStatusFailed,
	"refunded":       OrderStatusFailed,
	"refund":         OrderStatusFailed,
	"partial-refund": OrderStatusFailed,
	"partial_refund": OrderStatusFailed,
}

// NormalizeOrderStatus maps an arbitrary status string onto the canonical set.
// Matching is case-insensitive and tolerates surrounding whitespace. Unknown
// and empty input falls back to pending; the function never fails.
func NormalizeOrderStatus(raw string) string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return OrderStatusPending
	}
	if IsOrderStatus(normalized) {
		return normalized
	}
	if canonical, ok := legacyStatusMap[normalized]; ok {
		return canonical
	}
	return OrderStatusPending
}

// CoercePaymentStatusForOrderStatus forces a candidate payment status into a
// legal value for the given order status. A candidate already in the allowed
// set passes through unchanged; anything else (including unknown strings)
// coerces deterministically to the documented fallback for that order status.
func CoercePaymentStatusForOrderStatus(orderStatus, paymentStatus string) string {
	normalizedStatus := NormalizeOrderStatus(orderStatus)
	candidate := strings.ToLower(strings.TrimSpace(paymentStatus))

	for _, allowed := range AllowedPaymentStatuses()[normalizedStatus] {
		if candidate == allowed {
			return candidate
		}
	}
	return fallbackPaymentStatus[normalizedStatus]
}

// AssertOrderStatusInvariant re-validates that the (order status, payment
// status) pair is legal per AllowedPaymentStatuses. Unlike the normalizer and
// the coercer it does not repair its input: an unrecognized order status, an
// unrecognized payment status, or an out-of-table pair returns an
// *InvariantError, which callers must surface as a hard failure and never
// persist around. On success it returns the validated pair unchanged.
//
// The persistence layer re-invokes this on every write path so an illegal
// pair cannot reach storage even through code that bypasses the orchestrator.
func AssertOrderStatusInvariant(orderStatus, paymentStatus string) (string, string, error) {
	status := strings.ToLower(strings.TrimSpace(orderStatus))
	payment := strings.ToLower(strings.TrimSpace(paymentStatus))

	if !IsOrderStatus(status) || !IsPaymentStatus(payment) {
		return "", "", &InvariantError{Status: status, PaymentStatus: payment}
	}

	for _, allowed := range AllowedPaymentStatuses()[status] {
		if payment == allowed {
			return status, payment, nil
		}
	}
	return "", "", &InvariantError{Status: status, PaymentStatus: payment}
}

// TransitionOptions carries the actor context for a transition decision.
// Whether a given actor role is entitled to set IsAdminOverride is a policy
// decision made by the caller; the guard only reports the flag's effect.
type TransitionOptions struct {
	ActorRole       string
	IsAdminOverride bool
}

// CanTransitionOrderStatus reports whether the order status graph permits
// moving from one status to another. Same-status transitions are always
// permitted (idempotent no-ops), and an explicit admin override bypasses the
// graph. Pure predicate: no side effects, no audit writes.
func CanTransitionOrderStatus(from, to string, opts TransitionOptions) bool {
	normalizedFrom := NormalizeOrderStatus(from)
	normalizedTo := NormalizeOrderStatus(to)

	if normalizedFrom == normalizedTo {
		return true
	}
	if opts.IsAdminOverride {
		return true
	}

	for _, next := range StatusTransitions()[normalizedFrom] {
		if next == normalizedTo {
			return true
		}
	}
	return false
}
