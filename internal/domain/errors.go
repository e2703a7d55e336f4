package domain

import "fmt"

// Stable error codes for callers that need to branch on the failure kind
// (e.g. show "cannot transition" to a user vs. a generic server error).
const (
	CodeTransitionBlocked = "ORDER_TRANSITION_BLOCKED"
	CodeStatusInvariant   = "ORDER_STATUS_INVARIANT"
)

// TransitionBlockedError is returned when the transition guard denies a
// status change and no override was requested. It is a recoverable business
// rejection: the caller may retry with an admin override after review, or
// simply drop the requested change.
type TransitionBlockedError struct {
	OrderID string
	From    string
	To      string
}

func (e *TransitionBlockedError) Error() string {
	return fmt.Sprintf("order %s: transition from %q to %q is not allowed", e.OrderID, e.From, e.To)
}

// Code returns the stable discriminant for this error kind.
func (e *TransitionBlockedError) Code() string { return CodeTransitionBlocked }

// InvariantError is returned when an (order status, payment status) pair is
// illegal even after coercion, or when either value is outside its closed
// set. It indicates a programming error upstream, not a business rule
// violation; no retry is meaningful and the pair must never be persisted.
type InvariantError struct {
	Status        string
	PaymentStatus string
}

func (e *InvariantError) Error() string {
	if !IsOrderStatus(e.Status) {
		return fmt.Sprintf("invalid order status %q", e.Status)
	}
	if !IsPaymentStatus(e.PaymentStatus) {
		return fmt.Sprintf("invalid payment status %q", e.PaymentStatus)
	}
	return fmt.Sprintf("payment status %q is not allowed for order status %q", e.PaymentStatus, e.Status)
}

// Code returns the stable discriminant for this error kind.
func (e *InvariantError) Code() string { return CodeStatusInvariant }
