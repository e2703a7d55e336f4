package domain

import "time"

// Audit event types emitted by the order lifecycle.
const (
	AuditOrderStatusNormalized = "order.status_normalized"
	AuditPaymentStatusCoerced  = "order.payment_coerced"
	AuditTransitionBlocked     = "order.transition_blocked"
	AuditTransitionOverride    = "order.transition_override"
	AuditCommissionSettled     = "commission.settled"
)

// Audit severities.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// AuditEntry is an append-only record of a lifecycle decision: every
// normalization-triggered correction, every blocked transition, and every
// forced override. Overrides are always distinguishable from normal changes
// by event type for compliance review.
type AuditEntry struct {
	ID         string            `json:"id"`
	EventType  string            `json:"event_type"`
	Severity   string            `json:"severity"`
	Actor      Actor             `json:"actor"`
	TargetType string            `json:"target_type"`
	TargetID   string            `json:"target_id"`
	Details    map[string]string `json:"details,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}
