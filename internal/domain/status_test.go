package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Normalization ---

func TestNormalizeOrderStatus_CanonicalPassThrough(t *testing.T) {
	for _, status := range OrderStatusValues() {
		assert.Equal(t, status, NormalizeOrderStatus(status))
	}
}

func TestNormalizeOrderStatus_LegacySynonyms(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"processing", OrderStatusPending},
		{"in-progress", OrderStatusPending},
		{"in_progress", OrderStatusPending},
		{"awaiting", OrderStatusPending},
		{"queued", OrderStatusPending},
		{"hold", OrderStatusPending},
		{"on-hold", OrderStatusPending},
		{"awaiting-payment", OrderStatusPending},
		{"awaiting_shipment", OrderStatusPending},
		{"success", OrderStatusPaid},
		{"approved", OrderStatusPaid},
		{"fulfilled", OrderStatusCompleted},
		{"shipped", OrderStatusCompleted},
		{"shipping", OrderStatusCompleted},
		{"delivered", OrderStatusCompleted},
		{"ready-for-pickup", OrderStatusCompleted},
		{"settled", OrderStatusCompleted},
		{"canceled", OrderStatusCancelled},
		{"void", OrderStatusCancelled},
		{"rejected", OrderStatusCancelled},
		{"declined", OrderStatusCancelled},
		{"abandoned", OrderStatusCancelled},
		{"expired", OrderStatusCancelled},
		{"failure", OrderStatusFailed},
		{"error", OrderStatusFailed},
		{"chargeback", OrderStatusFailed},
		{"dispute", OrderStatusFailed},
		{"lost", OrderStatusFailed},
		{"refunded", OrderStatusFailed},
		{"refund", OrderStatusFailed},
		{"partial-refund", OrderStatusFailed},
		{"partial_refund", OrderStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeOrderStatus(tt.raw))
		})
	}
}

func TestNormalizeOrderStatus_CaseAndWhitespace(t *testing.T) {
	assert.Equal(t, OrderStatusPaid, NormalizeOrderStatus("PAID"))
	assert.Equal(t, OrderStatusPaid, NormalizeOrderStatus("  Paid  "))
	assert.Equal(t, OrderStatusCompleted, NormalizeOrderStatus("\tDelivered\n"))
	assert.Equal(t, OrderStatusCancelled, NormalizeOrderStatus("CANCELED"))
}

func TestNormalizeOrderStatus_UnknownAndEmptyFallBackToPending(t *testing.T) {
	assert.Equal(t, OrderStatusPending, NormalizeOrderStatus(""))
	assert.Equal(t, OrderStatusPending, NormalizeOrderStatus("   "))
	assert.Equal(t, OrderStatusPending, NormalizeOrderStatus("banana"))
	assert.Equal(t, OrderStatusPending, NormalizeOrderStatus("???"))
	assert.Equal(t, OrderStatusPending, NormalizeOrderStatus("paid; DROP TABLE orders"))
}

// --- Payment status coercion ---

func TestCoercePaymentStatus_AllowedCandidatePassesThrough(t *testing.T) {
	for status, allowed := range AllowedPaymentStatuses() {
		for _, payment := range allowed {
			assert.Equal(t, payment, CoercePaymentStatusForOrderStatus(status, payment),
				"allowed candidate %q for %q must pass through", payment, status)
		}
	}
}

func TestCoercePaymentStatus_IllegalCandidateCoercesToFallback(t *testing.T) {
	tests := []struct {
		orderStatus   string
		paymentStatus string
		want          string
	}{
		{OrderStatusDraft, PaymentStatusSuccess, PaymentStatusPending},
		{OrderStatusPending, PaymentStatusFailed, PaymentStatusPending},
		{OrderStatusPaid, PaymentStatusPending, PaymentStatusSuccess},
		{OrderStatusPaid, PaymentStatusCancelled, PaymentStatusSuccess},
		{OrderStatusCompleted, PaymentStatusChargeback, PaymentStatusSuccess},
		{OrderStatusCancelled, PaymentStatusSuccess, PaymentStatusCancelled},
		{OrderStatusFailed, PaymentStatusSuccess, PaymentStatusFailed},
		{OrderStatusFailed, PaymentStatusPending, PaymentStatusFailed},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CoercePaymentStatusForOrderStatus(tt.orderStatus, tt.paymentStatus),
			"%s + %s", tt.orderStatus, tt.paymentStatus)
	}
}

func TestCoercePaymentStatus_UnknownCandidateCoercesToFallback(t *testing.T) {
	assert.Equal(t, PaymentStatusSuccess, CoercePaymentStatusForOrderStatus(OrderStatusPaid, "gibberish"))
	assert.Equal(t, PaymentStatusPending, CoercePaymentStatusForOrderStatus(OrderStatusDraft, ""))
	assert.Equal(t, PaymentStatusCancelled, CoercePaymentStatusForOrderStatus(OrderStatusCancelled, ""))
}

func TestCoercePaymentStatus_NormalizesOrderStatusFirst(t *testing.T) {
	// "delivered" normalizes to completed, so success is a legal candidate.
	assert.Equal(t, PaymentStatusSuccess, CoercePaymentStatusForOrderStatus("delivered", PaymentStatusSuccess))
	// "declined" normalizes to cancelled; success is illegal there.
	assert.Equal(t, PaymentStatusCancelled, CoercePaymentStatusForOrderStatus("declined", PaymentStatusSuccess))
}

// --- Invariant assertion ---

func TestAssertOrderStatusInvariant_AcceptsEveryAllowedPair(t *testing.T) {
	for status, allowed := range AllowedPaymentStatuses() {
		for _, payment := range allowed {
			gotStatus, gotPayment, err := AssertOrderStatusInvariant(status, payment)
			require.NoError(t, err, "%s + %s must be legal", status, payment)
			assert.Equal(t, status, gotStatus)
			assert.Equal(t, payment, gotPayment)
		}
	}
}

func TestAssertOrderStatusInvariant_RejectsIllegalPairs(t *testing.T) {
	tests := []struct {
		orderStatus   string
		paymentStatus string
	}{
		{OrderStatusDraft, PaymentStatusSuccess},
		{OrderStatusDraft, PaymentStatusFinalSuccess},
		{OrderStatusDraft, PaymentStatusFailed},
		{OrderStatusPending, PaymentStatusSuccess},
		{OrderStatusPending, PaymentStatusCancelled},
		{OrderStatusPaid, PaymentStatusFailed},
		{OrderStatusPaid, PaymentStatusPending},
		{OrderStatusPaid, PaymentStatusRefunded},
		{OrderStatusCompleted, PaymentStatusCancelled},
		{OrderStatusCompleted, PaymentStatusChargeback},
		{OrderStatusCancelled, PaymentStatusSuccess},
		{OrderStatusCancelled, PaymentStatusFailed},
		{OrderStatusFailed, PaymentStatusSuccess},
		{OrderStatusFailed, PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.orderStatus+"_"+tt.paymentStatus, func(t *testing.T) {
			_, _, err := AssertOrderStatusInvariant(tt.orderStatus, tt.paymentStatus)
			var invErr *InvariantError
			require.ErrorAs(t, err, &invErr)
			assert.Equal(t, tt.orderStatus, invErr.Status)
			assert.Equal(t, tt.paymentStatus, invErr.PaymentStatus)
			assert.Equal(t, CodeStatusInvariant, invErr.Code())
		})
	}
}

func TestAssertOrderStatusInvariant_RejectsUnknownStatuses(t *testing.T) {
	_, _, err := AssertOrderStatusInvariant("banana", PaymentStatusPending)
	var invErr *InvariantError
	require.ErrorAs(t, err, &invErr)

	_, _, err = AssertOrderStatusInvariant(OrderStatusPending, "gibberish")
	require.ErrorAs(t, err, &invErr)

	// The assertion does not repair legacy spellings.
	_, _, err = AssertOrderStatusInvariant("delivered", PaymentStatusSuccess)
	require.ErrorAs(t, err, &invErr)
}

func TestAssertOrderStatusInvariant_TrimsAndLowercases(t *testing.T) {
	status, payment, err := AssertOrderStatusInvariant("  PAID ", " Success ")
	require.NoError(t, err)
	assert.Equal(t, OrderStatusPaid, status)
	assert.Equal(t, PaymentStatusSuccess, payment)
}

// --- Transition graph ---

func TestCanTransitionOrderStatus_LegalEdges(t *testing.T) {
	for from, targets := range StatusTransitions() {
		for _, to := range targets {
			assert.True(t, CanTransitionOrderStatus(from, to, TransitionOptions{}),
				"%s -> %s must be legal", from, to)
		}
	}
}

func TestCanTransitionOrderStatus_IllegalEdges(t *testing.T) {
	tests := []struct {
		from string
		to   string
	}{
		{OrderStatusDraft, OrderStatusPaid},
		{OrderStatusDraft, OrderStatusCompleted},
		{OrderStatusDraft, OrderStatusFailed},
		{OrderStatusPending, OrderStatusDraft},
		{OrderStatusPending, OrderStatusCompleted},
		{OrderStatusPaid, OrderStatusDraft},
		{OrderStatusPaid, OrderStatusPending},
		{OrderStatusCompleted, OrderStatusPaid},
		{OrderStatusCompleted, OrderStatusCancelled},
		{OrderStatusCancelled, OrderStatusPending},
		{OrderStatusCancelled, OrderStatusPaid},
		{OrderStatusFailed, OrderStatusPaid},
		{OrderStatusFailed, OrderStatusCompleted},
	}

	for _, tt := range tests {
		assert.False(t, CanTransitionOrderStatus(tt.from, tt.to, TransitionOptions{}),
			"%s -> %s must be blocked", tt.from, tt.to)
	}
}

func TestCanTransitionOrderStatus_SelfTransitionsAlwaysLegal(t *testing.T) {
	for _, status := range OrderStatusValues() {
		assert.True(t, CanTransitionOrderStatus(status, status, TransitionOptions{}),
			"%s -> %s must be legal", status, status)
	}
}

func TestCanTransitionOrderStatus_TerminalStatusesHaveNoExits(t *testing.T) {
	terminals := []string{OrderStatusCompleted, OrderStatusCancelled, OrderStatusFailed}
	for _, from := range terminals {
		for _, to := range OrderStatusValues() {
			if from == to {
				continue
			}
			assert.False(t, CanTransitionOrderStatus(from, to, TransitionOptions{}),
				"terminal %s must not move to %s", from, to)
		}
	}
}

func TestCanTransitionOrderStatus_AdminOverrideBypassesGraph(t *testing.T) {
	opts := TransitionOptions{ActorRole: ActorTypeAdmin, IsAdminOverride: true}
	assert.True(t, CanTransitionOrderStatus(OrderStatusCompleted, OrderStatusPending, opts))
	assert.True(t, CanTransitionOrderStatus(OrderStatusCancelled, OrderStatusPaid, opts))
	assert.True(t, CanTransitionOrderStatus(OrderStatusDraft, OrderStatusCompleted, opts))
}

func TestCanTransitionOrderStatus_NormalizesInputs(t *testing.T) {
	// "approved" normalizes to paid, so pending -> approved follows pending -> paid.
	assert.True(t, CanTransitionOrderStatus(OrderStatusPending, "approved", TransitionOptions{}))
	// "delivered" normalizes to completed; draft -> completed stays illegal.
	assert.False(t, CanTransitionOrderStatus(OrderStatusDraft, "delivered", TransitionOptions{}))
	// Legacy spelling on both sides of a self-transition.
	assert.True(t, CanTransitionOrderStatus("canceled", "void", TransitionOptions{}))
}

// --- Table closure sanity ---

func TestAllowedPaymentStatuses_CoversEveryOrderStatus(t *testing.T) {
	table := AllowedPaymentStatuses()
	for _, status := range OrderStatusValues() {
		allowed, ok := table[status]
		require.True(t, ok, "order status %q missing from allowed table", status)
		require.NotEmpty(t, allowed)
		for _, payment := range allowed {
			assert.True(t, IsPaymentStatus(payment), "%q lists unknown payment status %q", status, payment)
		}
	}

	// The fallback for every status must itself be in that status's allowed set.
	for status, fallback := range fallbackPaymentStatus {
		assert.Contains(t, table[status], fallback)
	}
}

func TestStatusTransitions_TargetsAreCanonical(t *testing.T) {
	for from, targets := range StatusTransitions() {
		assert.True(t, IsOrderStatus(from))
		for _, to := range targets {
			assert.True(t, IsOrderStatus(to), "%s lists unknown target %s", from, to)
		}
	}
}

// --- Error taxonomy ---

func TestTransitionBlockedError_Fields(t *testing.T) {
	err := &TransitionBlockedError{OrderID: "order-1", From: OrderStatusDraft, To: OrderStatusPaid}
	assert.Equal(t, CodeTransitionBlocked, err.Code())
	assert.Contains(t, err.Error(), "draft")
	assert.Contains(t, err.Error(), "paid")

	var target *TransitionBlockedError
	assert.True(t, errors.As(err, &target))
}
