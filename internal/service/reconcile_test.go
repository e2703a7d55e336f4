package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vipogroup/vipo-orders/internal/domain"
	apperrors "github.com/vipogroup/vipo-orders/pkg/errors"
	pkgkafka "github.com/vipogroup/vipo-orders/pkg/kafka"
)

// --- Mock Payment Event Repository ---

type mockPaymentEventRepository struct {
	mock.Mock
}

func (m *mockPaymentEventRepository) Create(ctx context.Context, e *domain.PaymentEvent) error {
	args := m.Called(ctx, e)
	return args.Error(0)
}

func (m *mockPaymentEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.PaymentEvent, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PaymentEvent), args.Error(1)
}

func (m *mockPaymentEventRepository) MarkStatus(ctx context.Context, eventID, status, processingError string) error {
	args := m.Called(ctx, eventID, status, processingError)
	return args.Error(0)
}

func (m *mockPaymentEventRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentEvent, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PaymentEvent), args.Error(1)
}

// --- Test Helpers ---

func newTestReconciler(
	events *mockPaymentEventRepository,
	orders *mockOrderRepository,
	audit *mockAuditLogRepository,
) (*Reconciler, pkgkafka.IdempotencyStore) {
	logger := newTestLogger()
	lifecycle := NewOrderLifecycle(orders, audit, newTestEventProducer(logger), logger)
	seen := pkgkafka.NewMemoryIdempotencyStore(time.Hour)
	return NewReconciler(events, lifecycle, seen, logger), seen
}

func successEventInput(order *domain.Order) IngestPaymentEventInput {
	return IngestPaymentEventInput{
		EventID:       "evt-001",
		OrderID:       order.ID,
		TransactionID: "txn-001",
		Type:          domain.PaymentEventSuccess,
		Amount:        order.TotalAmount,
		Currency:      order.Currency,
		Source:        "tranzila",
	}
}

// --- Tests ---

func TestIngest_SuccessEventMovesOrderToPaid(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	reconciler, seen := newTestReconciler(events, orders, audit)
	ctx := context.Background()

	order := pendingOrder()
	input := successEventInput(order)

	events.On("Create", ctx, mock.AnythingOfType("*domain.PaymentEvent")).Return(nil)
	events.On("MarkStatus", ctx, input.EventID, domain.PaymentEventStatusProcessed, "").Return(nil)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	orders.On("UpdateStatus", ctx, order.ID, mock.AnythingOfType("repository.StatusUpdate")).Return(nil)
	audit.On("Create", ctx, mock.AnythingOfType("*domain.AuditEntry")).Return(nil)

	stored, err := reconciler.Ingest(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventStatusProcessed, stored.Status)
	assert.Equal(t, input.EventID, stored.EventID)

	// The event ID is now remembered for dedup.
	dup, err := seen.Contains(ctx, input.EventID)
	require.NoError(t, err)
	assert.True(t, dup)

	events.AssertExpectations(t)
	orders.AssertExpectations(t)
}

func TestIngest_DuplicateSeenEventSkipsProcessing(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	reconciler, seen := newTestReconciler(events, orders, audit)
	ctx := context.Background()

	order := pendingOrder()
	input := successEventInput(order)
	require.NoError(t, seen.Add(ctx, input.EventID))

	stored := &domain.PaymentEvent{EventID: input.EventID, Status: domain.PaymentEventStatusProcessed}
	events.On("GetByEventID", ctx, input.EventID).Return(stored, nil)

	got, err := reconciler.Ingest(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, stored, got)
	events.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_DuplicateStoredEventReturnsExisting(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	reconciler, _ := newTestReconciler(events, orders, audit)
	ctx := context.Background()

	order := pendingOrder()
	input := successEventInput(order)

	stored := &domain.PaymentEvent{EventID: input.EventID, Status: domain.PaymentEventStatusProcessed}
	events.On("Create", ctx, mock.AnythingOfType("*domain.PaymentEvent")).
		Return(apperrors.AlreadyExists("payment event", "event_id", input.EventID))
	events.On("GetByEventID", ctx, input.EventID).Return(stored, nil)

	got, err := reconciler.Ingest(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, stored, got)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_UnknownEventTypeIsIgnored(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	reconciler, _ := newTestReconciler(events, orders, audit)
	ctx := context.Background()

	order := pendingOrder()
	input := successEventInput(order)
	input.Type = "authorization_hold"

	events.On("Create", ctx, mock.AnythingOfType("*domain.PaymentEvent")).Return(nil)
	events.On("MarkStatus", ctx, input.EventID, domain.PaymentEventStatusIgnored, mock.AnythingOfType("string")).Return(nil)

	stored, err := reconciler.Ingest(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventStatusIgnored, stored.Status)
	orders.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestIngest_BlockedTransitionMarksEventFailed(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	reconciler, _ := newTestReconciler(events, orders, audit)
	ctx := context.Background()

	// A late success event after the order was already cancelled.
	order := pendingOrder()
	order.Status = domain.OrderStatusCancelled
	order.PaymentStatus = domain.PaymentStatusCancelled
	input := successEventInput(order)

	events.On("Create", ctx, mock.AnythingOfType("*domain.PaymentEvent")).Return(nil)
	events.On("MarkStatus", ctx, input.EventID, domain.PaymentEventStatusFailed, mock.AnythingOfType("string")).Return(nil)
	orders.On("GetByID", ctx, order.ID).Return(order, nil)
	audit.On("Create", ctx, mock.AnythingOfType("*domain.AuditEntry")).Return(nil)

	stored, err := reconciler.Ingest(ctx, input)

	require.NoError(t, err)
	assert.Equal(t, domain.PaymentEventStatusFailed, stored.Status)
	orders.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestIngest_RequiresEventAndOrderIDs(t *testing.T) {
	events := new(mockPaymentEventRepository)
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	reconciler, _ := newTestReconciler(events, orders, audit)
	ctx := context.Background()

	_, err := reconciler.Ingest(ctx, IngestPaymentEventInput{OrderID: "order-1"})
	require.Error(t, err)

	_, err = reconciler.Ingest(ctx, IngestPaymentEventInput{EventID: "evt-1"})
	require.Error(t, err)
}
