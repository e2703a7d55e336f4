package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/internal/repository"
	apperrors "github.com/vipogroup/vipo-orders/pkg/errors"
)

func newTestOrderService(orders *mockOrderRepository, audit *mockAuditLogRepository) *OrderService {
	logger := newTestLogger()
	lifecycle := NewOrderLifecycle(orders, audit, newTestEventProducer(logger), logger)
	return NewOrderService(orders, audit, lifecycle, logger)
}

func TestCreateOrder_Success(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		TenantID:         "tenant-1",
		UserID:           "user-1",
		AgentID:          "agent-1",
		Currency:         "ils",
		SubtotalAmount:   9000,
		TotalAmount:      10000,
		CommissionAmount: 750,
		Notes:            "gift wrap",
	})

	require.NoError(t, err)
	assert.NotEmpty(t, order.ID)
	assert.Equal(t, domain.OrderStatusDraft, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "ILS", order.Currency)
	assert.False(t, order.CommissionSettled)
	assert.NotZero(t, order.CreatedAt)

	orders.AssertExpectations(t)
}

func TestCreateOrder_NormalizesRequestedStatus(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	orders.On("Create", ctx, mock.AnythingOfType("*domain.Order")).Return(nil)

	// "awaiting" is a legacy spelling of pending.
	order, err := svc.CreateOrder(ctx, CreateOrderInput{
		TenantID: "tenant-1",
		UserID:   "user-1",
		Status:   "Awaiting",
		Currency: "USD",
	})

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, order.Status)
}

func TestCreateOrder_RejectsNonInitialStatus(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	_, err := svc.CreateOrder(ctx, CreateOrderInput{
		TenantID: "tenant-1",
		UserID:   "user-1",
		Status:   domain.OrderStatusPaid,
		Currency: "USD",
	})

	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
	orders.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestCreateOrder_Validation(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	tests := []struct {
		name  string
		input CreateOrderInput
	}{
		{"missing tenant", CreateOrderInput{UserID: "u", Currency: "USD"}},
		{"missing user", CreateOrderInput{TenantID: "t", Currency: "USD"}},
		{"bad currency", CreateOrderInput{TenantID: "t", UserID: "u", Currency: "DOLLARS"}},
		{"negative total", CreateOrderInput{TenantID: "t", UserID: "u", Currency: "USD", TotalAmount: -1}},
		{"negative commission", CreateOrderInput{TenantID: "t", UserID: "u", Currency: "USD", CommissionAmount: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateOrder(ctx, tt.input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
		})
	}
}

func TestGetOrder_NotFound(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	orders.On("GetByID", ctx, "missing").Return(nil, apperrors.NotFound("order", "missing"))

	_, err := svc.GetOrder(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestListOrders_ClampsPagination(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	var captured repository.OrderFilter
	orders.On("List", ctx, mock.AnythingOfType("repository.OrderFilter")).
		Run(func(args mock.Arguments) {
			captured = args.Get(1).(repository.OrderFilter)
		}).
		Return([]domain.Order{}, 0, nil)

	_, _, err := svc.ListOrders(ctx, repository.OrderFilter{Page: -3, PerPage: 5000})
	require.NoError(t, err)
	assert.Equal(t, 1, captured.Page)
	assert.Equal(t, 100, captured.PerPage)
}

func TestCancelOrder_GoesThroughLifecycle(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	order := pendingOrder()
	orders.On("GetByID", ctx, order.ID).Return(order, nil)

	var captured repository.StatusUpdate
	orders.On("UpdateStatus", ctx, order.ID, mock.AnythingOfType("repository.StatusUpdate")).
		Run(func(args mock.Arguments) {
			captured = args.Get(2).(repository.StatusUpdate)
		}).
		Return(nil)
	audit.On("Create", ctx, mock.AnythingOfType("*domain.AuditEntry")).Return(nil)

	result, err := svc.CancelOrder(ctx, order.ID, "out of stock", domain.SystemActor())

	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, result.NewStatus)
	assert.Equal(t, "out of stock", captured.CancelReason)
}

func TestOrderAuditTrail_ClampsLimit(t *testing.T) {
	orders := new(mockOrderRepository)
	audit := new(mockAuditLogRepository)
	svc := newTestOrderService(orders, audit)
	ctx := context.Background()

	audit.On("ListByTarget", ctx, "order", "order-1", 50).Return([]domain.AuditEntry{}, nil)

	_, err := svc.OrderAuditTrail(ctx, "order-1", 0)
	require.NoError(t, err)
	audit.AssertExpectations(t)

	audit.On("ListByTarget", ctx, "order", "order-2", 50).Return([]domain.AuditEntry{}, nil)
	_, err = svc.OrderAuditTrail(ctx, "order-2", 9999)
	require.NoError(t, err)
}
