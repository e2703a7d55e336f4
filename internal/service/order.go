package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/internal/repository"
	apperrors "github.com/vipogroup/vipo-orders/pkg/errors"
)

// OrderService implements the business logic for order CRUD operations.
// Status mutations are delegated to the lifecycle orchestrator.
type OrderService struct {
	repo      repository.OrderRepository
	audit     repository.AuditLogRepository
	lifecycle *OrderLifecycle
	logger    *slog.Logger
}

// NewOrderService creates a new order service.
func NewOrderService(
	repo repository.OrderRepository,
	audit repository.AuditLogRepository,
	lifecycle *OrderLifecycle,
	logger *slog.Logger,
) *OrderService {
	return &OrderService{
		repo:      repo,
		audit:     audit,
		lifecycle: lifecycle,
		logger:    logger,
	}
}

// CreateOrderInput holds the parameters for creating an order.
type CreateOrderInput struct {
	TenantID         string
	UserID           string
	AgentID          string
	Status           string
	PaymentStatus    string
	SubtotalAmount   int64
	TotalAmount      int64
	Currency         string
	CommissionAmount int64
	Notes            string
}

// CreateOrder creates a new order. Orders enter the lifecycle in draft or
// pending only; the payment status is forced into a legal value for the
// chosen status.
func (s *OrderService) CreateOrder(ctx context.Context, input CreateOrderInput) (*domain.Order, error) {
	if input.TenantID == "" {
		return nil, apperrors.InvalidInput("tenant_id is required")
	}
	if input.UserID == "" {
		return nil, apperrors.InvalidInput("user_id is required")
	}
	if len(input.Currency) != 3 {
		return nil, apperrors.InvalidInput("currency must be a 3-letter ISO code")
	}
	if input.TotalAmount < 0 || input.CommissionAmount < 0 {
		return nil, apperrors.InvalidInput("amounts must not be negative")
	}

	status := domain.NormalizeOrderStatus(input.Status)
	if input.Status == "" {
		status = domain.OrderStatusDraft
	}
	if status != domain.OrderStatusDraft && status != domain.OrderStatusPending {
		return nil, apperrors.InvalidInput(fmt.Sprintf("new orders must start in %q or %q, got %q",
			domain.OrderStatusDraft, domain.OrderStatusPending, status))
	}
	paymentStatus := domain.CoercePaymentStatusForOrderStatus(status, input.PaymentStatus)

	now := time.Now().UTC()
	order := &domain.Order{
		ID:               uuid.New().String(),
		TenantID:         input.TenantID,
		UserID:           input.UserID,
		AgentID:          input.AgentID,
		Status:           status,
		PaymentStatus:    paymentStatus,
		SubtotalAmount:   input.SubtotalAmount,
		TotalAmount:      input.TotalAmount,
		Currency:         strings.ToUpper(input.Currency),
		CommissionAmount: input.CommissionAmount,
		Notes:            input.Notes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.repo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	s.logger.InfoContext(ctx, "order created",
		slog.String("order_id", order.ID),
		slog.String("tenant_id", order.TenantID),
		slog.String("status", order.Status),
		slog.Int64("total_amount", order.TotalAmount),
	)

	return order, nil
}

// GetOrder retrieves an order by its ID.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get order by id: %w", err)
	}
	return order, nil
}

// ListOrders returns a filtered, paginated list of orders.
func (s *OrderService) ListOrders(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 20
	}
	if filter.PerPage > 100 {
		filter.PerPage = 100
	}

	orders, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}

	return orders, total, nil
}

// UpdateOrderStatus applies a status update through the lifecycle
// orchestrator.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, input ApplyStatusUpdateInput) (*StatusUpdateResult, error) {
	return s.lifecycle.ApplyStatusUpdate(ctx, input)
}

// CancelOrder cancels an order with a reason through the lifecycle
// orchestrator.
func (s *OrderService) CancelOrder(ctx context.Context, id, reason string, actor domain.Actor) (*StatusUpdateResult, error) {
	return s.lifecycle.ApplyStatusUpdate(ctx, ApplyStatusUpdateInput{
		OrderID:    id,
		NextStatus: domain.OrderStatusCancelled,
		Actor:      actor,
		Reason:     reason,
	})
}

// OrderAuditTrail returns the audit entries recorded for an order, newest
// first.
func (s *OrderService) OrderAuditTrail(ctx context.Context, orderID string, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.audit.ListByTarget(ctx, "order", orderID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit trail: %w", err)
	}
	return entries, nil
}
