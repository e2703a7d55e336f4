package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/internal/repository"
	"github.com/vipogroup/vipo-orders/pkg/database"
	apperrors "github.com/vipogroup/vipo-orders/pkg/errors"
)

// OrderRepository implements repository.OrderRepository using PostgreSQL.
type OrderRepository struct {
	pool database.DBTX
}

// NewOrderRepository creates a new PostgreSQL-backed order repository.
func NewOrderRepository(pool database.DBTX) *OrderRepository {
	return &OrderRepository{pool: pool}
}

const orderColumns = `id, tenant_id, user_id, agent_id, status, payment_status,
	subtotal_amount, total_amount, currency, commission_amount, commission_settled,
	notes, cancel_reason, created_at, updated_at`

// Create inserts a new order. The status invariant is asserted before the
// write: an illegal (status, payment status) pair never reaches storage.
func (r *OrderRepository) Create(ctx context.Context, o *domain.Order) error {
	status, paymentStatus, err := domain.AssertOrderStatusInvariant(o.Status, o.PaymentStatus)
	if err != nil {
		return fmt.Errorf("refusing to store order %s: %w", o.ID, err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err = r.pool.Exec(ctx, query,
		o.ID,
		o.TenantID,
		o.UserID,
		o.AgentID,
		status,
		paymentStatus,
		o.SubtotalAmount,
		o.TotalAmount,
		o.Currency,
		o.CommissionAmount,
		o.CommissionSettled,
		o.Notes,
		o.CancelReason,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	var o domain.Order
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.TenantID,
		&o.UserID,
		&o.AgentID,
		&o.Status,
		&o.PaymentStatus,
		&o.SubtotalAmount,
		&o.TotalAmount,
		&o.Currency,
		&o.CommissionAmount,
		&o.CommissionSettled,
		&o.Notes,
		&o.CancelReason,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("order", id)
		}
		return nil, fmt.Errorf("scan order: %w", err)
	}

	return &o, nil
}

// List returns orders matching the given filter with the total count.
func (r *OrderRepository) List(ctx context.Context, filter repository.OrderFilter) ([]domain.Order, int, error) {
	var (
		conditions []string
		args       []any
		argIndex   = 1
	)

	if filter.TenantID != nil {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIndex))
		args = append(args, *filter.TenantID)
		argIndex++
	}
	if filter.AgentID != nil {
		conditions = append(conditions, fmt.Sprintf("agent_id = $%d", argIndex))
		args = append(args, *filter.AgentID)
		argIndex++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, *filter.Status)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	// count(*) OVER() returns the total in the same query.
	query := fmt.Sprintf(`
		SELECT `+orderColumns+`, count(*) OVER() AS total_count
		FROM orders
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		whereClause, argIndex, argIndex+1,
	)

	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	offset := 0
	if filter.Page > 1 {
		offset = (filter.Page - 1) * limit
	}
	args = append(args, limit, offset)

	ctx, end := database.TraceQuery(ctx, "ListOrders", query)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		end(err)
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()
	defer end(nil)

	var totalCount int
	orders := make([]domain.Order, 0)

	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID,
			&o.TenantID,
			&o.UserID,
			&o.AgentID,
			&o.Status,
			&o.PaymentStatus,
			&o.SubtotalAmount,
			&o.TotalAmount,
			&o.Currency,
			&o.CommissionAmount,
			&o.CommissionSettled,
			&o.Notes,
			&o.CancelReason,
			&o.CreatedAt,
			&o.UpdatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan order row: %w", err)
		}
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, totalCount, nil
}

// UpdateStatus applies a status update conditioned on the previously-read
// status (compare-and-swap). A concurrent update that changed the status in
// between surfaces as a conflict instead of being silently overwritten. The
// status invariant is re-asserted before the write as a last line of defense.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, update repository.StatusUpdate) error {
	status, paymentStatus, err := domain.AssertOrderStatusInvariant(update.Status, update.PaymentStatus)
	if err != nil {
		return fmt.Errorf("refusing to store order %s: %w", id, err)
	}

	query := `
		UPDATE orders
		SET status = $1,
		    payment_status = $2,
		    commission_settled = commission_settled OR $3,
		    cancel_reason = CASE WHEN $4 <> '' THEN $4 ELSE cancel_reason END,
		    updated_at = $5
		WHERE id = $6 AND status = $7`

	ctx, end := database.TraceQuery(ctx, "UpdateOrderStatus", query)
	ct, err := r.pool.Exec(ctx, query,
		status,
		paymentStatus,
		update.SettleCommission,
		update.CancelReason,
		update.UpdatedAt,
		id,
		update.ExpectedStatus,
	)
	end(err)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if ct.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("check order existence: %w", err)
		}
		if !exists {
			return apperrors.NotFound("order", id)
		}
		return apperrors.Conflict(fmt.Sprintf("order %s was modified concurrently (expected status %q)", id, update.ExpectedStatus))
	}

	return nil
}
