package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/pkg/database"
	apperrors "github.com/vipogroup/vipo-orders/pkg/errors"
)

// pgUniqueViolation is the PostgreSQL error code for unique constraint violations.
const pgUniqueViolation = "23505"

// PaymentEventRepository implements repository.PaymentEventRepository using
// PostgreSQL. The unique constraint on event_id is the durable dedup layer
// behind the best-effort idempotency store.
type PaymentEventRepository struct {
	pool database.DBTX
}

// NewPaymentEventRepository creates a new PostgreSQL-backed payment event repository.
func NewPaymentEventRepository(pool database.DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{pool: pool}
}

const paymentEventColumns = `id, event_id, order_id, transaction_id, type, amount,
	currency, status, error, processed_at, created_at`

// Create inserts a payment event. A duplicate event_id returns ErrAlreadyExists.
func (r *PaymentEventRepository) Create(ctx context.Context, e *domain.PaymentEvent) error {
	query := `
		INSERT INTO payment_events (` + paymentEventColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	ctx, end := database.TraceQuery(ctx, "CreatePaymentEvent", query)
	_, err := r.pool.Exec(ctx, query,
		e.ID,
		e.EventID,
		e.OrderID,
		e.TransactionID,
		e.Type,
		e.Amount,
		e.Currency,
		e.Status,
		e.Error,
		nullableTime(e.ProcessedAt),
		e.CreatedAt,
	)
	end(err)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return apperrors.AlreadyExists("payment event", "event_id", e.EventID)
		}
		return fmt.Errorf("insert payment event: %w", err)
	}

	return nil
}

// GetByEventID retrieves a payment event by its gateway event ID.
func (r *PaymentEventRepository) GetByEventID(ctx context.Context, eventID string) (*domain.PaymentEvent, error) {
	query := `SELECT ` + paymentEventColumns + ` FROM payment_events WHERE event_id = $1`

	e, err := scanPaymentEvent(r.pool.QueryRow(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("payment event", eventID)
		}
		return nil, fmt.Errorf("scan payment event: %w", err)
	}

	return e, nil
}

// MarkStatus records the processing outcome for a payment event.
func (r *PaymentEventRepository) MarkStatus(ctx context.Context, eventID, status, processingError string) error {
	query := `
		UPDATE payment_events
		SET status = $1, error = $2, processed_at = $3
		WHERE event_id = $4`

	ct, err := r.pool.Exec(ctx, query, status, processingError, time.Now().UTC(), eventID)
	if err != nil {
		return fmt.Errorf("mark payment event status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("payment event", eventID)
	}

	return nil
}

// ListByOrder returns the payment events recorded for an order, newest first.
func (r *PaymentEventRepository) ListByOrder(ctx context.Context, orderID string) ([]domain.PaymentEvent, error) {
	query := `SELECT ` + paymentEventColumns + ` FROM payment_events WHERE order_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("list payment events: %w", err)
	}
	defer rows.Close()

	events := make([]domain.PaymentEvent, 0)
	for rows.Next() {
		e, err := scanPaymentEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment event row: %w", err)
		}
		events = append(events, *e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment event rows: %w", err)
	}

	return events, nil
}

func scanPaymentEvent(row pgx.Row) (*domain.PaymentEvent, error) {
	var (
		e           domain.PaymentEvent
		processedAt *time.Time
	)
	if err := row.Scan(
		&e.ID,
		&e.EventID,
		&e.OrderID,
		&e.TransactionID,
		&e.Type,
		&e.Amount,
		&e.Currency,
		&e.Status,
		&e.Error,
		&processedAt,
		&e.CreatedAt,
	); err != nil {
		return nil, err
	}
	if processedAt != nil {
		e.ProcessedAt = *processedAt
	}
	return &e, nil
}

// nullableTime maps the zero time to NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
