package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vipogroup/vipo-orders/internal/domain"
	"github.com/vipogroup/vipo-orders/pkg/database"
)

// AuditLogRepository implements repository.AuditLogRepository using
// PostgreSQL. Details are stored as JSONB so operators can query them.
type AuditLogRepository struct {
	pool database.DBTX
}

// NewAuditLogRepository creates a new PostgreSQL-backed audit log repository.
func NewAuditLogRepository(pool database.DBTX) *AuditLogRepository {
	return &AuditLogRepository{pool: pool}
}

// Create appends an audit entry.
func (r *AuditLogRepository) Create(ctx context.Context, entry *domain.AuditEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	query := `
		INSERT INTO audit_logs (id, event_type, severity, actor_type, actor_id, actor_email,
			target_type, target_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.pool.Exec(ctx, query,
		entry.ID,
		entry.EventType,
		entry.Severity,
		entry.Actor.Type,
		entry.Actor.ID,
		entry.Actor.Email,
		entry.TargetType,
		entry.TargetID,
		details,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// ListByTarget returns the newest audit entries for a target.
func (r *AuditLogRepository) ListByTarget(ctx context.Context, targetType, targetID string, limit int) ([]domain.AuditEntry, error) {
	query := `
		SELECT id, event_type, severity, actor_type, actor_id, actor_email,
			target_type, target_id, details, created_at
		FROM audit_logs
		WHERE target_type = $1 AND target_id = $2
		ORDER BY created_at DESC
		LIMIT $3`

	rows, err := r.pool.Query(ctx, query, targetType, targetID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0)
	for rows.Next() {
		var (
			entry   domain.AuditEntry
			details []byte
		)
		if err := rows.Scan(
			&entry.ID,
			&entry.EventType,
			&entry.Severity,
			&entry.Actor.Type,
			&entry.Actor.ID,
			&entry.Actor.Email,
			&entry.TargetType,
			&entry.TargetID,
			&details,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan audit entry row: %w", err)
		}
		if len(details) > 0 {
			if err := json.Unmarshal(details, &entry.Details); err != nil {
				return nil, fmt.Errorf("unmarshal audit details: %w", err)
			}
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entry rows: %w", err)
	}

	return entries, nil
}
