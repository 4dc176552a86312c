package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Audit actions recorded by the service.
const (
	ActionRuleAdded      = "RULE_ADDED"
	ActionRuleDeleted    = "RULE_DELETED"
	ActionBatchProcessed = "BATCH_PROCESSED"
)

// AuditLogEntry is one recorded action.
type AuditLogEntry struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditLogRepository handles database operations for the audit trail
type AuditLogRepository struct {
	db *pgxpool.Pool
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Record appends one entry to the audit trail.
func (r *AuditLogRepository) Record(ctx context.Context, action, details string) error {
	query := `INSERT INTO audit_logs (action, details) VALUES ($1, $2)`
	_, err := r.db.Exec(ctx, query, action, details)
	return err
}

// ListRecent returns the most recent audit entries.
func (r *AuditLogRepository) ListRecent(ctx context.Context, limit int) ([]AuditLogEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, action, details, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]AuditLogEntry, 0)
	for rows.Next() {
		var entry AuditLogEntry
		if err := rows.Scan(&entry.ID, &entry.Action, &entry.Details, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
