package repository

import (
	"context"
	"database/sql"

	"authgate/internal/audit/domain"
)

type PostgresRepository struct {
	pool *sql.DB
}

// NewPostgresRepository returns an audit repository that uses the given db for persistence.
func NewPostgresRepository(pool *sql.DB) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create persists the audit entry. The entry must have ID set.
func (r *PostgresRepository) Create(ctx context.Context, entry *domain.AuditLog) error {
	_, err := r.pool.ExecContext(ctx, `
		INSERT INTO audit_log (id, user_id, action, ip, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.UserID, entry.Action, entry.IP, entry.Metadata, entry.CreatedAt)
	return err
}
