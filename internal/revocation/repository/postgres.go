package repository

import (
	"context"
	"database/sql"
	"time"
)

type PostgresRepository struct {
	pool *sql.DB
}

// NewPostgresRepository returns a revocation ledger backed by the given db.
func NewPostgresRepository(pool *sql.DB) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Revoke records the token digest for the user. The composite primary key plus
// ON CONFLICT DO NOTHING makes a second revocation a no-op success.
func (r *PostgresRepository) Revoke(ctx context.Context, tokenHash, userID string) error {
	_, err := r.pool.ExecContext(ctx, `
		INSERT INTO revoked_tokens (token_hash, user_id, revoked_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash, user_id) DO NOTHING
	`, tokenHash, userID, time.Now().UTC())
	return err
}

// IsRevoked reports whether the token digest was revoked for the user.
func (r *PostgresRepository) IsRevoked(ctx context.Context, tokenHash, userID string) (bool, error) {
	var one int
	err := r.pool.QueryRowContext(ctx, `
		SELECT 1 FROM revoked_tokens WHERE token_hash = $1 AND user_id = $2
	`, tokenHash, userID).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
