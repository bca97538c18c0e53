package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"authgate/internal/session/domain"
)

type PostgresRepository struct {
	pool *sql.DB
}

// NewPostgresRepository returns a session repository that uses the given db for persistence.
func NewPostgresRepository(pool *sql.DB) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Admit inserts s under the per-user session bound in a single transaction.
// A per-user advisory lock serializes concurrent admissions for the same user,
// including when the user has no session rows yet. The active count is
// re-checked after the lock is held, so a racing admission never leaves the
// user over the bound.
func (r *PostgresRepository) Admit(ctx context.Context, s *domain.Session, maxSessions int) error {
	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, s.UserID); err != nil {
		return err
	}

	now := s.CreatedAt
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM sessions WHERE user_id = $1 AND expires_at <= $2`, s.UserID, now); err != nil {
		return err
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND NOT revoked`, s.UserID).Scan(&count); err != nil {
		return err
	}

	if count >= maxSessions {
		evict := count - maxSessions + 1
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM sessions
			WHERE session_id IN (
				SELECT session_id FROM sessions
				WHERE user_id = $1 AND NOT revoked
				ORDER BY created_at, seq
				LIMIT $2
			)`, s.UserID, evict); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO sessions (
			session_id, user_id, access_token_ref, refresh_token_hash,
			user_agent, ip_address, created_at, expires_at, revoked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)`,
		s.ID, s.UserID, s.AccessTokenRef, s.RefreshTokenHash,
		s.UserAgent, s.IPAddress, s.CreatedAt, s.ExpiresAt); err != nil {
		return err
	}

	return tx.Commit()
}

// FindRefreshable returns a non-expired, non-revoked session for the user
// whose refresh_token_hash equals tokenDigest, or nil if none exists.
func (r *PostgresRepository) FindRefreshable(ctx context.Context, userID, tokenDigest string, now time.Time) (*domain.Session, error) {
	var s domain.Session
	err := r.pool.QueryRowContext(ctx, `
		SELECT session_id, user_id, access_token_ref, refresh_token_hash,
		       user_agent, ip_address, created_at, expires_at, revoked
		FROM sessions
		WHERE user_id = $1 AND refresh_token_hash = $2
		  AND expires_at > $3 AND NOT revoked
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, tokenDigest, now).Scan(
		&s.ID, &s.UserID, &s.AccessTokenRef, &s.RefreshTokenHash,
		&s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.Revoked,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// DeleteByTokenRefs removes the user's sessions matching either digest.
func (r *PostgresRepository) DeleteByTokenRefs(ctx context.Context, userID, accessRef, refreshHash string) error {
	_, err := r.pool.ExecContext(ctx, `
		DELETE FROM sessions
		WHERE user_id = $1
		  AND (access_token_ref IN ($2, $3) OR refresh_token_hash IN ($2, $3))
	`, userID, accessRef, refreshHash)
	return err
}

// CountActive returns the number of non-expired, non-revoked sessions for the user.
func (r *PostgresRepository) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	var count int
	err := r.pool.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM sessions
		WHERE user_id = $1 AND expires_at > $2 AND NOT revoked
	`, userID, now).Scan(&count)
	return count, err
}

// ListByUser returns all of the user's sessions, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.pool.QueryContext(ctx, `
		SELECT session_id, user_id, access_token_ref, refresh_token_hash,
		       user_agent, ip_address, created_at, expires_at, revoked
		FROM sessions
		WHERE user_id = $1
		ORDER BY created_at, seq
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Session
	for rows.Next() {
		var s domain.Session
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.AccessTokenRef, &s.RefreshTokenHash,
			&s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.Revoked,
		); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

// DeleteExpired removes sessions that expired before the given instant.
func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.pool.ExecContext(ctx,
		`DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
