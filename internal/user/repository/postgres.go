package repository

import (
	"context"
	"database/sql"
	"errors"

	"authgate/internal/user/domain"
)

type PostgresRepository struct {
	pool *sql.DB
}

// NewPostgresRepository returns a user repository reading from the given db.
func NewPostgresRepository(pool *sql.DB) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByLogin returns the user for login, or nil if not found.
// It returns an error only for database failures, not for missing rows.
func (r *PostgresRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	var u domain.User
	err := r.pool.QueryRowContext(ctx, `
		SELECT user_id, userlogin, password_hash
		FROM users
		WHERE userlogin = $1
	`, login).Scan(&u.ID, &u.Login, &u.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
