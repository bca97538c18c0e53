package repository

import (
	"context"

	"authgate/internal/user/domain"
)

// Repository defines read-only access to user credential records.
type Repository interface {
	// GetByLogin returns the user for login, or nil if not found.
	// Errors are returned only for store failures, never for missing rows.
	GetByLogin(ctx context.Context, login string) (*domain.User, error)
}
