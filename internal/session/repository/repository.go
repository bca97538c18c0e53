package repository

import (
	"context"
	"time"

	"authgate/internal/session/domain"
)

// Repository defines persistence for sessions, including admission control.
type Repository interface {
	// Admit inserts s while holding the per-user admission bound. In one
	// transaction it purges the user's expired sessions, re-checks the active
	// count under a per-user lock, evicts the oldest sessions (lowest
	// created_at, then insertion order) until the bound allows one more, and
	// inserts. Two concurrent Admit calls for one user serialize.
	Admit(ctx context.Context, s *domain.Session, maxSessions int) error

	// FindRefreshable returns a non-expired, non-revoked session for the user
	// whose refresh_token_hash equals tokenDigest, or nil if none exists.
	FindRefreshable(ctx context.Context, userID, tokenDigest string, now time.Time) (*domain.Session, error)

	// DeleteByTokenRefs removes the user's sessions whose access token
	// reference or refresh token hash matches either digest. Missing rows are
	// not an error.
	DeleteByTokenRefs(ctx context.Context, userID, accessRef, refreshHash string) error

	// CountActive returns the number of non-expired, non-revoked sessions for
	// the user at the given instant.
	CountActive(ctx context.Context, userID string, now time.Time) (int, error)

	// ListByUser returns all of the user's sessions, oldest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Session, error)

	// DeleteExpired removes sessions whose expiry passed before the given
	// instant, across all users. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
