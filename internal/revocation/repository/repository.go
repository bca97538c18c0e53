package repository

import "context"

// Repository defines the append-only revocation ledger.
type Repository interface {
	// Revoke records the token digest for the user. Idempotent: revoking an
	// already-revoked token is a no-op success and writes no duplicate row.
	Revoke(ctx context.Context, tokenHash, userID string) error

	// IsRevoked reports whether the token digest was revoked for the user.
	IsRevoked(ctx context.Context, tokenHash, userID string) (bool, error)
}
