package repository

import (
	"context"
	"sync"
	"time"

	"authgate/internal/revocation/domain"
)

type ledgerKey struct {
	tokenHash string
	userID    string
}

// MemoryRepository is an in-memory revocation ledger for tests and development.
type MemoryRepository struct {
	mu      sync.RWMutex
	entries map[ledgerKey]domain.RevokedToken
}

// NewMemoryRepository returns an empty in-memory ledger.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[ledgerKey]domain.RevokedToken)}
}

// Revoke records the token digest for the user; duplicates are no-ops.
func (r *MemoryRepository) Revoke(ctx context.Context, tokenHash, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := ledgerKey{tokenHash, userID}
	if _, ok := r.entries[key]; ok {
		return nil
	}
	r.entries[key] = domain.RevokedToken{TokenHash: tokenHash, UserID: userID, RevokedAt: time.Now().UTC()}
	return nil
}

// IsRevoked reports whether the token digest was revoked for the user.
func (r *MemoryRepository) IsRevoked(ctx context.Context, tokenHash, userID string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[ledgerKey{tokenHash, userID}]
	return ok, nil
}

// Len returns the number of ledger entries. Test helper.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
