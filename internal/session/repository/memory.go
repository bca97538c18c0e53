package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"authgate/internal/session/domain"
)

// memorySession pairs a session with its insertion sequence, which breaks
// created_at ties during eviction the same way the seq column does in Postgres.
type memorySession struct {
	domain.Session
	seq uint64
}

// MemoryRepository is an in-memory session store with the same admission
// semantics as the Postgres store. Used in tests and development.
type MemoryRepository struct {
	mu       sync.Mutex
	sessions map[string]*memorySession
	nextSeq  uint64
}

// NewMemoryRepository returns an empty in-memory session repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*memorySession)}
}

// Admit inserts s under the per-user session bound. The repository mutex plays
// the role of the per-user advisory lock.
func (r *MemoryRepository) Admit(ctx context.Context, s *domain.Session, maxSessions int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := s.CreatedAt
	for id, m := range r.sessions {
		if m.UserID == s.UserID && !m.ExpiresAt.After(now) {
			delete(r.sessions, id)
		}
	}

	active := r.userSessionsLocked(s.UserID, false)
	if len(active) >= maxSessions {
		evict := len(active) - maxSessions + 1
		for _, m := range active[:evict] {
			delete(r.sessions, m.ID)
		}
	}

	r.nextSeq++
	copied := *s
	r.sessions[s.ID] = &memorySession{Session: copied, seq: r.nextSeq}
	return nil
}

// FindRefreshable returns a non-expired, non-revoked session for the user
// whose refresh_token_hash equals tokenDigest, or nil.
func (r *MemoryRepository) FindRefreshable(ctx context.Context, userID, tokenDigest string, now time.Time) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *memorySession
	for _, m := range r.sessions {
		if m.UserID != userID || m.RefreshTokenHash != tokenDigest {
			continue
		}
		if m.Revoked || !m.ExpiresAt.After(now) {
			continue
		}
		if best == nil || m.CreatedAt.After(best.CreatedAt) {
			best = m
		}
	}
	if best == nil {
		return nil, nil
	}
	copied := best.Session
	return &copied, nil
}

// DeleteByTokenRefs removes the user's sessions matching either digest.
func (r *MemoryRepository) DeleteByTokenRefs(ctx context.Context, userID, accessRef, refreshHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, m := range r.sessions {
		if m.UserID != userID {
			continue
		}
		if m.AccessTokenRef == accessRef || m.AccessTokenRef == refreshHash ||
			m.RefreshTokenHash == accessRef || m.RefreshTokenHash == refreshHash {
			delete(r.sessions, id)
		}
	}
	return nil
}

// CountActive returns the number of non-expired, non-revoked sessions for the user.
func (r *MemoryRepository) CountActive(ctx context.Context, userID string, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.sessions {
		if m.UserID == userID && !m.Revoked && m.ExpiresAt.After(now) {
			count++
		}
	}
	return count, nil
}

// ListByUser returns all of the user's sessions, oldest first.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string) ([]*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ms := r.userSessionsLocked(userID, true)
	out := make([]*domain.Session, len(ms))
	for i, m := range ms {
		copied := m.Session
		out[i] = &copied
	}
	return out, nil
}

// DeleteExpired removes sessions that expired before the given instant.
func (r *MemoryRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, m := range r.sessions {
		if !m.ExpiresAt.After(before) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// userSessionsLocked returns the user's sessions sorted by created_at then
// insertion sequence. includeRevoked keeps revoked rows in the result.
func (r *MemoryRepository) userSessionsLocked(userID string, includeRevoked bool) []*memorySession {
	var out []*memorySession
	for _, m := range r.sessions {
		if m.UserID != userID {
			continue
		}
		if m.Revoked && !includeRevoked {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].seq < out[j].seq
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
