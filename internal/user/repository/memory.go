package repository

import (
	"context"
	"sync"

	"authgate/internal/user/domain"
)

// MemoryRepository is an in-memory user store for tests and development.
type MemoryRepository struct {
	mu      sync.RWMutex
	byLogin map[string]*domain.User
}

// NewMemoryRepository returns an empty in-memory user repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byLogin: make(map[string]*domain.User)}
}

// Put stores or replaces a user record.
func (r *MemoryRepository) Put(u *domain.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *u
	r.byLogin[u.Login] = &copied
}

// GetByLogin returns the user for login, or nil if not found.
func (r *MemoryRepository) GetByLogin(ctx context.Context, login string) (*domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byLogin[login]
	if !ok {
		return nil, nil
	}
	copied := *u
	return &copied, nil
}
