package repository

import (
	"context"
	"testing"
)

func TestMemoryRepository_RevokeAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.Revoke(ctx, "digest-a", "u1"); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	revoked, err := repo.IsRevoked(ctx, "digest-a", "u1")
	if err != nil {
		t.Fatalf("IsRevoked: %v", err)
	}
	if !revoked {
		t.Error("digest-a should be revoked for u1")
	}

	// Scoped to the user and digest.
	if got, _ := repo.IsRevoked(ctx, "digest-a", "u2"); got {
		t.Error("revocation must not leak across users")
	}
	if got, _ := repo.IsRevoked(ctx, "digest-b", "u1"); got {
		t.Error("unrevoked digest should not report revoked")
	}
}

func TestMemoryRepository_RevokeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.Revoke(ctx, "digest-a", "u1"); err != nil {
		t.Fatalf("first Revoke: %v", err)
	}
	if err := repo.Revoke(ctx, "digest-a", "u1"); err != nil {
		t.Fatalf("second Revoke: %v", err)
	}
	if repo.Len() != 1 {
		t.Errorf("ledger entries: want 1, got %d", repo.Len())
	}
}
