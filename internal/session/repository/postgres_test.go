package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"authgate/internal/db"
	"authgate/internal/db/migrate"
	"authgate/internal/session/domain"
)

// openTestDB connects to the database named by TEST_DATABASE_URL, applying
// migrations first. Tests using it are skipped when the variable is unset.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres integration test")
	}
	if err := migrate.EnsureCurrent(dsn); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestPostgresRepository_AdmitAndEvict(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresRepository(conn)

	userID := "it-" + uuid.New().String()
	now := time.Now().UTC()

	var ids []string
	for i := 0; i < 3; i++ {
		id := uuid.New().String()
		ids = append(ids, id)
		s := &domain.Session{
			ID:               id,
			UserID:           userID,
			AccessTokenRef:   fmt.Sprintf("access-%d", i),
			RefreshTokenHash: fmt.Sprintf("refresh-%d", i),
			CreatedAt:        now.Add(time.Duration(i) * time.Second),
			ExpiresAt:        now.Add(time.Hour),
		}
		if err := repo.Admit(ctx, s, 2); err != nil {
			t.Fatalf("Admit %d: %v", i, err)
		}
	}

	list, err := repo.ListByUser(ctx, userID)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("sessions after third admission at bound 2: want 2, got %d", len(list))
	}
	if list[0].ID != ids[1] || list[1].ID != ids[2] {
		t.Errorf("oldest session should have been evicted; got [%s %s]", list[0].ID, list[1].ID)
	}
}

func TestPostgresRepository_ConcurrentAdmitNeverExceedsBound(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresRepository(conn)

	userID := "it-" + uuid.New().String()
	now := time.Now().UTC()
	const bound = 2

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := &domain.Session{
				ID:               uuid.New().String(),
				UserID:           userID,
				AccessTokenRef:   fmt.Sprintf("access-%d", i),
				RefreshTokenHash: fmt.Sprintf("refresh-%d", i),
				CreatedAt:        now,
				ExpiresAt:        now.Add(time.Hour),
			}
			errs <- repo.Admit(ctx, s, bound)
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("Admit: %v", err)
		}
	}

	count, err := repo.CountActive(ctx, userID, now)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count > bound {
		t.Fatalf("concurrent admissions exceeded the bound: %d sessions, max %d", count, bound)
	}
}

func TestPostgresRepository_FindRefreshableAndDelete(t *testing.T) {
	conn := openTestDB(t)
	ctx := context.Background()
	repo := NewPostgresRepository(conn)

	userID := "it-" + uuid.New().String()
	now := time.Now().UTC()
	s := &domain.Session{
		ID:               uuid.New().String(),
		UserID:           userID,
		AccessTokenRef:   "access-ref",
		RefreshTokenHash: "refresh-hash",
		CreatedAt:        now,
		ExpiresAt:        now.Add(time.Hour),
	}
	if err := repo.Admit(ctx, s, 5); err != nil {
		t.Fatalf("Admit: %v", err)
	}

	got, err := repo.FindRefreshable(ctx, userID, "refresh-hash", now)
	if err != nil {
		t.Fatalf("FindRefreshable: %v", err)
	}
	if got == nil || got.ID != s.ID {
		t.Fatal("expected the admitted session")
	}

	if got, _ := repo.FindRefreshable(ctx, userID, "other-hash", now); got != nil {
		t.Error("different digest should not match")
	}

	if err := repo.DeleteByTokenRefs(ctx, userID, "access-ref", "refresh-hash"); err != nil {
		t.Fatalf("DeleteByTokenRefs: %v", err)
	}
	count, err := repo.CountActive(ctx, userID, now)
	if err != nil {
		t.Fatalf("CountActive: %v", err)
	}
	if count != 0 {
		t.Errorf("sessions after delete: want 0, got %d", count)
	}
}
