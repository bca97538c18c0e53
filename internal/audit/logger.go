// Package audit records auth events for operational review. Writes are
// best-effort and never fail the operation that produced them.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authgate/internal/audit/domain"
	auditrepo "authgate/internal/audit/repository"
)

// Actions recorded by the auth service.
const (
	ActionLoginSuccess = "auth.login.success"
	ActionLoginFailure = "auth.login.failure"
	ActionLogout       = "auth.logout"
	ActionTokenRevoked = "auth.token.revoked"
)

// Logger writes audit events through a repository. A nil *Logger or nil
// repository is a no-op, so callers never need to guard.
type Logger struct {
	repo auditrepo.Repository
	log  *slog.Logger
}

// NewLogger returns an audit logger persisting to repo. log receives write
// failures; it must not be nil.
func NewLogger(repo auditrepo.Repository, log *slog.Logger) *Logger {
	return &Logger{repo: repo, log: log}
}

// Event writes one audit entry. Best-effort: errors are logged and not returned.
func (l *Logger) Event(ctx context.Context, userID, action, ip, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.log.Warn("audit write failed", "action", action, "error", err)
	}
}
