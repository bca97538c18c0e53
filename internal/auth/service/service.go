// Package service implements the authentication core: credential
// verification, token pair issuance with session admission, token state
// classification, and logout with revocation.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"authgate/internal/audit"
	"authgate/internal/security"
	sessiondomain "authgate/internal/session/domain"
	userdomain "authgate/internal/user/domain"
)

// Sentinel errors; the HTTP layer maps them to status codes.
var (
	// ErrAuthenticationFailed covers both unknown login and credential
	// mismatch; callers cannot distinguish the two.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrStoreUnavailable marks a store timeout or connection failure.
	// Retryable; the request state is unchanged because mutations are
	// transactional.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

// AuthResult holds the outcome of a successful Authenticate.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	SessionID    string
	ExpiresIn    int64 // access token lifetime in seconds
}

// ClientMetadata describes the client that authenticated, recorded on the session.
type ClientMetadata struct {
	UserAgent string
	IPAddress string
}

// UserRepo is the minimal user repository needed by the auth service.
type UserRepo interface {
	GetByLogin(ctx context.Context, login string) (*userdomain.User, error)
}

// SessionRepo is the minimal session repository needed by the auth service.
type SessionRepo interface {
	Admit(ctx context.Context, s *sessiondomain.Session, maxSessions int) error
	FindRefreshable(ctx context.Context, userID, tokenDigest string, now time.Time) (*sessiondomain.Session, error)
	DeleteByTokenRefs(ctx context.Context, userID, accessRef, refreshHash string) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// RevocationRepo is the minimal revocation ledger needed by the auth service.
type RevocationRepo interface {
	Revoke(ctx context.Context, tokenHash, userID string) error
	IsRevoked(ctx context.Context, tokenHash, userID string) (bool, error)
}

// Settings are the token and admission parameters of the service.
type Settings struct {
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	MaxSessions  int
	StoreTimeout time.Duration
}

// AuthService implements authenticate, token check, and logout.
type AuthService struct {
	users       UserRepo
	sessions    SessionRepo
	revocations RevocationRepo
	tokens      *security.TokenProvider
	audit       *audit.Logger
	log         *slog.Logger
	settings    Settings
}

// NewAuthService returns an AuthService with the given dependencies.
// auditLog may be nil to disable audit events.
func NewAuthService(
	users UserRepo,
	sessions SessionRepo,
	revocations RevocationRepo,
	tokens *security.TokenProvider,
	auditLog *audit.Logger,
	log *slog.Logger,
	settings Settings,
) *AuthService {
	if settings.StoreTimeout <= 0 {
		settings.StoreTimeout = 3 * time.Second
	}
	return &AuthService{
		users:       users,
		sessions:    sessions,
		revocations: revocations,
		tokens:      tokens,
		audit:       auditLog,
		log:         log,
		settings:    settings,
	}
}

// dummyHash keeps the credential comparison cost uniform when the login does
// not exist, so "unknown user" and "wrong password" are also timing-alike.
const dummyHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Authenticate verifies login credentials, issues an access/refresh token
// pair, and admits a session (evicting the user's oldest session when at the
// bound). Unknown login and hash mismatch both return ErrAuthenticationFailed.
func (s *AuthService) Authenticate(ctx context.Context, login, passwordHash string, meta ClientMetadata) (*AuthResult, error) {
	start := time.Now()

	user, err := s.findUser(ctx, login, passwordHash)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			s.audit.Event(ctx, "", audit.ActionLoginFailure, meta.IPAddress, fmt.Sprintf(`{"login":%q}`, login))
			s.log.Warn("authentication rejected",
				"op", "authenticate", "login", login, "elapsed_ms", time.Since(start).Milliseconds())
		}
		return nil, err
	}

	accessToken, _, err := s.tokens.Issue(user.ID, security.TokenKindAccess, s.settings.AccessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, refreshExp, err := s.tokens.Issue(user.ID, security.TokenKindRefresh, s.settings.RefreshTTL)
	if err != nil {
		return nil, err
	}

	sess := &sessiondomain.Session{
		ID:               uuid.New().String(),
		UserID:           user.ID,
		AccessTokenRef:   security.TokenDigest(accessToken),
		RefreshTokenHash: security.TokenDigest(refreshToken),
		UserAgent:        meta.UserAgent,
		IPAddress:        meta.IPAddress,
		CreatedAt:        time.Now().UTC(),
		ExpiresAt:        refreshExp,
	}
	if err := s.admit(ctx, sess); err != nil {
		return nil, err
	}

	s.audit.Event(ctx, user.ID, audit.ActionLoginSuccess, meta.IPAddress, fmt.Sprintf(`{"session_id":%q}`, sess.ID))
	s.log.Info("authenticated",
		"op", "authenticate", "user_id", user.ID, "session_id", sess.ID,
		"elapsed_ms", time.Since(start).Milliseconds())

	return &AuthResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		UserID:       user.ID,
		SessionID:    sess.ID,
		ExpiresIn:    int64(s.settings.AccessTTL.Seconds()),
	}, nil
}

// findUser is the credential verifier: one lookup by login, then a
// constant-time digest comparison. Missing user and mismatching hash are
// indistinguishable in the returned error.
func (s *AuthService) findUser(ctx context.Context, login, assertedHash string) (*userdomain.User, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	user, err := s.users.GetByLogin(sctx, login)
	if err != nil {
		return nil, s.storeErr("user lookup", err)
	}
	if user == nil {
		security.CredentialHashEqual(assertedHash, dummyHash)
		return nil, ErrAuthenticationFailed
	}
	if !security.CredentialHashEqual(assertedHash, user.PasswordHash) {
		return nil, ErrAuthenticationFailed
	}
	return user, nil
}

func (s *AuthService) admit(ctx context.Context, sess *sessiondomain.Session) error {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.sessions.Admit(sctx, sess, s.settings.MaxSessions); err != nil {
		return s.storeErr("session admission", err)
	}
	return nil
}

// Logout revokes both tokens of a session and removes the session row.
// Idempotent: a second logout of the same pair, or a logout for a session that
// is already gone, still succeeds, and the ledger is written regardless so a
// stale-but-signature-valid token cannot be replayed.
func (s *AuthService) Logout(ctx context.Context, accessToken, refreshToken string) error {
	start := time.Now()

	claims, err := s.tokens.Decode(accessToken, false)
	if err != nil {
		// Fall back to the refresh token for the subject; a pair that decodes
		// nowhere carries no identity to revoke and cannot pass CheckToken.
		claims, err = s.tokens.Decode(refreshToken, false)
	}
	if err != nil {
		s.log.Warn("logout with undecodable tokens",
			"op", "logout", "access_token", security.RedactToken(accessToken),
			"elapsed_ms", time.Since(start).Milliseconds())
		return nil
	}
	userID := claims.Subject

	accessDigest := security.TokenDigest(accessToken)
	refreshDigest := security.TokenDigest(refreshToken)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	if err := s.revocations.Revoke(sctx, accessDigest, userID); err != nil {
		return s.storeErr("revocation", err)
	}
	if err := s.revocations.Revoke(sctx, refreshDigest, userID); err != nil {
		return s.storeErr("revocation", err)
	}
	if err := s.sessions.DeleteByTokenRefs(sctx, userID, accessDigest, refreshDigest); err != nil {
		return s.storeErr("session delete", err)
	}

	s.audit.Event(ctx, userID, audit.ActionLogout, "", "")
	s.log.Info("logged out",
		"op", "logout", "user_id", userID, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// SweepExpiredSessions removes sessions whose expiry has passed. Intended to
// run periodically from the server.
func (s *AuthService) SweepExpiredSessions(ctx context.Context) (int64, error) {
	sctx, cancel := s.storeCtx(ctx)
	defer cancel()
	n, err := s.sessions.DeleteExpired(sctx, time.Now().UTC())
	if err != nil {
		return 0, s.storeErr("session sweep", err)
	}
	if n > 0 {
		s.log.Info("expired sessions removed", "op", "sweep", "count", n)
	}
	return n, nil
}

func (s *AuthService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.settings.StoreTimeout)
}

// storeErr wraps a store failure as retryable ErrStoreUnavailable, keeping the
// cause in the message but never a raw token or hash.
func (s *AuthService) storeErr(op string, err error) error {
	s.log.Error("store call failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}
