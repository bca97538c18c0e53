package service

import (
	"context"
	"errors"
	"time"

	"authgate/internal/security"
)

// TokenState classifies a presented access token.
type TokenState string

const (
	// TokenValid: authentic, owned by the declared user, not expired.
	TokenValid TokenState = "valid"
	// TokenForged: bad signature, malformed, or subject does not match the
	// declared user. Terminal; no store access happens for this state.
	TokenForged TokenState = "forged"
	// TokenRevoked: expired and present in the revocation ledger. Never
	// refreshable, even if a session row still exists.
	TokenRevoked TokenState = "revoked"
	// TokenExpiredRefreshable: expired, not revoked, and a live session
	// matches the presented credential's digest.
	TokenExpiredRefreshable TokenState = "expired_refreshable"
	// TokenExpiredNonRefreshable: expired with no revocation entry and no
	// matching live session.
	TokenExpiredNonRefreshable TokenState = "expired_non_refreshable"
)

// CheckResult is the classification of a presented token.
type CheckResult struct {
	State TokenState
	// Refresh reports whether the caller may obtain a new pair via the
	// refresh flow. Only true for TokenExpiredRefreshable.
	Refresh bool
}

// Valid reports whether the token grants access right now.
func (r CheckResult) Valid() bool { return r.State == TokenValid }

// CheckToken classifies the presented access token for the declared user.
// Steps run in order and short-circuit: decode ignoring expiry, ownership,
// expiry, revocation ledger, refresh-eligible session lookup. Authenticity and
// ownership are settled before any store access, and revocation is consulted
// before refresh eligibility. Read-only: repeated calls have no side effects.
func (s *AuthService) CheckToken(ctx context.Context, accessToken, userID string) (CheckResult, error) {
	start := time.Now()
	now := time.Now().UTC()

	claims, err := s.tokens.Decode(accessToken, false)
	if err != nil {
		s.logCheck(start, userID, TokenForged)
		return CheckResult{State: TokenForged}, nil
	}

	if claims.Subject != userID {
		s.logCheck(start, userID, TokenForged)
		return CheckResult{State: TokenForged}, nil
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.After(now) {
		s.logCheck(start, userID, TokenValid)
		return CheckResult{State: TokenValid}, nil
	}

	digest := security.TokenDigest(accessToken)

	sctx, cancel := s.storeCtx(ctx)
	defer cancel()

	revoked, err := s.revocations.IsRevoked(sctx, digest, userID)
	if err != nil {
		return CheckResult{}, s.storeErr("revocation lookup", err)
	}
	if revoked {
		s.logCheck(start, userID, TokenRevoked)
		return CheckResult{State: TokenRevoked}, nil
	}

	sess, err := s.sessions.FindRefreshable(sctx, userID, digest, now)
	if err != nil {
		return CheckResult{}, s.storeErr("session lookup", err)
	}
	if sess != nil {
		s.logCheck(start, userID, TokenExpiredRefreshable)
		return CheckResult{State: TokenExpiredRefreshable, Refresh: true}, nil
	}

	s.logCheck(start, userID, TokenExpiredNonRefreshable)
	return CheckResult{State: TokenExpiredNonRefreshable}, nil
}

func (s *AuthService) logCheck(start time.Time, userID string, state TokenState) {
	s.log.Info("token checked",
		"op", "check_token", "user_id", userID, "state", string(state),
		"elapsed_ms", time.Since(start).Milliseconds())
}

// IsRetryable reports whether err is a transient store failure worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable)
}
