package domain

import "time"

// Session binds a user to an active token pair and bounds concurrent logins.
// Raw tokens are never stored; both token fields hold SHA-256 digests.
type Session struct {
	ID               string
	UserID           string
	AccessTokenRef   string // digest of the access token issued with this session
	RefreshTokenHash string // digest of the refresh token issued alongside it
	UserAgent        string
	IPAddress        string
	CreatedAt        time.Time
	ExpiresAt        time.Time
	Revoked          bool
}

// Active reports whether the session is usable at the given instant.
func (s *Session) Active(now time.Time) bool {
	return !s.Revoked && s.ExpiresAt.After(now)
}
