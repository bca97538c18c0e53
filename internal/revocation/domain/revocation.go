package domain

import "time"

// RevokedToken is one append-only ledger entry for a token invalidated before
// its natural expiry. TokenHash is a SHA-256 digest; raw tokens never appear.
type RevokedToken struct {
	TokenHash string
	UserID    string
	RevokedAt time.Time
}
