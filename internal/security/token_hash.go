package security

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// TokenDigest returns a SHA-256 hash of the token string, hex-encoded.
// Used for storing and comparing tokens without persisting the raw token.
func TokenDigest(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// TokenDigestEqual performs constant-time comparison of the provided token's
// digest with a stored digest. Returns true only if they match.
func TokenDigestEqual(providedToken, storedDigest string) bool {
	return subtle.ConstantTimeCompare([]byte(TokenDigest(providedToken)), []byte(storedDigest)) == 1
}

// CredentialHashEqual compares an asserted password hash against the stored
// one in constant time, so a mismatch position cannot be observed from timing.
func CredentialHashEqual(assertedHash, storedHash string) bool {
	return subtle.ConstantTimeCompare([]byte(assertedHash), []byte(storedHash)) == 1
}

// RedactToken truncates a token for log output. Raw tokens must never be
// logged in full.
func RedactToken(token string) string {
	if len(token) <= 10 {
		return "[redacted]"
	}
	return token[:10] + "..."
}
