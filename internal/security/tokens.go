package security

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenForged is returned when a token is malformed, carries a bad
	// signature, or was signed under a different key or issuer.
	ErrTokenForged = errors.New("token forged")
	// ErrTokenExpired is returned when a token's signature verifies but its
	// expiry has passed and expiry verification was requested.
	ErrTokenExpired = errors.New("token expired")
)

// TokenKind distinguishes the two halves of an issued token pair.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Claims is the payload of an issued bearer token.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"type"`
}

// Kind returns the token kind recorded in the claims.
func (c *Claims) Kind() TokenKind { return TokenKind(c.TokenType) }

// TokenProvider issues and decodes signed bearer tokens. It signs with either
// a shared HS256 secret or an ES256 keypair generated at most once per
// process; the private half never leaves the provider.
type TokenProvider struct {
	issuer string
	secret []byte // HS256 mode when non-empty

	keyOnce    sync.Once
	privateKey *ecdsa.PrivateKey
	keyErr     error
}

// NewTokenProvider returns a provider signing with the given HS256 shared
// secret. Every instance of the service must be configured with the same
// secret so tokens verify across instances.
func NewTokenProvider(secret []byte, issuer string) *TokenProvider {
	return &TokenProvider{issuer: issuer, secret: secret}
}

// NewEphemeralTokenProvider returns a provider that lazily generates an ES256
// keypair on first use. Tokens signed by one process do not verify in another;
// use only for single-instance deployments and development.
func NewEphemeralTokenProvider(issuer string) *TokenProvider {
	return &TokenProvider{issuer: issuer}
}

func (p *TokenProvider) ephemeral() bool { return len(p.secret) == 0 }

func (p *TokenProvider) ensureKeys() error {
	p.keyOnce.Do(func() {
		p.privateKey, p.keyErr = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	})
	return p.keyErr
}

// PublicKey returns the public half of the generated keypair, or nil when the
// provider signs with a shared secret.
func (p *TokenProvider) PublicKey() crypto.PublicKey {
	if !p.ephemeral() {
		return nil
	}
	if err := p.ensureKeys(); err != nil {
		return nil
	}
	return &p.privateKey.PublicKey
}

func (p *TokenProvider) signingMethod() jwt.SigningMethod {
	if p.ephemeral() {
		return jwt.SigningMethodES256
	}
	return jwt.SigningMethodHS256
}

func (p *TokenProvider) signingKey() (any, error) {
	if p.ephemeral() {
		if err := p.ensureKeys(); err != nil {
			return nil, err
		}
		return p.privateKey, nil
	}
	return p.secret, nil
}

// keyFunc pins the verification key to the provider's signing method so a
// token cannot downgrade or switch algorithms.
func (p *TokenProvider) keyFunc(token *jwt.Token) (any, error) {
	if p.ephemeral() {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, ErrTokenForged
		}
		if err := p.ensureKeys(); err != nil {
			return nil, err
		}
		return &p.privateKey.PublicKey, nil
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, ErrTokenForged
	}
	return p.secret, nil
}

// Issue signs a token of the given kind for subject, valid for ttl from now.
// Returns the token string and its expiry; expires_at is exactly issued_at+ttl.
func (p *TokenProvider) Issue(subject string, kind TokenKind, ttl time.Duration) (string, time.Time, error) {
	now := time.Now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		TokenType: string(kind),
	}
	key, err := p.signingKey()
	if err != nil {
		return "", time.Time{}, err
	}
	signed, err := jwt.NewWithClaims(p.signingMethod(), claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Decode verifies the token's signature and issuer and returns its claims.
// With verifyExpiry the expiry is checked and an expired token yields
// ErrTokenExpired. Without it the claims of an expired token are still
// returned so callers can reason about refresh eligibility; authenticity is
// verified either way.
func (p *TokenProvider) Decode(tokenString string, verifyExpiry bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{p.signingMethod().Alg()}),
	}
	if !verifyExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, p.keyFunc, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrTokenForged
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrTokenExpired
		default:
			return nil, ErrTokenForged
		}
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenForged
	}
	if claims.Issuer != p.issuer {
		return nil, ErrTokenForged
	}
	return claims, nil
}
