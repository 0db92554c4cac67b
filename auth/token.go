package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the session lifetime used by the API.
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrTokenInvalid signals a missing, malformed, forged or expired session token.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired signals an expired token. It matches ErrTokenInvalid.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrTokenInvalid)
)

// Claims are the identity facts embedded in a session token. They carry no
// role; authorization decisions re-read the role from the store.
type Claims struct {
	UserID   string
	FullName string
}

type tokenClaims struct {
	UserID   string `json:"userId"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens with a secret fixed at
// construction.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption customises a TokenIssuer.
type TokenOption func(*TokenIssuer)

// WithClock replaces the time source used for issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(i *TokenIssuer) { i.now = now }
}

// NewTokenIssuer validates secret and ttl and returns an issuer.
func NewTokenIssuer(secret string, ttl time.Duration, opts ...TokenOption) (*TokenIssuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: token secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %s", ttl)
	}

	i := &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// TTL returns the lifetime of issued tokens.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Issue signs a token for c and returns it with its absolute expiry.
func (i *TokenIssuer) Issue(c Claims) (string, time.Time, error) {
	if c.UserID == "" {
		return "", time.Time{}, fmt.Errorf("auth: issue token: empty user id")
	}

	now := i.now()
	expiresAt := now.Add(i.ttl)
	claims := tokenClaims{
		UserID:   c.UserID,
		FullName: c.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify checks the signature and expiry of token and returns its claims.
func (i *TokenIssuer) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, fmt.Errorf("%w: empty", ErrTokenInvalid)
	}

	var tc tokenClaims
	_, err := jwt.ParseWithClaims(token, &tc,
		func(*jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if tc.UserID == "" {
		return Claims{}, fmt.Errorf("%w: missing user id", ErrTokenInvalid)
	}

	return Claims{UserID: tc.UserID, FullName: tc.FullName}, nil
}
