package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// TokenTypeBearer is the OAuth2 token type returned to clients.
const TokenTypeBearer = "bearer"

// MinSecretLength is the minimum HMAC key size in bytes for HS256.
const MinSecretLength = 32

var (
	// ErrInvalidToken covers malformed, tampered and wrongly signed tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a well-formed token past its expiry.
	ErrExpiredToken = errors.New("token expired")
	// ErrWeakSecret indicates the signing key is too short.
	ErrWeakSecret = errors.New("signing secret must be at least 32 bytes")
	// ErrEmptySubject indicates an attempt to issue a token without a username.
	ErrEmptySubject = errors.New("token subject is required")
)

// Claims are the JWT claims carried by an access token.
// The username travels in the registered "sub" claim.
type Claims struct {
	jwt.RegisteredClaims
}

// Username returns the token subject.
func (c *Claims) Username() string {
	return c.Subject
}

// IssuedToken is a freshly minted access token.
type IssuedToken struct {
	AccessToken string
	TokenType   string
	TokenID     string
	ExpiresAt   time.Time
	ExpiresIn   time.Duration
}

// TokenManager issues and validates HS256-signed access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// TokenOption configures a TokenManager.
type TokenOption func(*TokenManager)

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) TokenOption {
	return func(m *TokenManager) {
		m.now = now
	}
}

// NewTokenManager creates a TokenManager.
func NewTokenManager(secret []byte, issuer string, ttl time.Duration, opts ...TokenOption) (*TokenManager, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}

	m := &TokenManager{
		secret: secret,
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL returns the configured token lifetime.
func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a signed token for username.
func (m *TokenManager) Issue(username string) (*IssuedToken, error) {
	if username == "" {
		return nil, ErrEmptySubject
	}

	now := m.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(m.ttl)
	tokenID := ulid.Make().String()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        tokenID,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	return &IssuedToken{
		AccessToken: signed,
		TokenType:   TokenTypeBearer,
		TokenID:     tokenID,
		ExpiresAt:   expiresAt,
		ExpiresIn:   m.ttl,
	}, nil
}

// Validate verifies signature, algorithm, issuer and expiry.
// It returns ErrExpiredToken or ErrInvalidToken, wrapping the parser error.
func (m *TokenManager) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.now),
	}
	if m.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(m.issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, parserOpts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
