// Package token issues and verifies the HS256 bearer tokens used for
// sessions.
//
// Two kinds share one secret: short-lived access tokens carrying the user's
// email, id and first name, and 7-day refresh tokens carrying only the email.
// Nothing is persisted; validity is signature plus expiry.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	KindAccess  = "access"
	KindRefresh = "refresh"

	// RefreshTTL is fixed; only the access lifetime is configurable.
	RefreshTTL = 7 * 24 * time.Hour

	// DefaultAccessTTL is used when no lifetime is configured.
	DefaultAccessTTL = 30 * time.Minute
)

// Claims is the decoded payload of either token kind. Refresh tokens leave
// UserID and FirstName empty.
type Claims struct {
	UserID    int64  `json:"user_id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	Kind      string `json:"token_type"`
	jwt.RegisteredClaims
}

// Email returns the subject claim.
func (c *Claims) Email() string { return c.Subject }

// Identity is what an access token asserts about its bearer.
type Identity struct {
	UserID    int64
	Email     string
	FirstName string
}

// Issuer signs and verifies tokens. It is immutable after construction.
type Issuer struct {
	secret    []byte
	accessTTL time.Duration
	now       func() time.Time
}

type Option func(*Issuer)

// WithClock overrides the time source for issuing and verifying.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer returns an Issuer signing with secret. A zero accessTTL selects
// DefaultAccessTTL.
func NewIssuer(secret []byte, accessTTL time.Duration, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if accessTTL < 0 {
		return nil, fmt.Errorf("access token ttl must be positive, got %s", accessTTL)
	}
	if accessTTL == 0 {
		accessTTL = DefaultAccessTTL
	}
	i := &Issuer{
		secret:    append([]byte(nil), secret...),
		accessTTL: accessTTL,
		now:       time.Now,
	}
	for _, o := range opts {
		o(i)
	}
	return i, nil
}

// AccessTTL returns the configured default access lifetime.
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// IssueAccess signs an access token for id. A non-positive ttl falls back to
// the configured default.
func (i *Issuer) IssueAccess(id Identity, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = i.accessTTL
	}
	return i.sign(&Claims{
		UserID:    id.UserID,
		FirstName: id.FirstName,
		Kind:      KindAccess,
	}, id.Email, ttl)
}

// IssueRefresh signs a refresh token for email with the fixed RefreshTTL.
func (i *Issuer) IssueRefresh(email string) (string, error) {
	return i.sign(&Claims{Kind: KindRefresh}, email, RefreshTTL)
}

func (i *Issuer) sign(c *Claims, subject string, ttl time.Duration) (string, error) {
	now := i.now()
	c.Subject = subject
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", c.Kind, err)
	}
	return s, nil
}

// Verify checks signature, algorithm and expiry and returns the claims.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// VerifyRefresh is Verify restricted to refresh tokens.
func (i *Issuer) VerifyRefresh(tokenString string) (*Claims, error) {
	c, err := i.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if c.Kind != KindRefresh || c.Subject == "" {
		return nil, fmt.Errorf("%w: not a refresh token", ErrInvalidToken)
	}
	return c, nil
}

// ExtractUserID verifies an access token and returns its user_id claim.
func (i *Issuer) ExtractUserID(tokenString string) (int64, error) {
	c, err := i.Verify(tokenString)
	if err != nil {
		return 0, err
	}
	if c.UserID == 0 {
		return 0, fmt.Errorf("%w: user_id", ErrMissingClaim)
	}
	return c.UserID, nil
}
