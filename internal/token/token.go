// Package token issues and verifies the signed, time-bounded tokens handed
// out at login and refresh.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"banking/internal/domain"
)

const (
	AudienceAccess  = "access"
	AudienceRefresh = "refresh"
)

// Claims is the verified content of a token.
type Claims struct {
	Subject   string
	ID        string
	Audience  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Codec signs tokens with HS256 using a process-wide secret.
type Codec struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Codec)

// WithClock overrides the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func NewCodec(secret string, opts ...Option) (*Codec, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("token secret is required")
	}
	c := &Codec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Issue mints a token for subject valid for ttl. The returned expiry is the
// one encoded in the token, truncated to whole seconds.
func (c *Codec) Issue(subject, audience string, ttl time.Duration) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, errors.New("token subject is required")
	}
	if ttl <= 0 {
		return "", time.Time{}, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	now := c.now()
	claims := jwt.RegisteredClaims{
		Issuer:    subject,
		Subject:   subject,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		ID:        uuid.NewString(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, algorithm, audience and expiry. Every failure is
// reported as domain.ErrTokenInvalid.
func (c *Codec) Verify(raw, audience string) (Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Claims{}, fmt.Errorf("%w: empty token", domain.ErrTokenInvalid)
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &parsed, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", domain.ErrTokenInvalid, err)
	}
	if parsed.Subject == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", domain.ErrTokenInvalid)
	}

	claims := Claims{
		Subject:   parsed.Subject,
		ID:        parsed.ID,
		Audience:  audience,
		ExpiresAt: parsed.ExpiresAt.Time,
	}
	if parsed.IssuedAt != nil {
		claims.IssuedAt = parsed.IssuedAt.Time
	}
	return claims, nil
}
