// Package auth issues, verifies and revokes session tokens.
package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"smart-coop/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// AudienceReset marks forgotten-password tokens so they are never
// accepted as session tokens, even when both managers share a secret.
const AudienceReset = "password-reset"

// Claims is the JWT payload.
type Claims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type TokenOptions struct {
	Secret   string
	Issuer   string
	Audience string
	TTL      time.Duration
	Clock    clockwork.Clock
}

// TokenManager signs and parses HS256 tokens with one secret and lifetime.
type TokenManager struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	clock    clockwork.Clock
}

func NewTokenManager(opts TokenOptions) (*TokenManager, error) {
	if opts.Secret == "" {
		return nil, errors.New("auth: token secret is empty")
	}
	if opts.TTL <= 0 {
		return nil, fmt.Errorf("auth: token ttl must be positive, got %s", opts.TTL)
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	return &TokenManager{
		secret:   []byte(opts.Secret),
		issuer:   opts.Issuer,
		audience: opts.Audience,
		ttl:      opts.TTL,
		clock:    opts.Clock,
	}, nil
}

func (m *TokenManager) TTL() time.Duration { return m.ttl }

// Issue signs a token for user expiring TTL from now and returns it with
// its expiry.
func (m *TokenManager) Issue(user *models.User) (string, time.Time, error) {
	now := m.clock.Now()
	claims := &Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	if m.audience != "" {
		claims.Audience = jwt.ClaimStrings{m.audience}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Parse verifies signature, issuer, audience and expiry. An expired but
// otherwise valid token yields ErrSessionExpired; everything else that
// fails yields ErrUnauthenticated.
func (m *TokenManager) Parse(raw string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}
	if m.audience != "" {
		opts = append(opts, jwt.WithAudience(m.audience))
	}

	claims, err := m.parse(raw, opts...)
	if err != nil {
		// jwt/v5 checks the signature before the claims, so an expiry
		// error implies a genuine token.
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if m.audience == "" && len(claims.Audience) > 0 {
		return nil, fmt.Errorf("%w: unexpected audience %v", ErrUnauthenticated, claims.Audience)
	}
	return claims, nil
}

// Decode verifies the signature only and returns the claims, so expired
// tokens can still be read. The exp claim must be present.
func (m *TokenManager) Decode(raw string) (*Claims, error) {
	claims, err := m.parse(raw, jwt.WithoutClaimsValidation())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: token has no exp claim", ErrUnauthenticated)
	}
	if m.audience != "" && !slices.Contains(claims.Audience, m.audience) {
		return nil, fmt.Errorf("%w: unexpected audience %v", ErrUnauthenticated, claims.Audience)
	}
	return claims, nil
}

func (m *TokenManager) parse(raw string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}
