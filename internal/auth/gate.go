package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"smart-coop/internal/models"
	"smart-coop/internal/repository"
)

// Blacklist is the store of revoked tokens. Implemented by
// repository.BlacklistRepository and the redis backend.
type Blacklist interface {
	// Add reports false when token was already present.
	Add(ctx context.Context, token string, userID *uint, expiresAt time.Time) (bool, error)
	Contains(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type UserFinder interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
}

// Gate decides whether a presented session token may act.
type Gate struct {
	tokens    *TokenManager
	blacklist Blacklist
	users     UserFinder
}

func NewGate(tokens *TokenManager, blacklist Blacklist, users UserFinder) *Gate {
	return &Gate{tokens: tokens, blacklist: blacklist, users: users}
}

// Authenticate returns the user a raw token acts for. The blacklist is
// consulted before the token's claims are trusted. Errors matching
// ErrUnauthenticated or ErrSessionExpired are verdicts; any other error
// is a store failure.
func (g *Gate) Authenticate(ctx context.Context, raw string) (*models.User, *Claims, error) {
	if raw == "" {
		return nil, nil, ErrMissingToken
	}

	revoked, err := g.blacklist.Contains(ctx, raw)
	if err != nil {
		return nil, nil, err
	}
	if revoked {
		// Rejected either way; an expired revoked token still reports
		// expiry so the client sees the same verdict before and after
		// the sweep removes the row.
		if _, err := g.tokens.Parse(raw); errors.Is(err, ErrSessionExpired) {
			return nil, nil, err
		}
		return nil, nil, ErrRevoked
	}

	claims, err := g.tokens.Parse(raw)
	if err != nil {
		return nil, nil, err
	}

	user, err := g.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, fmt.Errorf("%w: user %d not found", ErrUnauthenticated, claims.UserID)
		}
		return nil, nil, err
	}
	if !user.IsActive() {
		return nil, nil, fmt.Errorf("%w: user %d is %s", ErrUnauthenticated, user.ID, user.Status)
	}
	return user, claims, nil
}
