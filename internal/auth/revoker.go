package auth

import (
	"context"
	"fmt"
)

// Revoker blacklists tokens until their own exp claim.
type Revoker struct {
	tokens    *TokenManager
	blacklist Blacklist
}

func NewRevoker(tokens *TokenManager, blacklist Blacklist) *Revoker {
	return &Revoker{tokens: tokens, blacklist: blacklist}
}

// Revoke adds raw to the blacklist with expires_at taken from the token
// itself. Revoking the same token again is a no-op. Tokens that fail
// signature verification or carry no exp are rejected.
func (r *Revoker) Revoke(ctx context.Context, raw string) error {
	claims, err := r.tokens.Decode(raw)
	if err != nil {
		return err
	}
	userID := claims.UserID
	if _, err := r.blacklist.Add(ctx, raw, &userID, claims.ExpiresAt.Time); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Consume is Revoke for single-use tokens: only the first caller for a
// given token succeeds, later or concurrent callers get ErrRevoked.
func (r *Revoker) Consume(ctx context.Context, raw string) error {
	claims, err := r.tokens.Decode(raw)
	if err != nil {
		return err
	}
	userID := claims.UserID
	inserted, err := r.blacklist.Add(ctx, raw, &userID, claims.ExpiresAt.Time)
	if err != nil {
		return fmt.Errorf("consume token: %w", err)
	}
	if !inserted {
		return ErrRevoked
	}
	return nil
}
