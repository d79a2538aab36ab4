package auth

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
)

// BlacklistSweeper deletes blacklist rows whose token has expired.
type BlacklistSweeper struct {
	blacklist Blacklist
	clock     clockwork.Clock
	logger    *slog.Logger
}

func NewBlacklistSweeper(blacklist Blacklist, clock clockwork.Clock, logger *slog.Logger) *BlacklistSweeper {
	return &BlacklistSweeper{blacklist: blacklist, clock: clock, logger: logger}
}

func (s *BlacklistSweeper) Name() string { return "token-sweep" }

func (s *BlacklistSweeper) Run(ctx context.Context) error {
	n, err := s.blacklist.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("sweep blacklist: %w", err)
	}
	s.logger.Info("expired blacklisted tokens removed", "deleted", n)
	return nil
}

type PasswordChangeStore interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// PasswordChangeSweeper deletes pending password changes past their expiry.
type PasswordChangeSweeper struct {
	store  PasswordChangeStore
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewPasswordChangeSweeper(store PasswordChangeStore, clock clockwork.Clock, logger *slog.Logger) *PasswordChangeSweeper {
	return &PasswordChangeSweeper{store: store, clock: clock, logger: logger}
}

func (s *PasswordChangeSweeper) Name() string { return "password-change-sweep" }

func (s *PasswordChangeSweeper) Run(ctx context.Context) error {
	n, err := s.store.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("sweep password changes: %w", err)
	}
	s.logger.Info("expired password change requests removed", "deleted", n)
	return nil
}
