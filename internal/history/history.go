// Package history records user and system actions.
package history

import (
	"context"
	"log/slog"

	"smart-coop/internal/models"
	"smart-coop/internal/repository"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Store is implemented by repository.HistoryRepository and the mongo backend.
type Store interface {
	Append(ctx context.Context, entry *models.History) error
	List(ctx context.Context, f repository.HistoryFilter) ([]models.History, int64, error)
}

type Service struct {
	store  Store
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewService(store Store, clock clockwork.Clock, logger *slog.Logger) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, clock: clock, logger: logger}
}

// Log appends an entry. A failed write is logged and swallowed so the
// calling flow still succeeds. userID is nil for system actions.
func (s *Service) Log(ctx context.Context, userID *uint, typ, action, description string, data map[string]interface{}) {
	entry := &models.History{
		ID:          uuid.NewString(),
		UserID:      userID,
		Type:        typ,
		Action:      action,
		Description: description,
		Data:        data,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if err := s.store.Append(ctx, entry); err != nil {
		s.logger.Error("write history entry", "type", typ, "action", action, "error", err)
	}
}

// LogUser is Log for an action taken by user id.
func (s *Service) LogUser(ctx context.Context, userID uint, typ, action, description string, data map[string]interface{}) {
	s.Log(ctx, &userID, typ, action, description, data)
}

func (s *Service) List(ctx context.Context, f repository.HistoryFilter) ([]models.History, int64, error) {
	return s.store.List(ctx, f)
}
