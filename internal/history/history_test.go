package history

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"smart-coop/internal/config"
	"smart-coop/internal/database"
	"smart-coop/internal/logger"
	"smart-coop/internal/models"
	"smart-coop/internal/repository"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type brokenStore struct{}

func (brokenStore) Append(context.Context, *models.History) error { return errors.New("disk full") }
func (brokenStore) List(context.Context, repository.HistoryFilter) ([]models.History, int64, error) {
	return nil, 0, errors.New("disk full")
}

func TestService_Log(t *testing.T) {
	db, err := database.Init(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "history.db")})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	clock := clockwork.NewFakeClockAt(time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC))
	svc := NewService(repository.NewHistoryRepository(db), clock, logger.Discard())
	ctx := context.Background()

	svc.LogUser(ctx, 5, models.HistoryConnexion, "user_logged_in", "alice logged in", map[string]interface{}{"ip": "10.0.0.1"})
	svc.Log(ctx, nil, models.HistoryMaintenance, "token-sweep", "", nil)

	uid := uint(5)
	entries, total, err := svc.List(ctx, repository.HistoryFilter{UserID: &uid})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ID, 36)
	assert.Equal(t, "10.0.0.1", entries[0].Data["ip"])
	assert.True(t, entries[0].CreatedAt.Equal(clock.Now()))
}

func TestService_LogSwallowsStoreErrors(t *testing.T) {
	var buf bytes.Buffer
	svc := NewService(brokenStore{}, nil, logger.NewWithWriter(&buf, config.LogConfig{Level: "info"}))

	svc.LogUser(context.Background(), 1, models.HistoryAuth, "user_logged_out", "", nil)
	assert.Contains(t, buf.String(), "disk full")
}
