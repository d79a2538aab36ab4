package database

import (
	"path/filepath"
	"testing"

	"smart-coop/internal/config"
	"smart-coop/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitAndMigrate_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "coop.db")

	db, err := Init(config.DatabaseConfig{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, AutoMigrate(db))

	for _, model := range []interface{}{
		&models.User{},
		&models.BlacklistedToken{},
		&models.PasswordChangeRequest{},
		&models.History{},
		&models.Vaccine{},
		&models.Feeding{},
	} {
		assert.True(t, db.Migrator().HasTable(model), "missing table for %T", model)
	}
	assert.True(t, db.Migrator().HasIndex(&models.BlacklistedToken{}, "Token"))
}

func TestInit_UnknownDriver(t *testing.T) {
	_, err := Init(config.DatabaseConfig{Driver: "oracle"})
	assert.Error(t, err)
}
