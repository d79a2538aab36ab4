package database

import (
	"fmt"

	"smart-coop/internal/models"

	"gorm.io/gorm"
)

// AutoMigrate runs database schema migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.User{},
		&models.BlacklistedToken{},
		&models.PasswordChangeRequest{},
		&models.History{},
		&models.Vaccine{},
		&models.Feeding{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
