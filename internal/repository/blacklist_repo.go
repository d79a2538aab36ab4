package repository

import (
	"context"
	"fmt"
	"time"

	"smart-coop/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BlacklistRepository stores revoked session tokens in SQL.
type BlacklistRepository struct {
	db *gorm.DB
}

func NewBlacklistRepository(db *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{db: db}
}

// Add inserts token with the given expiry and reports whether this call
// inserted it. Adding a token that is already present is a no-op and
// returns false.
func (r *BlacklistRepository) Add(ctx context.Context, token string, userID *uint, expiresAt time.Time) (bool, error) {
	row := models.BlacklistedToken{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt.UTC(),
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "token"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, fmt.Errorf("blacklist token: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *BlacklistRepository) Contains(ctx context.Context, token string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.BlacklistedToken{}).
		Where("token = ?", token).
		Limit(1).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("lookup blacklisted token: %w", err)
	}
	return count > 0, nil
}

// DeleteExpired removes every row whose expiry is strictly before now and
// returns how many were removed.
func (r *BlacklistRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&models.BlacklistedToken{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", res.Error)
	}
	return res.RowsAffected, nil
}
