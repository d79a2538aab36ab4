package repository

import (
	"context"
	"fmt"
	"time"

	"smart-coop/internal/models"

	"gorm.io/gorm"
)

type PasswordChangeRepository struct {
	db *gorm.DB
}

func NewPasswordChangeRepository(db *gorm.DB) *PasswordChangeRepository {
	return &PasswordChangeRepository{db: db}
}

func (r *PasswordChangeRepository) Create(ctx context.Context, req *models.PasswordChangeRequest) error {
	req.ExpiresAt = req.ExpiresAt.UTC()
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return fmt.Errorf("create password change: %w", translate(err))
	}
	return nil
}

func (r *PasswordChangeRepository) GetByToken(ctx context.Context, token string) (*models.PasswordChangeRequest, error) {
	var req models.PasswordChangeRequest
	if err := r.db.WithContext(ctx).Where("token = ?", token).First(&req).Error; err != nil {
		return nil, translate(err)
	}
	return &req, nil
}

// Delete removes the request and reports ErrNotFound if it was already gone,
// so two concurrent confirmations cannot both succeed.
func (r *PasswordChangeRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.PasswordChangeRequest{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete password change %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PasswordChangeRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", now.UTC()).
		Delete(&models.PasswordChangeRequest{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired password changes: %w", res.Error)
	}
	return res.RowsAffected, nil
}
