package repository

import (
	"context"
	"fmt"
	"time"

	"smart-coop/internal/models"

	"gorm.io/gorm"
)

// HistoryFilter narrows a history listing. Zero values disable a filter.
type HistoryFilter struct {
	UserID *uint
	Type   string
	Start  time.Time // inclusive
	End    time.Time // exclusive
	Limit  int
	Offset int
}

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, entry *models.History) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// List returns the entries matching f, newest first, and the total
// number of matches ignoring Limit/Offset.
func (r *HistoryRepository) List(ctx context.Context, f HistoryFilter) ([]models.History, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.History{})
	if f.UserID != nil {
		base = base.Where("user_id = ?", *f.UserID)
	}
	if f.Type != "" {
		base = base.Where("type = ?", f.Type)
	}
	if !f.Start.IsZero() {
		base = base.Where("created_at >= ?", f.Start.UTC())
	}
	if !f.End.IsZero() {
		base = base.Where("created_at < ?", f.End.UTC())
	}

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	q := base.Order("created_at DESC, id DESC")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}
	var entries []models.History
	if err := q.Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	return entries, total, nil
}
