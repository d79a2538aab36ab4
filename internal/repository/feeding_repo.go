package repository

import (
	"context"
	"errors"
	"fmt"

	"smart-coop/internal/models"

	"gorm.io/gorm"
)

// ErrInsufficient is returned when a decrement would make a stock negative.
var ErrInsufficient = errors.New("insufficient quantity")

type FeedingRepository struct {
	db *gorm.DB
}

func NewFeedingRepository(db *gorm.DB) *FeedingRepository {
	return &FeedingRepository{db: db}
}

// FeedStat aggregates the active stocks of one feed type.
type FeedStat struct {
	FeedType  string  `json:"feed_type"`
	Remaining float64 `json:"remaining"`
	Initial   float64 `json:"initial"`
	Consumed  float64 `json:"consumed"`
	Count     int64   `json:"count"`
}

func (r *FeedingRepository) Create(ctx context.Context, f *models.Feeding) error {
	if err := r.db.WithContext(ctx).Create(f).Error; err != nil {
		return fmt.Errorf("create feeding: %w", translate(err))
	}
	return nil
}

// Get returns feeding id if it belongs to userID.
func (r *FeedingRepository) Get(ctx context.Context, id, userID uint) (*models.Feeding, error) {
	var f models.Feeding
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&f).Error; err != nil {
		return nil, translate(err)
	}
	return &f, nil
}

// List returns the user's active or archived feedings, newest first.
func (r *FeedingRepository) List(ctx context.Context, userID uint, archived bool) ([]models.Feeding, error) {
	var feedings []models.Feeding
	if err := r.db.WithContext(ctx).
		Where("user_id = ? AND archived = ?", userID, archived).
		Order("created_at DESC, id DESC").
		Find(&feedings).Error; err != nil {
		return nil, fmt.Errorf("list feedings: %w", err)
	}
	return feedings, nil
}

// Update writes the given columns of feeding id owned by userID.
func (r *FeedingRepository) Update(ctx context.Context, id, userID uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Feeding{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update feeding %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Decrement moves amount from the remaining to the consumed quantity in a
// single statement. It fails with ErrInsufficient rather than going
// negative.
func (r *FeedingRepository) Decrement(ctx context.Context, id, userID uint, amount float64) (*models.Feeding, error) {
	res := r.db.WithContext(ctx).Model(&models.Feeding{}).
		Where("id = ? AND user_id = ? AND quantity >= ?", id, userID, amount).
		Updates(map[string]interface{}{
			"quantity":          gorm.Expr("quantity - ?", amount),
			"consumed_quantity": gorm.Expr("consumed_quantity + ?", amount),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("decrement feeding %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id, userID); err != nil {
			return nil, err
		}
		return nil, ErrInsufficient
	}
	return r.Get(ctx, id, userID)
}

// Stats groups the user's active feedings by feed type.
func (r *FeedingRepository) Stats(ctx context.Context, userID uint) ([]FeedStat, error) {
	var stats []FeedStat
	if err := r.db.WithContext(ctx).Model(&models.Feeding{}).
		Select("feed_type, SUM(quantity) AS remaining, SUM(initial_quantity) AS initial, SUM(consumed_quantity) AS consumed, COUNT(*) AS count").
		Where("user_id = ? AND archived = ?", userID, false).
		Group("feed_type").
		Order("feed_type").
		Scan(&stats).Error; err != nil {
		return nil, fmt.Errorf("feeding stats: %w", err)
	}
	return stats, nil
}

// StartingBetween returns active programs whose start time lies in
// [from, to] (HH:MM, wrapping past midnight when to < from) and that were
// not reminded on day, with their owner loaded.
func (r *FeedingRepository) StartingBetween(ctx context.Context, from, to, day string) ([]models.Feeding, error) {
	q := r.db.WithContext(ctx).
		Preload("User").
		Where("archived = ? AND program_start <> '' AND reminded_on <> ?", false, day)
	if from <= to {
		q = q.Where("program_start >= ? AND program_start <= ?", from, to)
	} else {
		q = q.Where("(program_start >= ? OR program_start <= ?)", from, to)
	}

	var feedings []models.Feeding
	if err := q.Order("program_start ASC, id ASC").Find(&feedings).Error; err != nil {
		return nil, fmt.Errorf("list upcoming feedings: %w", err)
	}
	return feedings, nil
}

// MarkReminded records that feeding id was reminded on day.
func (r *FeedingRepository) MarkReminded(ctx context.Context, id uint, day string) error {
	if err := r.db.WithContext(ctx).Model(&models.Feeding{}).
		Where("id = ?", id).
		Update("reminded_on", day).Error; err != nil {
		return fmt.Errorf("mark feeding reminded: %w", err)
	}
	return nil
}
