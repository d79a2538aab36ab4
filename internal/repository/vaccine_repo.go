package repository

import (
	"context"
	"fmt"
	"time"

	"smart-coop/internal/models"

	"gorm.io/gorm"
)

type VaccineRepository struct {
	db *gorm.DB
}

func NewVaccineRepository(db *gorm.DB) *VaccineRepository {
	return &VaccineRepository{db: db}
}

// VaccineFilter narrows List. Zero values are not applied; From and To
// bound the due date inclusively.
type VaccineFilter struct {
	UserID       uint
	Administered *bool
	From         time.Time
	To           time.Time
}

func (r *VaccineRepository) Create(ctx context.Context, v *models.Vaccine) error {
	v.DueDate = v.DueDate.UTC()
	if err := r.db.WithContext(ctx).Create(v).Error; err != nil {
		return fmt.Errorf("create vaccine: %w", translate(err))
	}
	return nil
}

// CreateBatch inserts a generated schedule in one transaction.
func (r *VaccineRepository) CreateBatch(ctx context.Context, vaccines []models.Vaccine) error {
	if len(vaccines) == 0 {
		return nil
	}
	for i := range vaccines {
		vaccines[i].DueDate = vaccines[i].DueDate.UTC()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&vaccines).Error
	})
	if err != nil {
		return fmt.Errorf("create vaccination schedule: %w", translate(err))
	}
	return nil
}

// Get returns vaccine id if it belongs to userID.
func (r *VaccineRepository) Get(ctx context.Context, id, userID uint) (*models.Vaccine, error) {
	var v models.Vaccine
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&v).Error; err != nil {
		return nil, translate(err)
	}
	return &v, nil
}

// List returns matching vaccines, earliest due first.
func (r *VaccineRepository) List(ctx context.Context, f VaccineFilter) ([]models.Vaccine, error) {
	q := r.db.WithContext(ctx).Model(&models.Vaccine{})
	if f.UserID != 0 {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Administered != nil {
		q = q.Where("administered = ?", *f.Administered)
	}
	if !f.From.IsZero() {
		q = q.Where("due_date >= ?", f.From.UTC())
	}
	if !f.To.IsZero() {
		q = q.Where("due_date <= ?", f.To.UTC())
	}

	var vaccines []models.Vaccine
	if err := q.Order("due_date ASC, id ASC").Find(&vaccines).Error; err != nil {
		return nil, fmt.Errorf("list vaccines: %w", err)
	}
	return vaccines, nil
}

// Update writes the given columns of vaccine id owned by userID.
func (r *VaccineRepository) Update(ctx context.Context, id, userID uint, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Vaccine{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update vaccine %d: %w", id, translate(res.Error))
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *VaccineRepository) Delete(ctx context.Context, id, userID uint) error {
	res := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Vaccine{})
	if res.Error != nil {
		return fmt.Errorf("delete vaccine %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DueBetween returns pending vaccines due in [from, to] that were not
// reminded on day, with their owner loaded, grouped by user.
func (r *VaccineRepository) DueBetween(ctx context.Context, from, to time.Time, day string) ([]models.Vaccine, error) {
	var vaccines []models.Vaccine
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("administered = ? AND due_date >= ? AND due_date <= ? AND reminded_on <> ?", false, from.UTC(), to.UTC(), day).
		Order("user_id ASC, due_date ASC, id ASC").
		Find(&vaccines).Error; err != nil {
		return nil, fmt.Errorf("list due vaccines: %w", err)
	}
	return vaccines, nil
}

// MarkReminded records that ids were reminded on day.
func (r *VaccineRepository) MarkReminded(ctx context.Context, ids []uint, day string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Model(&models.Vaccine{}).
		Where("id IN ?", ids).
		Update("reminded_on", day).Error; err != nil {
		return fmt.Errorf("mark vaccines reminded: %w", err)
	}
	return nil
}
