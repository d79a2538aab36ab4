package models

import "time"

// LowStockThreshold is the remaining quantity under which a feed stock
// triggers a low-stock alert.
const LowStockThreshold = 100

// Vaccine is one planned or administered vaccination of a flock.
type Vaccine struct {
	ID               uint       `gorm:"primaryKey" json:"id"`
	UserID           uint       `gorm:"index;not null" json:"user_id"`
	Name             string     `gorm:"size:128;not null" json:"name"`
	DueDate          time.Time  `gorm:"index;not null" json:"due_date"` // midnight UTC of the planned day
	BatchNumber      string     `gorm:"size:64" json:"batch_number"`
	NumberOfChickens int        `json:"number_of_chickens"`
	WeekNumber       int        `json:"week_number"`
	Notes            string     `gorm:"size:512" json:"notes"`
	Administered     bool       `gorm:"index;not null" json:"administered"`
	AdministeredAt   *time.Time `json:"administered_at"`
	RemindedOn       string     `gorm:"size:10" json:"-"` // YYYY-MM-DD of the last reminder
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// Feeding is a feed stock with its daily distribution program. Program
// and water times are HH:MM in the scheduler time zone.
type Feeding struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	UserID           uint      `gorm:"index;not null" json:"user_id"`
	FeedType         string    `gorm:"size:64;not null" json:"feed_type"`
	Quantity         float64   `gorm:"not null" json:"quantity"` // remaining
	InitialQuantity  float64   `gorm:"not null" json:"initial_quantity"`
	ConsumedQuantity float64   `gorm:"not null" json:"consumed_quantity"`
	Notes            string    `gorm:"size:512" json:"notes"`
	AutomaticFeeding bool      `gorm:"not null" json:"automatic_feeding"`
	ProgramStart     string    `gorm:"size:5;index" json:"program_start"`
	ProgramEnd       string    `gorm:"size:5" json:"program_end"`
	WaterEnabled     bool      `gorm:"not null" json:"water_enabled"`
	WaterStart       string    `gorm:"size:5" json:"water_start"`
	WaterEnd         string    `gorm:"size:5" json:"water_end"`
	Archived         bool      `gorm:"index;not null" json:"archived"`
	RemindedOn       string    `gorm:"size:10" json:"-"` // YYYY-MM-DD of the last reminder
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	User User `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
