package models

import "time"

// History types emitted by this service.
const (
	HistoryConnexion   = "connexion"
	HistoryAuth        = "auth"
	HistoryUser        = "user"
	HistorySecurity    = "security"
	HistoryVaccine     = "vaccine"
	HistoryFeeding     = "feeding"
	HistoryMaintenance = "maintenance"
)

// History is one entry of the action log. UserID is nil for system
// actions such as scheduled sweeps.
type History struct {
	ID          string                 `gorm:"primaryKey;size:36" bson:"_id" json:"id"`
	UserID      *uint                  `gorm:"index" bson:"userId,omitempty" json:"user_id,omitempty"`
	Type        string                 `gorm:"size:32;index;not null" bson:"type" json:"type"`
	Action      string                 `gorm:"size:64;not null" bson:"action" json:"action"`
	Description string                 `gorm:"size:255" bson:"description" json:"description"`
	Data        map[string]interface{} `gorm:"serializer:json;type:text" bson:"data" json:"data"`
	CreatedAt   time.Time              `gorm:"index" bson:"createdAt" json:"created_at"`
}
