package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/enums"
)

// StaffAlert is a dashboard entry projected from a table session event.
type StaffAlert struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventID     uuid.UUID       `gorm:"column:event_id;type:uuid;not null"`
	SessionID   uuid.UUID       `gorm:"column:session_id;type:uuid;not null"`
	TableNumber int             `gorm:"column:table_number;not null"`
	Type        enums.AlertType `gorm:"column:type;type:alert_type_enum;not null"`
	Title       string          `gorm:"column:title;type:text;not null"`
	Message     string          `gorm:"column:message;type:text;not null"`
	ReadAt      *time.Time      `gorm:"column:read_at"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (StaffAlert) TableName() string { return "staff_alerts" }

func (a *StaffAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
