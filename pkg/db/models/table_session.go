package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/types"
)

// TableSession is the aggregate for one table between occupancy and payment.
type TableSession struct {
	ID                         uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	TableNumber                int                    `gorm:"column:table_number;not null"`
	Lines                      types.LineItems        `gorm:"column:lines;type:jsonb;not null"`
	Submissions                types.OrderSubmissions `gorm:"column:submissions;type:jsonb;not null"`
	IsOccupied                 bool                   `gorm:"column:is_occupied;not null;default:true"`
	HasPromotionalInitialOrder bool                   `gorm:"column:has_promotional_initial_order;not null;default:false"`
	HasPromotionalItem         bool                   `gorm:"column:has_promotional_item;not null;default:false"`
	GrandTotal                 decimal.Decimal        `gorm:"column:grand_total;type:numeric(12,2);not null;default:0"`
	IsPaid                     bool                   `gorm:"column:is_paid;not null;default:false"`
	ReceiptNumber              *string                `gorm:"column:receipt_number"`
	ReceiptIssuedAt            *time.Time             `gorm:"column:receipt_issued_at"`
	PaidAt                     *time.Time             `gorm:"column:paid_at"`
	Version                    int                    `gorm:"column:version;not null;default:1"`
	CreatedAt                  time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (TableSession) TableName() string { return "table_sessions" }

// BeforeCreate assigns the identifier when the caller did not.
func (s *TableSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.Version == 0 {
		s.Version = 1
	}
	return nil
}

// State derives the lifecycle stage from the persisted flags.
func (s *TableSession) State() enums.SessionState {
	switch {
	case s.IsPaid:
		return enums.SessionStatePaid
	case s.ReceiptNumber != nil:
		return enums.SessionStateAwaitingPayment
	default:
		return enums.SessionStateOpen
	}
}

// HasReceipt reports whether a receipt number has been issued.
func (s *TableSession) HasReceipt() bool {
	return s.ReceiptNumber != nil && *s.ReceiptNumber != ""
}

// PromotionalLine returns the index of the single promotional tab line, or -1.
func (s *TableSession) PromotionalLine() int {
	for i := range s.Lines {
		if s.Lines[i].IsPromotional {
			return i
		}
	}
	return -1
}
