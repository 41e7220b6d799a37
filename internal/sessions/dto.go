package sessions

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableorders-backend/pkg/db/models"
	"github.com/angelmondragon/tableorders-backend/pkg/enums"
	"github.com/angelmondragon/tableorders-backend/pkg/pagination"
	"github.com/angelmondragon/tableorders-backend/pkg/types"
)

// ItemInput is one item as submitted by a customer. Prices always come from the menu.
type ItemInput struct {
	MenuItemID      string   `json:"menuItemId"`
	Name            string   `json:"name"`
	Quantity        int      `json:"quantity" validate:"required,min=1,max=99"`
	SelectedFlavors []string `json:"selectedFlavors" validate:"omitempty,dive,required"`
}

// ListFilter narrows repository listings.
type ListFilter struct {
	State       *enums.SessionState
	TableNumber *int
	Cursor      *pagination.Cursor
	Limit       int
}

// ListParams are the service-level listing inputs.
type ListParams struct {
	State       string
	TableNumber *int
	Limit       int
	Cursor      string
}

// SessionDTO is the wire shape of a table session.
type SessionDTO struct {
	ID                         uuid.UUID               `json:"id"`
	TableNumber                int                     `json:"tableNumber"`
	State                      enums.SessionState      `json:"state"`
	Lines                      []types.LineItem        `json:"lines"`
	Submissions                []types.OrderSubmission `json:"submissions"`
	IsOccupied                 bool                    `json:"isOccupied"`
	HasPromotionalInitialOrder bool                    `json:"hasPromotionalInitialOrder"`
	HasPromotionalItem         bool                    `json:"hasPromotionalItem"`
	GrandTotal                 decimal.Decimal         `json:"grandTotal"`
	IsPaid                     bool                    `json:"isPaid"`
	ReceiptNumber              *string                 `json:"receiptNumber,omitempty"`
	ReceiptIssuedAt            *time.Time              `json:"receiptIssuedAt,omitempty"`
	PaidAt                     *time.Time              `json:"paidAt,omitempty"`
	Version                    int                     `json:"version"`
	CreatedAt                  time.Time               `json:"createdAt"`
	UpdatedAt                  time.Time               `json:"updatedAt"`
}

// SessionList is a cursor page of sessions, newest first.
type SessionList struct {
	Sessions   []SessionDTO `json:"sessions"`
	NextCursor string       `json:"nextCursor,omitempty"`
}

// SubmissionResult is returned by CreateOrUpdateSession.
type SubmissionResult struct {
	Session    SessionDTO            `json:"session"`
	Submission types.OrderSubmission `json:"submission"`
	Created    bool                  `json:"created"`
}

// ReceiptResult is returned by receipt and payment operations.
type ReceiptResult struct {
	SessionID     uuid.UUID       `json:"sessionId"`
	TableNumber   int             `json:"tableNumber"`
	ReceiptNumber string          `json:"receiptNumber"`
	GrandTotal    decimal.Decimal `json:"grandTotal"`
	IsPaid        bool            `json:"isPaid"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
}

// FromModel maps a persisted session to its DTO.
func FromModel(m *models.TableSession) SessionDTO {
	lines := []types.LineItem(m.Lines)
	if lines == nil {
		lines = []types.LineItem{}
	}
	subs := []types.OrderSubmission(m.Submissions)
	if subs == nil {
		subs = []types.OrderSubmission{}
	}
	return SessionDTO{
		ID:                         m.ID,
		TableNumber:                m.TableNumber,
		State:                      m.State(),
		Lines:                      lines,
		Submissions:                subs,
		IsOccupied:                 m.IsOccupied,
		HasPromotionalInitialOrder: m.HasPromotionalInitialOrder,
		HasPromotionalItem:         m.HasPromotionalItem,
		GrandTotal:                 m.GrandTotal,
		IsPaid:                     m.IsPaid,
		ReceiptNumber:              m.ReceiptNumber,
		ReceiptIssuedAt:            m.ReceiptIssuedAt,
		PaidAt:                     m.PaidAt,
		Version:                    m.Version,
		CreatedAt:                  m.CreatedAt,
		UpdatedAt:                  m.UpdatedAt,
	}
}

func receiptResult(m *models.TableSession) *ReceiptResult {
	out := &ReceiptResult{
		SessionID:   m.ID,
		TableNumber: m.TableNumber,
		GrandTotal:  m.GrandTotal,
		IsPaid:      m.IsPaid,
		PaidAt:      m.PaidAt,
	}
	if m.ReceiptNumber != nil {
		out.ReceiptNumber = *m.ReceiptNumber
	}
	return out
}
