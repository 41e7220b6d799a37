package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableorders-backend/pkg/enums"
)

// SessionRef is embedded in every table session payload.
type SessionRef struct {
	SessionID   uuid.UUID `json:"session_id"`
	TableNumber int       `json:"table_number"`
}

// SessionOpenedEvent is emitted when the first submission occupies a vacant table.
type SessionOpenedEvent struct {
	SessionRef
	OpenedAt time.Time `json:"opened_at"`
}

// SubmissionCreatedEvent is emitted for every batch merged into a session.
type SubmissionCreatedEvent struct {
	SessionRef
	SubmissionNumber int             `json:"submission_number"`
	ItemCount        int             `json:"item_count"`
	SubmissionTotal  decimal.Decimal `json:"submission_total"`
	GrandTotal       decimal.Decimal `json:"grand_total"`
	PromotionalRound int             `json:"promotional_round,omitempty"`
	Flavors          []string        `json:"flavors,omitempty"`
}

// SubmissionStatusChangedEvent is emitted when staff advance a submission.
type SubmissionStatusChangedEvent struct {
	SessionRef
	SubmissionNumber int                    `json:"submission_number"`
	From             enums.SubmissionStatus `json:"from"`
	To               enums.SubmissionStatus `json:"to"`
}

// FlavorStatusChangedEvent is emitted when staff advance the promotional flavor track.
type FlavorStatusChangedEvent struct {
	SessionRef
	LineItemID     uuid.UUID          `json:"line_item_id"`
	SequenceNumber int                `json:"sequence_number"`
	From           enums.FlavorStatus `json:"from"`
	To             enums.FlavorStatus `json:"to"`
}

// ReceiptIssuedEvent freezes the bill for a session.
type ReceiptIssuedEvent struct {
	SessionRef
	ReceiptNumber string          `json:"receipt_number"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	IssuedAt      time.Time       `json:"issued_at"`
}

// SessionPaidEvent is emitted once per session when payment is recorded.
type SessionPaidEvent struct {
	SessionRef
	ReceiptNumber string          `json:"receipt_number"`
	GrandTotal    decimal.Decimal `json:"grand_total"`
	PaidAt        time.Time       `json:"paid_at"`
}

// PaymentOverdueEvent nudges staff about a bill that has been waiting too long.
type PaymentOverdueEvent struct {
	SessionRef
	ReceiptNumber   string          `json:"receipt_number"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	ReceiptIssuedAt time.Time       `json:"receipt_issued_at"`
	WaitingMinutes  int             `json:"waiting_minutes"`
}
