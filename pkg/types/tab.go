package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableorders-backend/pkg/enums"
)

// LineItem is one menu selection. On the running tab it is the merged line; inside an
// OrderSubmission it is the snapshot of what that batch added.
type LineItem struct {
	ID            uuid.UUID       `json:"id"`
	MenuItemID    string          `json:"menuItemId,omitempty"`
	Name          string          `json:"name"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	Quantity      int             `json:"quantity"`
	Category      string          `json:"category,omitempty"`
	Description   string          `json:"description,omitempty"`
	IsPromotional bool            `json:"isPromotional"`

	SelectedFlavors  []string           `json:"selectedFlavors,omitempty"`
	FlavorHistory    [][]string         `json:"flavorHistory,omitempty"`
	OriginalQuantity *int               `json:"originalQuantity,omitempty"`
	SequenceNumber   int                `json:"sequenceNumber,omitempty"`
	FlavorStatus     enums.FlavorStatus `json:"flavorStatus,omitempty"`
}

// ChargedQuantity is the person count a promotional line is priced by, or the plain
// quantity for regular items.
func (l LineItem) ChargedQuantity() int {
	if l.IsPromotional && l.OriginalQuantity != nil {
		return *l.OriginalQuantity
	}
	return l.Quantity
}

// Clone returns a deep copy so snapshots never alias the tab's slices.
func (l LineItem) Clone() LineItem {
	out := l
	if l.SelectedFlavors != nil {
		out.SelectedFlavors = append([]string(nil), l.SelectedFlavors...)
	}
	if l.FlavorHistory != nil {
		out.FlavorHistory = make([][]string, len(l.FlavorHistory))
		for i, round := range l.FlavorHistory {
			out.FlavorHistory[i] = append([]string(nil), round...)
		}
	}
	if l.OriginalQuantity != nil {
		qty := *l.OriginalQuantity
		out.OriginalQuantity = &qty
	}
	return out
}

// OrderSubmission is one atomic batch of items sent by a customer action.
type OrderSubmission struct {
	SubmissionNumber int                    `json:"submissionNumber"`
	Items            []LineItem             `json:"items"`
	SubmissionTotal  decimal.Decimal        `json:"submissionTotal"`
	Status           enums.SubmissionStatus `json:"status"`
	CreatedAt        time.Time              `json:"createdAt"`
	UpdatedAt        time.Time              `json:"updatedAt"`
}

// IsOpen reports whether the submission has not been settled yet.
func (o OrderSubmission) IsOpen() bool {
	return o.Status != enums.SubmissionStatusPaid
}

// LineItems is a slice marshaled as JSONB.
type LineItems []LineItem

// Value serializes the lines to JSON.
func (l LineItems) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the line slice.
func (l *LineItems) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded LineItems
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*l = decoded
	return nil
}

// OrderSubmissions is a slice marshaled as JSONB.
type OrderSubmissions []OrderSubmission

// Value serializes the submissions to JSON.
func (o OrderSubmissions) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	raw, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes JSONB into the submission slice.
func (o *OrderSubmissions) Scan(value interface{}) error {
	if value == nil {
		*o = nil
		return nil
	}
	raw, err := asJSON(value)
	if err != nil {
		return err
	}
	var decoded OrderSubmissions
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}
	*o = decoded
	return nil
}

func asJSON(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported scan type %T", value)
	}
}
