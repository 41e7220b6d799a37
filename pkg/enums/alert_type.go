package enums

import (
	"slices"
)

// AlertType maps to the staff alert categories shown on the floor dashboard.
type AlertType string

const (
	AlertTypeNewOrder       AlertType = "new_order"
	AlertTypeFlavorReorder  AlertType = "flavor_reorder"
	AlertTypeBillRequested  AlertType = "bill_requested"
	AlertTypeTablePaid      AlertType = "table_paid"
	AlertTypePaymentOverdue AlertType = "payment_overdue"
)

var validAlertTypes = []AlertType{
	AlertTypeNewOrder,
	AlertTypeFlavorReorder,
	AlertTypeBillRequested,
	AlertTypeTablePaid,
	AlertTypePaymentOverdue,
}

// IsValid checks whether the given type matches the canonical enum.
func (a AlertType) IsValid() bool { return slices.Contains(validAlertTypes, a) }

// ParseAlertType converts raw strings into AlertType.
func ParseAlertType(value string) (AlertType, error) {
	return parse(value, validAlertTypes, "alert type")
}
