// Package pricing computes line, submission and session charges. Every function is pure.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tableorders-backend/pkg/types"
)

// MoneyPlaces is the number of fractional digits money is rounded to.
const MoneyPlaces = 2

// Round rounds to cents, halves away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ChargeForItem prices one line. Promotional lines are charged per person and become free
// on re-orders once the session holds an initial promotional order.
func ChargeForItem(item types.LineItem, hasPromotionalInitialOrder bool) decimal.Decimal {
	if item.IsPromotional {
		if hasPromotionalInitialOrder && item.SequenceNumber > 1 {
			return decimal.Zero
		}
		return Round(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.ChargedQuantity()))))
	}
	return Round(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
}

// SubmissionTotal sums the charges of one batch.
func SubmissionTotal(items []types.LineItem, hasPromotionalInitialOrder bool) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(ChargeForItem(item, hasPromotionalInitialOrder))
	}
	return Round(total)
}

// GrandTotal sums every submission of an unpaid session from its item snapshots.
func GrandTotal(submissions []types.OrderSubmission, hasPromotionalInitialOrder bool) decimal.Decimal {
	total := decimal.Zero
	for _, sub := range submissions {
		total = total.Add(SubmissionTotal(sub.Items, hasPromotionalInitialOrder))
	}
	return Round(total)
}
