package types

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestLineItemsScanAcceptsStringAndBytes(t *testing.T) {
	raw := `[{"id":"7b7c1f1e-4a43-4c55-9a55-3f0b1c2a1d10","name":"Fries","unitPrice":"4.99","quantity":2,"isPromotional":false}]`

	var fromString LineItems
	if err := fromString.Scan(raw); err != nil {
		t.Fatalf("scan string: %v", err)
	}
	var fromBytes LineItems
	if err := fromBytes.Scan([]byte(raw)); err != nil {
		t.Fatalf("scan bytes: %v", err)
	}
	if len(fromString) != 1 || fromString[0].Quantity != 2 {
		t.Fatalf("unexpected lines %+v", fromString)
	}
	if !fromBytes[0].UnitPrice.Equal(decimal.RequireFromString("4.99")) {
		t.Fatalf("unexpected price %s", fromBytes[0].UnitPrice)
	}
	if err := fromBytes.Scan(42); err == nil {
		t.Fatal("expected unsupported scan type error")
	}
}

func TestNilSlicesSerializeAsEmptyArray(t *testing.T) {
	v, err := LineItems(nil).Value()
	if err != nil || v != "[]" {
		t.Fatalf("expected [] got %v err=%v", v, err)
	}
	v, err = OrderSubmissions(nil).Value()
	if err != nil || v != "[]" {
		t.Fatalf("expected [] got %v err=%v", v, err)
	}
}

func TestCloneDoesNotAliasFlavors(t *testing.T) {
	qty := 2
	line := LineItem{
		Name:             "Unliwings",
		IsPromotional:    true,
		SelectedFlavors:  []string{"BBQ"},
		FlavorHistory:    [][]string{{"Garlic"}},
		OriginalQuantity: &qty,
	}
	clone := line.Clone()
	clone.SelectedFlavors[0] = "Teriyaki"
	clone.FlavorHistory[0][0] = "Buffalo"
	*clone.OriginalQuantity = 5

	if line.SelectedFlavors[0] != "BBQ" || line.FlavorHistory[0][0] != "Garlic" || *line.OriginalQuantity != 2 {
		t.Fatalf("clone mutated original: %+v", line)
	}
	if line.ChargedQuantity() != 2 {
		t.Fatalf("expected promotional charged quantity 2, got %d", line.ChargedQuantity())
	}
}
