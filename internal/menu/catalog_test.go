package menu

import "testing"

func TestLookupByIDAndName(t *testing.T) {
	c := DefaultCatalog()

	item, ok := c.Lookup(ItemRef{Name: "  fries "})
	if !ok || item.ID != "fries" {
		t.Fatalf("expected fries by name, got %+v ok=%v", item, ok)
	}
	if item.Price.String() != "4.99" {
		t.Fatalf("unexpected price %s", item.Price)
	}

	item, ok = c.Lookup(ItemRef{ID: "unliwings", Name: "Soda"})
	if !ok || !item.IsPromotional {
		t.Fatalf("id should take precedence over name, got %+v", item)
	}

	if _, ok := c.Lookup(ItemRef{ID: "nachos"}); ok {
		t.Fatal("unknown id should not resolve")
	}
	if _, ok := c.Lookup(ItemRef{}); ok {
		t.Fatal("empty ref should not resolve")
	}
}

func TestPromotionalFlavors(t *testing.T) {
	wings, ok := DefaultCatalog().Lookup(ItemRef{ID: "unliwings"})
	if !ok {
		t.Fatal("expected unliwings")
	}
	if wings.MaxFlavors != 4 || len(wings.Flavors) != 8 {
		t.Fatalf("unexpected flavor config %d/%d", wings.MaxFlavors, len(wings.Flavors))
	}
	if got, ok := wings.CanonicalFlavor("honey mustard"); !ok || got != "Honey Mustard" {
		t.Fatalf("expected canonical spelling, got %q", got)
	}
	if got, ok := wings.CanonicalFlavor("  bbq "); !ok || got != "BBQ" {
		t.Fatalf("expected trimmed match, got %q", got)
	}
	if _, ok := wings.CanonicalFlavor("Mango Habanero"); ok {
		t.Fatal("unexpected flavor accepted")
	}
}

func TestItemsReturnsCopy(t *testing.T) {
	c := DefaultCatalog()
	items := c.Items()
	items[0].Name = "Changed"
	if c.Items()[0].Name != "Burger" {
		t.Fatal("catalog must not be mutated through Items()")
	}
}
