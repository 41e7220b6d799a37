// Package menu holds the static item catalog orders are priced from.
package menu

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Category groups menu items for display.
const (
	CategoryMains       = "mains"
	CategorySides       = "sides"
	CategoryDrinks      = "drinks"
	CategoryPromotional = "promotional"
)

// Item is one sellable entry. Promotional items are priced per person and carry a flavor list.
type Item struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	Description   string          `json:"description,omitempty"`
	IsPromotional bool            `json:"isPromotional"`
	Flavors       []string        `json:"flavors,omitempty"`
	MaxFlavors    int             `json:"maxFlavors,omitempty"`
}

// CanonicalFlavor returns the catalog spelling of flavor.
func (i Item) CanonicalFlavor(flavor string) (string, bool) {
	for _, f := range i.Flavors {
		if strings.EqualFold(f, strings.TrimSpace(flavor)) {
			return f, true
		}
	}
	return "", false
}

// ItemRef identifies an item by id, by name, or both. ID wins when set.
type ItemRef struct {
	ID   string
	Name string
}

// Catalog is an immutable, ordered list of menu items.
type Catalog struct {
	items  []Item
	byID   map[string]int
	byName map[string]int
}

// NewCatalog indexes items by id and by case-folded name.
func NewCatalog(items []Item) *Catalog {
	c := &Catalog{
		items:  make([]Item, len(items)),
		byID:   make(map[string]int, len(items)),
		byName: make(map[string]int, len(items)),
	}
	copy(c.items, items)
	for i, item := range c.items {
		c.byID[item.ID] = i
		c.byName[nameKey(item.Name)] = i
	}
	return c
}

// Lookup resolves ref against the catalog.
func (c *Catalog) Lookup(ref ItemRef) (Item, bool) {
	if c == nil {
		return Item{}, false
	}
	if id := strings.TrimSpace(ref.ID); id != "" {
		if idx, ok := c.byID[id]; ok {
			return c.items[idx], true
		}
		return Item{}, false
	}
	if idx, ok := c.byName[nameKey(ref.Name)]; ok {
		return c.items[idx], true
	}
	return Item{}, false
}

// Items returns a copy of the catalog in display order.
func (c *Catalog) Items() []Item {
	if c == nil {
		return nil
	}
	out := make([]Item, len(c.items))
	copy(out, c.items)
	return out
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// DefaultCatalog is the house menu.
func DefaultCatalog() *Catalog {
	return NewCatalog([]Item{
		{ID: "burger", Name: "Burger", Price: decimal.RequireFromString("10.99"), Category: CategoryMains, Description: "Beef patty, cheddar, pickles"},
		{ID: "pizza", Name: "Pizza", Price: decimal.RequireFromString("12.99"), Category: CategoryMains, Description: "Margherita, wood fired"},
		{ID: "fries", Name: "Fries", Price: decimal.RequireFromString("4.99"), Category: CategorySides, Description: "Skin-on, sea salt"},
		{ID: "soda", Name: "Soda", Price: decimal.RequireFromString("2.99"), Category: CategoryDrinks},
		{
			ID:            "unliwings",
			Name:          "Unliwings",
			Price:         decimal.RequireFromString("299.00"),
			Category:      CategoryPromotional,
			Description:   "Unlimited wings, priced per person",
			IsPromotional: true,
			Flavors: []string{
				"Original", "BBQ", "Garlic", "Teriyaki",
				"Buffalo", "Honey Mustard", "Salted Egg", "Lemon Pepper",
			},
			MaxFlavors: 4,
		},
	})
}
