package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/enums"
)

// Item is one cart line. (ID, SelectedWeight) identifies the line, so the
// same product in two package sizes occupies two lines.
type Item struct {
	ID             uuid.UUID             `json:"id"`
	Name           string                `json:"name"`
	Price          decimal.Decimal       `json:"price"`
	Quantity       int                   `json:"quantity"`
	SelectedWeight int                   `json:"selected_weight"`
	Image          string                `json:"image"`
	Category       enums.ProductCategory `json:"category"`
	Type           enums.AnimalType      `json:"type"`
}

// LineTotal is Price × Quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

func (i Item) matches(id uuid.UUID, grams int) bool {
	return i.ID == id && i.SelectedWeight == grams
}

// Cart is the in-memory working set. It performs no I/O.
type Cart struct {
	Items []Item `json:"items"`
}

// Add merges item into the cart. An existing line with the same product and
// weight has its quantity increased; a quantity below 1 counts as 1.
func (c *Cart) Add(item Item) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	for idx := range c.Items {
		if c.Items[idx].matches(item.ID, item.SelectedWeight) {
			c.Items[idx].Quantity += item.Quantity
			return
		}
	}
	c.Items = append(c.Items, item)
}

// Remove drops the line for (id, grams). It reports whether a line existed.
func (c *Cart) Remove(id uuid.UUID, grams int) bool {
	for idx := range c.Items {
		if c.Items[idx].matches(id, grams) {
			c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
			return true
		}
	}
	return false
}

// RemoveProduct drops every weight variant of a product.
func (c *Cart) RemoveProduct(id uuid.UUID) bool {
	kept := c.Items[:0]
	removed := false
	for _, item := range c.Items {
		if item.ID == id {
			removed = true
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	return removed
}

// SetQuantity sets the quantity of the (id, grams) line. Zero or less removes
// the line. It reports whether a line existed.
func (c *Cart) SetQuantity(id uuid.UUID, grams, quantity int) bool {
	if quantity <= 0 {
		return c.Remove(id, grams)
	}
	for idx := range c.Items {
		if c.Items[idx].matches(id, grams) {
			c.Items[idx].Quantity = quantity
			return true
		}
	}
	return false
}

func (c *Cart) Clear() {
	c.Items = nil
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Total is Σ price × quantity.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// Count is Σ quantity.
func (c *Cart) Count() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}

// Snapshot is the cart as returned to clients.
type Snapshot struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

func (c *Cart) Snapshot() Snapshot {
	items := make([]Item, len(c.Items))
	copy(items, c.Items)
	return Snapshot{Items: items, Total: c.Total(), Count: c.Count()}
}
