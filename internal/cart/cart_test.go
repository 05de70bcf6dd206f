package cart

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func line(id uuid.UUID, grams, qty int, price string) Item {
	return Item{ID: id, Name: "Kibble", Price: decimal.RequireFromString(price), Quantity: qty, SelectedWeight: grams}
}

func TestAddMergesSameVariant(t *testing.T) {
	id := uuid.New()
	c := &Cart{}
	c.Add(line(id, 400, 1, "100"))
	c.Add(line(id, 400, 2, "100"))

	if len(c.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(c.Items))
	}
	if c.Items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", c.Items[0].Quantity)
	}
}

func TestAddKeepsWeightsDistinct(t *testing.T) {
	id := uuid.New()
	c := &Cart{}
	c.Add(line(id, 400, 1, "100"))
	c.Add(line(id, 1500, 1, "120"))

	if len(c.Items) != 2 {
		t.Fatalf("expected two lines, got %d", len(c.Items))
	}
	if got := c.Total().String(); got != "220" {
		t.Fatalf("expected total 220, got %s", got)
	}
	if c.Count() != 2 {
		t.Fatalf("expected count 2, got %d", c.Count())
	}
}

func TestAddDefaultsMissingQuantity(t *testing.T) {
	c := &Cart{}
	c.Add(line(uuid.New(), 100, 0, "10"))
	if c.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", c.Items[0].Quantity)
	}
}

func TestRemoveRequiresMatchingWeight(t *testing.T) {
	id := uuid.New()
	c := &Cart{}
	c.Add(line(id, 400, 1, "100"))
	c.Add(line(id, 1500, 1, "120"))

	if c.Remove(id, 2000) {
		t.Fatalf("expected no line for unmatched weight")
	}
	if !c.Remove(id, 400) {
		t.Fatalf("expected line removed")
	}
	if len(c.Items) != 1 || c.Items[0].SelectedWeight != 1500 {
		t.Fatalf("expected the 1500g line to remain, got %+v", c.Items)
	}
}

func TestRemoveProductDropsAllVariants(t *testing.T) {
	id := uuid.New()
	other := uuid.New()
	c := &Cart{}
	c.Add(line(id, 400, 1, "100"))
	c.Add(line(other, 85, 2, "30"))
	c.Add(line(id, 1500, 1, "120"))

	if !c.RemoveProduct(id) {
		t.Fatalf("expected product removed")
	}
	if len(c.Items) != 1 || c.Items[0].ID != other {
		t.Fatalf("unexpected remaining items %+v", c.Items)
	}
	if c.RemoveProduct(id) {
		t.Fatalf("second removal should report nothing removed")
	}
}

func TestSetQuantity(t *testing.T) {
	id := uuid.New()
	c := &Cart{}
	c.Add(line(id, 400, 1, "100"))

	if !c.SetQuantity(id, 400, 5) {
		t.Fatalf("expected update")
	}
	if c.Count() != 5 || c.Total().String() != "500" {
		t.Fatalf("unexpected count/total %d %s", c.Count(), c.Total())
	}
	if !c.SetQuantity(id, 400, 0) {
		t.Fatalf("expected zero quantity to remove the line")
	}
	if !c.IsEmpty() {
		t.Fatalf("expected empty cart")
	}
	if c.SetQuantity(id, 400, 2) {
		t.Fatalf("expected missing line")
	}
}

func TestSnapshotTotals(t *testing.T) {
	c := &Cart{}
	c.Add(line(uuid.New(), 400, 2, "99.99"))
	c.Add(line(uuid.New(), 85, 3, "12.50"))

	snap := c.Snapshot()
	if snap.Total.StringFixed(2) != "237.48" {
		t.Fatalf("expected total 237.48, got %s", snap.Total.StringFixed(2))
	}
	if snap.Count != 5 {
		t.Fatalf("expected count 5, got %d", snap.Count)
	}
	snap.Items[0].Quantity = 100
	if c.Items[0].Quantity != 2 {
		t.Fatalf("snapshot must not alias cart items")
	}
}
