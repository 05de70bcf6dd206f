package waybill

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/enums"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

// Recipient is the buyer as entered on the checkout form.
type Recipient struct {
	FirstName    string
	LastName     string
	MiddleName   string
	Phone        string
	Email        string
	CityRef      string
	WarehouseRef string
}

func (r Recipient) validate() error {
	missing := []string{}
	for _, f := range []struct{ name, value string }{
		{"first_name", r.FirstName},
		{"last_name", r.LastName},
		{"phone", r.Phone},
		{"city_ref", r.CityRef},
		{"warehouse_ref", r.WarehouseRef},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient is incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

// Line is one cart line as it appears on the parcel.
type Line struct {
	Name     string
	Grams    int
	Quantity int
}

type Request struct {
	Recipient     Recipient
	Items         []Line
	DeclaredValue decimal.Decimal
	PayerType     enums.PayerType
	PaymentMethod enums.PaymentMethod
}

type Result struct {
	Ref                   string          `json:"ref"`
	Number                string          `json:"number"`
	Cost                  decimal.Decimal `json:"cost"`
	EstimatedDeliveryDate string          `json:"estimated_delivery_date,omitempty"`
	Weight                decimal.Decimal `json:"weight"`
}

var thousand = decimal.NewFromInt(1000)

// CargoWeight is Σ(grams/1000 × quantity) plus allowance per unit, in kg,
// rounded to 3 decimals.
func CargoWeight(items []Line, allowance decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	units := int64(0)
	for _, item := range items {
		qty := decimal.NewFromInt(int64(item.Quantity))
		total = total.Add(decimal.NewFromInt(int64(item.Grams)).Div(thousand).Mul(qty))
		units += int64(item.Quantity)
	}
	return total.Add(allowance.Mul(decimal.NewFromInt(units))).Round(3)
}

// Description lists every line as "name weightg xN". When that exceeds limit
// characters a summary is used instead; the result never exceeds limit.
func Description(items []Line, limit int) string {
	parts := make([]string, 0, len(items))
	units := 0
	for _, item := range items {
		parts = append(parts, fmt.Sprintf("%s %dg x%d", item.Name, item.Grams, item.Quantity))
		units += item.Quantity
	}
	desc := strings.Join(parts, ", ")
	if len([]rune(desc)) > limit {
		desc = fmt.Sprintf("Pet food: %d items", units)
	}
	return truncate(desc, limit)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
