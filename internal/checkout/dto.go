package checkout

import (
	"strings"

	"github.com/kittykibble/kibble-backend/internal/orders"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

// Form is the submitted checkout form.
type Form struct {
	FirstName     string `json:"first_name" validate:"required,max=64"`
	LastName      string `json:"last_name" validate:"required,max=64"`
	MiddleName    string `json:"middle_name,omitempty" validate:"omitempty,max=64"`
	Phone         string `json:"phone" validate:"required,ua_phone"`
	Email         string `json:"email" validate:"required,email"`
	CityRef       string `json:"city_ref" validate:"required"`
	WarehouseRef  string `json:"warehouse_ref" validate:"required"`
	PayerType     string `json:"payer_type,omitempty" validate:"omitempty,oneof=Sender Recipient"`
	PaymentMethod string `json:"payment_method,omitempty" validate:"omitempty,oneof=Cash NonCash"`
}

// Draft holds partially filled form values. Nothing is required.
type Draft struct {
	FirstName     string `json:"first_name,omitempty" validate:"max=64"`
	LastName      string `json:"last_name,omitempty" validate:"max=64"`
	MiddleName    string `json:"middle_name,omitempty" validate:"max=64"`
	Phone         string `json:"phone,omitempty" validate:"max=16"`
	Email         string `json:"email,omitempty" validate:"max=254"`
	CityRef       string `json:"city_ref,omitempty"`
	WarehouseRef  string `json:"warehouse_ref,omitempty"`
	PayerType     string `json:"payer_type,omitempty"`
	PaymentMethod string `json:"payment_method,omitempty"`
}

// Prefill sources.
const (
	PrefillDraft    = "draft"
	PrefillCustomer = "customer"
	PrefillEmpty    = "empty"
)

// Prefill is what the checkout page starts from.
type Prefill struct {
	Source string `json:"source"`
	Draft  Draft  `json:"draft"`
}

type QuoteRequest struct {
	CityRef string `json:"city_ref" validate:"required"`
}

// Confirmation is returned after a successful checkout.
type Confirmation struct {
	Order         orders.OrderDTO    `json:"order"`
	Shipping      shipping.Selection `json:"shipping"`
	WaybillNumber string             `json:"waybill_number"`
}

// CustomerName renders the name the way it is stored on orders and
// customers: last, first, middle.
func (f Form) CustomerName() string {
	return joinName(f.LastName, f.FirstName, f.MiddleName)
}

func (f Form) options() (enums.PayerType, enums.PaymentMethod, error) {
	payer, err := enums.ParsePayerType(strings.TrimSpace(f.PayerType))
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payer type")
	}
	method, err := enums.ParsePaymentMethod(strings.TrimSpace(f.PaymentMethod))
	if err != nil {
		return "", "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	return payer, method, nil
}

func draftFromCustomerName(name string) Draft {
	parts := strings.Fields(name)
	var d Draft
	switch len(parts) {
	case 0:
	case 1:
		d.FirstName = parts[0]
	case 2:
		d.LastName, d.FirstName = parts[0], parts[1]
	default:
		d.LastName, d.FirstName = parts[0], parts[1]
		d.MiddleName = strings.Join(parts[2:], " ")
	}
	return d
}

func joinName(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}
