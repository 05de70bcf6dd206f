package shipping

import "github.com/shopspring/decimal"

type Area struct {
	Ref  string `json:"ref"`
	Name string `json:"name"`
}

type City struct {
	Ref     string `json:"ref"`
	Name    string `json:"name"`
	AreaRef string `json:"area_ref"`
}

type Warehouse struct {
	Ref          string `json:"ref"`
	Name         string `json:"name"`
	Number       string `json:"number"`
	CityRef      string `json:"city_ref"`
	ShortAddress string `json:"short_address"`
}

// CostRequest prices a parcel between two cities. An empty sender city uses
// the store's configured home city.
type CostRequest struct {
	SenderCityRef    string
	RecipientCityRef string
	WeightKg         decimal.Decimal
	DeclaredValue    decimal.Decimal
}

type Cost struct {
	Amount                decimal.Decimal `json:"cost"`
	EstimatedDeliveryDate string          `json:"estimated_delivery_date,omitempty"`
}

// Selection is the shipping choice made during one checkout.
type Selection struct {
	City                  string          `json:"city"`
	Warehouse             string          `json:"warehouse"`
	Cost                  decimal.Decimal `json:"cost"`
	EstimatedDeliveryDate string          `json:"estimated_delivery_date,omitempty"`
}

type Tracking struct {
	Number                string `json:"number"`
	Status                string `json:"status"`
	StatusCode            string `json:"status_code"`
	SenderWarehouse       string `json:"sender_warehouse"`
	RecipientWarehouse    string `json:"recipient_warehouse"`
	ScheduledDeliveryDate string `json:"scheduled_delivery_date,omitempty"`
	ActualDeliveryDate    string `json:"actual_delivery_date,omitempty"`
}
