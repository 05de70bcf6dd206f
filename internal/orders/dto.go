package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/db/models"
	"github.com/kittykibble/kibble-backend/pkg/enums"
)

// ListFilters narrows order listings. Nil fields are ignored.
type ListFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

// Page is one page of orders plus the cursor for the next one.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

type OrderItemDTO struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      string          `json:"product_id"`
	ProductName    string          `json:"product_name"`
	Quantity       int             `json:"quantity"`
	PriceAtTime    decimal.Decimal `json:"price_at_time"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	SelectedWeight int             `json:"selected_weight"`
}

type OrderDTO struct {
	ID                    uuid.UUID           `json:"id"`
	UserID                uuid.UUID           `json:"user_id"`
	CustomerName          string              `json:"customer_name"`
	CustomerEmail         string              `json:"customer_email"`
	CustomerPhone         string              `json:"customer_phone"`
	ShippingAddress       string              `json:"shipping_address"`
	ShippingCity          string              `json:"shipping_city"`
	ShippingCost          decimal.Decimal     `json:"shipping_cost"`
	EstimatedDeliveryDate *string             `json:"estimated_delivery_date,omitempty"`
	TotalAmount           decimal.Decimal     `json:"total_amount"`
	Status                enums.OrderStatus   `json:"status"`
	WaybillNumber         string              `json:"waybill_number"`
	PayerType             enums.PayerType     `json:"payer_type"`
	PaymentMethod         enums.PaymentMethod `json:"payment_method"`
	Items                 []OrderItemDTO      `json:"items"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

type OrderList struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// ToDTO maps a persisted order, with whatever items were loaded.
func ToDTO(o models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItemDTO{
			ID:             item.ID,
			ProductID:      item.ProductID,
			ProductName:    item.ProductName,
			Quantity:       item.Quantity,
			PriceAtTime:    item.PriceAtTime,
			TotalPrice:     item.TotalPrice,
			SelectedWeight: item.SelectedWeight,
		})
	}
	return OrderDTO{
		ID:                    o.ID,
		UserID:                o.UserID,
		CustomerName:          o.CustomerName,
		CustomerEmail:         o.CustomerEmail,
		CustomerPhone:         o.CustomerPhone,
		ShippingAddress:       o.ShippingAddress,
		ShippingCity:          o.ShippingCity,
		ShippingCost:          o.ShippingCost,
		EstimatedDeliveryDate: o.EstimatedDeliveryDate,
		TotalAmount:           o.TotalAmount,
		Status:                o.Status,
		WaybillNumber:         o.WaybillNumber,
		PayerType:             o.PayerType,
		PaymentMethod:         o.PaymentMethod,
		Items:                 items,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
}

func toList(page *Page) *OrderList {
	out := &OrderList{Orders: make([]OrderDTO, 0, len(page.Orders)), NextCursor: page.NextCursor}
	for _, o := range page.Orders {
		out.Orders = append(out.Orders, ToDTO(o))
	}
	return out
}
