package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/enums"
)

// Order is created once per successful checkout.
type Order struct {
	ID                    uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID           `gorm:"column:user_id;type:uuid;not null"`
	CustomerName          string              `gorm:"column:customer_name;not null"`
	CustomerEmail         string              `gorm:"column:customer_email;not null"`
	CustomerPhone         string              `gorm:"column:customer_phone;not null"`
	ShippingAddress       string              `gorm:"column:shipping_address;not null"`
	ShippingCity          string              `gorm:"column:shipping_city;not null"`
	ShippingCost          decimal.Decimal     `gorm:"column:shipping_cost;type:numeric(10,2);not null;default:0"`
	EstimatedDeliveryDate *string             `gorm:"column:estimated_delivery_date"`
	TotalAmount           decimal.Decimal     `gorm:"column:total_amount;type:numeric(10,2);not null"`
	Status                enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	WaybillNumber         string              `gorm:"column:waybill_number;not null;uniqueIndex"`
	WaybillRef            string              `gorm:"column:waybill_ref;not null"`
	PayerType             enums.PayerType     `gorm:"column:payer_type;not null"`
	PaymentMethod         enums.PaymentMethod `gorm:"column:payment_method;not null"`
	CreatedAt             time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	Items                 []OrderItem         `gorm:"foreignKey:OrderID"`
}
