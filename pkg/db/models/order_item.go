package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderItem snapshots one (product, weight) line; prices never change after insert.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null"`
	ProductID      string          `gorm:"column:product_id;not null"`
	ProductName    string          `gorm:"column:product_name;not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	PriceAtTime    decimal.Decimal `gorm:"column:price_at_time;type:numeric(10,2);not null"`
	TotalPrice     decimal.Decimal `gorm:"column:total_price;type:numeric(10,2);not null"`
	SelectedWeight int             `gorm:"column:selected_weight;not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}
