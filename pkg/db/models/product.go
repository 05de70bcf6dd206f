package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	dbtypes "github.com/kittykibble/kibble-backend/pkg/db/types"
	"github.com/kittykibble/kibble-backend/pkg/enums"
)

// Product is a catalog entry. Price is the base price of the smallest package.
type Product struct {
	ID            uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	Name          string                `gorm:"column:name;not null"`
	Description   string                `gorm:"column:description;not null;default:''"`
	Price         decimal.Decimal       `gorm:"column:price;type:numeric(10,2);not null"`
	Image         string                `gorm:"column:image;not null;default:''"`
	AnimalType    enums.AnimalType      `gorm:"column:animal_type;not null"`
	Category      enums.ProductCategory `gorm:"column:category;not null"`
	WeightOptions dbtypes.WeightOptions `gorm:"column:weight_options;type:jsonb"`
	InStock       bool                  `gorm:"column:in_stock;not null;default:true"`
	CreatedAt     time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}
