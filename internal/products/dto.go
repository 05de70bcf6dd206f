package products

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/db/models"
	dbtypes "github.com/kittykibble/kibble-backend/pkg/db/types"
	"github.com/kittykibble/kibble-backend/pkg/enums"
)

// ProductDTO is the catalog entry exposed to the storefront, with the
// effective weight options already resolved.
type ProductDTO struct {
	ID            uuid.UUID             `json:"id"`
	Name          string                `json:"name"`
	Description   string                `json:"description"`
	Price         decimal.Decimal       `json:"price"`
	Image         string                `json:"image"`
	AnimalType    enums.AnimalType      `json:"animal_type"`
	Category      enums.ProductCategory `json:"category"`
	WeightOptions []WeightOptionDTO     `json:"weight_options"`
	InStock       bool                  `json:"in_stock"`
}

// WeightOptionDTO carries the unit price already computed for the size.
type WeightOptionDTO struct {
	Grams      int             `json:"grams"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Price      decimal.Decimal `json:"price"`
}

// Variant is one product at one package size, priced.
type Variant struct {
	Product   models.Product
	Grams     int
	UnitPrice decimal.Decimal
}

// EffectiveWeightOptions returns the stored override or the defaults for the
// product's animal and category.
func EffectiveWeightOptions(p models.Product) dbtypes.WeightOptions {
	if len(p.WeightOptions) > 0 {
		return p.WeightOptions
	}
	return DefaultWeightOptions(p.AnimalType, p.Category)
}

func toDTO(p models.Product) ProductDTO {
	options := EffectiveWeightOptions(p)
	dtoOptions := make([]WeightOptionDTO, 0, len(options))
	for _, o := range options {
		dtoOptions = append(dtoOptions, WeightOptionDTO{
			Grams:      o.Grams,
			Multiplier: o.Multiplier,
			Price:      unitPrice(p.Price, o.Multiplier),
		})
	}
	return ProductDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Image:         p.Image,
		AnimalType:    p.AnimalType,
		Category:      p.Category,
		WeightOptions: dtoOptions,
		InStock:       p.InStock,
	}
}

func unitPrice(base, multiplier decimal.Decimal) decimal.Decimal {
	return base.Mul(multiplier).Round(2)
}
