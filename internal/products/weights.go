package products

import (
	"github.com/shopspring/decimal"

	dbtypes "github.com/kittykibble/kibble-backend/pkg/db/types"
	"github.com/kittykibble/kibble-backend/pkg/enums"
)

func opt(grams int, multiplier string) dbtypes.WeightOption {
	return dbtypes.WeightOption{Grams: grams, Multiplier: decimal.RequireFromString(multiplier)}
}

var (
	catDry = dbtypes.WeightOptions{
		opt(400, "1"), opt(1500, "1.2"), opt(2000, "1.3"), opt(4000, "1.4"), opt(10000, "1.5"),
	}
	catWet = dbtypes.WeightOptions{
		opt(85, "1"), opt(100, "1.1"), opt(400, "1.2"),
	}
	dogDry = dbtypes.WeightOptions{
		opt(500, "1"), opt(1000, "1.2"), opt(2000, "1.3"), opt(3000, "1.4"), opt(4000, "1.5"),
		opt(7500, "1.6"), opt(10000, "1.7"), opt(15000, "1.8"), opt(20000, "1.9"),
	}
	dogWet = dbtypes.WeightOptions{
		opt(400, "1"), opt(800, "1.2"),
	}
	fishDry = dbtypes.WeightOptions{
		opt(20, "1"), opt(50, "1.1"), opt(100, "1.2"), opt(250, "1.3"), opt(500, "1.4"), opt(1000, "1.5"),
	}
	fishWet = dbtypes.WeightOptions{
		opt(20, "1"), opt(50, "1.1"), opt(100, "1.2"), opt(250, "1.3"),
	}
	treats = dbtypes.WeightOptions{
		opt(100, "1"),
	}
)

// DefaultWeightOptions returns the package sizes sold for an animal and
// category when a product carries no override. Subscriptions ship the
// animal's dry food sizes.
func DefaultWeightOptions(animal enums.AnimalType, category enums.ProductCategory) dbtypes.WeightOptions {
	var src dbtypes.WeightOptions
	switch category {
	case enums.CategoryTreats:
		src = treats
	case enums.CategoryWet:
		switch animal {
		case enums.AnimalCat:
			src = catWet
		case enums.AnimalDog:
			src = dogWet
		case enums.AnimalFish:
			src = fishWet
		}
	case enums.CategoryDry, enums.CategorySubscription:
		switch animal {
		case enums.AnimalCat:
			src = catDry
		case enums.AnimalDog:
			src = dogDry
		case enums.AnimalFish:
			src = fishDry
		}
	}
	if src == nil {
		return nil
	}
	out := make(dbtypes.WeightOptions, len(src))
	copy(out, src)
	return out
}
