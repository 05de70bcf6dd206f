package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// WeightOption is one purchasable package size: grams and the multiplier
// applied to the product's base price.
type WeightOption struct {
	Grams      int             `json:"grams"`
	Multiplier decimal.Decimal `json:"multiplier"`
}

// WeightOptions is stored as a JSON array (jsonb in Postgres, text in sqlite).
type WeightOptions []WeightOption

func (w *WeightOptions) Scan(src any) error {
	if src == nil {
		*w = nil
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("WeightOptions: unsupported Scan type %T", src)
	}
	if len(raw) == 0 {
		*w = nil
		return nil
	}
	var out WeightOptions
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("WeightOptions: decode: %w", err)
	}
	*w = out
	return nil
}

func (w WeightOptions) Value() (driver.Value, error) {
	if len(w) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(w)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Find returns the option for grams, if offered.
func (w WeightOptions) Find(grams int) (WeightOption, bool) {
	for _, opt := range w {
		if opt.Grams == grams {
			return opt, true
		}
	}
	return WeightOption{}, false
}
