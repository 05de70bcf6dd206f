package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	SelectedWeight int       `json:"selected_weight" validate:"required,min=1"`
	Quantity       int       `json:"quantity" validate:"omitempty,min=1,max=99"`
}

// updateQuantityRequest sets an absolute quantity. Zero removes the line.
type updateQuantityRequest struct {
	ProductID      uuid.UUID `json:"product_id" validate:"required"`
	SelectedWeight int       `json:"selected_weight" validate:"required,min=1"`
	Quantity       int       `json:"quantity" validate:"min=0,max=99"`
}
