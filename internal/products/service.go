package products

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kittykibble/kibble-backend/pkg/db/models"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

// Service exposes catalog reads and variant pricing.
type Service interface {
	ListProducts(ctx context.Context, filters ListFilters) ([]ProductDTO, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error)
	ResolveVariant(ctx context.Context, id uuid.UUID, grams int) (*Variant, error)
}

type service struct {
	repo Repository
}

// NewService builds a catalog service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListProducts(ctx context.Context, filters ListFilters) ([]ProductDTO, error) {
	rows, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDTO(row))
	}
	return out, nil
}

func (s *service) GetProduct(ctx context.Context, id uuid.UUID) (*ProductDTO, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := toDTO(*product)
	return &dto, nil
}

// ResolveVariant loads the product and prices it at the requested weight.
// Cart lines always carry the server-side price from here.
func (s *service) ResolveVariant(ctx context.Context, id uuid.UUID, grams int) (*Variant, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.InStock {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "product is out of stock")
	}
	price, err := PriceFor(*product, grams)
	if err != nil {
		return nil, err
	}
	return &Variant{Product: *product, Grams: grams, UnitPrice: price}, nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

// PriceFor returns the unit price of product at grams: base price times the
// weight multiplier, rounded to 2 decimals.
func PriceFor(product models.Product, grams int) (decimal.Decimal, error) {
	option, ok := EffectiveWeightOptions(product).Find(grams)
	if !ok {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "weight not offered for product").
			WithDetails(map[string]any{"product_id": product.ID, "grams": grams})
	}
	return unitPrice(product.Price, option.Multiplier), nil
}
