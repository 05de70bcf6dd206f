package controllers

import (
	"net/http"
	"strings"

	"github.com/kittykibble/kibble-backend/api/responses"
	"github.com/kittykibble/kibble-backend/api/validators"
	"github.com/kittykibble/kibble-backend/internal/products"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
)

// ProductList serves the catalog, filtered by ?animal_type= and ?category=.
func ProductList(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		filters, err := parseProductFilters(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListProducts(r.Context(), filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

func ProductDetail(svc products.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "product service unavailable"))
			return
		}

		id, err := validators.PathUUID(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		product, err := svc.GetProduct(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func parseProductFilters(r *http.Request) (products.ListFilters, error) {
	var filters products.ListFilters
	q := r.URL.Query()

	if raw := strings.TrimSpace(q.Get("animal_type")); raw != "" {
		animal, err := enums.ParseAnimalType(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid animal_type")
		}
		filters.AnimalType = &animal
	}
	if raw := strings.TrimSpace(q.Get("category")); raw != "" {
		category, err := enums.ParseProductCategory(raw)
		if err != nil {
			return filters, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		filters.Category = &category
	}
	if validators.ParseQueryBool(r, "in_stock") {
		inStock := true
		filters.InStock = &inStock
	}
	return filters, nil
}
