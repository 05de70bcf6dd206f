package controllers

import (
	"net/http"

	"github.com/kittykibble/kibble-backend/api/responses"
	"github.com/kittykibble/kibble-backend/api/validators"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
)

const maxWarehousePage = 500

func ShippingAreas(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}
		areas, err := svc.ListAreas(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, areas)
	}
}

func ShippingCities(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}
		areaRef, err := validators.PathRef(r, "areaRef")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cities, err := svc.ListCities(r.Context(), areaRef)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cities)
	}
}

// ShippingWarehouses pages through a city's branches. ?all=true walks every
// page server-side.
func ShippingWarehouses(svc shipping.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "shipping service unavailable"))
			return
		}
		cityRef, err := validators.PathRef(r, "cityRef")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if validators.ParseQueryBool(r, "all") {
			warehouses, err := svc.ListAllWarehouses(r.Context(), cityRef)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, warehouses)
			return
		}

		page, err := validators.ParseQueryInt(r, "page", 1, 1, 1000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", maxWarehousePage, 1, maxWarehousePage)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		warehouses, err := svc.ListWarehouses(r.Context(), cityRef, page, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, warehouses)
	}
}
