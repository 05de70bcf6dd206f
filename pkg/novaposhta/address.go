package novaposhta

import (
	"context"
	"strings"

	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

const cityListLimit = 1000

// Area is a first-level region (oblast).
type Area struct {
	Ref         string `json:"Ref"`
	Description string `json:"Description"`
}

// City belongs to an Area.
type City struct {
	Ref         string `json:"Ref"`
	Description string `json:"Description"`
	Area        string `json:"Area"`
}

// Warehouse is a branch or parcel locker in a city.
type Warehouse struct {
	Ref                 string `json:"Ref"`
	Description         string `json:"Description"`
	Number              string `json:"Number"`
	CityRef             string `json:"CityRef"`
	CityDescription     string `json:"CityDescription"`
	TypeOfWarehouseRef  string `json:"TypeOfWarehouse"`
	ShortAddress        string `json:"ShortAddress"`
	TotalMaxWeightAllow string `json:"TotalMaxWeightAllowed"`
}

// WarehouseQuery filters Address.getWarehouses. Zero values are omitted.
type WarehouseQuery struct {
	CityRef            string `json:"CityRef,omitempty"`
	Ref                string `json:"Ref,omitempty"`
	TypeOfWarehouseRef string `json:"TypeOfWarehouseRef,omitempty"`
	Page               int    `json:"Page,omitempty"`
	Limit              int    `json:"Limit,omitempty"`
}

// GetAreas lists all regions.
func (c *Client) GetAreas(ctx context.Context) ([]Area, error) {
	var areas []Area
	if err := c.call(ctx, "Address", "getAreas", nil, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

// GetCities lists cities of one area.
func (c *Client) GetCities(ctx context.Context, areaRef string) ([]City, error) {
	areaRef = strings.TrimSpace(areaRef)
	if areaRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "area ref is required")
	}
	var cities []City
	props := map[string]any{"AreaRef": areaRef, "Limit": cityListLimit}
	if err := c.call(ctx, "Address", "getCities", props, &cities); err != nil {
		return nil, err
	}
	return cities, nil
}

// GetCity resolves a single city by ref.
func (c *Client) GetCity(ctx context.Context, cityRef string) (*City, error) {
	cityRef = strings.TrimSpace(cityRef)
	if cityRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city ref is required")
	}
	var cities []City
	if err := c.call(ctx, "Address", "getCities", map[string]any{"Ref": cityRef}, &cities); err != nil {
		return nil, err
	}
	if len(cities) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCarrier, "city "+cityRef+" not found")
	}
	return &cities[0], nil
}

// GetWarehouses returns one page of warehouses matching q.
func (c *Client) GetWarehouses(ctx context.Context, q WarehouseQuery) ([]Warehouse, error) {
	if strings.TrimSpace(q.CityRef) == "" && strings.TrimSpace(q.Ref) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city ref or warehouse ref is required")
	}
	var warehouses []Warehouse
	if err := c.call(ctx, "Address", "getWarehouses", q, &warehouses); err != nil {
		return nil, err
	}
	return warehouses, nil
}
