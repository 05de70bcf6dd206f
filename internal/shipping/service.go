package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/config"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/novaposhta"
	"github.com/kittykibble/kibble-backend/pkg/redis"
)

// Directory is the subset of the carrier client used for address lookups
// and quotes. *novaposhta.Client satisfies it.
type Directory interface {
	GetAreas(ctx context.Context) ([]novaposhta.Area, error)
	GetCities(ctx context.Context, areaRef string) ([]novaposhta.City, error)
	GetCity(ctx context.Context, cityRef string) (*novaposhta.City, error)
	GetWarehouses(ctx context.Context, q novaposhta.WarehouseQuery) ([]novaposhta.Warehouse, error)
	GetDocumentPrice(ctx context.Context, req novaposhta.PriceRequest) (*novaposhta.Price, error)
	TrackDocuments(ctx context.Context, numbers ...string) ([]novaposhta.TrackingStatus, error)
}

// Cache holds directory responses between requests. *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CacheKey(parts ...string) string
}

type Service interface {
	ListAreas(ctx context.Context) ([]Area, error)
	ListCities(ctx context.Context, areaRef string) ([]City, error)
	ListWarehouses(ctx context.Context, cityRef string, page, pageSize int) ([]Warehouse, error)
	ListAllWarehouses(ctx context.Context, cityRef string) ([]Warehouse, error)
	CalculateShippingCost(ctx context.Context, req CostRequest) (*Cost, error)
	Quote(ctx context.Context, recipientCityRef string, weightKg, declaredValue decimal.Decimal) Cost
	ResolveCityName(ctx context.Context, cityRef string) (string, error)
	ResolveWarehouseName(ctx context.Context, warehouseRef string) (string, error)
	TrackWaybill(ctx context.Context, number string) (*Tracking, error)
}

type service struct {
	dir      Directory
	cache    Cache
	cfg      config.CarrierConfig
	logg     *logger.Logger
	cacheTTL time.Duration
}

// NewService builds the shipping directory service. cache may be nil.
func NewService(dir Directory, cache Cache, cfg config.CarrierConfig, logg *logger.Logger) (Service, error) {
	if dir == nil {
		return nil, fmt.Errorf("carrier directory required")
	}
	if cfg.WarehousePageSize <= 0 {
		cfg.WarehousePageSize = 500
	}
	return &service{
		dir:      dir,
		cache:    cache,
		cfg:      cfg,
		logg:     logg,
		cacheTTL: cfg.DirectoryCacheTTL,
	}, nil
}

func (s *service) ListAreas(ctx context.Context) ([]Area, error) {
	var areas []Area
	if s.cached(ctx, &areas, "np", "areas") {
		return areas, nil
	}
	resp, err := s.dir.GetAreas(ctx)
	if err != nil {
		return nil, err
	}
	areas = make([]Area, 0, len(resp))
	for _, a := range resp {
		areas = append(areas, Area{Ref: a.Ref, Name: a.Description})
	}
	s.store(ctx, areas, "np", "areas")
	return areas, nil
}

func (s *service) ListCities(ctx context.Context, areaRef string) ([]City, error) {
	areaRef = strings.TrimSpace(areaRef)
	if areaRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "area ref is required")
	}
	var cities []City
	if s.cached(ctx, &cities, "np", "cities", areaRef) {
		return cities, nil
	}
	resp, err := s.dir.GetCities(ctx, areaRef)
	if err != nil {
		return nil, err
	}
	cities = make([]City, 0, len(resp))
	for _, c := range resp {
		cities = append(cities, City{Ref: c.Ref, Name: c.Description, AreaRef: c.Area})
	}
	s.store(ctx, cities, "np", "cities", areaRef)
	return cities, nil
}

func (s *service) ListWarehouses(ctx context.Context, cityRef string, page, pageSize int) ([]Warehouse, error) {
	cityRef = strings.TrimSpace(cityRef)
	if cityRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city ref is required")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.cfg.WarehousePageSize
	}
	resp, err := s.dir.GetWarehouses(ctx, novaposhta.WarehouseQuery{CityRef: cityRef, Page: page, Limit: pageSize})
	if err != nil {
		return nil, err
	}
	return mapWarehouses(resp), nil
}

// ListAllWarehouses walks pages until the first short page.
func (s *service) ListAllWarehouses(ctx context.Context, cityRef string) ([]Warehouse, error) {
	pageSize := s.cfg.WarehousePageSize
	var all []Warehouse
	for page := 1; ; page++ {
		batch, err := s.ListWarehouses(ctx, cityRef, page, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < pageSize {
			return all, nil
		}
	}
}

func (s *service) CalculateShippingCost(ctx context.Context, req CostRequest) (*Cost, error) {
	if req.SenderCityRef == "" {
		req.SenderCityRef = s.cfg.SenderCityRef
	}
	price, err := s.dir.GetDocumentPrice(ctx, novaposhta.PriceRequest{
		CitySender:    req.SenderCityRef,
		CityRecipient: req.RecipientCityRef,
		Weight:        req.WeightKg,
		Cost:          req.DeclaredValue,
		ServiceType:   s.cfg.ServiceType,
		CargoType:     novaposhta.CargoTypeCargo,
		SeatsAmount:   1,
	})
	if err != nil {
		return nil, err
	}
	return &Cost{Amount: price.Cost, EstimatedDeliveryDate: price.EstimatedDeliveryDate}, nil
}

// Quote never fails: a carrier error yields a zero cost and a warning.
func (s *service) Quote(ctx context.Context, recipientCityRef string, weightKg, declaredValue decimal.Decimal) Cost {
	cost, err := s.CalculateShippingCost(ctx, CostRequest{
		RecipientCityRef: recipientCityRef,
		WeightKg:         weightKg,
		DeclaredValue:    declaredValue,
	})
	if err != nil {
		if s.logg != nil {
			warnCtx := s.logg.WithFields(ctx, map[string]any{"city_ref": recipientCityRef, "error": err.Error()})
			s.logg.Warn(warnCtx, "shipping quote failed; falling back to zero cost")
		}
		return Cost{Amount: decimal.Zero}
	}
	return *cost
}

func (s *service) ResolveCityName(ctx context.Context, cityRef string) (string, error) {
	city, err := s.dir.GetCity(ctx, cityRef)
	if err != nil {
		return "", err
	}
	return city.Description, nil
}

func (s *service) ResolveWarehouseName(ctx context.Context, warehouseRef string) (string, error) {
	warehouseRef = strings.TrimSpace(warehouseRef)
	if warehouseRef == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "warehouse ref is required")
	}
	resp, err := s.dir.GetWarehouses(ctx, novaposhta.WarehouseQuery{Ref: warehouseRef})
	if err != nil {
		return "", err
	}
	if len(resp) == 0 {
		return "", pkgerrors.New(pkgerrors.CodeCarrier, "warehouse "+warehouseRef+" not found")
	}
	return resp[0].Description, nil
}

func (s *service) TrackWaybill(ctx context.Context, number string) (*Tracking, error) {
	statuses, err := s.dir.TrackDocuments(ctx, number)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "waybill not found")
	}
	st := statuses[0]
	return &Tracking{
		Number:                st.Number,
		Status:                st.Status,
		StatusCode:            st.StatusCode,
		SenderWarehouse:       st.WarehouseSender,
		RecipientWarehouse:    st.WarehouseRecipient,
		ScheduledDeliveryDate: st.ScheduledDeliveryDate,
		ActualDeliveryDate:    st.ActualDeliveryDate,
	}, nil
}

func (s *service) cached(ctx context.Context, out any, parts ...string) bool {
	if s.cache == nil || s.cacheTTL <= 0 {
		return false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(parts...))
	if err != nil {
		if !errors.Is(err, redis.Nil) && s.logg != nil {
			s.logg.Error(ctx, "directory cache read failed", err)
		}
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}

func (s *service) store(ctx context.Context, value any, parts ...string) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(parts...), string(payload), s.cacheTTL); err != nil && s.logg != nil {
		s.logg.Error(ctx, "directory cache write failed", err)
	}
}

func mapWarehouses(in []novaposhta.Warehouse) []Warehouse {
	out := make([]Warehouse, 0, len(in))
	for _, w := range in {
		out = append(out, Warehouse{
			Ref:          w.Ref,
			Name:         w.Description,
			Number:       w.Number,
			CityRef:      w.CityRef,
			ShortAddress: w.ShortAddress,
		})
	}
	return out
}
