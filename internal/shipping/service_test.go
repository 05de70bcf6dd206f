package shipping

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/config"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/novaposhta"
	"github.com/kittykibble/kibble-backend/pkg/redis"
)

type stubDirectory struct {
	areas         []novaposhta.Area
	areaCalls     int
	warehouses    int
	pages         []int
	priceErr      error
	priceRequests []novaposhta.PriceRequest
	tracking      []novaposhta.TrackingStatus
}

func (s *stubDirectory) GetAreas(context.Context) ([]novaposhta.Area, error) {
	s.areaCalls++
	return s.areas, nil
}

func (s *stubDirectory) GetCities(_ context.Context, areaRef string) ([]novaposhta.City, error) {
	return []novaposhta.City{{Ref: "city-1", Description: "Kyiv", Area: areaRef}}, nil
}

func (s *stubDirectory) GetCity(_ context.Context, ref string) (*novaposhta.City, error) {
	if ref == "missing" {
		return nil, pkgerrors.New(pkgerrors.CodeCarrier, "city missing not found")
	}
	return &novaposhta.City{Ref: ref, Description: "Lviv"}, nil
}

// GetWarehouses serves s.warehouses items split by q.Limit.
func (s *stubDirectory) GetWarehouses(_ context.Context, q novaposhta.WarehouseQuery) ([]novaposhta.Warehouse, error) {
	if q.Ref != "" {
		if q.Ref == "missing" {
			return nil, nil
		}
		return []novaposhta.Warehouse{{Ref: q.Ref, Description: "Branch #5"}}, nil
	}
	s.pages = append(s.pages, q.Page)
	start := (q.Page - 1) * q.Limit
	var out []novaposhta.Warehouse
	for i := start; i < s.warehouses && i < start+q.Limit; i++ {
		out = append(out, novaposhta.Warehouse{Ref: fmt.Sprintf("wh-%d", i), Description: fmt.Sprintf("Branch #%d", i)})
	}
	return out, nil
}

func (s *stubDirectory) GetDocumentPrice(_ context.Context, req novaposhta.PriceRequest) (*novaposhta.Price, error) {
	s.priceRequests = append(s.priceRequests, req)
	if s.priceErr != nil {
		return nil, s.priceErr
	}
	return &novaposhta.Price{Cost: decimal.NewFromInt(70), EstimatedDeliveryDate: "21.10.2026"}, nil
}

func (s *stubDirectory) TrackDocuments(_ context.Context, numbers ...string) ([]novaposhta.TrackingStatus, error) {
	return s.tracking, nil
}

type memoryCache struct {
	data map[string]string
}

func (m *memoryCache) Get(_ context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.data[key] = value.(string)
	return nil
}

func (m *memoryCache) CacheKey(parts ...string) string {
	return fmt.Sprint(parts)
}

func testCarrierConfig() config.CarrierConfig {
	return config.CarrierConfig{
		SenderCityRef:     "home-city",
		ServiceType:       "WarehouseWarehouse",
		WarehousePageSize: 3,
		DirectoryCacheTTL: time.Hour,
	}
}

func TestListAllWarehousesStopsAtShortPage(t *testing.T) {
	dir := &stubDirectory{warehouses: 7}
	svc, err := NewService(dir, nil, testCarrierConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	all, err := svc.ListAllWarehouses(context.Background(), "city-1")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 7 {
		t.Fatalf("expected 7 warehouses, got %d", len(all))
	}
	if len(dir.pages) != 3 {
		t.Fatalf("expected 3 page requests, got %v", dir.pages)
	}
}

func TestListAllWarehousesExactMultipleFetchesEmptyPage(t *testing.T) {
	dir := &stubDirectory{warehouses: 6}
	svc, _ := NewService(dir, nil, testCarrierConfig(), logger.Nop())

	all, err := svc.ListAllWarehouses(context.Background(), "city-1")
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 6 || len(dir.pages) != 3 {
		t.Fatalf("expected 6 items over 3 pages, got %d over %v", len(all), dir.pages)
	}
}

func TestListWarehousesRequiresCity(t *testing.T) {
	svc, _ := NewService(&stubDirectory{}, nil, testCarrierConfig(), logger.Nop())
	if _, err := svc.ListWarehouses(context.Background(), " ", 1, 10); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListAreasUsesCache(t *testing.T) {
	dir := &stubDirectory{areas: []novaposhta.Area{{Ref: "a1", Description: "Kyivska"}}}
	cache := &memoryCache{data: map[string]string{}}
	svc, _ := NewService(dir, cache, testCarrierConfig(), logger.Nop())

	for i := 0; i < 2; i++ {
		areas, err := svc.ListAreas(context.Background())
		if err != nil {
			t.Fatalf("list areas: %v", err)
		}
		if len(areas) != 1 || areas[0].Name != "Kyivska" {
			t.Fatalf("unexpected areas %+v", areas)
		}
	}
	if dir.areaCalls != 1 {
		t.Fatalf("expected one carrier call, got %d", dir.areaCalls)
	}
}

func TestCalculateShippingCostDefaultsSenderCity(t *testing.T) {
	dir := &stubDirectory{}
	svc, _ := NewService(dir, nil, testCarrierConfig(), logger.Nop())

	cost, err := svc.CalculateShippingCost(context.Background(), CostRequest{
		RecipientCityRef: "city-2",
		WeightKg:         decimal.RequireFromString("1.6"),
		DeclaredValue:    decimal.NewFromInt(500),
	})
	if err != nil {
		t.Fatalf("calculate: %v", err)
	}
	if cost.Amount.String() != "70" || cost.EstimatedDeliveryDate != "21.10.2026" {
		t.Fatalf("unexpected cost %+v", cost)
	}
	req := dir.priceRequests[0]
	if req.CitySender != "home-city" || req.CityRecipient != "city-2" || req.SeatsAmount != 1 {
		t.Fatalf("unexpected price request %+v", req)
	}
}

func TestQuoteFallsBackToZero(t *testing.T) {
	dir := &stubDirectory{priceErr: errors.New("carrier down")}
	svc, _ := NewService(dir, nil, testCarrierConfig(), logger.Nop())

	cost := svc.Quote(context.Background(), "city-2", decimal.NewFromInt(1), decimal.NewFromInt(100))
	if !cost.Amount.IsZero() || cost.EstimatedDeliveryDate != "" {
		t.Fatalf("expected zero fallback, got %+v", cost)
	}
}

func TestResolveNames(t *testing.T) {
	svc, _ := NewService(&stubDirectory{}, nil, testCarrierConfig(), logger.Nop())
	ctx := context.Background()

	city, err := svc.ResolveCityName(ctx, "city-3")
	if err != nil || city != "Lviv" {
		t.Fatalf("unexpected city %q %v", city, err)
	}
	warehouse, err := svc.ResolveWarehouseName(ctx, "wh-5")
	if err != nil || warehouse != "Branch #5" {
		t.Fatalf("unexpected warehouse %q %v", warehouse, err)
	}
	if _, err := svc.ResolveWarehouseName(ctx, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeCarrier) {
		t.Fatalf("expected carrier error, got %v", err)
	}
	if _, err := svc.ResolveCityName(ctx, "missing"); !pkgerrors.IsCode(err, pkgerrors.CodeCarrier) {
		t.Fatalf("expected carrier error, got %v", err)
	}
}

func TestTrackWaybill(t *testing.T) {
	dir := &stubDirectory{tracking: []novaposhta.TrackingStatus{{
		Number:                "20450000000001",
		Status:                "Прибув у відділення",
		StatusCode:            "7",
		WarehouseRecipient:    "Branch #5",
		ScheduledDeliveryDate: "21.10.2026",
	}}}
	svc, _ := NewService(dir, nil, testCarrierConfig(), logger.Nop())

	tracking, err := svc.TrackWaybill(context.Background(), "20450000000001")
	if err != nil {
		t.Fatalf("track: %v", err)
	}
	if tracking.StatusCode != "7" || tracking.RecipientWarehouse != "Branch #5" {
		t.Fatalf("unexpected tracking %+v", tracking)
	}

	empty := &stubDirectory{}
	svc, _ = NewService(empty, nil, testCarrierConfig(), logger.Nop())
	if _, err := svc.TrackWaybill(context.Background(), "1"); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
