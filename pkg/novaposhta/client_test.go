package novaposhta

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

type capturedCall struct {
	Model  string
	Method string
	Props  map[string]any
}

func newTestServer(t *testing.T, handler func(call capturedCall) string) (*Client, *[]capturedCall) {
	t.Helper()
	calls := []capturedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			APIKey           string         `json:"apiKey"`
			ModelName        string         `json:"modelName"`
			CalledMethod     string         `json:"calledMethod"`
			MethodProperties map[string]any `json:"methodProperties"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.APIKey != "key" {
			t.Fatalf("expected api key in body, got %q", body.APIKey)
		}
		call := capturedCall{Model: body.ModelName, Method: body.CalledMethod, Props: body.MethodProperties}
		calls = append(calls, call)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(handler(call)))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, &calls
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestGetAreasDecodesEnvelope(t *testing.T) {
	client, calls := newTestServer(t, func(call capturedCall) string {
		return `{"success":true,"data":[{"Ref":"a1","Description":"Kyivska"}],"errors":[],"warnings":[],"info":{"totalCount":1}}`
	})

	areas, err := client.GetAreas(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(areas) != 1 || areas[0].Ref != "a1" {
		t.Fatalf("unexpected areas %+v", areas)
	}
	if (*calls)[0].Model != "Address" || (*calls)[0].Method != "getAreas" {
		t.Fatalf("unexpected call %+v", (*calls)[0])
	}
}

func TestGetCitiesPassesAreaAndLimit(t *testing.T) {
	client, calls := newTestServer(t, func(call capturedCall) string {
		return `{"success":true,"data":[{"Ref":"c1","Description":"Kyiv","Area":"a1"}]}`
	})
	if _, err := client.GetCities(context.Background(), "a1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	props := (*calls)[0].Props
	if props["AreaRef"] != "a1" || props["Limit"] != float64(cityListLimit) {
		t.Fatalf("unexpected props %+v", props)
	}
}

func TestCarrierFailureBecomesCarrierError(t *testing.T) {
	client, _ := newTestServer(t, func(call capturedCall) string {
		return `{"success":false,"data":[],"errors":["API key expired"]}`
	})

	_, err := client.GetCounterparties(context.Background(), CounterpartySender)
	if err == nil {
		t.Fatal("expected error")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrier) {
		t.Fatalf("expected carrier code, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !strings.Contains(apiErr.Error(), "API key expired") {
		t.Fatalf("expected carrier message in chain, got %v", pkgerrors.Dump(err).Chain)
	}
}

func TestNon2xxStatusIsCarrierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()
	client, _ := NewClient("key", WithBaseURL(srv.URL))

	_, err := client.GetAreas(context.Background())
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrier) {
		t.Fatalf("expected carrier error, got %v", err)
	}
}

func TestSaveDocumentDefaultsDateAndReturnsWaybill(t *testing.T) {
	client, calls := newTestServer(t, func(call capturedCall) string {
		return `{"success":true,"data":[{"Ref":"doc-ref","IntDocNumber":"20450000000001","CostOnSite":70,"EstimatedDeliveryDate":"21.10.2026"}]}`
	})
	client.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	doc, err := client.SaveDocument(context.Background(), DocumentRequest{
		Weight:      decimal.RequireFromString("0.9"),
		Cost:        decimal.NewFromInt(20),
		SeatsAmount: 1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.IntDocNumber != "20450000000001" || !doc.CostOnSite.Equal(decimal.NewFromInt(70)) {
		t.Fatalf("unexpected document %+v", doc)
	}
	if got := (*calls)[0].Props["DateTime"]; got != "19.10.2026" {
		t.Fatalf("expected default date, got %v", got)
	}
}

func TestSaveDocumentWithoutDataFails(t *testing.T) {
	client, _ := newTestServer(t, func(call capturedCall) string {
		return `{"success":true,"data":[]}`
	})
	if _, err := client.SaveDocument(context.Background(), DocumentRequest{}); !pkgerrors.IsCode(err, pkgerrors.CodeCarrier) {
		t.Fatalf("expected carrier error for empty data, got %v", err)
	}
}

func TestTrackDocumentsBuildsDocumentList(t *testing.T) {
	client, calls := newTestServer(t, func(call capturedCall) string {
		return `{"success":true,"data":[{"Number":"2045","Status":"Delivered","StatusCode":"9","ScheduledDeliveryDate":"20.10.2026"}]}`
	})
	statuses, err := client.TrackDocuments(context.Background(), "2045", " ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(statuses) != 1 || statuses[0].StatusCode != "9" {
		t.Fatalf("unexpected statuses %+v", statuses)
	}
	docs := (*calls)[0].Props["Documents"].([]any)
	if len(docs) != 1 {
		t.Fatalf("blank numbers should be skipped, got %v", docs)
	}
}

func TestObserverSeesEveryCall(t *testing.T) {
	var seen []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer srv.Close()
	client, _ := NewClient("key", WithBaseURL(srv.URL), WithCallObserver(func(op string, _ time.Duration, err error) {
		seen = append(seen, op)
	}))

	_ = client.DeleteDocument(context.Background(), "ref-1")
	if len(seen) != 1 || seen[0] != "InternetDocument.delete" {
		t.Fatalf("unexpected observations %v", seen)
	}
}

func TestValidationHappensBeforeNetwork(t *testing.T) {
	client, calls := newTestServer(t, func(call capturedCall) string { return `{"success":true}` })
	if _, err := client.GetCities(context.Background(), ""); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := client.GetWarehouses(context.Background(), WarehouseQuery{}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(*calls) != 0 {
		t.Fatalf("no requests expected, got %d", len(*calls))
	}
}
