package waybill

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kittykibble/kibble-backend/pkg/config"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/novaposhta"
)

type fakeCarrier struct {
	mu sync.Mutex

	senderErr         error
	recipientContacts []novaposhta.ContactPerson
	saveErr           error

	// senderGate, when set, blocks the sender lookup until the recipient
	// has been registered.
	senderGate chan struct{}

	calls     []string
	documents []novaposhta.DocumentRequest
	deleted   []string
}

func (f *fakeCarrier) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCarrier) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeCarrier) GetCounterparties(ctx context.Context, property string) ([]novaposhta.Counterparty, error) {
	f.record("getCounterparties:" + property)
	if f.senderGate != nil {
		select {
		case <-f.senderGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.senderErr != nil {
		return nil, f.senderErr
	}
	return []novaposhta.Counterparty{{Ref: "sender-ref"}}, nil
}

func (f *fakeCarrier) GetContactPersons(_ context.Context, ref string) ([]novaposhta.ContactPerson, error) {
	f.record("getContactPersons:" + ref)
	if ref == "sender-ref" {
		return []novaposhta.ContactPerson{{Ref: "sender-contact", Phones: "380501112233"}}, nil
	}
	return f.recipientContacts, nil
}

func (f *fakeCarrier) GetWarehouses(_ context.Context, q novaposhta.WarehouseQuery) ([]novaposhta.Warehouse, error) {
	f.record("getWarehouses:" + q.CityRef)
	return []novaposhta.Warehouse{{Ref: "sender-warehouse"}}, nil
}

func (f *fakeCarrier) SaveRecipient(_ context.Context, p novaposhta.NewPrivatePerson) (*novaposhta.Counterparty, error) {
	f.record("saveRecipient")
	if f.senderGate != nil {
		close(f.senderGate)
	}
	return &novaposhta.Counterparty{Ref: "recipient-ref"}, nil
}

func (f *fakeCarrier) SaveDocument(_ context.Context, req novaposhta.DocumentRequest) (*novaposhta.Document, error) {
	f.record("saveDocument")
	f.mu.Lock()
	f.documents = append(f.documents, req)
	f.mu.Unlock()
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &novaposhta.Document{
		Ref:                   "doc-ref",
		IntDocNumber:          "20450000000001",
		CostOnSite:            decimal.NewFromInt(70),
		EstimatedDeliveryDate: "22.10.2026",
	}, nil
}

func (f *fakeCarrier) DeleteDocument(_ context.Context, ref string) error {
	f.record("deleteDocument")
	f.mu.Lock()
	f.deleted = append(f.deleted, ref)
	f.mu.Unlock()
	return nil
}

func testConfig() config.CarrierConfig {
	return config.CarrierConfig{
		SenderCityRef:          "home-city",
		SenderWarehouseTypeRef: "branch-type",
		ServiceType:            "WarehouseWarehouse",
		DescriptionLimit:       100,
		PackagingAllowanceKg:   "0.1",
	}
}

func testRequest() Request {
	return Request{
		Recipient: Recipient{
			FirstName:    "Olena",
			LastName:     "Shevchenko",
			MiddleName:   "Ivanivna",
			Phone:        "380671234567",
			Email:        "olena@example.com",
			CityRef:      "city-2",
			WarehouseRef: "wh-9",
		},
		Items: []Line{
			{Name: "Cat Crunch", Grams: 1500, Quantity: 2},
			{Name: "Cat Pouch", Grams: 85, Quantity: 4},
		},
		DeclaredValue: decimal.NewFromInt(860),
		PayerType:     enums.PayerRecipient,
		PaymentMethod: enums.PaymentCash,
	}
}

func matchingContacts() []novaposhta.ContactPerson {
	return []novaposhta.ContactPerson{
		{Ref: "other", FirstName: "Ivan", LastName: "Shevchenko"},
		{Ref: "recipient-contact", FirstName: " olena", LastName: "SHEVCHENKO ", MiddleName: "ivanivna"},
	}
}

func TestCreateBuildsDocument(t *testing.T) {
	carrier := &fakeCarrier{recipientContacts: matchingContacts()}
	svc, err := NewService(carrier, testConfig(), logger.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	result, err := svc.Create(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if result.Ref != "doc-ref" || result.Number != "20450000000001" {
		t.Fatalf("unexpected result %+v", result)
	}

	doc := carrier.documents[0]
	if doc.Sender != "sender-ref" || doc.ContactSender != "sender-contact" || doc.SenderAddress != "sender-warehouse" {
		t.Fatalf("unexpected sender fields %+v", doc)
	}
	if doc.Recipient != "recipient-ref" || doc.ContactRecipient != "recipient-contact" {
		t.Fatalf("unexpected recipient fields %+v", doc)
	}
	if doc.CityRecipient != "city-2" || doc.RecipientAddress != "wh-9" {
		t.Fatalf("unexpected destination %+v", doc)
	}
	if doc.SendersPhone != "380501112233" {
		t.Fatalf("expected sender contact phone, got %q", doc.SendersPhone)
	}
	if doc.PayerType != "Recipient" || doc.PaymentMethod != "Cash" || doc.CargoType != "Cargo" || doc.SeatsAmount != 1 {
		t.Fatalf("unexpected shipment options %+v", doc)
	}
	// 1.5*2 + 0.085*4 + 0.1*6 = 3.94
	if doc.Weight.String() != "3.94" {
		t.Fatalf("unexpected weight %s", doc.Weight)
	}
	if doc.Cost.String() != "860" {
		t.Fatalf("unexpected declared cost %s", doc.Cost)
	}
	if doc.Description != "Cat Crunch 1500g x2, Cat Pouch 85g x4" {
		t.Fatalf("unexpected description %q", doc.Description)
	}
}

func TestCreateRunsBranchesConcurrently(t *testing.T) {
	carrier := &fakeCarrier{recipientContacts: matchingContacts(), senderGate: make(chan struct{})}
	svc, _ := NewService(carrier, testConfig(), logger.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := svc.Create(ctx, testRequest()); err != nil {
		t.Fatalf("create should succeed when branches overlap: %v", err)
	}
}

func TestCreateAbortsOnContactMismatch(t *testing.T) {
	carrier := &fakeCarrier{recipientContacts: []novaposhta.ContactPerson{{Ref: "x", FirstName: "Someone", LastName: "Else"}}}
	svc, _ := NewService(carrier, testConfig(), logger.Nop())

	_, err := svc.Create(context.Background(), testRequest())
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrier) {
		t.Fatalf("expected carrier error, got %v", err)
	}
	if carrier.called("saveDocument") {
		t.Fatalf("waybill must not be created after a contact mismatch")
	}
}

func TestCreateAbortsOnSenderFailure(t *testing.T) {
	carrier := &fakeCarrier{
		recipientContacts: matchingContacts(),
		senderErr:         pkgerrors.New(pkgerrors.CodeCarrier, "API key expired"),
	}
	svc, _ := NewService(carrier, testConfig(), logger.Nop())

	_, err := svc.Create(context.Background(), testRequest())
	if !pkgerrors.IsCode(err, pkgerrors.CodeCarrier) {
		t.Fatalf("expected carrier error, got %v", err)
	}
	if carrier.called("saveDocument") {
		t.Fatalf("waybill must not be created when the sender lookup fails")
	}
}

func TestCreateRunsExtraTasks(t *testing.T) {
	carrier := &fakeCarrier{recipientContacts: matchingContacts()}
	svc, _ := NewService(carrier, testConfig(), logger.Nop())

	var ran bool
	_, err := svc.Create(context.Background(), testRequest(), func(context.Context) error {
		ran = true
		return nil
	})
	if err != nil || !ran {
		t.Fatalf("expected task to run, err=%v ran=%v", err, ran)
	}

	carrier = &fakeCarrier{recipientContacts: matchingContacts()}
	svc, _ = NewService(carrier, testConfig(), logger.Nop())
	taskErr := pkgerrors.New(pkgerrors.CodeCarrier, "warehouse not found")
	_, err = svc.Create(context.Background(), testRequest(), func(context.Context) error { return taskErr })
	if !errors.Is(err, taskErr) {
		t.Fatalf("expected task error, got %v", err)
	}
	if carrier.called("saveDocument") {
		t.Fatalf("waybill must not be created when a task fails")
	}
}

func TestCreateValidatesBeforeCarrierCalls(t *testing.T) {
	carrier := &fakeCarrier{}
	svc, _ := NewService(carrier, testConfig(), logger.Nop())

	req := testRequest()
	req.Recipient.Phone = ""
	if _, err := svc.Create(context.Background(), req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	req = testRequest()
	req.Items = nil
	if _, err := svc.Create(context.Background(), req); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(carrier.calls) != 0 {
		t.Fatalf("expected no carrier calls, got %v", carrier.calls)
	}
}

func TestRecipientValidateListsMissingFieldsInFormOrder(t *testing.T) {
	r := Recipient{FirstName: "Olena", Email: "olena@example.com"}
	for i := 0; i < 20; i++ {
		typed := pkgerrors.As(r.validate())
		if typed == nil {
			t.Fatalf("expected typed validation error")
		}
		details, _ := typed.Details().(map[string]any)
		missing, _ := details["missing"].([]string)
		if got := strings.Join(missing, ","); got != "last_name,phone,city_ref,warehouse_ref" {
			t.Fatalf("unexpected missing order %q", got)
		}
	}
}

func TestCreateWrapsSaveFailure(t *testing.T) {
	carrier := &fakeCarrier{recipientContacts: matchingContacts(), saveErr: errors.New("Weight is invalid")}
	svc, _ := NewService(carrier, testConfig(), logger.Nop())

	_, err := svc.Create(context.Background(), testRequest())
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeCarrier {
		t.Fatalf("expected carrier error, got %v", err)
	}
	if !strings.Contains(err.Error(), "create_waybill") {
		t.Fatalf("expected step name in error, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	carrier := &fakeCarrier{}
	svc, _ := NewService(carrier, testConfig(), logger.Nop())
	if err := svc.Cancel(context.Background(), "doc-ref"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(carrier.deleted) != 1 || carrier.deleted[0] != "doc-ref" {
		t.Fatalf("unexpected deletes %v", carrier.deleted)
	}
}

func TestCargoWeight(t *testing.T) {
	items := []Line{{Grams: 400, Quantity: 1}, {Grams: 85, Quantity: 3}}
	got := CargoWeight(items, decimal.RequireFromString("0.1"))
	// 0.4 + 0.255 + 0.4
	if got.String() != "1.055" {
		t.Fatalf("unexpected weight %s", got)
	}
	if !CargoWeight(nil, decimal.RequireFromString("0.1")).IsZero() {
		t.Fatalf("empty cart should weigh nothing")
	}
}

func TestDescriptionSummarisesWhenTooLong(t *testing.T) {
	items := []Line{
		{Name: "Premium Grain Free Salmon Recipe For Adult Cats", Grams: 10000, Quantity: 1},
		{Name: "Hypoallergenic Lamb and Rice Formula For Large Dogs", Grams: 20000, Quantity: 2},
	}
	got := Description(items, 100)
	if got != "Pet food: 3 items" {
		t.Fatalf("unexpected summary %q", got)
	}
	if got := Description(items, 8); got != "Pet food" {
		t.Fatalf("expected truncated summary, got %q", got)
	}
}
