package waybill

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kittykibble/kibble-backend/pkg/config"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/novaposhta"
)

// Carrier is the subset of the carrier client the waybill flow calls.
// *novaposhta.Client satisfies it.
type Carrier interface {
	GetCounterparties(ctx context.Context, property string) ([]novaposhta.Counterparty, error)
	GetContactPersons(ctx context.Context, counterpartyRef string) ([]novaposhta.ContactPerson, error)
	GetWarehouses(ctx context.Context, q novaposhta.WarehouseQuery) ([]novaposhta.Warehouse, error)
	SaveRecipient(ctx context.Context, p novaposhta.NewPrivatePerson) (*novaposhta.Counterparty, error)
	SaveDocument(ctx context.Context, req novaposhta.DocumentRequest) (*novaposhta.Document, error)
	DeleteDocument(ctx context.Context, ref string) error
}

// Task runs in the same errgroup as the sender and recipient branches.
type Task func(ctx context.Context) error

type Service interface {
	// Create registers both parties and creates the waybill. Extra tasks run
	// concurrently with the two branches and must finish before the waybill
	// is saved; any failure aborts the flow.
	Create(ctx context.Context, req Request, tasks ...Task) (*Result, error)
	Cancel(ctx context.Context, ref string) error
}

type service struct {
	carrier Carrier
	cfg     config.CarrierConfig
	logg    *logger.Logger
}

func NewService(carrier Carrier, cfg config.CarrierConfig, logg *logger.Logger) (Service, error) {
	if carrier == nil {
		return nil, fmt.Errorf("carrier client required")
	}
	if strings.TrimSpace(cfg.SenderCityRef) == "" {
		return nil, fmt.Errorf("sender city ref required")
	}
	if cfg.DescriptionLimit <= 0 {
		cfg.DescriptionLimit = 100
	}
	return &service{carrier: carrier, cfg: cfg, logg: logg}, nil
}

type sender struct {
	ref        string
	contactRef string
	phone      string
	addressRef string
}

type recipient struct {
	ref        string
	contactRef string
}

func (s *service) Create(ctx context.Context, req Request, tasks ...Task) (*Result, error) {
	if len(req.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "waybill requires at least one item")
	}
	if err := req.Recipient.validate(); err != nil {
		return nil, err
	}

	var (
		snd sender
		rcp recipient
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := s.resolveSender(gctx)
		if err != nil {
			return err
		}
		snd = *out
		return nil
	})
	g.Go(func() error {
		out, err := s.registerRecipient(gctx, req.Recipient)
		if err != nil {
			return err
		}
		rcp = *out
		return nil
	})
	for _, task := range tasks {
		g.Go(func() error { return task(gctx) })
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weight := CargoWeight(req.Items, s.cfg.PackagingAllowance())
	doc, err := s.carrier.SaveDocument(ctx, novaposhta.DocumentRequest{
		Sender:           snd.ref,
		CitySender:       s.cfg.SenderCityRef,
		SenderAddress:    snd.addressRef,
		ContactSender:    snd.contactRef,
		SendersPhone:     firstNonEmpty(s.cfg.SenderPhone, snd.phone),
		Recipient:        rcp.ref,
		CityRecipient:    req.Recipient.CityRef,
		RecipientAddress: req.Recipient.WarehouseRef,
		ContactRecipient: rcp.contactRef,
		RecipientsPhone:  req.Recipient.Phone,
		PayerType:        string(req.PayerType),
		PaymentMethod:    string(req.PaymentMethod),
		CargoType:        novaposhta.CargoTypeCargo,
		Weight:           weight,
		ServiceType:      s.cfg.ServiceType,
		SeatsAmount:      1,
		Description:      Description(req.Items, s.cfg.DescriptionLimit),
		Cost:             req.DeclaredValue,
	})
	if err != nil {
		return nil, s.stepFailed(ctx, "create_waybill", err)
	}

	return &Result{
		Ref:                   doc.Ref,
		Number:                doc.IntDocNumber,
		Cost:                  doc.CostOnSite,
		EstimatedDeliveryDate: doc.EstimatedDeliveryDate,
		Weight:                weight,
	}, nil
}

func (s *service) Cancel(ctx context.Context, ref string) error {
	if err := s.carrier.DeleteDocument(ctx, ref); err != nil {
		return s.stepFailed(ctx, "cancel_waybill", err)
	}
	return nil
}

// resolveSender looks up the store's own counterparty, its contact person
// and the dispatch warehouse in the home city.
func (s *service) resolveSender(ctx context.Context) (*sender, error) {
	counterparties, err := s.carrier.GetCounterparties(ctx, novaposhta.CounterpartySender)
	if err != nil {
		return nil, s.stepFailed(ctx, "sender_counterparty", err)
	}
	if len(counterparties) == 0 {
		return nil, s.stepEmpty(ctx, "sender_counterparty")
	}
	out := &sender{ref: counterparties[0].Ref}

	contacts, err := s.carrier.GetContactPersons(ctx, out.ref)
	if err != nil {
		return nil, s.stepFailed(ctx, "sender_contact", err)
	}
	if len(contacts) == 0 {
		return nil, s.stepEmpty(ctx, "sender_contact")
	}
	out.contactRef = contacts[0].Ref
	out.phone = contacts[0].Phones

	warehouses, err := s.carrier.GetWarehouses(ctx, novaposhta.WarehouseQuery{
		CityRef:            s.cfg.SenderCityRef,
		TypeOfWarehouseRef: s.cfg.SenderWarehouseTypeRef,
		Page:               1,
		Limit:              1,
	})
	if err != nil {
		return nil, s.stepFailed(ctx, "sender_warehouse", err)
	}
	if len(warehouses) == 0 {
		return nil, s.stepEmpty(ctx, "sender_warehouse")
	}
	out.addressRef = warehouses[0].Ref
	return out, nil
}

// registerRecipient creates a new private-person counterparty and finds the
// contact person whose full name matches.
func (s *service) registerRecipient(ctx context.Context, r Recipient) (*recipient, error) {
	counterparty, err := s.carrier.SaveRecipient(ctx, novaposhta.NewPrivatePerson{
		CityRef:    r.CityRef,
		FirstName:  r.FirstName,
		LastName:   r.LastName,
		MiddleName: r.MiddleName,
		Phone:      r.Phone,
		Email:      r.Email,
	})
	if err != nil {
		return nil, s.stepFailed(ctx, "recipient_counterparty", err)
	}

	contacts, err := s.carrier.GetContactPersons(ctx, counterparty.Ref)
	if err != nil {
		return nil, s.stepFailed(ctx, "recipient_contact", err)
	}
	contact, ok := matchContact(contacts, r)
	if !ok {
		return nil, s.stepEmpty(ctx, "recipient_contact")
	}
	return &recipient{ref: counterparty.Ref, contactRef: contact.Ref}, nil
}

func matchContact(contacts []novaposhta.ContactPerson, r Recipient) (novaposhta.ContactPerson, bool) {
	for _, c := range contacts {
		if sameName(c.FirstName, r.FirstName) &&
			sameName(c.LastName, r.LastName) &&
			sameName(c.MiddleName, r.MiddleName) {
			return c, true
		}
	}
	return novaposhta.ContactPerson{}, false
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func (s *service) stepFailed(ctx context.Context, step string, err error) error {
	if s.logg != nil {
		s.logg.Error(s.logg.WithField(ctx, "step", step), "carrier step failed", err)
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeCarrier, err, step+" failed").WithDetails(map[string]any{"step": step})
}

func (s *service) stepEmpty(ctx context.Context, step string) error {
	if s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "step", step), "carrier step returned no data")
	}
	return pkgerrors.New(pkgerrors.CodeCarrier, step+" returned no data").WithDetails(map[string]any{"step": step})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
