package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kittykibble/kibble-backend/internal/cart"
	"github.com/kittykibble/kibble-backend/internal/compensation"
	"github.com/kittykibble/kibble-backend/internal/orders"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/internal/users"
	"github.com/kittykibble/kibble-backend/internal/waybill"
	"github.com/kittykibble/kibble-backend/pkg/db"
	"github.com/kittykibble/kibble-backend/pkg/db/models"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/metrics"
	"github.com/kittykibble/kibble-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartStore interface {
	Get(ctx context.Context, userID uuid.UUID) (cart.Snapshot, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type shippingDirectory interface {
	Quote(ctx context.Context, recipientCityRef string, weightKg, declaredValue decimal.Decimal) shipping.Cost
	ResolveCityName(ctx context.Context, cityRef string) (string, error)
	ResolveWarehouseName(ctx context.Context, warehouseRef string) (string, error)
}

type listInvalidator interface {
	Invalidate(ctx context.Context) error
}

// Postgres names the constraint; sqlite only reports the column.
var waybillUniqueConstraints = []string{"orders_waybill_number_key", "idx_orders_waybill_number", "orders.waybill_number"}

type compensator interface {
	Enqueue(ctx context.Context, c compensation.Cancellation) error
}

// kvStore backs the checkout lock and the saved draft.
type kvStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	DraftKey(ownerID string) string
	LockKey(name string) string
}

// Service runs checkout for the signed-in (or guest) user.
type Service interface {
	Checkout(ctx context.Context, userID uuid.UUID, form Form) (*Confirmation, error)
	Quote(ctx context.Context, userID uuid.UUID, cityRef string) (*shipping.Cost, error)
	SaveDraft(ctx context.Context, userID uuid.UUID, draft Draft) error
	LoadDraft(ctx context.Context, userID uuid.UUID) (*Draft, error)
	DeleteDraft(ctx context.Context, userID uuid.UUID) error
	Prefill(ctx context.Context, userID uuid.UUID) (*Prefill, error)
}

// ServiceParams bundles the checkout dependencies.
type ServiceParams struct {
	Tx                 txRunner
	Carts              cartStore
	Shipping           shippingDirectory
	Waybills           waybill.Service
	Orders             orders.Repository
	OrderLists         listInvalidator
	Customers          users.CustomerStore
	Compensation       compensator
	Store              kvStore
	Metrics            *metrics.CheckoutMetrics
	Logger             *logger.Logger
	LockTTL            time.Duration
	DraftTTL           time.Duration
	PackagingAllowance decimal.Decimal
}

type service struct {
	tx           txRunner
	carts        cartStore
	shipping     shippingDirectory
	waybills     waybill.Service
	orders       orders.Repository
	orderLists   listInvalidator
	customers    users.CustomerStore
	compensation compensator
	store        kvStore
	metrics      *metrics.CheckoutMetrics
	logg         *logger.Logger
	lockTTL      time.Duration
	draftTTL     time.Duration
	allowance    decimal.Decimal
}

func NewService(p ServiceParams) (Service, error) {
	switch {
	case p.Tx == nil:
		return nil, fmt.Errorf("tx runner required")
	case p.Carts == nil:
		return nil, fmt.Errorf("cart service required")
	case p.Shipping == nil:
		return nil, fmt.Errorf("shipping service required")
	case p.Waybills == nil:
		return nil, fmt.Errorf("waybill service required")
	case p.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case p.OrderLists == nil:
		return nil, fmt.Errorf("order list cache required")
	case p.Customers == nil:
		return nil, fmt.Errorf("customer repository required")
	case p.Compensation == nil:
		return nil, fmt.Errorf("compensation queue required")
	case p.Store == nil:
		return nil, fmt.Errorf("redis store required")
	case p.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:           p.Tx,
		carts:        p.Carts,
		shipping:     p.Shipping,
		waybills:     p.Waybills,
		orders:       p.Orders,
		orderLists:   p.OrderLists,
		customers:    p.Customers,
		compensation: p.Compensation,
		store:        p.Store,
		metrics:      p.Metrics,
		logg:         p.Logger,
		lockTTL:      p.LockTTL,
		draftTTL:     p.DraftTTL,
		allowance:    p.PackagingAllowance,
	}, nil
}

func (s *service) Checkout(ctx context.Context, userID uuid.UUID, form Form) (*Confirmation, error) {
	ctx = s.logg.WithField(ctx, "event", "checkout")
	payer, method, err := form.options()
	if err != nil {
		s.metrics.IncOutcome(metrics.OutcomeRejected)
		return nil, err
	}

	lock, err := redis.NewLock(s.store, s.store.LockKey("checkout:"+userID.String()), s.lockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build checkout lock")
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout lock unavailable")
	}
	if !acquired {
		s.metrics.IncOutcome(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release checkout lock", relErr)
		}
	}()

	snapshot, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Items) == 0 {
		s.metrics.IncOutcome(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lines := linesFor(snapshot)
	weight := waybill.CargoWeight(lines, s.allowance)

	var (
		quote         shipping.Cost
		cityName      string
		warehouseName string
	)
	tasks := []waybill.Task{
		func(ctx context.Context) error {
			quote = s.shipping.Quote(ctx, form.CityRef, weight, snapshot.Total)
			return nil
		},
		func(ctx context.Context) error {
			name, err := s.shipping.ResolveCityName(ctx, form.CityRef)
			if err != nil {
				return lookupFailed("resolve city", err)
			}
			cityName = name
			return nil
		},
		func(ctx context.Context) error {
			name, err := s.shipping.ResolveWarehouseName(ctx, form.WarehouseRef)
			if err != nil {
				return lookupFailed("resolve warehouse", err)
			}
			warehouseName = name
			return nil
		},
	}

	result, err := s.waybills.Create(ctx, waybill.Request{
		Recipient: waybill.Recipient{
			FirstName:    form.FirstName,
			LastName:     form.LastName,
			MiddleName:   form.MiddleName,
			Phone:        form.Phone,
			Email:        form.Email,
			CityRef:      form.CityRef,
			WarehouseRef: form.WarehouseRef,
		},
		Items:         lines,
		DeclaredValue: snapshot.Total,
		PayerType:     payer,
		PaymentMethod: method,
	}, tasks...)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
			s.metrics.IncOutcome(metrics.OutcomeRejected)
		} else {
			s.metrics.IncOutcome(metrics.OutcomeCarrierFailed)
		}
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"waybill_number": result.Number, "waybill_ref": result.Ref})

	existing, err := s.orders.FindByWaybillNumber(ctx, result.Number)
	switch {
	case err == nil && existing != nil:
		s.metrics.IncOutcome(metrics.OutcomeDuplicate)
		s.logg.Warn(ctx, "waybill already has an order")
		return nil, pkgerrors.New(pkgerrors.CodeDuplicate, "order already submitted").
			WithDetails(map[string]any{"order_id": existing.ID})
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		s.compensate(ctx, result, "duplicate check failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order could not be saved")
	}

	shippingCost := result.Cost
	if !shippingCost.IsPositive() {
		shippingCost = quote.Amount
	}
	eta := firstNonEmpty(result.EstimatedDeliveryDate, quote.EstimatedDeliveryDate)

	order := &models.Order{
		UserID:          userID,
		CustomerName:    form.CustomerName(),
		CustomerEmail:   strings.TrimSpace(form.Email),
		CustomerPhone:   strings.TrimSpace(form.Phone),
		ShippingAddress: warehouseName,
		ShippingCity:    cityName,
		ShippingCost:    shippingCost,
		TotalAmount:     snapshot.Total,
		Status:          enums.OrderStatusPending,
		WaybillNumber:   result.Number,
		WaybillRef:      result.Ref,
		PayerType:       payer,
		PaymentMethod:   method,
	}
	if eta != "" {
		order.EstimatedDeliveryDate = &eta
	}
	items := orderItemsFor(snapshot)
	customer := &models.Customer{
		ID:    userID,
		Name:  order.CustomerName,
		Email: order.CustomerEmail,
		Phone: order.CustomerPhone,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order, items); err != nil {
			return err
		}
		return s.customers.WithTx(tx).Upsert(ctx, customer)
	})
	if err != nil {
		if isWaybillConflict(err) {
			s.metrics.IncOutcome(metrics.OutcomeDuplicate)
			return nil, pkgerrors.Wrap(pkgerrors.CodeDuplicate, err, "order already submitted")
		}
		s.compensate(ctx, result, "order persistence failed", err)
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "order could not be saved")
	}

	if err := s.orderLists.Invalidate(ctx); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to invalidate order list cache")
	}
	if err := s.carts.Clear(ctx, userID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to clear cart after checkout")
	}
	if err := s.store.Del(ctx, s.draftKey(userID)); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "failed to delete checkout draft")
	}

	s.metrics.IncOutcome(metrics.OutcomeCreated)
	s.logg.Info(s.logg.WithField(ctx, "order_id", order.ID.String()), "checkout completed")

	return &Confirmation{
		Order: orders.ToDTO(*order),
		Shipping: shipping.Selection{
			City:                  cityName,
			Warehouse:             warehouseName,
			Cost:                  shippingCost,
			EstimatedDeliveryDate: eta,
		},
		WaybillNumber: result.Number,
	}, nil
}

// compensate queues cancellation of a waybill that will have no order.
func (s *service) compensate(ctx context.Context, result *waybill.Result, reason string, cause error) {
	s.metrics.IncOutcome(metrics.OutcomePersistFailed)
	s.logg.Error(ctx, "order persistence failed after waybill creation", cause)
	entry := compensation.Cancellation{
		WaybillRef:    result.Ref,
		WaybillNumber: result.Number,
		Reason:        reason,
		LastError:     cause.Error(),
	}
	if err := s.compensation.Enqueue(context.WithoutCancel(ctx), entry); err != nil {
		s.logg.Error(ctx, "failed to enqueue waybill cancellation; waybill is orphaned", err)
	}
}

func (s *service) Quote(ctx context.Context, userID uuid.UUID, cityRef string) (*shipping.Cost, error) {
	if strings.TrimSpace(cityRef) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "city ref is required")
	}
	snapshot, err := s.carts.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}
	weight := waybill.CargoWeight(linesFor(snapshot), s.allowance)
	cost := s.shipping.Quote(ctx, cityRef, weight, snapshot.Total)
	return &cost, nil
}

func (s *service) SaveDraft(ctx context.Context, userID uuid.UUID, draft Draft) error {
	payload, err := json.Marshal(draft)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode draft")
	}
	if err := s.store.Set(ctx, s.draftKey(userID), string(payload), s.draftTTL); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save draft")
	}
	return nil
}

func (s *service) LoadDraft(ctx context.Context, userID uuid.UUID) (*Draft, error) {
	raw, err := s.store.Get(ctx, s.draftKey(userID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no saved draft")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load draft")
	}
	var draft Draft
	if err := json.Unmarshal([]byte(raw), &draft); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode draft")
	}
	return &draft, nil
}

func (s *service) DeleteDraft(ctx context.Context, userID uuid.UUID) error {
	if err := s.store.Del(ctx, s.draftKey(userID)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete draft")
	}
	return nil
}

// Prefill prefers the saved draft, then the stored customer profile.
func (s *service) Prefill(ctx context.Context, userID uuid.UUID) (*Prefill, error) {
	draft, err := s.LoadDraft(ctx, userID)
	if err == nil {
		return &Prefill{Source: PrefillDraft, Draft: *draft}, nil
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	customer, err := s.customers.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &Prefill{Source: PrefillEmpty}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
	}
	d := draftFromCustomerName(customer.Name)
	d.Email = customer.Email
	d.Phone = customer.Phone
	return &Prefill{Source: PrefillCustomer, Draft: d}, nil
}

func (s *service) draftKey(userID uuid.UUID) string {
	return s.store.DraftKey(userID.String())
}

func linesFor(snapshot cart.Snapshot) []waybill.Line {
	lines := make([]waybill.Line, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		lines = append(lines, waybill.Line{Name: item.Name, Grams: item.SelectedWeight, Quantity: item.Quantity})
	}
	return lines
}

func orderItemsFor(snapshot cart.Snapshot) []models.OrderItem {
	items := make([]models.OrderItem, 0, len(snapshot.Items))
	for _, item := range snapshot.Items {
		items = append(items, models.OrderItem{
			ProductID:      item.ID.String(),
			ProductName:    item.Name,
			Quantity:       item.Quantity,
			PriceAtTime:    item.Price.Round(2),
			TotalPrice:     item.LineTotal().Round(2),
			SelectedWeight: item.SelectedWeight,
		})
	}
	return items
}

func isWaybillConflict(err error) bool {
	for _, name := range waybillUniqueConstraints {
		if db.IsUniqueViolation(err, name) {
			return true
		}
	}
	return false
}

func lookupFailed(step string, err error) error {
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeCarrier, err, step+" failed").
		WithDetails(map[string]any{"step": step})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
