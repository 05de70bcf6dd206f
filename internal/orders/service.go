package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/pagination"
)

type tracker interface {
	TrackWaybill(ctx context.Context, number string) (*shipping.Tracking, error)
}

// Service covers the admin console and the customer order history.
type Service interface {
	List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
	Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error)
	GetForUser(ctx context.Context, userID, id uuid.UUID) (*OrderDTO, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Track(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*shipping.Tracking, error)
	Invalidate(ctx context.Context) error
}

type service struct {
	repo    Repository
	cache   *ListCache
	tracker tracker
	logg    *logger.Logger
}

// NewService builds the order service. cache may be nil.
func NewService(repo Repository, cache *ListCache, tracker tracker, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tracker == nil {
		return nil, fmt.Errorf("waybill tracker required")
	}
	return &service{repo: repo, cache: cache, tracker: tracker, logg: logg}, nil
}

func (s *service) List(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	params.Limit = pagination.NormalizeLimit(params.Limit)
	if cached, ok := s.cache.Load(ctx, filters, params); ok {
		return cached, nil
	}
	list, err := s.list(ctx, filters, params)
	if err != nil {
		return nil, err
	}
	s.cache.Save(ctx, filters, params, list)
	return list, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	return s.list(ctx, ListFilters{UserID: &userID}, params)
}

func (s *service) list(ctx context.Context, filters ListFilters, params pagination.Params) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	page, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return toList(page), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	dto := ToDTO(*order)
	return &dto, nil
}

func (s *service) GetForUser(ctx context.Context, userID, id uuid.UUID) (*OrderDTO, error) {
	order, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

// UpdateStatus applies an admin status change and returns the re-read order.
// Setting the current status again is a no-op.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*OrderDTO, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status")
	}
	order, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	if order.Status != status {
		if !order.Status.CanTransitionTo(status) {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status transition not allowed").
				WithDetails(map[string]any{"from": order.Status, "to": status})
		}
		if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
			return nil, notFoundOr(err, "update order status")
		}
		s.invalidate(ctx)
	}
	return s.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "delete order")
	}
	s.invalidate(ctx)
	return nil
}

// Track looks up the carrier status of an order's waybill. A non-nil userID
// restricts the lookup to that user's orders.
func (s *service) Track(ctx context.Context, id uuid.UUID, userID *uuid.UUID) (*shipping.Tracking, error) {
	var (
		order *OrderDTO
		err   error
	)
	if userID != nil {
		order, err = s.GetForUser(ctx, *userID, id)
	} else {
		order, err = s.Get(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return s.tracker.TrackWaybill(ctx, order.WaybillNumber)
}

func (s *service) Invalidate(ctx context.Context) error {
	return s.cache.Invalidate(ctx)
}

func (s *service) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil && s.logg != nil {
		s.logg.Error(ctx, "order cache invalidation failed", err)
	}
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
