package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/kittykibble/kibble-backend/internal/orders"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/pagination"
)

// Carrier tracking codes meaning the parcel reached the recipient.
var deliveredStatusCodes = map[string]struct{}{
	"9":   {},
	"10":  {},
	"11":  {},
	"106": {},
}

type shippedOrderLister interface {
	List(ctx context.Context, filters orders.ListFilters, params pagination.Params) (*orders.Page, error)
}

type orderStatusUpdater interface {
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*orders.OrderDTO, error)
}

type waybillTracker interface {
	TrackWaybill(ctx context.Context, number string) (*shipping.Tracking, error)
}

type TrackingSyncJobParams struct {
	Logger   *logger.Logger
	Orders   shippedOrderLister
	Statuses orderStatusUpdater
	Tracker  waybillTracker
	PageSize int
}

// NewTrackingSyncJob builds the job that marks shipped orders delivered once
// the carrier reports the parcel as received.
func NewTrackingSyncJob(params TrackingSyncJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil || params.Statuses == nil {
		return nil, fmt.Errorf("orders repository and service required")
	}
	if params.Tracker == nil {
		return nil, fmt.Errorf("tracker required")
	}
	return &trackingSyncJob{
		logg:     params.Logger,
		orders:   params.Orders,
		statuses: params.Statuses,
		tracker:  params.Tracker,
		pageSize: pagination.NormalizeLimit(params.PageSize),
	}, nil
}

type trackingSyncJob struct {
	logg     *logger.Logger
	orders   shippedOrderLister
	statuses orderStatusUpdater
	tracker  waybillTracker
	pageSize int
}

func (j *trackingSyncJob) Name() string { return "tracking-sync" }

func (j *trackingSyncJob) Run(ctx context.Context) error {
	status := enums.OrderStatusShipped
	params := pagination.Params{Limit: j.pageSize}
	var (
		errs      error
		delivered int
	)
	for {
		page, err := j.orders.List(ctx, orders.ListFilters{Status: &status}, params)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list shipped orders: %w", err))
		}
		for _, order := range page.Orders {
			tracking, err := j.tracker.TrackWaybill(ctx, order.WaybillNumber)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("track %s: %w", order.WaybillNumber, err))
				continue
			}
			if _, ok := deliveredStatusCodes[tracking.StatusCode]; !ok {
				continue
			}
			if _, err := j.statuses.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("mark %s delivered: %w", order.ID, err))
				continue
			}
			delivered++
		}
		if page.NextCursor == "" {
			break
		}
		params.Cursor = page.NextCursor
	}
	logCtx := j.logg.WithField(ctx, "delivered", delivered)
	j.logg.Info(logCtx, "tracking sync complete")
	return errs
}
