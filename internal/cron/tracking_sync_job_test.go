package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/kittykibble/kibble-backend/internal/orders"
	"github.com/kittykibble/kibble-backend/internal/shipping"
	"github.com/kittykibble/kibble-backend/pkg/db/models"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	"github.com/kittykibble/kibble-backend/pkg/logger"
	"github.com/kittykibble/kibble-backend/pkg/pagination"
)

type pagedOrders struct {
	pages  []orders.Page
	calls  []pagination.Params
	status *enums.OrderStatus
}

func (p *pagedOrders) List(_ context.Context, filters orders.ListFilters, params pagination.Params) (*orders.Page, error) {
	p.status = filters.Status
	p.calls = append(p.calls, params)
	page := p.pages[len(p.calls)-1]
	return &page, nil
}

type recordingStatuses struct {
	updated map[uuid.UUID]enums.OrderStatus
}

func (r *recordingStatuses) UpdateStatus(_ context.Context, id uuid.UUID, status enums.OrderStatus) (*orders.OrderDTO, error) {
	r.updated[id] = status
	return &orders.OrderDTO{ID: id, Status: status}, nil
}

type codeTracker map[string]string

func (c codeTracker) TrackWaybill(_ context.Context, number string) (*shipping.Tracking, error) {
	code, ok := c[number]
	if !ok {
		return nil, errors.New("not tracked")
	}
	return &shipping.Tracking{Number: number, StatusCode: code}, nil
}

func TestTrackingSyncMarksDeliveredAcrossPages(t *testing.T) {
	delivered := models.Order{ID: uuid.New(), WaybillNumber: "A"}
	inTransit := models.Order{ID: uuid.New(), WaybillNumber: "B"}
	received := models.Order{ID: uuid.New(), WaybillNumber: "C"}
	unknown := models.Order{ID: uuid.New(), WaybillNumber: "D"}

	lister := &pagedOrders{pages: []orders.Page{
		{Orders: []models.Order{delivered, inTransit}, NextCursor: "next"},
		{Orders: []models.Order{received, unknown}},
	}}
	statuses := &recordingStatuses{updated: map[uuid.UUID]enums.OrderStatus{}}
	job, err := NewTrackingSyncJob(TrackingSyncJobParams{
		Logger:   logger.Nop(),
		Orders:   lister,
		Statuses: statuses,
		Tracker:  codeTracker{"A": "9", "B": "5", "C": "11"},
		PageSize: 2,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error for untracked waybill D")
	}
	if len(lister.calls) != 2 || lister.calls[1].Cursor != "next" {
		t.Fatalf("expected two pages, got %+v", lister.calls)
	}
	if lister.status == nil || *lister.status != enums.OrderStatusShipped {
		t.Fatalf("expected shipped filter")
	}
	if len(statuses.updated) != 2 {
		t.Fatalf("expected 2 updates, got %v", statuses.updated)
	}
	if statuses.updated[delivered.ID] != enums.OrderStatusDelivered || statuses.updated[received.ID] != enums.OrderStatusDelivered {
		t.Fatalf("wrong orders updated: %v", statuses.updated)
	}
}
