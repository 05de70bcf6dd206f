package orders

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kittykibble/kibble-backend/pkg/db/models"
	"github.com/kittykibble/kibble-backend/pkg/enums"
	"github.com/kittykibble/kibble-backend/pkg/pagination"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderItem{}))
	return db
}

var baseTime = time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)

func newTestOrder(userID uuid.UUID, waybill string, createdAt time.Time) *models.Order {
	return &models.Order{
		UserID:          userID,
		CustomerName:    "Olena Shevchenko",
		CustomerEmail:   "olena@example.com",
		CustomerPhone:   "380671234567",
		ShippingAddress: "Branch #5",
		ShippingCity:    "Kyiv",
		ShippingCost:    decimal.NewFromInt(70),
		TotalAmount:     decimal.NewFromInt(480),
		Status:          enums.OrderStatusPending,
		WaybillNumber:   waybill,
		WaybillRef:      "ref-" + waybill,
		PayerType:       enums.PayerRecipient,
		PaymentMethod:   enums.PaymentCash,
		CreatedAt:       createdAt,
		UpdatedAt:       createdAt,
	}
}

func newTestItems() []models.OrderItem {
	return []models.OrderItem{
		{ProductID: uuid.NewString(), ProductName: "Cat Crunch", Quantity: 2, PriceAtTime: decimal.NewFromInt(240), TotalPrice: decimal.NewFromInt(480), SelectedWeight: 1500},
	}
}

func TestRepositoryCreateAndFind(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newTestOrder(uuid.New(), "20450000000001", baseTime)
	require.NoError(t, repo.Create(ctx, order, newTestItems()))
	require.NotEqual(t, uuid.Nil, order.ID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, order.ID, order.Items[0].OrderID)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, found.Items, 1)
	assert.Equal(t, "Cat Crunch", found.Items[0].ProductName)
	assert.Equal(t, 1500, found.Items[0].SelectedWeight)

	byWaybill, err := repo.FindByWaybillNumber(ctx, "20450000000001")
	require.NoError(t, err)
	assert.Equal(t, order.ID, byWaybill.ID)

	_, err = repo.FindByWaybillNumber(ctx, "missing")
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryCreateRejectsDuplicateWaybill(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newTestOrder(uuid.New(), "dup", baseTime), newTestItems()))
	err := repo.Create(ctx, newTestOrder(uuid.New(), "dup", baseTime), newTestItems())
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.OrderItem{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "failed create must not leave items behind")
}

func TestRepositoryListPaginatesNewestFirst(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()
	userA := uuid.New()
	userB := uuid.New()

	for i := 0; i < 5; i++ {
		owner := userA
		if i%2 == 1 {
			owner = userB
		}
		order := newTestOrder(owner, fmt.Sprintf("wb-%d", i), baseTime.Add(time.Duration(i)*time.Minute))
		require.NoError(t, repo.Create(ctx, order, newTestItems()))
	}

	first, err := repo.List(ctx, ListFilters{}, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	assert.Equal(t, "wb-4", first.Orders[0].WaybillNumber)
	assert.Equal(t, "wb-3", first.Orders[1].WaybillNumber)
	require.NotEmpty(t, first.NextCursor)
	assert.Len(t, first.Orders[0].Items, 1)

	second, err := repo.List(ctx, ListFilters{}, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	assert.Equal(t, "wb-2", second.Orders[0].WaybillNumber)

	third, err := repo.List(ctx, ListFilters{}, pagination.Params{Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, third.Orders, 1)
	assert.Empty(t, third.NextCursor)

	mine, err := repo.List(ctx, ListFilters{UserID: &userB}, pagination.Params{Limit: 10})
	require.NoError(t, err)
	require.Len(t, mine.Orders, 2)
	for _, o := range mine.Orders {
		assert.Equal(t, userB, o.UserID)
	}
}

func TestRepositoryUpdateStatusAndFilter(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newTestOrder(uuid.New(), "wb-status", baseTime)
	require.NoError(t, repo.Create(ctx, order, newTestItems()))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped))

	shipped := enums.OrderStatusShipped
	page, err := repo.List(ctx, ListFilters{Status: &shipped}, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.False(t, page.Orders[0].UpdatedAt.Equal(baseTime))

	err = repo.UpdateStatus(ctx, uuid.New(), enums.OrderStatusShipped)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestRepositoryDeleteRemovesItems(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := newTestOrder(uuid.New(), "wb-delete", baseTime)
	require.NoError(t, repo.Create(ctx, order, newTestItems()))
	require.NoError(t, repo.Delete(ctx, order.ID))

	var items int64
	require.NoError(t, db.Model(&models.OrderItem{}).Where("order_id = ?", order.ID).Count(&items).Error)
	assert.Zero(t, items)

	_, err := repo.FindByID(ctx, order.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))

	assert.True(t, errors.Is(repo.Delete(ctx, order.ID), gorm.ErrRecordNotFound))
}
