package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/medmarket/medmarket-backend/pkg/db/dbtest"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/pagination"
)

func newOrdersService(t *testing.T) (Service, Repository, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	return svc, repo, conn
}

func createOrder(t *testing.T, repo Repository, userID uuid.UUID, status enums.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		UserID:    userID,
		Status:    status,
		Currency:  "usd",
		Subtotal:  decimal.RequireFromString("5375.00"),
		Savings:   decimal.RequireFromString("537.50"),
		Total:     decimal.RequireFromString("4837.50"),
		ItemCount: 25,
		Lines: []models.OrderLine{{
			ProductID:          uuid.New(),
			ProductName:        "Gloves",
			SKU:                "GLV-1",
			Quantity:           25,
			OriginalUnitPrice:  decimal.RequireFromString("215.00"),
			UnitPrice:          decimal.RequireFromString("193.50"),
			DiscountPercentage: decimal.NewFromInt(10),
			LineTotal:          decimal.RequireFromString("4837.50"),
		}},
	}
	require.NoError(t, repo.Create(context.Background(), order))
	return order
}

func TestOrderHistoryIsScopedToUser(t *testing.T) {
	svc, repo, _ := newOrdersService(t)
	ctx := context.Background()
	alice, bob := uuid.New(), uuid.New()
	first := createOrder(t, repo, alice, enums.OrderStatusPaid)
	createOrder(t, repo, alice, enums.OrderStatusPendingPayment)
	other := createOrder(t, repo, bob, enums.OrderStatusPaid)

	page, err := svc.ListForUser(ctx, alice, pagination.Params{Limit: 1})
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	require.NotEmpty(t, page.NextCursor)

	rest, err := svc.ListForUser(ctx, alice, pagination.Params{Limit: 1, Cursor: page.NextCursor})
	require.NoError(t, err)
	require.Len(t, rest.Orders, 1)
	assert.Empty(t, rest.NextCursor)

	detail, err := svc.GetForUser(ctx, alice, first.ID)
	require.NoError(t, err)
	require.Len(t, detail.Lines, 1)
	assert.True(t, detail.Lines[0].UnitPrice.Equal(decimal.RequireFromString("193.50")))

	_, err = svc.GetForUser(ctx, alice, other.ID)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAdminUpdateStatusFollowsTransitions(t *testing.T) {
	svc, repo, _ := newOrdersService(t)
	ctx := context.Background()
	order := createOrder(t, repo, uuid.New(), enums.OrderStatusPaid)

	dto, err := svc.AdminUpdateStatus(ctx, order.ID, enums.OrderStatusProcessing)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusProcessing, dto.Status)

	_, err = svc.AdminUpdateStatus(ctx, order.ID, enums.OrderStatusDelivered)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict), "got %v", err)

	_, err = svc.AdminUpdateStatus(ctx, order.ID, "teleported")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.AdminUpdateStatus(ctx, uuid.New(), enums.OrderStatusShipped)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestAdminListFiltersByStatus(t *testing.T) {
	svc, repo, _ := newOrdersService(t)
	ctx := context.Background()
	createOrder(t, repo, uuid.New(), enums.OrderStatusPaid)
	createOrder(t, repo, uuid.New(), enums.OrderStatusPendingPayment)

	paid, err := svc.AdminList(ctx, enums.OrderStatusPaid, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, paid.Orders, 1)
	assert.Equal(t, enums.OrderStatusPaid, paid.Orders[0].Status)

	all, err := svc.AdminList(ctx, "", pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, all.Orders, 2)
}

func TestRepositoryPaymentIntentAndExpiry(t *testing.T) {
	_, repo, conn := newOrdersService(t)
	ctx := context.Background()
	stale := createOrder(t, repo, uuid.New(), enums.OrderStatusPendingPayment)
	fresh := createOrder(t, repo, uuid.New(), enums.OrderStatusPendingPayment)
	paid := createOrder(t, repo, uuid.New(), enums.OrderStatusPaid)

	require.NoError(t, repo.SetPaymentIntent(ctx, fresh.ID, "pi_123"))
	found, err := repo.FindByPaymentIntent(ctx, "pi_123")
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, found.ID)

	old := time.Now().UTC().Add(-3 * time.Hour)
	require.NoError(t, conn.Model(&models.Order{}).Where("id IN ?", []uuid.UUID{stale.ID, paid.ID}).UpdateColumn("created_at", old).Error)

	expired, err := repo.ExpirePending(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale.ID}, expired)

	reloaded, err := repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusExpired, reloaded.Status)

	moved, err := repo.TransitionStatus(ctx, stale.ID, enums.OrderStatusPendingPayment, enums.OrderStatusPaid, nil)
	require.NoError(t, err)
	assert.False(t, moved)
}

func TestExpirePendingSkipsOrderPaidMidway(t *testing.T) {
	_, repo, conn := newOrdersService(t)
	ctx := context.Background()
	racing := createOrder(t, repo, uuid.New(), enums.OrderStatusPendingPayment)
	stale := createOrder(t, repo, uuid.New(), enums.OrderStatusPendingPayment)
	old := time.Now().UTC().Add(-3 * time.Hour)
	require.NoError(t, conn.Model(&models.Order{}).Where("id IN ?", []uuid.UUID{racing.ID, stale.ID}).UpdateColumn("created_at", old).Error)

	// The webhook marks one order paid after the candidates were selected.
	fired := false
	require.NoError(t, conn.Callback().Update().Before("gorm:update").Register("orders_test:pay_racing", func(db *gorm.DB) {
		if fired {
			return
		}
		fired = true
		err := db.Session(&gorm.Session{NewDB: true}).
			Exec("UPDATE orders SET status = ? WHERE id = ?", enums.OrderStatusPaid, racing.ID).Error
		require.NoError(t, err)
	}))

	expired, err := repo.ExpirePending(ctx, time.Now().UTC().Add(-time.Hour))
	require.NoError(t, err)
	assert.True(t, fired)
	assert.Equal(t, []uuid.UUID{stale.ID}, expired)

	reloaded, err := repo.FindByID(ctx, racing.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}
