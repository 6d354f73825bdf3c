package stripewebhook

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/medmarket/medmarket-backend/internal/cart"
	"github.com/medmarket/medmarket-backend/internal/orders"
	"github.com/medmarket/medmarket-backend/pkg/db"
	"github.com/medmarket/medmarket-backend/pkg/db/dbtest"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
)

type webhookFixture struct {
	svc    *Service
	orders orders.Repository
	carts  *cart.Repository
}

func newWebhookFixture(t *testing.T) webhookFixture {
	t.Helper()
	conn := dbtest.Open(t)
	ordersRepo := orders.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Orders:            ordersRepo,
		CartRepoFactory:   func(tx *gorm.DB) CartClearer { return cartRepo.WithTx(tx) },
		TransactionRunner: db.NewFromGorm(conn),
		Now:               func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)
	return webhookFixture{svc: svc, orders: ordersRepo, carts: cartRepo}
}

func (f webhookFixture) pendingOrder(t *testing.T, userID uuid.UUID, intentID string) *models.Order {
	t.Helper()
	ctx := context.Background()
	order := &models.Order{
		UserID:    userID,
		Status:    enums.OrderStatusPendingPayment,
		Currency:  "usd",
		Subtotal:  decimal.RequireFromString("215.00"),
		Savings:   decimal.Zero,
		Total:     decimal.RequireFromString("215.00"),
		ItemCount: 1,
	}
	require.NoError(t, f.orders.Create(ctx, order))
	if intentID != "" {
		require.NoError(t, f.orders.SetPaymentIntent(ctx, order.ID, intentID))
	}
	return order
}

func intentEvent(t *testing.T, eventType stripe.EventType, intent stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	require.NoError(t, err)
	return &stripe.Event{ID: "evt_" + uuid.NewString(), Type: eventType, Data: &stripe.EventData{Raw: raw}}
}

func TestHandleEventMarksOrderPaidAndClearsCart(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	order := f.pendingOrder(t, userID, "pi_paid")
	_, err := f.carts.ReplaceLines(ctx, userID, []models.CartLine{{ProductID: uuid.New(), Quantity: 1}})
	require.NoError(t, err)

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, stripe.PaymentIntent{ID: "pi_paid", Amount: 21500})
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	reloaded, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
	require.NotNil(t, reloaded.PaidAt)

	count, err := f.carts.CountLines(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, count)

	// A replayed success leaves the paid order alone.
	require.NoError(t, f.svc.HandleEvent(ctx, event))
}

func TestHandleEventFallsBackToMetadata(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.pendingOrder(t, uuid.New(), "")

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, stripe.PaymentIntent{
		ID:       "pi_unstored",
		Amount:   21500,
		Metadata: map[string]string{"order_id": order.ID.String()},
	})
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	reloaded, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}

func TestHandleEventAmountMismatchKeepsOrderPending(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.pendingOrder(t, uuid.New(), "pi_short")

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, stripe.PaymentIntent{ID: "pi_short", Amount: 100})
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	reloaded, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPendingPayment, reloaded.Status)
}

func TestHandleEventPaymentFailed(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	order := f.pendingOrder(t, uuid.New(), "pi_failed")

	event := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, stripe.PaymentIntent{ID: "pi_failed", Amount: 21500})
	require.NoError(t, f.svc.HandleEvent(ctx, event))

	reloaded, err := f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaymentFailed, reloaded.Status)

	// A later success still completes the order.
	event = intentEvent(t, stripe.EventTypePaymentIntentSucceeded, stripe.PaymentIntent{ID: "pi_failed", Amount: 21500})
	require.NoError(t, f.svc.HandleEvent(ctx, event))
	reloaded, err = f.orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, reloaded.Status)
}

func TestHandleEventIgnoresUnknownIntentsAndTypes(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()

	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, stripe.PaymentIntent{ID: "pi_nobody", Amount: 1})
	assert.NoError(t, f.svc.HandleEvent(ctx, event))

	other := &stripe.Event{Type: stripe.EventTypeChargeRefunded, Data: &stripe.EventData{Raw: []byte(`{}`)}}
	assert.NoError(t, f.svc.HandleEvent(ctx, other))

	assert.Error(t, f.svc.HandleEvent(ctx, &stripe.Event{Type: stripe.EventTypePaymentIntentSucceeded}))
}
