package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

type fakeExpirer struct {
	cutoff  time.Time
	expired []uuid.UUID
	orders  map[uuid.UUID]*models.Order
	err     error
}

func (f *fakeExpirer) ExpirePending(_ context.Context, before time.Time) ([]uuid.UUID, error) {
	f.cutoff = before
	return f.expired, f.err
}

func (f *fakeExpirer) FindByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, errors.New("missing")
	}
	return order, nil
}

type fakeCanceler struct {
	canceled []string
	fail     map[string]bool
}

func (f *fakeCanceler) Cancel(_ context.Context, id string, _ *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	if f.fail[id] {
		return nil, errors.New("stripe unavailable")
	}
	f.canceled = append(f.canceled, id)
	return &stripe.PaymentIntent{ID: id}, nil
}

func TestOrderTTLJobExpiresAndCancelsIntents(t *testing.T) {
	now := time.Date(2026, 1, 30, 12, 0, 0, 0, time.UTC)
	withIntent, withoutIntent, failing := uuid.New(), uuid.New(), uuid.New()
	intentA, intentB := "pi_a", "pi_b"
	expirer := &fakeExpirer{
		expired: []uuid.UUID{withIntent, withoutIntent, failing},
		orders: map[uuid.UUID]*models.Order{
			withIntent:    {ID: withIntent, Status: enums.OrderStatusExpired, PaymentIntentID: &intentA},
			withoutIntent: {ID: withoutIntent, Status: enums.OrderStatusExpired},
			failing:       {ID: failing, Status: enums.OrderStatusExpired, PaymentIntentID: &intentB},
		},
	}
	canceler := &fakeCanceler{fail: map[string]bool{intentB: true}}
	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders:  expirer,
		Intents: canceler,
		TTL:     time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.(*orderTTLJob).now = func() time.Time { return now }

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected failed cancellation to surface")
	}
	if !expirer.cutoff.Equal(now.Add(-time.Hour)) {
		t.Fatalf("unexpected cutoff %s", expirer.cutoff)
	}
	if len(canceler.canceled) != 1 || canceler.canceled[0] != intentA {
		t.Fatalf("expected only %s canceled, got %v", intentA, canceler.canceled)
	}
}

func TestOrderTTLJobSkipsPaidOrdersAndKeepsPartialProgress(t *testing.T) {
	expiredID, paidID := uuid.New(), uuid.New()
	intentA, intentB := "pi_expired", "pi_paid"
	expirer := &fakeExpirer{
		expired: []uuid.UUID{expiredID, paidID},
		err:     errors.New("connection reset"),
		orders: map[uuid.UUID]*models.Order{
			expiredID: {ID: expiredID, Status: enums.OrderStatusExpired, PaymentIntentID: &intentA},
			paidID:    {ID: paidID, Status: enums.OrderStatusPaid, PaymentIntentID: &intentB},
		},
	}
	canceler := &fakeCanceler{}
	job, err := NewOrderTTLJob(OrderTTLJobParams{
		Logger:  logger.New(logger.Options{ServiceName: "cron-test"}),
		Orders:  expirer,
		Intents: canceler,
		TTL:     time.Hour,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if err := job.Run(context.Background()); !errors.Is(err, expirer.err) {
		t.Fatalf("expected expiry error to surface, got %v", err)
	}
	if len(canceler.canceled) != 1 || canceler.canceled[0] != intentA {
		t.Fatalf("expected only %s canceled, got %v", intentA, canceler.canceled)
	}
}

func TestOrderTTLJobValidatesParams(t *testing.T) {
	logg := logger.New(logger.Options{})
	if _, err := NewOrderTTLJob(OrderTTLJobParams{Logger: logg, Orders: &fakeExpirer{}}); err == nil {
		t.Fatal("expected zero ttl to fail")
	}
	if _, err := NewOrderTTLJob(OrderTTLJobParams{Logger: logg, TTL: time.Hour}); err == nil {
		t.Fatal("expected missing orders repo to fail")
	}
}
