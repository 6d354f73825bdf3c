package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"go.uber.org/multierr"

	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

type pendingOrderExpirer interface {
	ExpirePending(ctx context.Context, before time.Time) ([]uuid.UUID, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

type intentCanceler interface {
	Cancel(ctx context.Context, id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

// OrderTTLJobParams configure the pending order expiry job.
type OrderTTLJobParams struct {
	Logger  *logger.Logger
	Orders  pendingOrderExpirer
	Intents intentCanceler
	TTL     time.Duration
}

// NewOrderTTLJob expires orders left in pending_payment longer than TTL and
// cancels their payment intents. Intents is optional.
func NewOrderTTLJob(params OrderTTLJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TTL <= 0 {
		return nil, fmt.Errorf("pending order ttl must be positive")
	}
	return &orderTTLJob{
		logg:    params.Logger,
		orders:  params.Orders,
		intents: params.Intents,
		ttl:     params.TTL,
		now:     time.Now,
	}, nil
}

type orderTTLJob struct {
	logg    *logger.Logger
	orders  pendingOrderExpirer
	intents intentCanceler
	ttl     time.Duration
	now     func() time.Time
}

func (j *orderTTLJob) Name() string { return "order-ttl" }

func (j *orderTTLJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.ttl)
	expired, err := j.orders.ExpirePending(ctx, cutoff)
	var errs error
	if err != nil {
		errs = fmt.Errorf("expire pending orders: %w", err)
	}

	canceled := 0
	for _, id := range expired {
		ok, err := j.cancelIntent(ctx, id)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if ok {
			canceled++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"expired":          len(expired),
		"intents_canceled": canceled,
		"cutoff":           cutoff,
	}), "cron.order_ttl.complete")
	return errs
}

func (j *orderTTLJob) cancelIntent(ctx context.Context, orderID uuid.UUID) (bool, error) {
	if j.intents == nil {
		return false, nil
	}
	order, err := j.orders.FindByID(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("load expired order %s: %w", orderID, err)
	}
	if order.Status != enums.OrderStatusExpired || order.PaymentIntentID == nil || *order.PaymentIntentID == "" {
		return false, nil
	}
	params := &stripe.PaymentIntentCancelParams{CancellationReason: stripe.String("abandoned")}
	if _, err := j.intents.Cancel(ctx, *order.PaymentIntentID, params); err != nil {
		return false, fmt.Errorf("cancel payment intent for order %s: %w", orderID, err)
	}
	return true, nil
}
