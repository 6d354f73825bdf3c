package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/medmarket/medmarket-backend/internal/orders"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/medmarket/medmarket-backend/pkg/metrics"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CartClearer empties a user's cart once their order is paid.
type CartClearer interface {
	ClearByUser(ctx context.Context, userID uuid.UUID) error
}

type ServiceParams struct {
	Orders            orders.Repository
	CartRepoFactory   func(tx *gorm.DB) CartClearer
	TransactionRunner txRunner
	Metrics           *metrics.CheckoutMetrics
	Logger            *logger.Logger
	Now               func() time.Time
}

// Service applies payment intent outcomes to orders.
type Service struct {
	orders   orders.Repository
	carts    func(tx *gorm.DB) CartClearer
	txRunner txRunner
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repo required")
	}
	if params.CartRepoFactory == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart repo factory required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		orders:   params.Orders,
		carts:    params.CartRepoFactory,
		txRunner: params.TransactionRunner,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      now,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypePaymentIntentSucceeded, stripe.EventTypePaymentIntentPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		if event.Type == stripe.EventTypePaymentIntentSucceeded {
			return s.markPaid(ctx, &intent)
		}
		return s.markFailed(ctx, &intent)
	default:
		return nil
	}
}

func (s *Service) markPaid(ctx context.Context, intent *stripe.PaymentIntent) error {
	order, err := s.findOrder(ctx, intent)
	if err != nil || order == nil {
		return err
	}
	ctx = s.orderContext(ctx, order, intent)

	if order.Status == enums.OrderStatusPaid {
		return nil
	}
	if !order.Status.CanTransitionTo(enums.OrderStatusPaid) {
		s.metrics.IncPayment("ignored")
		s.warn(ctx, "stripe.payment_succeeded.unexpected_status")
		return nil
	}
	if expected := pricing.ToCents(order.Total); intent.Amount != expected {
		s.metrics.IncPayment("amount_mismatch")
		s.warn(s.withFields(ctx, map[string]any{"expected_cents": expected, "intent_cents": intent.Amount}), "stripe.payment_succeeded.amount_mismatch")
		return nil
	}

	paidAt := s.now().UTC()
	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.orders.WithTx(tx).TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusPaid, &paidAt)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		if err := s.carts(tx).ClearByUser(ctx, order.UserID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.IncPayment("succeeded")
	s.metrics.AddRevenue(pricing.ToCents(order.Total))
	if s.logg != nil {
		s.logg.Info(ctx, "stripe.payment_succeeded.order_paid")
	}
	return nil
}

func (s *Service) markFailed(ctx context.Context, intent *stripe.PaymentIntent) error {
	order, err := s.findOrder(ctx, intent)
	if err != nil || order == nil {
		return err
	}
	ctx = s.orderContext(ctx, order, intent)

	if order.Status != enums.OrderStatusPendingPayment {
		return nil
	}
	moved, err := s.orders.TransitionStatus(ctx, order.ID, order.Status, enums.OrderStatusPaymentFailed, nil)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
	}
	if moved {
		s.metrics.IncPayment("failed")
		s.warn(ctx, "stripe.payment_failed")
	}
	return nil
}

// findOrder returns (nil, nil) for intents that belong to no order so the
// event is acknowledged instead of retried.
func (s *Service) findOrder(ctx context.Context, intent *stripe.PaymentIntent) (*models.Order, error) {
	if intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id missing")
	}
	order, err := s.orders.FindByPaymentIntent(ctx, intent.ID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}

	// The intent id is stored after creation; the metadata covers that window.
	if raw := intent.Metadata["order_id"]; raw != "" {
		if orderID, parseErr := uuid.Parse(raw); parseErr == nil {
			order, err = s.orders.FindByID(ctx, orderID)
			if err == nil {
				return order, nil
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
			}
		}
	}

	s.metrics.IncPayment("unmatched")
	s.warn(s.withFields(ctx, map[string]any{"payment_intent_id": intent.ID}), "stripe.payment_intent.unmatched")
	return nil, nil
}

func (s *Service) orderContext(ctx context.Context, order *models.Order, intent *stripe.PaymentIntent) context.Context {
	if s.logg == nil {
		return ctx
	}
	ctx = s.logg.WithOrderID(ctx, order.ID.String())
	ctx = s.logg.WithUserID(ctx, order.UserID.String())
	return s.logg.WithField(ctx, "payment_intent_id", intent.ID)
}

func (s *Service) withFields(ctx context.Context, fields map[string]any) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithFields(ctx, fields)
}

func (s *Service) warn(ctx context.Context, msg string) {
	if s.logg != nil {
		s.logg.Warn(ctx, msg)
	}
}
