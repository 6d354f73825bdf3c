package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/medmarket/medmarket-backend/internal/cart"
	"github.com/medmarket/medmarket-backend/internal/eligibility"
	"github.com/medmarket/medmarket-backend/internal/orders"
	"github.com/medmarket/medmarket-backend/pkg/config"
	"github.com/medmarket/medmarket-backend/pkg/db/models"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/medmarket/medmarket-backend/pkg/metrics"
	"github.com/medmarket/medmarket-backend/pkg/pricing"
	stripeclient "github.com/medmarket/medmarket-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eligibilityChecker interface {
	Check(ctx context.Context, userID uuid.UUID) eligibility.Decision
}

type cartSnapshotter interface {
	Snapshot(ctx context.Context, userID uuid.UUID) (*cart.Snapshot, error)
}

// Service turns a user's cart into a pending order with a payment intent.
type Service interface {
	Eligibility(ctx context.Context, userID uuid.UUID) eligibility.Decision
	Execute(ctx context.Context, userID uuid.UUID) (*Result, error)
}

// Result is returned to the client to confirm payment.
type Result struct {
	Order           *orders.OrderDTO `json:"order"`
	PaymentIntentID string           `json:"payment_intent_id"`
	ClientSecret    string           `json:"client_secret"`
}

// ServiceParams groups the checkout dependencies.
type ServiceParams struct {
	Gate           eligibilityChecker
	Carts          cartSnapshotter
	Orders         orders.Repository
	TxRunner       txRunner
	PaymentIntents stripeclient.PaymentIntents
	Config         config.CheckoutConfig
	Metrics        *metrics.CheckoutMetrics
	Logger         *logger.Logger
}

type service struct {
	gate     eligibilityChecker
	carts    cartSnapshotter
	orders   orders.Repository
	tx       txRunner
	intents  stripeclient.PaymentIntents
	currency string
	metrics  *metrics.CheckoutMetrics
	logg     *logger.Logger
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.Gate == nil {
		return nil, fmt.Errorf("eligibility gate required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.PaymentIntents == nil {
		return nil, fmt.Errorf("payment intents client required")
	}
	currency := strings.ToLower(strings.TrimSpace(params.Config.Currency))
	if currency == "" {
		currency = "usd"
	}
	return &service{
		gate:     params.Gate,
		carts:    params.Carts,
		orders:   params.Orders,
		tx:       params.TxRunner,
		intents:  params.PaymentIntents,
		currency: currency,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

func (s *service) Eligibility(ctx context.Context, userID uuid.UUID) eligibility.Decision {
	return s.gate.Check(ctx, userID)
}

func (s *service) Execute(ctx context.Context, userID uuid.UUID) (*Result, error) {
	decision := s.gate.Check(ctx, userID)
	if !decision.Eligible {
		s.metrics.IncAttempt(string(decision.Reason))
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, decision.Message).
			WithDetails(map[string]any{"reason": decision.Reason})
	}
	s.metrics.IncAttempt("eligible")

	snap, err := s.carts.Snapshot(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}

	order := buildOrder(userID, s.currency, snap)
	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).Create(ctx, order)
	}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	if s.logg != nil {
		ctx = s.logg.WithOrderID(ctx, order.ID.String())
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(pricing.ToCents(order.Total)),
		Currency: stripe.String(s.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata("order_id", order.ID.String())
	params.AddMetadata("user_id", userID.String())
	params.SetIdempotencyKey("order-" + order.ID.String())

	intent, err := s.intents.Create(ctx, params)
	if err != nil {
		s.abandon(ctx, order.ID)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	if err := s.orders.SetPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment intent")
	}
	order.PaymentIntentID = &intent.ID

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payment_intent_id": intent.ID,
			"amount_cents":      pricing.ToCents(order.Total),
		}), "checkout.order_created")
	}

	return &Result{
		Order:           orders.FromModel(order),
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
	}, nil
}

// abandon cancels an order whose payment intent could not be created.
func (s *service) abandon(ctx context.Context, orderID uuid.UUID) {
	if _, err := s.orders.TransitionStatus(ctx, orderID, enums.OrderStatusPendingPayment, enums.OrderStatusCancelled, nil); err != nil && s.logg != nil {
		s.logg.Error(ctx, "checkout.cancel_order_failed", err)
	}
}

func validateSnapshot(snap *cart.Snapshot) error {
	if snap == nil || (len(snap.Lines) == 0 && len(snap.Unavailable) == 0) {
		return pkgerrors.New(pkgerrors.CodeValidation, eligibility.ReasonCartEmpty.Message())
	}
	if len(snap.Unavailable) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "some cart items are no longer available").
			WithDetails(map[string]any{"unavailable_product_ids": snap.Unavailable})
	}
	var short []map[string]any
	for _, line := range snap.Lines {
		if line.Quote.Quantity > line.Product.StockQuantity {
			short = append(short, map[string]any{
				"product_id": line.Product.ID,
				"requested":  line.Quote.Quantity,
				"available":  line.Product.StockQuantity,
			})
		}
	}
	if len(short) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "insufficient stock").
			WithDetails(map[string]any{"items": short})
	}
	return nil
}

func buildOrder(userID uuid.UUID, currency string, snap *cart.Snapshot) *models.Order {
	order := &models.Order{
		UserID:    userID,
		Status:    enums.OrderStatusPendingPayment,
		Currency:  currency,
		Subtotal:  snap.Quote.Subtotal,
		Savings:   snap.Quote.Savings,
		Total:     snap.Quote.Total,
		ItemCount: snap.Quote.ItemCount,
		Lines:     make([]models.OrderLine, 0, len(snap.Lines)),
	}
	for _, line := range snap.Lines {
		order.Lines = append(order.Lines, models.OrderLine{
			ProductID:          line.Product.ID,
			ProductName:        line.Product.Name,
			SKU:                line.Product.SKU,
			Quantity:           line.Quote.Quantity,
			OriginalUnitPrice:  line.Quote.OriginalPrice,
			UnitPrice:          line.Quote.UnitPrice,
			DiscountPercentage: line.Quote.DiscountPercentage,
			LineTotal:          line.Quote.LineTotal,
		})
	}
	return order
}
