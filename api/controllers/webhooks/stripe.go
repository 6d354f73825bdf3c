package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/medmarket/medmarket-backend/api/responses"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const (
	maxWebhookBytes       = 1 << 16
	stripeSignatureHeader = "Stripe-Signature"
)

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event) error
}

type stripeWebhookGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

type stripeClient interface {
	SigningSecret() string
}

type stripeWebhook struct {
	svc    StripeWebhookService
	secret string
	guard  stripeWebhookGuard
	logg   *logger.Logger
}

// StripeWebhook verifies and dispatches payment intent events. Replayed
// event ids are acknowledged without reprocessing; a failed event is
// released so Stripe's retry can run it again.
func StripeWebhook(svc StripeWebhookService, client stripeClient, guard stripeWebhookGuard, logg *logger.Logger) http.HandlerFunc {
	var missing string
	switch {
	case svc == nil:
		missing = "webhook service unavailable"
	case client == nil:
		missing = "stripe client unavailable"
	case guard == nil:
		missing = "idempotency guard unavailable"
	}
	if missing != "" {
		return func(w http.ResponseWriter, r *http.Request) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, missing))
		}
	}
	h := &stripeWebhook{svc: svc, secret: client.SigningSecret(), guard: guard, logg: logg}
	return h.serve
}

func (h *stripeWebhook) serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	event, err := h.verify(r)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, err)
		return
	}
	ctx = h.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})

	duplicate, err := h.guard.Claim(ctx, event.ID)
	if err != nil {
		responses.WriteError(ctx, h.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}
	if duplicate {
		h.logg.Debug(ctx, "stripe.webhook.duplicate")
		responses.WriteSuccess(w, map[string]any{"received": true, "duplicate": true})
		return
	}

	if err := h.svc.HandleEvent(ctx, &event); err != nil {
		if releaseErr := h.guard.Release(ctx, event.ID); releaseErr != nil {
			h.logg.Error(ctx, "stripe.webhook.release_failed", releaseErr)
		}
		responses.WriteError(ctx, h.logg, w, err)
		return
	}

	h.logg.Info(ctx, "stripe.webhook.processed")
	responses.WriteSuccess(w, map[string]any{"received": true})
}

// verify reads a bounded body and checks it against the endpoint secret.
func (h *stripeWebhook) verify(r *http.Request) (stripe.Event, error) {
	sig := r.Header.Get(stripeSignatureHeader)
	if sig == "" {
		return stripe.Event{}, pkgerrors.New(pkgerrors.CodeValidation, "stripe signature missing")
	}
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body")
	}
	event, err := webhook.ConstructEventWithOptions(payload, sig, h.secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return stripe.Event{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid stripe signature")
	}
	return event, nil
}
