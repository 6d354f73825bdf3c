package controllers

import (
	"net/http"

	"github.com/medmarket/medmarket-backend/api/middleware"
	"github.com/medmarket/medmarket-backend/api/responses"
	"github.com/medmarket/medmarket-backend/internal/checkout"
	"github.com/medmarket/medmarket-backend/internal/eligibility"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

const checkoutUnavailable = "checkout service unavailable"

// CheckoutEligibility reports whether the caller may start checkout.
// Anonymous callers get a NOT_AUTHENTICATED decision rather than a 401.
func CheckoutEligibility(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, pkgerrors.New(pkgerrors.CodeInternal, checkoutUnavailable))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := middleware.ActorFromContext(r.Context())
		if !ok {
			responses.WriteSuccess(w, eligibility.Decision{
				Reason:  eligibility.ReasonNotAuthenticated,
				Message: eligibility.ReasonNotAuthenticated.Message(),
			})
			return
		}
		responses.WriteSuccess(w, svc.Eligibility(r.Context(), actor.UserID))
	}
}

// CheckoutExecute snapshots the cart into a pending order and returns the
// payment intent client secret.
func CheckoutExecute(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, checkoutUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		result, err := svc.Execute(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	})
}
