package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/medmarket/medmarket-backend/api/middleware"
	"github.com/medmarket/medmarket-backend/api/responses"
	"github.com/medmarket/medmarket-backend/api/validators"
	"github.com/medmarket/medmarket-backend/internal/cart"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

const cartUnavailable = "cart service unavailable"

type addCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1,max=100000"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1,max=100000"`
}

func CartGet(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, cartUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		view, err := svc.Get(r.Context(), actor.UserID)
		respond(w, r, logg, view, err)
	})
}

// CartAddItem adds quantity to the line for product_id, creating it if needed.
func CartAddItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, cartUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		var payload addCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		productID, err := uuid.Parse(payload.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product_id"))
			return
		}
		view, err := svc.AddItem(r.Context(), cartActor(actor), productID, payload.Quantity)
		respond(w, r, logg, view, err)
	})
}

// CartUpdateItem sets the absolute quantity for an existing line.
func CartUpdateItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, cartUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateCartItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.UpdateItem(r.Context(), cartActor(actor), productID, payload.Quantity)
		respond(w, r, logg, view, err)
	})
}

func CartRemoveItem(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, cartUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		view, err := svc.RemoveItem(r.Context(), actor.UserID, productID)
		respond(w, r, logg, view, err)
	})
}

func CartClear(svc cart.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, cartUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		view, err := svc.Clear(r.Context(), actor.UserID)
		respond(w, r, logg, view, err)
	})
}

func cartActor(actor middleware.Actor) cart.Actor {
	return cart.Actor{UserID: actor.UserID, Role: actor.Role}
}
