package controllers

import (
	"net/http"
	"strings"

	"github.com/medmarket/medmarket-backend/api/middleware"
	"github.com/medmarket/medmarket-backend/api/responses"
	"github.com/medmarket/medmarket-backend/api/validators"
	"github.com/medmarket/medmarket-backend/internal/orders"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

const ordersUnavailable = "orders service unavailable"

type updateOrderStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// OrderList pages through the caller's own orders, newest first.
func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, ordersUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeOrderPage(w, r, logg)(svc.ListForUser(r.Context(), actor.UserID, params))
	})
}

// OrderDetail answers 404 for orders owned by someone else.
func OrderDetail(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, ordersUnavailable, logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForUser(r.Context(), actor.UserID, orderID)
		respond(w, r, logg, order, err)
	})
}

// AdminOrderList lists every order, optionally filtered by ?status=.
func AdminOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, pkgerrors.New(pkgerrors.CodeInternal, ordersUnavailable))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := enums.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status")))
		writeOrderPage(w, r, logg)(svc.AdminList(r.Context(), status, params))
	}
}

// AdminOrderUpdateStatus moves an order along its fulfilment lifecycle.
func AdminOrderUpdateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, pkgerrors.New(pkgerrors.CodeInternal, ordersUnavailable))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateOrderStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		next := enums.OrderStatus(strings.ToLower(strings.TrimSpace(payload.Status)))
		order, err := svc.AdminUpdateStatus(r.Context(), orderID, next)
		respond(w, r, logg, order, err)
	}
}

func writeOrderPage(w http.ResponseWriter, r *http.Request, logg *logger.Logger) func(*orders.OrderList, error) {
	return func(list *orders.OrderList, err error) {
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, list.Orders, list.NextCursor)
	}
}
