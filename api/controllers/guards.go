package controllers

import (
	"net/http"

	"github.com/medmarket/medmarket-backend/api/middleware"
	"github.com/medmarket/medmarket-backend/api/responses"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

type actorHandler func(w http.ResponseWriter, r *http.Request, actor middleware.Actor)

// authed runs fn for an authenticated actor. When ready is false every
// request fails with unavailableMsg.
func authed(ready bool, unavailableMsg string, logg *logger.Logger, fn actorHandler) http.HandlerFunc {
	if !ready {
		return unavailable(logg, pkgerrors.New(pkgerrors.CodeInternal, unavailableMsg))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		fn(w, r, actor)
	}
}

func unavailable(logg *logger.Logger, err error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, err)
	}
}

func requireActor(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (middleware.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
		return middleware.Actor{}, false
	}
	return actor, true
}

// respond writes v as 200 or the error through the shared envelope.
func respond(w http.ResponseWriter, r *http.Request, logg *logger.Logger, v any, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, v)
}
