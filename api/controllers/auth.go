package controllers

import (
	"context"
	"net/http"

	"github.com/medmarket/medmarket-backend/api/middleware"
	"github.com/medmarket/medmarket-backend/api/responses"
	"github.com/medmarket/medmarket-backend/api/validators"
	"github.com/medmarket/medmarket-backend/internal/auth"
	"github.com/medmarket/medmarket-backend/pkg/config"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

var errAuthUnavailable = pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable")

type loginFunc func(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error)

// AuthLogin signs in customers and doctors.
func AuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return login(svc.Login, logg)
}

// AdminAuthLogin signs in administrators only.
func AdminAuthLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return login(svc.AdminLogin, logg)
}

func login(fn loginFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := fn(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeTokens(w, http.StatusOK, result.AccessToken, result)
	}
}

// AuthRegister creates a customer or doctor account. Doctors start pending
// review and receive no session until approved.
func AuthRegister(reg auth.RegisterService, logg *logger.Logger) http.HandlerFunc {
	if reg == nil {
		return unavailable(logg, pkgerrors.New(pkgerrors.CodeInternal, "register service unavailable"))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		user, err := reg.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{"user": user})
	}
}

// AdminAuthRegister bootstraps an administrator and signs them in. It is
// refused in production.
func AdminAuthRegister(adminRegister auth.AdminRegisterService, svc auth.Service, cfg *config.Config, logg *logger.Logger) http.HandlerFunc {
	switch {
	case cfg.App.IsProd():
		return unavailable(logg, pkgerrors.New(pkgerrors.CodeForbidden, "admin register disabled in production"))
	case adminRegister == nil || svc == nil:
		return unavailable(logg, pkgerrors.New(pkgerrors.CodeInternal, "admin register unavailable"))
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.AdminRegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := adminRegister.Register(r.Context(), body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.AdminLogin(r.Context(), auth.LoginRequest{Email: body.Email, Password: body.Password})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeTokens(w, http.StatusCreated, result.AccessToken, result)
	}
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// AuthRefresh rotates the refresh token presented with the (possibly expired)
// access token in the Authorization header.
func AuthRefresh(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var body refreshRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		token, err := bearerToken(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		pair, err := svc.Refresh(r.Context(), auth.RefreshRequest{AccessToken: token, RefreshToken: body.RefreshToken})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeTokens(w, http.StatusOK, pair.AccessToken, pair)
	}
}

// AuthLogout revokes the session tied to the presented access token.
func AuthLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg, errAuthUnavailable)
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err == nil {
			err = svc.Logout(r.Context(), token)
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "logged_out"})
	}
}

// Me returns the authenticated account.
func Me(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return authed(svc != nil, "auth service unavailable", logg, func(w http.ResponseWriter, r *http.Request, actor middleware.Actor) {
		user, err := svc.Me(r.Context(), actor.UserID)
		respond(w, r, logg, user, err)
	})
}

// writeTokens mirrors the access token into the response header so clients
// that only read headers can pick it up.
func writeTokens(w http.ResponseWriter, status int, accessToken string, body any) {
	w.Header().Set(middleware.TokenHeader, accessToken)
	responses.WriteSuccessStatus(w, status, body)
}

func bearerToken(r *http.Request) (string, error) {
	token, err := validators.BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "missing credentials")
	}
	return token, nil
}
