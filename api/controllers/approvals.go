package controllers

import (
	"net/http"
	"strings"

	"github.com/medmarket/medmarket-backend/api/responses"
	"github.com/medmarket/medmarket-backend/api/validators"
	"github.com/medmarket/medmarket-backend/internal/approvals"
	"github.com/medmarket/medmarket-backend/pkg/enums"
	pkgerrors "github.com/medmarket/medmarket-backend/pkg/errors"
	"github.com/medmarket/medmarket-backend/pkg/logger"
)

type rejectRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AdminApprovalList returns doctors awaiting review. ?status= overrides the
// default pending filter; ?status=all lists every doctor.
func AdminApprovalList(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "approval service unavailable"))
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.ApprovalStatusPending
		switch raw := strings.TrimSpace(r.URL.Query().Get("status")); raw {
		case "":
		case "all":
			status = ""
		default:
			status, err = enums.ParseApprovalStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
		}

		result, err := svc.List(r.Context(), approvals.ListParams{Status: status, Pagination: params})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WritePage(w, result.Items, result.NextCursor)
	}
}

func AdminApprove(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decide(w, r, svc, logg, enums.ApprovalDecisionApprove)
	}
}

func AdminReject(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decide(w, r, svc, logg, enums.ApprovalDecisionReject)
	}
}

func decide(w http.ResponseWriter, r *http.Request, svc approvals.Service, logg *logger.Logger, decision enums.ApprovalDecision) {
	if svc == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "approval service unavailable"))
		return
	}
	actor, ok := requireActor(w, r, logg)
	if !ok {
		return
	}
	userID, err := validators.ParseUUIDParam(r, "userId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}

	input := approvals.DecisionInput{UserID: userID, Reviewer: actor.UserID, Decision: decision}
	if decision == enums.ApprovalDecisionReject {
		var payload rejectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.Reason = strings.TrimSpace(payload.Reason)
	}

	user, err := svc.Decide(r.Context(), input)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	responses.WriteSuccess(w, user)
}
