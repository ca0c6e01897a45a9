package controllers

import (
	"context"
	"net/http"

	"github.com/pradiptarana/jokipay-backend/api/middleware"
	"github.com/pradiptarana/jokipay-backend/api/responses"
	"github.com/pradiptarana/jokipay-backend/api/validators"
	"github.com/pradiptarana/jokipay-backend/internal/wallets"
	"github.com/pradiptarana/jokipay-backend/pkg/db/models"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
)

// AdminPendingPayouts lists payout requests awaiting a decision.
func AdminPendingPayouts(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", 25, 1, 100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offset, err := validators.ParseQueryInt(r, "offset", 0, 0, 1_000_000)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		requests, err := svc.ListPendingPayouts(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, requests)
	}
}

type payoutDecisionRequest struct {
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=1000"`
}

// AdminApprovePayout marks a pending payout as completed after the transfer
// was executed out of band. The reserved funds stay debited.
func AdminApprovePayout(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutDecision(svc.ApprovePayout, logg)
}

// AdminRejectPayout rejects a pending payout and returns the reserved funds.
func AdminRejectPayout(svc wallets.Service, logg *logger.Logger) http.HandlerFunc {
	return payoutDecision(svc.RejectPayout, logg)
}

func payoutDecision(
	decide func(ctx context.Context, input wallets.PayoutDecisionInput) (*models.PayoutRequest, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.URLParamUUID(r, "payoutRequestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req payoutDecisionRequest
		if r.ContentLength > 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		decided, err := decide(r.Context(), wallets.PayoutDecisionInput{
			RequestID:   requestID,
			AdminUserID: middleware.UserIDFromContext(r.Context()),
			AdminNotes:  req.AdminNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, decided)
	}
}
