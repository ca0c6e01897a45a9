package controllers

import (
	"net/http"

	"github.com/pradiptarana/jokipay-backend/api/middleware"
	"github.com/pradiptarana/jokipay-backend/api/responses"
	"github.com/pradiptarana/jokipay-backend/api/validators"
	"github.com/pradiptarana/jokipay-backend/internal/disputes"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
)

type openDisputeRequest struct {
	Reason string `json:"reason" validate:"required,max=2000"`
}

// DisputeOpen freezes an in-progress order and opens a dispute on it.
func DisputeOpen(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.URLParamUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req openDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Open(r.Context(), disputes.OpenInput{
			OrderID:     orderID,
			ActorUserID: middleware.UserIDFromContext(r.Context()),
			Reason:      req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

// DisputeDetail returns a dispute with its message thread.
func DisputeDetail(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.URLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.Get(r.Context(), disputeID,
			middleware.UserIDFromContext(r.Context()),
			middleware.RoleFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type disputeMessageRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// DisputeMessageCreate appends a message to an open dispute thread.
func DisputeMessageCreate(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.URLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req disputeMessageRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		message, err := svc.AddMessage(r.Context(), disputeID,
			middleware.UserIDFromContext(r.Context()),
			middleware.RoleFromContext(r.Context()),
			req.Body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, message)
	}
}
