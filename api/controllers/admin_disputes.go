package controllers

import (
	"net/http"

	"github.com/pradiptarana/jokipay-backend/api/middleware"
	"github.com/pradiptarana/jokipay-backend/api/responses"
	"github.com/pradiptarana/jokipay-backend/api/validators"
	"github.com/pradiptarana/jokipay-backend/internal/disputes"
	"github.com/pradiptarana/jokipay-backend/pkg/enums"
	pkgerrors "github.com/pradiptarana/jokipay-backend/pkg/errors"
	"github.com/pradiptarana/jokipay-backend/pkg/logger"
)

// AdminOpenDisputes lists disputes awaiting a verdict.
func AdminOpenDisputes(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
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

		open, err := svc.ListOpen(r.Context(), limit, offset)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, open)
	}
}

type resolveDisputeRequest struct {
	Resolution string  `json:"resolution" validate:"required,oneof=refund_to_buyer release_to_seller"`
	AdminNotes *string `json:"admin_notes" validate:"omitempty,max=1000"`
}

// AdminResolveDispute applies an admin verdict, moving the escrowed funds.
func AdminResolveDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := validators.URLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resolution, err := enums.ParseDisputeResolution(req.Resolution)
		if err != nil {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid resolution"))
			return
		}

		resolved, err := svc.Resolve(r.Context(), disputes.ResolveInput{
			DisputeID:   disputeID,
			AdminUserID: middleware.UserIDFromContext(r.Context()),
			Resolution:  resolution,
			AdminNotes:  req.AdminNotes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolved)
	}
}
