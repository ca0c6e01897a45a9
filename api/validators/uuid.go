package validators

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	pkgerrors "github.com/pradiptarana/jokipay-backend/pkg/errors"
)

// ParseUUID converts raw input into a UUID, reporting the offending field.
func ParseUUID(raw, field string) (uuid.UUID, error) {
	value, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "must be a valid uuid").
			WithDetails(map[string]any{"field": field})
	}
	return value, nil
}

// URLParamUUID extracts a UUID path parameter from the request route.
func URLParamUUID(r *http.Request, name string) (uuid.UUID, error) {
	return ParseUUID(chi.URLParam(r, name), name)
}
