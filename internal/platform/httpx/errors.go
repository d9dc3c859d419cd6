// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/invoicedesk/invoicedesk/internal/shared"
)

// RespondError maps domain error kinds to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	kind := shared.Kind(err)
	switch {
	case errors.Is(err, shared.ErrValidation):
		var verr *shared.ValidationError
		if errors.As(err, &verr) {
			JSON(w, http.StatusBadRequest, ProblemDetail{
				Type:   kind,
				Title:  "Validation Failed",
				Status: http.StatusBadRequest,
				Detail: err.Error(),
				Fields: verr.Fields,
			})
			return
		}
		Problem(w, http.StatusBadRequest, kind, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, kind, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, kind, "Conflict", err.Error())
	case errors.Is(err, shared.ErrPersistence):
		Problem(w, http.StatusServiceUnavailable, kind, "Storage Unavailable", "")
	default:
		Problem(w, http.StatusInternalServerError, kind, "Internal Error", "")
	}
}
