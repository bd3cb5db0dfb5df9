package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/erazemk/dibs/internal/catalog"
	"github.com/erazemk/dibs/internal/model"
)

// warningHeader carries non-fatal catalog warnings on successful responses.
const warningHeader = "X-Dibs-Warning"

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// staleWarning reports whether err only says the index may be stale. The
// warning is attached to the response and the request still succeeds.
func staleWarning(w http.ResponseWriter, err error) bool {
	var stale *model.StaleIndexWarning
	if !errors.As(err, &stale) {
		return false
	}
	w.Header().Add(warningHeader, stale.Error())
	return true
}

// catalogError maps a catalog or store error to an HTTP response.
func catalogError(w http.ResponseWriter, err error, action string) {
	var partial *catalog.PartialFailure
	switch {
	case errors.As(err, &partial):
		jsonResponse(w, http.StatusMultiStatus, partial.Report)
	case errors.Is(err, model.ErrNotFound):
		jsonError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, model.ErrInvalidClaim), errors.Is(err, model.ErrAlreadyClaimed):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrSuperseded):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, model.ErrForbidden):
		jsonError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, model.ErrValidation):
		jsonError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("request failed", "action", action, "error", err)
		jsonError(w, http.StatusInternalServerError, "failed "+action)
	}
}
