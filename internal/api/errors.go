package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/apperr"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

func writeValidationError(w http.ResponseWriter, fields map[string]string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "validation_error",
		Details: "one or more fields are invalid",
		Fields:  fields,
	})
}

// writeServiceError maps an error kind to its HTTP status. Anything without a
// known kind is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string
	switch {
	case errors.Is(err, apperr.ErrValidation):
		status, code = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperr.ErrForbidden):
		status, code = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperr.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperr.ErrInvalidState):
		status, code = http.StatusConflict, "invalid_state"
	case errors.Is(err, apperr.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	default:
		LoggerFrom(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	resp := ErrorResponse{Error: code, Details: message(err)}
	if status == http.StatusBadRequest {
		resp.Fields = apperr.FieldsOf(err)
	}
	writeJSON(w, status, resp)
}

// message prefers the domain message over the wrapped chain.
func message(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return e.Msg
	}
	return err.Error()
}
