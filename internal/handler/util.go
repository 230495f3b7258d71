package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ventia/console-gateway/internal/advisor"
	"github.com/ventia/console-gateway/internal/labels"
	"github.com/ventia/console-gateway/internal/messaging"
	"github.com/ventia/console-gateway/internal/model"
	"github.com/ventia/console-gateway/internal/temperature"
	"github.com/ventia/console-gateway/internal/workspace"
)

const maxRequestBody = 1 << 20

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message, detail string) {
	writeJSON(w, status, model.ErrorResponse{
		Error:  message,
		Detail: detail,
	})
}

// decodeJSON reads a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// writeFailure maps an error from the service layer to a response. Backend
// errors keep the backend's status and detail.
func writeFailure(w http.ResponseWriter, err error) {
	var apiErr *messaging.APIError
	switch {
	case errors.As(err, &apiErr):
		writeError(w, apiErr.Status, apiErr.Message, apiErr.Detail)
	case errors.Is(err, workspace.ErrNotFound):
		writeError(w, http.StatusNotFound, "conversation not found", "")
	case errors.Is(err, labels.ErrUnknownLabel):
		writeError(w, http.StatusNotFound, "label not found", "")
	case errors.Is(err, workspace.ErrNoSelection), errors.Is(err, labels.ErrBusy):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, labels.ErrReservedTitle):
		writeError(w, http.StatusUnprocessableEntity, "reserved label title", err.Error())
	case errors.Is(err, labels.ErrEmptyTitle),
		errors.Is(err, labels.ErrTitleTooLong),
		errors.Is(err, labels.ErrInvalidColor),
		errors.Is(err, temperature.ErrInvalid):
		writeError(w, http.StatusBadRequest, "invalid request", err.Error())
	case errors.Is(err, advisor.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "suggestions unavailable", err.Error())
	case errors.Is(err, advisor.ErrUnclassified):
		writeError(w, http.StatusBadGateway, "suggestion failed", err.Error())
	default:
		writeError(w, http.StatusBadGateway, "backend unavailable", err.Error())
	}
}
