package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"kontor/internal/api"
	"kontor/internal/core"
	applog "kontor/internal/log"
)

// errorBody is the JSON error envelope every failure response carries.
type errorBody struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Message: message})
}

// writeServiceError maps a finance service failure onto an HTTP
// response. Backend errors keep their status and message, connectivity
// failures become 503, validation failures 422, everything else is the
// generic message.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case api.KindServer:
			status := apiErr.StatusCode
			if status < 400 || status > 599 {
				status = http.StatusBadGateway
			}
			writeError(w, status, apiErr.Message)
		case api.KindConnectivity:
			writeError(w, http.StatusServiceUnavailable, api.MsgNoConnection)
		default:
			applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", "url", r.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, api.MsgGeneric)
		}
		return
	}

	if isValidationError(err) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	applog.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed", "url", r.URL.Path, "error", err)
	writeError(w, http.StatusInternalServerError, api.MsgGeneric)
}

func isValidationError(err error) bool {
	return errors.Is(err, core.ErrInvalidAmount) ||
		errors.Is(err, core.ErrEmptyDescription) ||
		errors.Is(err, core.ErrInvalidDate) ||
		errors.Is(err, core.ErrInvalidStatus)
}
