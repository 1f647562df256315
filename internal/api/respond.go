package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gitping/relay/internal/apperror"
)

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeMessage(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"message": message})
}

// writeError maps an application error to its HTTP status and sends the
// message to the client. The "message" body shape is what the mobile app
// parses. Non-application errors are logged and masked with a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		h.writeMessage(w, statusFor(appErr), appErr.Message)
		return
	}

	h.logger.Error("internal error", zap.Error(err))
	h.writeMessage(w, http.StatusInternalServerError, "Internal server error")
}

func statusFor(err *apperror.AppError) int {
	switch {
	case errors.Is(err, apperror.ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, apperror.ErrCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
