package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"fluxia/internal/service"
)

// statusFor maps service error kinds to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err in the Result envelope. Internal errors are logged
// and replaced by a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		writeJSON(w, status, Fail("internal server error"))
		return
	}
	msg := err.Error()
	var se *service.Error
	if errors.As(err, &se) {
		msg = se.Message
	}
	writeJSON(w, status, Fail(msg))
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, Fail(message))
}
