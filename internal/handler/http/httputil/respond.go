// Package httputil holds the JSON plumbing shared by the HTTP handlers.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"banking/internal/domain"
)

const maxBodyBytes = 1 << 20

type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to write JSON response", zap.Error(err))
	}
}

func WriteError(w http.ResponseWriter, logger *zap.Logger, status int, message string) {
	WriteJSON(w, logger, status, ErrorResponse{Error: message})
}

// DecodeJSON reads a single JSON object from the request body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}

// StatusFor maps a service error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrIdentityConflict):
		return http.StatusConflict
	case errors.Is(err, domain.ErrIdentityNotFound),
		errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrReceiverNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrTokenInvalid),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrLoanLimitExceeded),
		errors.Is(err, domain.ErrSelfTransfer),
		errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTransient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteServiceError responds to a failed service call. Business rejections
// carry their message; anything else is logged and hidden from the client.
func WriteServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := StatusFor(err)
	switch status {
	case http.StatusServiceUnavailable:
		logger.Warn("Storage temporarily unavailable", zap.Error(err))
		w.Header().Set("Retry-After", "1")
		WriteError(w, logger, status, "service temporarily unavailable")
	case http.StatusInternalServerError:
		logger.Error("Unhandled service error", zap.Error(err))
		WriteError(w, logger, status, "internal server error")
	default:
		WriteError(w, logger, status, rootMessage(err))
	}
}

// rootMessage returns the text of the domain sentinel behind err, keeping
// any detail appended directly to it.
func rootMessage(err error) string {
	cause, ok := domain.BusinessCause(err)
	if !ok {
		return err.Error()
	}
	if msg := err.Error(); strings.HasPrefix(msg, cause.Error()) {
		return msg
	}
	return cause.Error()
}
