// Package httpx holds the HTTP plumbing shared by both services: the chi
// router with its middleware stack and the JSON response helpers.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/order-payment-saga/internal/pkg/errs"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, code, msg string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}

// WriteDomainError maps err's kind to a status code. Unclassified errors are
// logged and reported as 500 without their message.
func WriteDomainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errs.KindOf(err)
	switch kind {
	case errs.KindValidation:
		WriteError(w, http.StatusBadRequest, string(kind), err.Error())
	case errs.KindNotFound:
		WriteError(w, http.StatusNotFound, string(kind), err.Error())
	case errs.KindInvalidState:
		WriteError(w, http.StatusConflict, string(kind), err.Error())
	case errs.KindInsufficientFunds:
		WriteError(w, http.StatusPaymentRequired, string(kind), err.Error())
	default:
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}

// DecodeJSON reads a JSON body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errs.Validation("invalid json: %v", err)
	}
	return nil
}
