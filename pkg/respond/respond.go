// Package respond writes JSON responses and error bodies for the HTTP
// handlers.
package respond

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/feedrank/pkg/logger"
)

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Error     string            `json:"error"`
	Code      string            `json:"code"`
	RequestID string            `json:"request_id,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// JSON writes v with status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to write response", "error", err)
	}
}

// Error classifies err and writes its status and client-safe message.
// Server errors are logged with their full text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	JSON(w, r, status, ErrorBody{
		Error:     apperrors.Message(err),
		Code:      apperrors.Code(err),
		RequestID: logger.RequestID(r.Context()),
	})
}

// Invalid writes a 400 listing the problem with each named input.
func Invalid(w http.ResponseWriter, r *http.Request, msg string, fields map[string]string) {
	JSON(w, r, http.StatusBadRequest, ErrorBody{
		Error:     msg,
		Code:      apperrors.Code(apperrors.ErrInvalidInput),
		RequestID: logger.RequestID(r.Context()),
		Fields:    fields,
	})
}
