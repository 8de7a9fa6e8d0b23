package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/l3agi/l3server/internal/auth"
	"github.com/l3agi/l3server/internal/model"
)

// Error codes written by middleware.
const (
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeInternalError = "INTERNAL_ERROR"
	CodeTooLarge      = "PAYLOAD_TOO_LARGE"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError writes the standard JSON error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: errorDetail{Code: code, Message: message}})
}

// WriteAuthError renders a resolution failure. Credential rejections are 401
// with their reason, an inaccessible account is 403, and anything else is a
// logged 500.
func WriteAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	attrs := []any{
		slog.String("request_id", GetRequestID(r.Context())),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("ip", r.RemoteAddr),
	}

	if authErr, ok := auth.IsUnauthorized(err); ok {
		logger.Warn("authentication failed", append(attrs, slog.String("reason", authErr.Reason))...)
		writeError(w, authErr.StatusCode(), CodeUnauthorized, authErr.Reason)
		return
	}

	if errors.Is(err, model.ErrAccountNotFound) {
		logger.Warn("account not accessible", attrs...)
		writeError(w, http.StatusForbidden, CodeForbidden, "Account not accessible")
		return
	}

	logger.Error("authentication lookup failed", append(attrs, slog.String("error", err.Error()))...)
	writeError(w, http.StatusInternalServerError, CodeInternalError, "Internal server error")
}
