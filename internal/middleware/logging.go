package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/l3agi/l3server/internal/model"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func wrapResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{ResponseWriter: w, status: http.StatusOK}
}

func (rw *responseWriter) WriteHeader(code int) {
	if rw.wroteHeader {
		return
	}
	rw.status = code
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeader {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}

// logFields collects values discovered deeper in the chain, such as the
// resolved identity, for the access log line written on the way out.
type logFields struct {
	userID    string
	accountID string
	method    string
}

// annotateLog records the identity on the request's access log entry.
// It is a no-op outside Logger.
func annotateLog(ctx context.Context, identity *model.Identity) {
	fields, ok := ctx.Value(logFieldsKey).(*logFields)
	if !ok || !identity.Complete() {
		return
	}
	fields.userID = identity.User.ID.String()
	fields.accountID = identity.Account.ID.String()
	fields.method = identity.Method
}

// Logger returns a middleware that logs HTTP requests.
// Uses structured logging with slog. Headers are never logged.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			fields := &logFields{}
			r = r.WithContext(context.WithValue(r.Context(), logFieldsKey, fields))
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)

			attrs := []slog.Attr{
				slog.String("request_id", GetRequestID(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", wrapped.status),
				slog.Float64("duration_ms", float64(duration.Microseconds())/1000),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("user_agent", r.UserAgent()),
			}

			if fields.userID != "" {
				attrs = append(attrs,
					slog.String("user_id", fields.userID),
					slog.String("account_id", fields.accountID),
					slog.String("auth_method", fields.method),
				)
			}

			// Log at appropriate level based on status code
			level := slog.LevelInfo
			if wrapped.status >= 500 {
				level = slog.LevelError
			} else if wrapped.status >= 400 {
				level = slog.LevelWarn
			}

			logger.LogAttrs(r.Context(), level, "http request", attrs...)
		})
	}
}
