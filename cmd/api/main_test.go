package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/l3agi/l3server/internal/auth"
	"github.com/l3agi/l3server/internal/config"
	"github.com/l3agi/l3server/internal/handler"
	"github.com/l3agi/l3server/internal/metrics"
	"github.com/l3agi/l3server/internal/middleware"
)

const testAuthToken = "service-secret"

type okChecker struct{}

func (okChecker) Ping(ctx context.Context) error { return nil }

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := metrics.NewInMemory()
	resolver := auth.NewResolver(auth.ResolverConfig{
		Tokens:    auth.NewTokenIssuer("test-secret", 24),
		AuthToken: testAuthToken,
		Metrics:   recorder,
		Logger:    logger,
	})

	deps := routerDeps{
		handler: handler.New("test"),
		health:  handler.NewHealthHandler(logger, okChecker{}, okChecker{}),
		auth: handler.NewAuthHandler(handler.AuthHandlerConfig{
			Logger:      logger,
			Tokens:      resolver,
			FrontendURL: "http://localhost:3000",
			ExpiryHours: 24,
		}),
		apiKeys: handler.NewAPIKeyHandler(logger, nil, nil, nil),
		metrics: handler.NewMetricsHandler(recorder),
		authCfg: middleware.AuthConfig{Logger: logger, Resolver: resolver},
	}

	cfg := &config.Config{AppEnv: "test", MaxRequestBodySize: 1 << 20}
	return setupRouter(deps, cfg, logger)
}

func TestRouter_Routes(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	tests := []struct {
		name       string
		method     string
		path       string
		auth       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{name: "healthz", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK},
		{name: "readyz", method: http.MethodGet, path: "/readyz", wantStatus: http.StatusOK},
		{name: "hello", method: http.MethodGet, path: "/", wantStatus: http.StatusOK},
		{name: "unknown route", method: http.MethodGet, path: "/nope", wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "wrong method", method: http.MethodPut, path: "/healthz", wantStatus: http.StatusMethodNotAllowed},
		{name: "me without credentials", method: http.MethodGet, path: "/api/v1/auth/me", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "me with garbage token", method: http.MethodGet, path: "/api/v1/auth/me", auth: "Bearer garbage", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "api keys without credentials", method: http.MethodGet, path: "/api/v1/api-keys", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "rotate without credentials", method: http.MethodPost, path: "/api/v1/api-keys/k1/rotate", wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "session anonymous", method: http.MethodGet, path: "/api/v1/auth/session", wantStatus: http.StatusOK},
		{name: "internal token without secret", method: http.MethodPost, path: "/internal/token", body: `{"subject":"svc"}`, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "internal token with JWT-looking secret", method: http.MethodPost, path: "/internal/token", auth: "Bearer wrong", body: `{"subject":"svc"}`, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED"},
		{name: "internal metrics", method: http.MethodGet, path: "/internal/metrics", auth: "Bearer " + testAuthToken, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()

			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if tt.wantCode == "" {
				return
			}
			var resp struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", resp.Error.Code, tt.wantCode)
			}
		})
	}
}

func TestRouter_IssueTokenRoundTrip(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/internal/token", strings.NewReader(`{"subject":"svc@example.com","expiry_hours":2}`))
	req.Header.Set("Authorization", "Bearer "+testAuthToken)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TokenType != "Bearer" || resp.ExpiresIn != 7200 {
		t.Errorf("got type %q expires_in %d", resp.TokenType, resp.ExpiresIn)
	}

	claims, err := auth.NewTokenIssuer("test-secret", 24).Verify(resp.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Subject != "svc@example.com" {
		t.Errorf("subject = %q", claims.Subject)
	}
}

func TestRouter_SecurityHeadersAndRequestID(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get(middleware.RequestIDHeader); got != "req-123" {
		t.Errorf("request id = %q, want req-123", got)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestRedactURL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"postgres://l3:secret@db:5432/l3?sslmode=disable", "postgres://l3@db:5432/l3?sslmode=disable"},
		{"redis://:secret@cache:6379/0", "redis://redacted@cache:6379/0"},
		{"redis://cache:6379", "redis://cache:6379"},
	}

	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeError(t *testing.T) {
	t.Parallel()

	dsn := "postgres://l3:secret@db:5432/l3"
	err := errors.New("connect " + dsn + " failed: password=hunter2 rejected")

	got := sanitizeError(err, dsn)
	if strings.Contains(got, "secret") || strings.Contains(got, "hunter2") {
		t.Errorf("sanitizeError leaked a secret: %q", got)
	}
	if sanitizeError(nil) != "" {
		t.Error("sanitizeError(nil) should be empty")
	}
}

func TestParseLogLevel(t *testing.T) {
	t.Parallel()

	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLogLevel(in); got != want {
			t.Errorf("parseLogLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
