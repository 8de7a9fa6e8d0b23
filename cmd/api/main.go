// Package main is the entrypoint for the l3server API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/l3agi/l3server/internal/audit"
	"github.com/l3agi/l3server/internal/auth"
	"github.com/l3agi/l3server/internal/cache"
	"github.com/l3agi/l3server/internal/config"
	"github.com/l3agi/l3server/internal/github"
	"github.com/l3agi/l3server/internal/handler"
	"github.com/l3agi/l3server/internal/metrics"
	"github.com/l3agi/l3server/internal/middleware"
	"github.com/l3agi/l3server/internal/repository"
	"github.com/l3agi/l3server/internal/server"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := initLogger(cfg)

	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to database")

	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		repo.Close()
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	logger.Info("connected to Redis")

	if cfg.AuthToken == "" {
		logger.Warn("AUTH_TOKEN is not set; internal endpoints will reject every request")
	}

	recorder := metrics.NewInMemory()
	auditor := audit.NewPublisher(cacheClient.Client(), logger, recorder)
	resolver := auth.NewResolver(auth.ResolverConfig{
		Users:     repo,
		Accounts:  repo,
		APIKeys:   repo,
		Cache:     cacheClient,
		Tokens:    auth.NewTokenIssuer(cfg.JWTSecretKey, cfg.JWTExpiryHours()),
		AuthToken: cfg.AuthToken,
		Metrics:   recorder,
		Logger:    logger,
	})

	deps := routerDeps{
		handler: handler.New(version),
		health:  handler.NewHealthHandler(logger, repo, cacheClient),
		auth: handler.NewAuthHandler(handler.AuthHandlerConfig{
			Logger:      logger,
			GitHub:      github.NewClient(cfg.GitHubAPIURL, nil),
			Store:       repo,
			Tokens:      resolver,
			FrontendURL: cfg.FrontendURL,
			ExpiryHours: cfg.JWTExpiryHours(),
			Audit:       auditor,
		}),
		apiKeys: handler.NewAPIKeyHandler(logger, repo, cacheClient, auditor),
		metrics: handler.NewMetricsHandler(recorder),
		authCfg: middleware.AuthConfig{
			Logger:      logger,
			Resolver:    resolver,
			MinDuration: middleware.DefaultMinAuthDuration,
		},
	}

	r := setupRouter(deps, cfg, logger)

	srv := server.New(r, server.Config{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Closed in reverse order: Redis first, then Postgres.
	srv.OnShutdown("postgres", func(context.Context) error {
		repo.Close()
		return nil
	})
	srv.OnShutdown("redis", func(context.Context) error {
		return cacheClient.Close()
	})

	logger.Info("starting server",
		slog.Int("port", cfg.AppPort),
		slog.String("env", cfg.AppEnv),
		slog.String("version", version),
	)

	if err := srv.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With(slog.String("service", "l3server"))
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	handler *handler.Handler
	health  *handler.HealthHandler
	auth    *handler.AuthHandler
	apiKeys *handler.APIKeyHandler
	metrics *handler.MetricsHandler
	authCfg middleware.AuthConfig
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = cfg.GetCORSAllowedOrigins()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{IsDevelopment: cfg.IsDevelopment()}))
	r.Use(middleware.CORS(corsCfg))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))

	// Health endpoints (no auth required)
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)

	r.Get("/", d.handler.Hello)

	// GitHub sign-in
	r.Route("/auth/github", func(r chi.Router) {
		r.Post("/", d.auth.GitHubLogin)
		r.Get("/callback", d.auth.GitHubCallback)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.OptionalAuth(d.authCfg)).Get("/auth/session", d.auth.Session)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(d.authCfg))

			r.Get("/auth/me", d.auth.Me)

			r.Route("/api-keys", func(r chi.Router) {
				r.Get("/", d.apiKeys.ListAPIKeys)
				r.Post("/", d.apiKeys.CreateAPIKey)
				r.Delete("/{key_id}", d.apiKeys.RevokeAPIKey)
				r.Post("/{key_id}/rotate", d.apiKeys.RotateAPIKey)
			})
		})
	})

	// Service-to-service endpoints, static token only
	r.Route("/internal", func(r chi.Router) {
		r.Use(middleware.RequireAuthToken(d.authCfg))
		r.Post("/token", d.auth.IssueToken)
		r.Get("/metrics", d.metrics.Metrics)
	})

	r.NotFound(d.handler.NotFound)
	r.MethodNotAllowed(d.handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
