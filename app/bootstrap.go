package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"vetdirectory/internal/account"
	"vetdirectory/internal/auth"
	"vetdirectory/internal/config"
	"vetdirectory/internal/db"
	"vetdirectory/internal/maintenance"
	"vetdirectory/internal/observability"
	"vetdirectory/internal/ratelimit"
	"vetdirectory/internal/resource"
	"vetdirectory/internal/session"
	"vetdirectory/internal/token"
)

type Options struct {
	LoadDotEnv    bool
	RunMigrations bool
}

type Runtime struct {
	Handler http.Handler
	Config  *config.Config
	Close   func() error
}

func Build(options Options) (*Runtime, error) {
	if options.LoadDotEnv {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := observability.NewLogger()

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Environment); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	database, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	database.SetMaxOpenConns(10)
	database.SetMaxIdleConns(5)
	database.SetConnMaxLifetime(30 * time.Minute)

	if err := database.Ping(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if options.RunMigrations {
		if err := db.RunMigrations(database); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	codec, err := token.NewCodec(cfg.JWT.Secret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("build token codec: %w", err)
	}

	// Without Redis the revocation records and rate-limit counters live in
	// process memory, which is only correct behind a single server
	// instance. Production deployments must set REDIS_URL.
	var revocations session.RevocationStore = session.NewMemoryRevocationStore()
	var counters ratelimit.CounterStore = ratelimit.NewMemoryCounterStore()
	closeRedis := func() error { return nil }

	if cfg.RedisURL != "" {
		redisClient, err := session.NewRedisClient(cfg.RedisURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("build redis client: %w", err)
		}
		revocations = session.NewRedisRevocationStore(redisClient, logger)
		counters = ratelimit.NewRedisCounterStore(redisClient)
		closeRedis = redisClient.Close
	} else {
		logger.Warn("redis_not_configured", map[string]any{
			"mode": "single-instance in-memory revocation and rate limiting",
		})
	}

	accountRepo := account.NewRepository(database)
	validator := session.NewValidator(codec, revocations, accountRepo, logger)

	limiter := ratelimit.NewLimiter(counters, logger,
		ratelimit.WithWindow(cfg.RateLimit.Window),
		ratelimit.WithLimit(ratelimit.OpLogin, cfg.RateLimit.Login),
		ratelimit.WithLimit(ratelimit.OpRegister, cfg.RateLimit.Register),
		ratelimit.WithLimit(ratelimit.OpPasswordReset, cfg.RateLimit.PasswordReset),
	)

	authService := auth.NewService(accountRepo, codec, revocations, logger)
	authHandler := auth.NewHandler(authService)
	adminHandler := auth.NewAdminHandler(authService, cfg.AdminSecret)

	resourceRepo := resource.NewRepository(database)
	resourceHandler := resource.NewHandler(resourceRepo)

	cleanupHandler := maintenance.NewCleanupHandler(
		accountRepo,
		logger,
		cfg.Cleanup.CronSecret,
		cfg.Cleanup.AccountRetention,
		cfg.Cleanup.BatchSize,
	)

	mux := http.NewServeMux()

	mux.Handle("POST /auth/register", limiter.Middleware(ratelimit.OpRegister, http.HandlerFunc(authHandler.Register)))
	mux.Handle("POST /auth/login", limiter.Middleware(ratelimit.OpLogin, http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.Handle("POST /auth/logout", session.RequireAuth(http.HandlerFunc(authHandler.Logout)))
	mux.Handle("POST /auth/password", session.RequireAuth(http.HandlerFunc(authHandler.ChangePassword)))
	mux.Handle("POST /auth/password-reset", limiter.Middleware(ratelimit.OpPasswordReset, http.HandlerFunc(authHandler.RequestPasswordReset)))

	mux.HandleFunc("POST /admin/accounts/{id}/suspend", adminHandler.Suspend)
	mux.HandleFunc("POST /admin/accounts/{id}/restore", adminHandler.Restore)
	mux.HandleFunc("DELETE /admin/accounts/{id}", adminHandler.Delete)

	mux.HandleFunc("GET /categories", resourceHandler.ListCategories)
	mux.HandleFunc("GET /resources", resourceHandler.ListResources)
	mux.HandleFunc("GET /resources/{id}", resourceHandler.GetResource)
	mux.Handle("POST /resources", session.RequireAuth(http.HandlerFunc(resourceHandler.CreateResource)))
	mux.Handle("PUT /resources/{id}", session.RequireAuth(http.HandlerFunc(resourceHandler.UpdateResource)))
	mux.Handle("DELETE /resources/{id}", session.RequireAuth(http.HandlerFunc(resourceHandler.DeleteResource)))
	mux.Handle("POST /resources/{id}/save", session.RequireAuth(http.HandlerFunc(resourceHandler.SaveResource)))
	mux.Handle("DELETE /resources/{id}/save", session.RequireAuth(http.HandlerFunc(resourceHandler.UnsaveResource)))
	mux.Handle("GET /me/saved", session.RequireAuth(http.HandlerFunc(resourceHandler.ListSaved)))

	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("GET /health", healthHandler(database))

	handler := observability.RecoverMiddleware(logger,
		observability.RequestLoggingMiddleware(logger,
			session.Authenticate(validator, mux)))

	return &Runtime{
		Handler: handler,
		Config:  cfg,
		Close: func() error {
			observability.FlushSentry()
			_ = closeRedis()
			return database.Close()
		},
	}, nil
}

func healthHandler(database *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if err := database.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body = map[string]any{"status": "degraded", "time": time.Now().UTC().Format(time.RFC3339)}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
