package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aacassist/security-core/internal/audit"
	"github.com/aacassist/security-core/internal/auth"
	"github.com/aacassist/security-core/internal/authz"
	"github.com/aacassist/security-core/internal/config"
	"github.com/aacassist/security-core/internal/health"
	"github.com/aacassist/security-core/internal/logger"
	"github.com/aacassist/security-core/internal/metrics"
	"github.com/aacassist/security-core/internal/middleware"
	"github.com/aacassist/security-core/internal/repository"
)

var version = "dev"

func main() {
	cfg := config.Load()
	log := logger.New(logger.DefaultConfig())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	poolCfg, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		log.Error("invalid database configuration", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("failed to create connection pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Error("database unreachable", "error", err)
		os.Exit(1)
	}

	prometheus.MustRegister(metrics.NewPoolStatsCollector(pool))

	users := repository.NewUserRepository(pool)
	lockoutStore := repository.NewLockoutRepository(pool)
	assignments := repository.NewAssignmentRepository(pool)
	auditStore := repository.NewAuditRepository(pool)

	trail := audit.NewTrail(auditStore, log)

	tokens, err := auth.NewTokenService(auth.TokenServiceConfig{
		Secret:             cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.AccessTokenExpiry,
		RefreshTokenExpiry: cfg.JWT.RefreshTokenExpiry,
		Production:         cfg.IsProduction(),
	})
	if err != nil {
		log.Error("token service refused to start", "error", err)
		os.Exit(1)
	}

	verifier := auth.NewCredentialVerifier(log)
	passwordPolicy := auth.NewPasswordPolicy()
	lockout := auth.NewLockoutTracker(lockoutStore, auth.LockoutTrackerConfig{
		MaxAttempts:     cfg.Lockout.MaxAttempts,
		Window:          cfg.Lockout.Window,
		LockoutDuration: cfg.Lockout.LockoutDuration,
	})
	policy := authz.NewPolicy(assignments)

	service := auth.NewAuthService(users, assignments, verifier, passwordPolicy, tokens, lockout, trail, log)

	authHandler := auth.NewAuthHandler(service, policy, users)
	adminHandler := auth.NewAdminHandler(service, trail)
	authMW := middleware.NewAuthMiddleware(tokens, trail)
	healthHandler := health.NewHandler(pool, version)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimiddleware.Recoverer)
	r.Use(metrics.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", healthHandler.Healthz)
	r.Get("/readyz", healthHandler.Readyz)
	r.Get("/livez", healthHandler.Livez)
	r.Handle("/metrics", promhttp.Handler())

	loginLimiter := middleware.LoginRateLimiter(auth.DefaultLoginRateLimit, auth.DefaultLoginRateWindow)
	auth.RegisterRoutes(r, authHandler, adminHandler, authMW, loginLimiter)

	srv := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", srv.Addr, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}

	log.Info("server stopped")
}
