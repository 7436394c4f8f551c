package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go-tour-auth/internal/config"
	"go-tour-auth/internal/database"
	"go-tour-auth/internal/event"
	"go-tour-auth/internal/handler"
	"go-tour-auth/internal/metrics"
	"go-tour-auth/internal/middleware"
	"go-tour-auth/internal/repository"
	"go-tour-auth/internal/router"
	"go-tour-auth/internal/service"
	"go-tour-auth/internal/token"
)

const serviceName = "user-service"

type App struct {
	server       *http.Server
	cleanupFuncs []func()
}

func New(cfg *config.Config) (*App, error) {
	var cleanups []func()
	fail := func(err error) (*App, error) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		return nil, err
	}

	issuer, err := token.NewIssuer(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token issuer: %w", err)
	}
	verifier, err := token.NewVerifier(cfg.JWTAccessSecret, cfg.JWTRefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token verifier: %w", err)
	}

	slog.Info("connecting to credential store")
	redisClient, err := database.NewRedis(context.Background(), cfg.RedisURL, cfg.RedisOpTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to credential store: %w", err)
	}
	cleanups = append(cleanups, func() { _ = redisClient.Close() })
	sessionRepo := repository.NewSessionRepository(redisClient, cfg.RedisKeyPrefix, cfg.RedisOpTimeout)

	checks := map[string]handler.Pinger{"redis": sessionRepo}

	var (
		userRepo  service.UserStore
		auditRepo service.AuditStore
	)
	if cfg.DatabaseURL != "" {
		slog.Info("connecting to PostgreSQL")
		db, err := database.New(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return fail(fmt.Errorf("failed to connect to database: %w", err))
		}
		cleanups = append(cleanups, db.Close)

		if err := db.EnsureSchema(context.Background()); err != nil {
			return fail(fmt.Errorf("failed to ensure database schema: %w", err))
		}

		userRepo = repository.NewUserRepository(db.Pool)
		auditRepo = repository.NewAuditRepository(db.Pool)
		checks["postgres"] = handler.PingFunc(db.Health)
		slog.Info("database ready")
	} else {
		slog.Warn("DATABASE_URL not set; users and audit entries are kept in memory", "env", cfg.Env)
		userRepo = repository.NewMemoryUserRepository()
		auditRepo = repository.NewMemoryAuditRepository()
	}

	m := metrics.New()
	bus := event.NewBus()

	sessionService := service.NewSessionService(sessionRepo, issuer, verifier, m)
	authService, err := service.NewAuthService(userRepo, sessionService, bus, m, cfg.BcryptCost)
	if err != nil {
		return fail(fmt.Errorf("failed to initialize auth service: %w", err))
	}

	auditService := service.NewAuditService(auditRepo)
	auditCtx, auditCancel := context.WithCancel(context.Background())
	go auditService.Run(auditCtx, bus)
	cleanups = append(cleanups, auditCancel)

	cookie := handler.RefreshCookie{
		Name:   cfg.RefreshCookieName,
		Path:   cfg.RefreshCookiePath,
		Secure: cfg.IsProduction(),
	}

	appRouter := router.New(cfg, middleware.NewAuthMiddleware(verifier), m, router.Handlers{
		Auth:   handler.NewAuthHandler(authService, cookie),
		User:   handler.NewUserHandler(authService, cookie),
		Audit:  handler.NewAuditHandler(auditService),
		Health: handler.NewHealthHandler(serviceName, checks),
	})

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           appRouter,
		ReadHeaderTimeout: cfg.ServerReadHeaderTimeout,
		WriteTimeout:      cfg.ServerWriteTimeout,
		IdleTimeout:       cfg.ServerIdleTimeout,
	}

	return &App{
		server:       server,
		cleanupFuncs: cleanups,
	}, nil
}

func (a *App) Run() error {
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		a.cleanup()
		return fmt.Errorf("server failed: %w", err)
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Drain in-flight requests before closing the stores they use.
	shutdownErr := a.server.Shutdown(ctx)
	a.cleanup()
	if shutdownErr != nil {
		return fmt.Errorf("graceful shutdown failed: %w", shutdownErr)
	}

	slog.Info("server stopped")
	return nil
}

func (a *App) cleanup() {
	for i := len(a.cleanupFuncs) - 1; i >= 0; i-- {
		a.cleanupFuncs[i]()
	}
}
