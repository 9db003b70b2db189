// Package app assembles the identity service: configuration, storage,
// cache, services, HTTP server, and lifecycle.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iris-platform/identity/internal/identity/cache"
	rediscache "github.com/iris-platform/identity/internal/identity/cache/drivers/redis"
	httpapi "github.com/iris-platform/identity/internal/identity/http"
	"github.com/iris-platform/identity/internal/identity/obs"
	"github.com/iris-platform/identity/internal/identity/service"
	"github.com/iris-platform/identity/internal/identity/store"
	"github.com/iris-platform/identity/internal/identity/store/drivers/sqlite"
	"github.com/iris-platform/identity/pkg/slogx"
)

// BuildVersion should be set at build time via ldflags.
const BuildVersion = "v0.1.0"

// Application encapsulates the identity service with its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db    store.Store
	cache cache.Cache

	accountService *service.AccountService
	tokenService   *service.TokenService
	mfaService     *service.MFAService
	orgService     *service.OrgService
	apiKeyService  *service.APIKeyService
	auditService   *service.AuditService
	housekeeping   *service.HousekeepingService

	server *http.Server
	router *httpapi.Router
}

// New builds the application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "identity",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}

	obs.Init()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()

	app.logger.Info("identity service starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown drains the server and releases the store and cache.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down identity service")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeeping.Stop()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("identity service stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied")
	return nil
}

func (app *Application) initCache() error {
	c := rediscache.New(rediscache.Config{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	app.cache = c
	app.logger.Info("redis connection established", "addr", app.cfg.RedisAddr)
	return nil
}

func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Cache:         app.cache,
		AccessSecret:  []byte(app.cfg.AccessSecret),
		RefreshSecret: []byte(app.cfg.RefreshSecret),
		Issuer:        app.cfg.Issuer,
		AccessTTL:     app.cfg.AccessTTL,
		RefreshTTL:    app.cfg.RefreshTTL,
	}
	app.mfaService = &service.MFAService{
		Store:  app.db,
		Cache:  app.cache,
		Issuer: app.cfg.Issuer,
	}
	app.accountService = &service.AccountService{
		Store:  app.db,
		Tokens: app.tokenService,
		MFA:    app.mfaService,
	}
	app.orgService = &service.OrgService{Store: app.db}
	app.auditService = &service.AuditService{Store: app.db}
	app.apiKeyService = &service.APIKeyService{
		Store: app.db,
		Audit: app.auditService,
	}
	app.housekeeping = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.AuditRetention,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.cache, app.logger)
	router.AccountService = app.accountService
	router.TokenService = app.tokenService
	router.MFAService = app.mfaService
	router.OrgService = app.orgService
	router.APIKeyService = app.apiKeyService
	router.Audit = app.auditService
	router.ApplyRoutes()
	app.router = router

	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}
