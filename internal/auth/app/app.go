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

	httpapi "github.com/aussiebroadwan/shopauth/internal/auth/http"
	"github.com/aussiebroadwan/shopauth/internal/auth/service"
	"github.com/aussiebroadwan/shopauth/internal/auth/store"
	"github.com/aussiebroadwan/shopauth/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/shopauth/pkg/jwtx"
	"github.com/aussiebroadwan/shopauth/pkg/oidcx"
	"github.com/aussiebroadwan/shopauth/pkg/shopify"
	"github.com/aussiebroadwan/shopauth/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the token service with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db            store.Store
	signer        *jwtx.Signer
	keys          *jwtx.KeySet
	oidcClient    *oidcx.Client
	shopifyClient *shopify.Client

	// Services
	tokenService        *service.TokenService
	provisioningService *service.ProvisioningService
	webhookService      *service.WebhookService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "shopauth",
			Version: BuildVersion,
			Shop:    cfg.ShopDomain,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	signer, err := InitSigningKey(app.cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize signing key: %w", err)
	}
	app.signer = signer

	app.keys = jwtx.NewKeySet()
	if err := app.keys.AddSigner(signer); err != nil {
		return nil, fmt.Errorf("failed to publish signing key: %w", err)
	}

	app.initClients()
	app.initServices()
	app.initHTTP()

	return app, nil
}

// RegisterWebhooks subscribes the shop's webhooks to this deployment. Run
// once per deployment via the -register-webhooks flag.
func (app *Application) RegisterWebhooks(ctx context.Context) error {
	return app.webhookService.RegisterWebhooks(ctx, app.cfg.Issuer)
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("shopauth starting", "port", app.cfg.Port, "version", BuildVersion)

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

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down shopauth...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("shopauth stopped")
	return nil
}

// initDatabase initializes the database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initClients initializes the upstream provider and Admin API clients.
func (app *Application) initClients() {
	app.oidcClient = oidcx.New(oidcx.Config{
		Issuer:                app.cfg.OIDCIssuer,
		ClientID:              app.cfg.OIDCClientID,
		ClientSecret:          app.cfg.OIDCClientSecret,
		RedirectURI:           app.cfg.OIDCRedirectURI,
		AuthorizationEndpoint: app.cfg.OIDCAuthorizeURL,
		TokenEndpoint:         app.cfg.OIDCTokenURL,
		JWKSURI:               app.cfg.OIDCJWKSURI,
		Scope:                 app.cfg.OIDCScope,
	})

	app.shopifyClient = shopify.New(shopify.Config{
		ShopDomain:  app.cfg.ShopDomain,
		APIVersion:  app.cfg.ShopifyAPIVersion,
		AccessToken: app.cfg.ShopifyAccessToken,
		MaxCalls:    app.cfg.ShopifyRateLimitCalls,
		Window:      app.cfg.ShopifyRateLimitWindow,
	}, app.logger)
}

// initServices initializes all business logic services.
func (app *Application) initServices() {
	app.tokenService = &service.TokenService{
		Signer:              app.signer,
		Store:               app.db,
		Issuer:              app.cfg.Issuer,
		AccessTTL:           app.cfg.AccessTokenTTL,
		RefreshTTL:          app.cfg.RefreshTokenTTL,
		ImpersonationLogTTL: app.cfg.ImpersonationLogTTL,
	}

	app.provisioningService = &service.ProvisioningService{Store: app.db}

	app.webhookService = &service.WebhookService{
		Store:       app.db,
		Shopify:     app.shopifyClient,
		Secret:      app.cfg.WebhookSecret,
		AccessToken: app.cfg.ShopifyAccessToken,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

// initHTTP initializes the HTTP router and server.
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.keys,
		app.cfg.Issuer,
		BuildVersion,
		app.db,
		app.logger,
	)

	// Wire services to router
	router.OIDCClient = app.oidcClient
	router.TokenService = app.tokenService
	router.ProvisioningService = app.provisioningService
	router.WebhookService = app.webhookService
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
