// Package app assembles the stores, composition services and HTTP handler from an AppConfig.
package app

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/auth"
	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/config"
	"github.com/MarcoPoloResearchLab/wishlist/internal/database"
	"github.com/MarcoPoloResearchLab/wishlist/internal/gateway"
	"github.com/MarcoPoloResearchLab/wishlist/internal/invites"
	"github.com/MarcoPoloResearchLab/wishlist/internal/metrics"
	"github.com/MarcoPoloResearchLab/wishlist/internal/permissions"
	"github.com/MarcoPoloResearchLab/wishlist/internal/remote"
	"github.com/MarcoPoloResearchLab/wishlist/internal/server"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"github.com/MarcoPoloResearchLab/wishlist/internal/wishlists"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Options carries the runtime collaborators that are not part of AppConfig.
type Options struct {
	Logger  *zap.Logger
	Metrics *metrics.Metrics
	Clock   func() time.Time
	// HTTPClient is used for the remote catalog when catalog.base_url is set.
	HTTPClient *http.Client
}

// App is the assembled API.
type App struct {
	Handler  http.Handler
	Database *gorm.DB
	Tokens   *auth.TokenIssuer
}

// New opens the database and wires every component described by cfg.
func New(cfg config.AppConfig, options Options) (*App, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := database.OpenSQLite(database.Options{
		Path:     cfg.DatabasePath,
		SeedDemo: cfg.SeedDemoData,
		Logger:   logger,
	})
	if err != nil {
		return nil, err
	}

	handler, tokens, err := wire(db, cfg, options, logger)
	if err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			_ = sqlDB.Close()
		}
		return nil, err
	}
	return &App{Handler: handler, Database: db, Tokens: tokens}, nil
}

// Close releases the database connection.
func (a *App) Close() error {
	if a == nil || a.Database == nil {
		return nil
	}
	sqlDB, err := a.Database.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func wire(db *gorm.DB, cfg config.AppConfig, options Options, logger *zap.Logger) (http.Handler, *auth.TokenIssuer, error) {
	userService, err := users.NewService(users.ServiceConfig{Database: db, Clock: options.Clock, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	listService, err := wishlists.NewService(wishlists.ServiceConfig{Database: db, Clock: options.Clock, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	accessService, err := access.NewService(access.ServiceConfig{Database: db, Clock: options.Clock, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	productCatalog, err := newCatalog(db, cfg, options, logger)
	if err != nil {
		return nil, nil, err
	}

	resolver, err := permissions.NewResolver(permissions.ResolverConfig{
		Owners:     listService,
		Grants:     accessService,
		EditPolicy: cfg.EditPolicy,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, err
	}

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(cfg.SigningSecret),
		Issuer:        cfg.TokenIssuer,
		TokenTTL:      cfg.TokenTTL,
		Clock:         options.Clock,
	})
	if err != nil {
		return nil, nil, err
	}

	enrichOptions := gateway.EnrichOptions{
		Timeout:     cfg.DownstreamTimeout,
		Concurrency: cfg.EnrichConcurrency,
		Logger:      logger,
		Metrics:     options.Metrics,
	}
	profiles, err := gateway.NewProfileEnricher(userService, enrichOptions)
	if err != nil {
		return nil, nil, err
	}
	products, err := gateway.NewProductEnricher(productCatalog, enrichOptions)
	if err != nil {
		return nil, nil, err
	}

	gatewayService, err := gateway.NewService(gateway.ServiceConfig{
		Users:       userService,
		Catalog:     productCatalog,
		Lists:       listService,
		Grants:      accessService,
		Permissions: resolver,
		Tokens:      tokenIssuer,
		Profiles:    profiles,
		Products:    products,
		Logger:      logger,
	})
	if err != nil {
		return nil, nil, err
	}

	inviteService, err := invites.NewService(invites.ServiceConfig{
		Store:        accessService,
		Wishlists:    listService,
		Permissions:  resolver,
		Profiles:     profiles,
		TTL:          cfg.InviteTTL,
		AcceptPolicy: cfg.AcceptPolicy,
		LinkBaseURL:  cfg.InviteLinkBaseURL,
		Clock:        options.Clock,
		Logger:       logger,
	})
	if err != nil {
		return nil, nil, err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Gateway: gatewayService,
		Invites: inviteService,
		Tokens:  tokenIssuer,
		Metrics: options.Metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	return handler, tokenIssuer, nil
}

// newCatalog selects the remote catalog peer when configured, otherwise the local store.
func newCatalog(db *gorm.DB, cfg config.AppConfig, options Options, logger *zap.Logger) (gateway.Catalog, error) {
	if cfg.CatalogBaseURL != "" {
		client, err := remote.NewCatalogClient(remote.CatalogClientConfig{
			BaseURL:    cfg.CatalogBaseURL,
			Timeout:    cfg.DownstreamTimeout,
			HTTPClient: options.HTTPClient,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("using remote catalog", zap.String("base_url", cfg.CatalogBaseURL))
		return client, nil
	}
	return catalog.NewService(catalog.ServiceConfig{Database: db, Logger: logger})
}
