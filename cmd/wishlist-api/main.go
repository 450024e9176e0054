package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/app"
	"github.com/MarcoPoloResearchLab/wishlist/internal/config"
	"github.com/MarcoPoloResearchLab/wishlist/internal/logging"
	"github.com/MarcoPoloResearchLab/wishlist/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "wishlist-api",
		Short: "Wishlist API gateway with in-process stores",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Path to configuration file")
	flags.String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	flags.String("metrics-address", defaults.GetString("metrics.address"), "Prometheus listen address (empty disables)")
	flags.String("database-path", defaults.GetString("database.path"), "SQLite database path")
	flags.Bool("seed-demo", defaults.GetBool("database.seed_demo"), "Seed demo users and catalog on first start")
	flags.String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	flags.String("signing-secret", "", "Token signing secret (overrides env)")
	flags.Duration("token-ttl", defaults.GetDuration("auth.token_ttl"), "Bearer token lifetime")
	flags.Duration("invite-ttl", defaults.GetDuration("invites.ttl"), "Invitation lifetime")
	flags.String("invite-link-base-url", defaults.GetString("invites.link_base_url"), "Base URL for invitation links")
	flags.String("accept-policy", defaults.GetString("invites.accept_policy"), "Re-acceptance policy (update, reject)")
	flags.String("edit-policy", defaults.GetString("permissions.edit_policy"), "Item edit policy (owner_or_editor, owner_only)")
	flags.String("catalog-base-url", defaults.GetString("catalog.base_url"), "Remote catalog base URL (empty uses the local store)")
	flags.Duration("downstream-timeout", defaults.GetDuration("downstream.timeout"), "Per-call downstream timeout")
	flags.Int("enrich-concurrency", defaults.GetInt("enrich.max_concurrency"), "Maximum concurrent enrichment lookups")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "metrics.address", "metrics-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "database.seed_demo", "seed-demo")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
	bindFlag(cmd, "auth.token_ttl", "token-ttl")
	bindFlag(cmd, "invites.ttl", "invite-ttl")
	bindFlag(cmd, "invites.link_base_url", "invite-link-base-url")
	bindFlag(cmd, "invites.accept_policy", "accept-policy")
	bindFlag(cmd, "permissions.edit_policy", "edit-policy")
	bindFlag(cmd, "catalog.base_url", "catalog-base-url")
	bindFlag(cmd, "downstream.timeout", "downstream-timeout")
	bindFlag(cmd, "enrich.max_concurrency", "enrich-concurrency")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel, "wishlist-api")
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	gin.SetMode(gin.ReleaseMode)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	application, err := app.New(appConfig, app.Options{
		Logger:  logger,
		Metrics: metrics.New(registry),
	})
	if err != nil {
		return err
	}
	defer application.Close() //nolint:errcheck

	servers := []*http.Server{{
		Addr:              appConfig.HTTPAddress,
		Handler:           application.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
	if appConfig.MetricsAddress != "" {
		servers = append(servers, &http.Server{
			Addr:              appConfig.MetricsAddress,
			Handler:           metrics.Handler(registry),
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(signalCtx)
	for _, httpServer := range servers {
		httpServer := httpServer
		group.Go(func() error {
			logger.Info("server starting", zap.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var shutdownErr error
		for _, httpServer := range servers {
			shutdownErr = errors.Join(shutdownErr, httpServer.Shutdown(shutdownCtx))
		}
		logger.Info("server stopped")
		return shutdownErr
	})

	return group.Wait()
}
