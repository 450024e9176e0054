package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix              = "WISHLIST"
	defaultHTTPAddress     = "0.0.0.0:8080"
	defaultMetricsAddress  = "127.0.0.1:9090"
	defaultDatabasePath    = "wishlist.db"
	defaultLogLevel        = "info"
	defaultTokenIssuer     = "wishlist-auth"
	defaultTokenTTL        = 7 * 24 * time.Hour
	defaultInviteTTL       = 7 * 24 * time.Hour
	defaultInviteLinkBase  = "http://localhost:5173/wishlist/friends/invite"
	defaultDownstreamLimit = 5 * time.Second
	defaultEnrichWorkers   = 8
)

// EditPolicy decides which roles may mutate a wishlist's items.
type EditPolicy string

const (
	// EditPolicyOwnerOrEditor lets owners and view_edit collaborators mutate items.
	EditPolicyOwnerOrEditor EditPolicy = "owner_or_editor"
	// EditPolicyOwnerOnly restricts item mutation to the wishlist owner.
	EditPolicyOwnerOnly EditPolicy = "owner_only"
)

// AcceptPolicy decides what happens when an invitation is accepted by a user who already holds a grant.
type AcceptPolicy string

const (
	// AcceptPolicyUpdate upserts the grant and keeps the invitation usable until it expires.
	AcceptPolicyUpdate AcceptPolicy = "update"
	// AcceptPolicyReject refuses re-acceptance and consumes the invitation on success.
	AcceptPolicyReject AcceptPolicy = "reject"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress       string
	MetricsAddress    string
	DatabasePath      string
	SeedDemoData      bool
	LogLevel          string
	SigningSecret     string
	TokenIssuer       string
	TokenTTL          time.Duration
	InviteTTL         time.Duration
	InviteLinkBaseURL string
	AcceptPolicy      AcceptPolicy
	EditPolicy        EditPolicy
	CatalogBaseURL    string
	DownstreamTimeout time.Duration
	EnrichConcurrency int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("metrics.address", defaultMetricsAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("database.seed_demo", true)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.signing_secret", "")
	configViper.SetDefault("auth.issuer", defaultTokenIssuer)
	configViper.SetDefault("auth.token_ttl", defaultTokenTTL)
	configViper.SetDefault("invites.ttl", defaultInviteTTL)
	configViper.SetDefault("invites.link_base_url", defaultInviteLinkBase)
	configViper.SetDefault("invites.accept_policy", string(AcceptPolicyUpdate))
	configViper.SetDefault("permissions.edit_policy", string(EditPolicyOwnerOrEditor))
	configViper.SetDefault("catalog.base_url", "")
	configViper.SetDefault("downstream.timeout", defaultDownstreamLimit)
	configViper.SetDefault("enrich.max_concurrency", defaultEnrichWorkers)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:       strings.TrimSpace(configViper.GetString("http.address")),
		MetricsAddress:    strings.TrimSpace(configViper.GetString("metrics.address")),
		DatabasePath:      strings.TrimSpace(configViper.GetString("database.path")),
		SeedDemoData:      configViper.GetBool("database.seed_demo"),
		LogLevel:          configViper.GetString("log.level"),
		SigningSecret:     configViper.GetString("auth.signing_secret"),
		TokenIssuer:       strings.TrimSpace(configViper.GetString("auth.issuer")),
		TokenTTL:          configViper.GetDuration("auth.token_ttl"),
		InviteTTL:         configViper.GetDuration("invites.ttl"),
		InviteLinkBaseURL: strings.TrimRight(strings.TrimSpace(configViper.GetString("invites.link_base_url")), "/"),
		AcceptPolicy:      AcceptPolicy(strings.ToLower(strings.TrimSpace(configViper.GetString("invites.accept_policy")))),
		EditPolicy:        EditPolicy(strings.ToLower(strings.TrimSpace(configViper.GetString("permissions.edit_policy")))),
		CatalogBaseURL:    strings.TrimRight(strings.TrimSpace(configViper.GetString("catalog.base_url")), "/"),
		DownstreamTimeout: configViper.GetDuration("downstream.timeout"),
		EnrichConcurrency: configViper.GetInt("enrich.max_concurrency"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if c.HTTPAddress == "" {
		return fmt.Errorf("http.address is required")
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.TokenIssuer == "" {
		return fmt.Errorf("auth.issuer is required")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.InviteTTL <= 0 {
		return fmt.Errorf("invites.ttl must be positive")
	}
	if c.DownstreamTimeout <= 0 {
		return fmt.Errorf("downstream.timeout must be positive")
	}
	if c.EnrichConcurrency <= 0 {
		return fmt.Errorf("enrich.max_concurrency must be positive")
	}
	switch c.AcceptPolicy {
	case AcceptPolicyUpdate, AcceptPolicyReject:
	default:
		return fmt.Errorf("invites.accept_policy %q is not supported", c.AcceptPolicy)
	}
	switch c.EditPolicy {
	case EditPolicyOwnerOrEditor, EditPolicyOwnerOnly:
	default:
		return fmt.Errorf("permissions.edit_policy %q is not supported", c.EditPolicy)
	}
	return nil
}
