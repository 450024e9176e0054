package gateway

import (
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/enrich"
	"github.com/MarcoPoloResearchLab/wishlist/internal/metrics"
	"github.com/MarcoPoloResearchLab/wishlist/internal/users"
	"go.uber.org/zap"
)

const (
	sourceUsers    = "users"
	sourceProducts = "products"
)

// EnrichOptions are shared by every enrichment source.
type EnrichOptions struct {
	Timeout     time.Duration
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Metrics
}

// NewProfileEnricher builds the user profile enrichment source.
func NewProfileEnricher(lookup enrich.Getter[int64, users.User], options EnrichOptions) (*enrich.Enricher[int64, users.User], error) {
	return enrich.New(enrich.Config[int64, users.User]{
		Source:      sourceUsers,
		Lookup:      lookup,
		Key:         func(user users.User) int64 { return user.ID },
		Timeout:     options.Timeout,
		Concurrency: options.Concurrency,
		Logger:      options.Logger,
		Metrics:     options.Metrics,
	})
}

// NewProductEnricher builds the catalog product enrichment source.
func NewProductEnricher(lookup enrich.Getter[int64, catalog.Product], options EnrichOptions) (*enrich.Enricher[int64, catalog.Product], error) {
	return enrich.New(enrich.Config[int64, catalog.Product]{
		Source:      sourceProducts,
		Lookup:      lookup,
		Key:         func(product catalog.Product) int64 { return product.ID },
		Timeout:     options.Timeout,
		Concurrency: options.Concurrency,
		Logger:      options.Logger,
		Metrics:     options.Metrics,
	})
}
