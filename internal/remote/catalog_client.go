// Package remote reads the product catalog from a peer service that exposes
// the same /products surface as this gateway.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"go.uber.org/zap"
)

const (
	opList       = "remote.catalog.list"
	opSearch     = "remote.catalog.search"
	opCategories = "remote.catalog.categories"
	opGet        = "remote.catalog.get"
	opGetMany    = "remote.catalog.get_many"

	defaultTimeout = 5 * time.Second
	maxBodyBytes   = 4 << 20
)

// ErrUnexpectedStatus indicates a non-2xx answer from the catalog peer.
var ErrUnexpectedStatus = errors.New("remote: unexpected status")

// CatalogClientConfig describes the catalog peer.
type CatalogClientConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// CatalogClient implements the catalog reads over HTTP. Every call is bounded by Timeout.
type CatalogClient struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// NewCatalogClient validates the configuration and constructs a client.
func NewCatalogClient(cfg CatalogClientConfig) (*CatalogClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("remote: catalog base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("remote: invalid catalog base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogClient{
		baseURL:    baseURL,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger.With(zap.String("adapter", "remote_catalog")),
	}, nil
}

type searchPage struct {
	catalog.Page
	Query string `json:"query"`
}

// List fetches a page of products.
func (c *CatalogClient) List(ctx context.Context, filter catalog.ListFilter) (catalog.Page, error) {
	query := url.Values{}
	setString(query, "category", filter.Category)
	setString(query, "search", filter.Search)
	setInt(query, "limit", filter.Limit)
	setInt(query, "offset", filter.Offset)

	var page catalog.Page
	if err := c.getJSON(ctx, opList, "/products", query, &page); err != nil {
		return catalog.Page{}, err
	}
	return page, nil
}

// Search runs the advanced product search.
func (c *CatalogClient) Search(ctx context.Context, filter catalog.SearchFilter) (catalog.Page, error) {
	query := url.Values{}
	setString(query, "q", filter.Query)
	setString(query, "category", filter.Category)
	setFloat(query, "minPrice", filter.MinPrice)
	setFloat(query, "maxPrice", filter.MaxPrice)
	setFloat(query, "rating", filter.MinRating)
	setInt(query, "limit", filter.Limit)
	setInt(query, "offset", filter.Offset)

	var page searchPage
	if err := c.getJSON(ctx, opSearch, "/products/search", query, &page); err != nil {
		return catalog.Page{}, err
	}
	return page.Page, nil
}

// Categories lists the distinct product categories.
func (c *CatalogClient) Categories(ctx context.Context) ([]string, error) {
	categories := make([]string, 0)
	if err := c.getJSON(ctx, opCategories, "/categories", nil, &categories); err != nil {
		return nil, err
	}
	return categories, nil
}

// Get fetches one product. A 404 from the peer is reported as NotFound.
func (c *CatalogClient) Get(ctx context.Context, id int64) (catalog.Product, error) {
	var product catalog.Product
	err := c.getJSON(ctx, opGet, "/products/"+strconv.FormatInt(id, 10), nil, &product)
	if err != nil {
		return catalog.Product{}, err
	}
	return product, nil
}

// GetMany fetches the existing products among ids in one request.
func (c *CatalogClient) GetMany(ctx context.Context, ids []int64) ([]catalog.Product, error) {
	if len(ids) == 0 {
		return []catalog.Product{}, nil
	}
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	query := url.Values{}
	query.Set("ids", strings.Join(parts, ","))

	products := make([]catalog.Product, 0, len(ids))
	if err := c.getJSON(ctx, opGetMany, "/products/byIds", query, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *CatalogClient) getJSON(ctx context.Context, operation, path string, query url.Values, target any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return apperr.Internal(operation+".request_build_failed", err)
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		c.logger.Warn("catalog request failed", zap.String("operation", operation), zap.String("path", path), zap.Error(err))
		return apperr.Upstream(operation+".unreachable", err)
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound && operation == opGet {
		return apperr.Wrap(apperr.KindNotFound, operation+".not_found", "Product not found", catalog.ErrProductNotFound)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		c.logger.Warn("catalog returned unexpected status",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Int("status", response.StatusCode))
		return apperr.Upstream(operation+".unexpected_status", fmt.Errorf("%w: %d", ErrUnexpectedStatus, response.StatusCode))
	}

	if err := json.NewDecoder(io.LimitReader(response.Body, maxBodyBytes)).Decode(target); err != nil {
		c.logger.Warn("catalog response decode failed", zap.String("operation", operation), zap.Error(err))
		return apperr.Upstream(operation+".decode_failed", err)
	}
	return nil
}

func setString(values url.Values, key, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		values.Set(key, trimmed)
	}
}

func setInt(values url.Values, key string, value int) {
	if value > 0 {
		values.Set(key, strconv.Itoa(value))
	}
}

func setFloat(values url.Values, key string, value *float64) {
	if value != nil {
		values.Set(key, strconv.FormatFloat(*value, 'f', -1, 64))
	}
}
