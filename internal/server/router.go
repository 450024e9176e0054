package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/wishlist/internal/auth"
	"github.com/MarcoPoloResearchLab/wishlist/internal/gateway"
	"github.com/MarcoPoloResearchLab/wishlist/internal/invites"
	"github.com/MarcoPoloResearchLab/wishlist/internal/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	serviceName   = "wishlist-api"
	apiPrefix     = "/api"
	unmatchedPath = "unmatched"
)

var (
	errMissingGateway   = errors.New("gateway service dependency required")
	errMissingInvites   = errors.New("invites service dependency required")
	errMissingValidator = errors.New("token validator dependency required")
)

// TokenValidator verifies bearer credentials.
type TokenValidator interface {
	ValidateToken(token string) (auth.Principal, error)
}

// Dependencies wires the HTTP surface to the composition services.
type Dependencies struct {
	Gateway *gateway.Service
	Invites *invites.Service
	Tokens  TokenValidator
	Metrics *metrics.Metrics
	Logger  *zap.Logger
}

// NewHTTPHandler builds the gin engine serving the public API under "/" and "/api".
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Gateway == nil {
		return nil, errMissingGateway
	}
	if deps.Invites == nil {
		return nil, errMissingInvites
	}
	if deps.Tokens == nil {
		return nil, errMissingValidator
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		gateway: deps.Gateway,
		invites: deps.Invites,
		tokens:  deps.Tokens,
		metrics: deps.Metrics,
		logger:  logger,
	}
	router.Use(handler.observeRequest)

	handler.registerRoutes(router.Group("/"))
	handler.registerRoutes(router.Group(apiPrefix))

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

func (h *httpHandler) registerRoutes(group *gin.RouterGroup) {
	group.GET("/health", h.handleHealth)
	group.POST("/auth/login", h.handleLogin)

	group.GET("/products", h.handleProducts)
	group.GET("/products/search", h.handleSearchProducts)
	group.GET("/products/byIds", h.handleProductsByIDs)
	group.GET("/products/:id", h.handleProduct)
	group.GET("/categories", h.handleCategories)
	group.GET("/invites/:token", h.handlePreviewInvite)

	protected := group.Group("/")
	protected.Use(h.authorizeRequest)

	protected.GET("/me", h.handleMe)
	protected.GET("/users", h.handleUsersByIDs)
	protected.GET("/users/:id", h.handleUser)

	protected.GET("/wishlists/mine", h.handleMyWishlists)
	protected.GET("/wishlists/friends", h.handleFriendsWishlists)
	protected.GET("/wishlists/byIds", h.handleWishlistsByIDs)
	protected.GET("/access/mine", h.handleMyAccess)
	protected.POST("/wishlists", h.handleCreateWishlist)
	protected.GET("/wishlists/:id", h.handleWishlistDetail)
	protected.GET("/wishlists/:id/items", h.handleWishlistItems)
	protected.POST("/wishlists/:id/items", h.handleAddItem)
	protected.DELETE("/wishlists/:id/items/:itemId", h.handleRemoveItem)
	protected.GET("/wishlists/:id/access", h.handleCollaborators)
	protected.PUT("/wishlists/:id/access/:userId", h.handleUpdateCollaborator)
	protected.DELETE("/wishlists/:id/access/:userId", h.handleRevokeCollaborator)
	protected.POST("/wishlists/:id/invites", h.handleCreateInvite)
	protected.POST("/invites/:token/accept", h.handleAcceptInvite)
}

type httpHandler struct {
	gateway *gateway.Service
	invites *invites.Service
	tokens  TokenValidator
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func (h *httpHandler) observeRequest(c *gin.Context) {
	started := time.Now()
	c.Next()

	route := c.FullPath()
	if route == "" {
		route = unmatchedPath
	}
	status := c.Writer.Status()
	elapsed := time.Since(started)
	h.metrics.ObserveRequest(c.Request.Method, route, status, elapsed)
	h.logger.Debug("request served",
		zap.String("method", c.Request.Method),
		zap.String("route", route),
		zap.Int("status", status),
		zap.Duration("latency", elapsed),
	)
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, err := auth.BearerTokenFromRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	principal, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.Request = c.Request.WithContext(auth.WithPrincipal(c.Request.Context(), principal))
	c.Next()
}

// principal returns the caller attached by authorizeRequest.
func principal(c *gin.Context) (auth.Principal, bool) {
	return auth.PrincipalFromContext(c.Request.Context())
}
