package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/wishlist/internal/access"
	"github.com/MarcoPoloResearchLab/wishlist/internal/apperr"
	"github.com/MarcoPoloResearchLab/wishlist/internal/auth"
	"github.com/MarcoPoloResearchLab/wishlist/internal/catalog"
	"github.com/MarcoPoloResearchLab/wishlist/internal/gateway"
	"github.com/MarcoPoloResearchLab/wishlist/internal/wishlists"
	"github.com/gin-gonic/gin"
)

type loginRequestPayload struct {
	User string `json:"user" validate:"required"`
}

type loginResponsePayload struct {
	AccessToken string `json:"accessToken"`
}

type searchResponsePayload struct {
	catalog.Page
	Query string `json:"query"`
}

type createWishlistPayload struct {
	Name    string `json:"name" validate:"required,max=200"`
	Privacy string `json:"privacy"`
}

type addItemPayload struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	Title     string `json:"title" validate:"max=320"`
	Priority  int    `json:"priority"`
}

type updateAccessPayload struct {
	Role        *string `json:"role"`
	DisplayName *string `json:"display_name" validate:"omitempty,max=320"`
}

type createInvitePayload struct {
	AccessType string `json:"access_type"`
	Role       string `json:"role"`
}

type acceptInvitePayload struct {
	DisplayName string `json:"display_name" validate:"max=320"`
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "service": serviceName})
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := decodeBody(c, &request, false); err != nil {
		h.respondError(c, err)
		return
	}
	token, err := h.gateway.Login(c.Request.Context(), request.User)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponsePayload{AccessToken: token})
}

func (h *httpHandler) handleMe(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	user, err := h.gateway.User(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleUser(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	user, err := h.gateway.User(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *httpHandler) handleUsersByIDs(c *gin.Context) {
	found, err := h.gateway.Users(c.Request.Context(), queryIDs(c, "ids"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, found)
}

func (h *httpHandler) handleProducts(c *gin.Context) {
	limit, offset, err := queryWindow(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	page, err := h.gateway.Products(c.Request.Context(), catalog.ListFilter{
		Category: c.Query("category"),
		Search:   firstQuery(c, "search", "q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *httpHandler) handleSearchProducts(c *gin.Context) {
	limit, offset, err := queryWindow(c)
	if err != nil {
		h.respondError(c, err)
		return
	}
	filter := catalog.SearchFilter{
		Query:    firstQuery(c, "q", "search"),
		Category: c.Query("category"),
		Limit:    limit,
		Offset:   offset,
	}
	if filter.MinPrice, err = queryFloat(c, "minPrice"); err != nil {
		h.respondError(c, err)
		return
	}
	if filter.MaxPrice, err = queryFloat(c, "maxPrice"); err != nil {
		h.respondError(c, err)
		return
	}
	if filter.MinRating, err = queryFloat(c, "rating"); err != nil {
		h.respondError(c, err)
		return
	}
	page, err := h.gateway.SearchProducts(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponsePayload{Page: page, Query: filter.Query})
}

func (h *httpHandler) handleProductsByIDs(c *gin.Context) {
	products, err := h.gateway.ProductsByIDs(c.Request.Context(), queryIDs(c, "ids"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *httpHandler) handleProduct(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return
	}
	product, err := h.gateway.Product(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *httpHandler) handleCategories(c *gin.Context) {
	categories, err := h.gateway.Categories(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *httpHandler) handleMyWishlists(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	owned, err := h.gateway.MyWishlists(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, owned)
}

func (h *httpHandler) handleFriendsWishlists(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	shared, err := h.gateway.FriendsWishlists(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, shared)
}

func (h *httpHandler) handleWishlistsByIDs(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	visible, err := h.gateway.WishlistsByIDs(c.Request.Context(), caller.UserID, queryIDs(c, "ids"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, visible)
}

func (h *httpHandler) handleMyAccess(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	summaries, err := h.gateway.MyAccess(c.Request.Context(), caller.UserID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

func (h *httpHandler) handleCreateWishlist(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var request createWishlistPayload
	if err := decodeBody(c, &request, false); err != nil {
		h.respondError(c, err)
		return
	}
	created, err := h.gateway.CreateWishlist(c.Request.Context(), caller.UserID, wishlists.NewWishlist{
		Name:    request.Name,
		Privacy: request.Privacy,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handleWishlistDetail(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	detail, err := h.gateway.WishlistDetail(c.Request.Context(), caller.UserID, wishlistID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *httpHandler) handleWishlistItems(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	items, err := h.gateway.WishlistItems(c.Request.Context(), caller.UserID, wishlistID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func (h *httpHandler) handleAddItem(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	var request addItemPayload
	if err := decodeBody(c, &request, false); err != nil {
		h.respondError(c, err)
		return
	}
	item, err := h.gateway.AddItem(c.Request.Context(), caller.UserID, wishlistID, gateway.ItemInput{
		ProductID: request.ProductID,
		Title:     request.Title,
		Priority:  request.Priority,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *httpHandler) handleRemoveItem(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	itemID, err := pathID(c, "itemId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.gateway.RemoveItem(c.Request.Context(), caller.UserID, wishlistID, itemID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCollaborators(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	collaborators, err := h.gateway.Collaborators(c.Request.Context(), caller.UserID, wishlistID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, collaborators)
}

func (h *httpHandler) handleUpdateCollaborator(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	targetID, err := pathID(c, "userId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	var request updateAccessPayload
	if err := decodeBody(c, &request, false); err != nil {
		h.respondError(c, err)
		return
	}
	update := access.GrantUpdate{DisplayName: request.DisplayName}
	if request.Role != nil {
		role, err := access.ParseGrantRole(*request.Role)
		if err != nil {
			h.respondError(c, apperr.Wrap(apperr.KindValidation, "server.access.invalid_role", "role must be view_only or view_edit", err))
			return
		}
		update.Role = &role
	}
	grant, err := h.gateway.UpdateCollaborator(c.Request.Context(), caller.UserID, wishlistID, targetID, update)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}

func (h *httpHandler) handleRevokeCollaborator(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	targetID, err := pathID(c, "userId")
	if err != nil {
		h.respondError(c, err)
		return
	}
	if err := h.gateway.RevokeCollaborator(c.Request.Context(), caller.UserID, wishlistID, targetID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *httpHandler) handleCreateInvite(c *gin.Context) {
	caller, wishlistID, ok := h.callerAndWishlist(c)
	if !ok {
		return
	}
	var request createInvitePayload
	if err := decodeBody(c, &request, true); err != nil {
		h.respondError(c, err)
		return
	}
	accessType := request.AccessType
	if accessType == "" {
		accessType = request.Role
	}
	created, err := h.invites.Create(c.Request.Context(), caller.UserID, wishlistID, accessType)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *httpHandler) handlePreviewInvite(c *gin.Context) {
	preview, err := h.invites.Preview(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *httpHandler) handleAcceptInvite(c *gin.Context) {
	caller, ok := h.caller(c)
	if !ok {
		return
	}
	var request acceptInvitePayload
	if err := decodeBody(c, &request, true); err != nil {
		h.respondError(c, err)
		return
	}
	accepted, err := h.invites.Accept(c.Request.Context(), caller.UserID, c.Param("token"), request.DisplayName)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, accepted)
}

func (h *httpHandler) caller(c *gin.Context) (auth.Principal, bool) {
	caller, ok := principal(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return auth.Principal{}, false
	}
	return caller, true
}

func (h *httpHandler) callerAndWishlist(c *gin.Context) (auth.Principal, int64, bool) {
	caller, ok := h.caller(c)
	if !ok {
		return auth.Principal{}, 0, false
	}
	wishlistID, err := pathID(c, "id")
	if err != nil {
		h.respondError(c, err)
		return auth.Principal{}, 0, false
	}
	return caller, wishlistID, true
}
