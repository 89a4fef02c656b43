package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
)

func (h *Handler) ListCarts(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	status := db.CartStatus(c.Query("status"))
	switch status {
	case "", db.CartOpen, db.CartRecovering, db.CartRecovered, db.CartExpired:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status filter"})
		return
	}

	carts, err := h.repo.GetCartsByTenant(tenantID, status, limit, (page-1)*limit)
	if err != nil {
		h.logger.Error("Failed to list carts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"carts": carts,
		"page":  page,
		"limit": limit,
	})
}

func (h *Handler) GetCart(c *gin.Context) {
	cartID := c.Param("id")
	tenantID := c.GetString("tenant_id")

	cart, err := h.repo.GetCart(cartID, tenantID)
	if err != nil {
		if errors.Is(err, db.ErrCartNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		h.logger.Error("Failed to get cart", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	attempts, err := h.repo.GetAttemptsByCart(cartID, tenantID)
	if err != nil {
		h.logger.Error("Failed to get cart attempts", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"cart":     cart,
		"attempts": attempts,
	})
}
