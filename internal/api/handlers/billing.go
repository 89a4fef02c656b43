package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
)

// Planos cobrados mensalmente via Asaas
var planPriceCents = map[string]int64{
	"starter": 4990,
	"growth":  9990,
	"scale":   24990,
}

type SubscribeRequest struct {
	Plan string `json:"plan" binding:"required,oneof=starter growth scale"`
}

// Subscribe cria cliente e assinatura no Asaas e registra a assinatura
// local como pendente até o primeiro pagamento confirmar.
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := c.GetString("tenant_id")
	tenant := c.MustGet("tenant").(*db.Tenant)

	subscription, err := h.repo.GetSubscriptionByTenant(tenantID)
	if err != nil {
		h.logger.Error("Failed to get subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	customerID := ""
	if subscription != nil {
		customerID = subscription.AsaasCustomerID
	}
	if customerID == "" {
		customerID, err = h.asaas.CreateCustomer(tenant.Name, tenant.Email)
		if err != nil {
			h.logger.Error("Failed to create billing customer", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create billing customer"})
			return
		}
	}

	if _, err := h.asaas.CreateSubscription(customerID, planPriceCents[req.Plan], "Cartback "+req.Plan); err != nil {
		h.logger.Error("Failed to create billing subscription", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to create subscription"})
		return
	}

	if subscription == nil {
		subscription = &db.Subscription{
			ID:        uuid.New().String(),
			TenantID:  tenantID,
			CreatedAt: time.Now(),
		}
	}
	subscription.AsaasCustomerID = customerID
	subscription.Plan = req.Plan
	subscription.Status = "pending"
	subscription.UpdatedAt = time.Now()

	if err := h.repo.UpsertSubscription(subscription); err != nil {
		h.logger.Error("Failed to save subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusCreated, subscription)
}

func (h *Handler) GetSubscription(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	subscription, err := h.repo.GetSubscriptionByTenant(tenantID)
	if err != nil {
		h.logger.Error("Failed to get subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if subscription == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No subscription"})
		return
	}

	c.JSON(http.StatusOK, subscription)
}

func (h *Handler) ListPayments(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 200 {
		limit = 50
	}

	payments, err := h.repo.GetPaymentsByTenant(tenantID, limit)
	if err != nil {
		h.logger.Error("Failed to list payments", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"payments": payments, "total": len(payments)})
}
