package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
)

type CreateInstanceRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Channel     string `json:"channel" binding:"required,oneof=evolution meta_cloud"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	// phone_number_id da Cloud API; obrigatório para o canal meta_cloud
	ExternalID string `json:"external_id"`
}

func (h *Handler) CreateInstance(c *gin.Context) {
	var req CreateInstanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := c.GetString("tenant_id")
	tenant := c.MustGet("tenant").(*db.Tenant)

	count, err := h.repo.CountInstancesByTenant(tenantID)
	if err != nil {
		h.logger.Error("Failed to count instances", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if count >= tenant.MaxInstances {
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "Instance limit exceeded for your plan"})
		return
	}

	channel := db.InstanceChannel(req.Channel)
	if channel == db.ChannelMetaCloud && req.ExternalID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external_id is required for meta_cloud instances"})
		return
	}

	instance := &db.WhatsAppInstance{
		ID:          uuid.New().String(),
		TenantID:    tenantID,
		Name:        req.Name,
		Channel:     channel,
		PhoneNumber: req.PhoneNumber,
		Status:      db.InstanceCreated,
		ExternalID:  req.ExternalID,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if channel == db.ChannelEvolution {
		instance.ExternalID = fmt.Sprintf("cb-%s", instance.ID[:8])
		if err := h.evolution.CreateInstance(instance.ExternalID); err != nil {
			h.logger.Error("Failed to provision Evolution instance", zap.Error(err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to provision instance"})
			return
		}
	}

	if err := h.repo.CreateInstance(instance); err != nil {
		h.logger.Error("Failed to create instance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create instance"})
		return
	}

	h.logger.Info("Instance created",
		zap.String("instance_id", instance.ID),
		zap.String("tenant_id", tenantID),
		zap.String("channel", string(instance.Channel)),
	)

	c.JSON(http.StatusCreated, instance)
}

func (h *Handler) ListInstances(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	instances, err := h.repo.GetInstancesByTenant(tenantID)
	if err != nil {
		h.logger.Error("Failed to list instances", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"instances": instances, "total": len(instances)})
}

func (h *Handler) GetInstance(c *gin.Context) {
	instance, ok := h.instanceForTenant(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, instance)
}

func (h *Handler) DeleteInstance(c *gin.Context) {
	instanceID := c.Param("id")
	tenantID := c.GetString("tenant_id")

	if err := h.repo.DeleteInstance(instanceID, tenantID); err != nil {
		h.logger.Error("Failed to delete instance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete instance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Instance deleted"})
}

// ConnectInstance consulta o provedor e marca a instância como conectada
// quando a sessão está aberta. O momento da primeira conexão ancora o
// período de warm-up.
func (h *Handler) ConnectInstance(c *gin.Context) {
	instance, ok := h.instanceForTenant(c)
	if !ok {
		return
	}

	if instance.Channel == db.ChannelMetaCloud {
		// Cloud API não tem sessão; número registrado está sempre apto
		if instance.Status != db.InstanceConnected {
			if err := h.repo.MarkInstanceConnected(instance.ID, time.Now()); err != nil {
				h.logger.Error("Failed to mark instance connected", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": string(db.InstanceConnected)})
		return
	}

	state, err := h.evolution.ConnectionState(instance.ExternalID)
	if err != nil {
		h.logger.Error("Failed to get connection state", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to reach provider"})
		return
	}

	if state == "open" && instance.Status != db.InstanceConnected {
		if err := h.repo.MarkInstanceConnected(instance.ID, time.Now()); err != nil {
			h.logger.Error("Failed to mark instance connected", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
		instance.Status = db.InstanceConnected
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         string(instance.Status),
		"provider_state": state,
	})
}

// GetInstanceHealth devolve o snapshot de saúde, recalculando quando não
// há versão em cache.
func (h *Handler) GetInstanceHealth(c *gin.Context) {
	instance, ok := h.instanceForTenant(c)
	if !ok {
		return
	}

	var cached db.HealthMetricsSnapshot
	if err := h.cache.GetCachedInstanceHealth(c.Request.Context(), instance.ID, &cached); err == nil {
		c.JSON(http.StatusOK, &cached)
		return
	}

	snapshot, err := h.health.CalculateAndUpdateMetrics(instance.ID)
	if err != nil {
		h.logger.Error("Failed to calculate instance health", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.metrics.RecordHealthSnapshot(snapshot)

	if err := h.cache.CacheInstanceHealth(c.Request.Context(), instance.ID, snapshot); err != nil {
		h.logger.Warn("Failed to cache instance health", zap.Error(err))
	}

	c.JSON(http.StatusOK, snapshot)
}

// RefreshInstanceHealth força o recálculo do snapshot e a reavaliação de
// tier, ignorando o cache.
func (h *Handler) RefreshInstanceHealth(c *gin.Context) {
	instance, ok := h.instanceForTenant(c)
	if !ok {
		return
	}

	snapshot, err := h.health.CalculateAndUpdateMetrics(instance.ID)
	if err != nil {
		h.logger.Error("Failed to calculate instance health", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := h.health.UpdateTierIfNeeded(snapshot); err != nil {
		h.logger.Error("Failed to update instance tier", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.metrics.RecordHealthSnapshot(snapshot)

	if err := h.cache.CacheInstanceHealth(c.Request.Context(), instance.ID, snapshot); err != nil {
		h.logger.Warn("Failed to cache instance health", zap.Error(err))
	}

	c.JSON(http.StatusOK, snapshot)
}

func (h *Handler) GetMessageHistory(c *gin.Context) {
	instance, ok := h.instanceForTenant(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if limit < 1 || limit > 500 {
		limit = 50
	}

	messages, err := h.repo.GetMessageHistory(instance.ID, instance.TenantID, limit)
	if err != nil {
		h.logger.Error("Failed to get message history", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages, "total": len(messages)})
}

func (h *Handler) instanceForTenant(c *gin.Context) (*db.WhatsAppInstance, bool) {
	instanceID := c.Param("id")
	tenantID := c.GetString("tenant_id")

	instance, err := h.repo.GetInstance(instanceID, tenantID)
	if err != nil {
		if errors.Is(err, db.ErrInstanceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Instance not found"})
			return nil, false
		}
		h.logger.Error("Failed to get instance", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}

	return instance, true
}
