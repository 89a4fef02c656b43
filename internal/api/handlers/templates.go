package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
)

type TemplateRequest struct {
	Name      string   `json:"name" binding:"required,min=1,max=255"`
	Language  string   `json:"language" binding:"required"`
	Body      string   `json:"body" binding:"required"`
	Variables []string `json:"variables"`
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	tenantID := c.GetString("tenant_id")

	template := &db.MessageTemplate{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      req.Name,
		Language:  req.Language,
		Body:      req.Body,
		Variables: db.StringSlice(req.Variables),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := h.repo.CreateTemplate(template); err != nil {
		h.logger.Error("Failed to create template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create template"})
		return
	}

	c.JSON(http.StatusCreated, template)
}

func (h *Handler) ListTemplates(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	templates, err := h.repo.GetTemplatesByTenant(tenantID)
	if err != nil {
		h.logger.Error("Failed to list templates", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"templates": templates, "total": len(templates)})
}

func (h *Handler) GetTemplate(c *gin.Context) {
	templateID := c.Param("id")
	tenantID := c.GetString("tenant_id")

	template, err := h.repo.GetTemplate(templateID, tenantID)
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		h.logger.Error("Failed to get template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, template)
}

func (h *Handler) UpdateTemplate(c *gin.Context) {
	var req TemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	templateID := c.Param("id")
	tenantID := c.GetString("tenant_id")

	template, err := h.repo.GetTemplate(templateID, tenantID)
	if err != nil {
		if errors.Is(err, db.ErrTemplateNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Template not found"})
			return
		}
		h.logger.Error("Failed to get template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	template.Name = req.Name
	template.Language = req.Language
	template.Body = req.Body
	template.Variables = db.StringSlice(req.Variables)
	template.UpdatedAt = time.Now()

	if err := h.repo.UpdateTemplate(template); err != nil {
		h.logger.Error("Failed to update template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update template"})
		return
	}

	c.JSON(http.StatusOK, template)
}

func (h *Handler) DeleteTemplate(c *gin.Context) {
	templateID := c.Param("id")
	tenantID := c.GetString("tenant_id")

	if err := h.repo.DeleteTemplate(templateID, tenantID); err != nil {
		h.logger.Error("Failed to delete template", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete template"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Template deleted"})
}
