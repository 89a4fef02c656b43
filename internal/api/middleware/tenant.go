package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cartback/cartback/internal/db"
)

// TenantContext carrega o tenant autenticado e bloqueia contas desativadas.
func TenantContext(repo *db.Repository) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenant_id")
		if tenantID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Tenant not identified"})
			c.Abort()
			return
		}

		tenant, err := repo.GetTenant(tenantID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Tenant not found"})
			c.Abort()
			return
		}

		if !tenant.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
			c.Abort()
			return
		}

		c.Set("tenant", tenant)
		c.Next()
	}
}
