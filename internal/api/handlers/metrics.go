package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
)

// GetOverview agrega a saúde das instâncias e o funil de recuperação do
// tenant num único payload para o dashboard.
func (h *Handler) GetOverview(c *gin.Context) {
	tenantID := c.GetString("tenant_id")

	snapshots, err := h.repo.GetSnapshotsByTenant(tenantID)
	if err != nil {
		h.logger.Error("Failed to get snapshots", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	stats, err := h.repo.GetCartRecoveryStats(tenantID)
	if err != nil {
		h.logger.Error("Failed to get recovery stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	byRating := map[db.QualityRating]int{}
	totalScore := 0
	activeAlerts := 0
	for _, snapshot := range snapshots {
		byRating[snapshot.QualityRating]++
		totalScore += snapshot.HealthScore
		activeAlerts += len(snapshot.Alerts)
	}

	averageScore := 0
	if len(snapshots) > 0 {
		averageScore = totalScore / len(snapshots)
	}

	recoveryRate := 0.0
	if stats.TotalCarts > 0 {
		recoveryRate = float64(stats.RecoveredCarts) / float64(stats.TotalCarts) * 100
	}

	c.JSON(http.StatusOK, gin.H{
		"instances": gin.H{
			"total":         len(snapshots),
			"average_score": averageScore,
			"by_rating":     byRating,
			"active_alerts": activeAlerts,
			"snapshots":     snapshots,
		},
		"recovery": gin.H{
			"total_carts":           stats.TotalCarts,
			"recovered_carts":       stats.RecoveredCarts,
			"recovered_value_cents": stats.RecoveredValueCents,
			"recovery_rate_percent": recoveryRate,
		},
	})
}
