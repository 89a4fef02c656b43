package health

import (
	"fmt"
	"time"

	"github.com/cartback/cartback/internal/db"
)

// generateAlerts regenera a lista completa de alertas a cada recálculo;
// alertas não são acumulados entre execuções.
func (s *Service) generateAlerts(snapshot *db.HealthMetricsSnapshot, rates qualityRates, now time.Time) db.HealthAlertList {
	alerts := db.HealthAlertList{}

	// Proximidade do limite diário
	if float64(snapshot.MessagesSentLast24h) >= 0.8*float64(snapshot.DailyLimit) {
		severity := db.SeverityWarning
		if rates.usagePercent >= 95 {
			severity = db.SeverityCritical
		}
		alerts = append(alerts, db.HealthAlert{
			Type:     db.AlertRateLimit,
			Severity: severity,
			Message: fmt.Sprintf("Sent %d of %d messages in the last 24h (%.0f%% of daily limit)",
				snapshot.MessagesSentLast24h, snapshot.DailyLimit, rates.usagePercent),
			Timestamp: now,
		})
	}

	// Qualidade baixa
	if snapshot.QualityRating == db.QualityLow || snapshot.QualityRating == db.QualityFlagged {
		severity := db.SeverityWarning
		if snapshot.QualityRating == db.QualityFlagged {
			severity = db.SeverityCritical
		}
		alerts = append(alerts, db.HealthAlert{
			Type:     db.AlertQualityLow,
			Severity: severity,
			Message: fmt.Sprintf("Account quality rating is %s (health score %d)",
				snapshot.QualityRating, snapshot.HealthScore),
			Timestamp: now,
		})
	}

	// Envio acima do recomendado durante o warm-up
	if snapshot.IsWarmingUp && snapshot.MessagesSentLast24h > warmupMaxDailySends {
		days := 0
		if snapshot.DaysSinceConnection != nil {
			days = *snapshot.DaysSinceConnection
		}
		alerts = append(alerts, db.HealthAlert{
			Type:     db.AlertWarmupExceeded,
			Severity: db.SeverityWarning,
			Message: fmt.Sprintf("Instance is on day %d of the %d-day warm-up period; recommended maximum is %d messages/day",
				days, warmupPeriodDays, warmupMaxDailySends),
			Timestamp: now,
		})
	}

	// Taxa de resposta baixa, só com volume relevante
	if rates.responseRate < 30 && snapshot.MessagesSentLast7Days > 20 {
		severity := db.SeverityWarning
		if rates.responseRate < 20 {
			severity = db.SeverityCritical
		}
		alerts = append(alerts, db.HealthAlert{
			Type:     db.AlertResponseRateLow,
			Severity: severity,
			Message: fmt.Sprintf("Response rate is %.1f%% over the last 7 days",
				rates.responseRate),
			Timestamp: now,
		})
	}

	// Excesso de falhas, só com volume relevante
	if rates.failureRate > 10 && snapshot.MessagesSentLast7Days > 10 {
		severity := db.SeverityWarning
		if rates.failureRate > 20 {
			severity = db.SeverityCritical
		}
		alerts = append(alerts, db.HealthAlert{
			Type:     db.AlertTooManyFailures,
			Severity: severity,
			Message: fmt.Sprintf("Failure rate is %.1f%% over the last 7 days",
				rates.failureRate),
			Timestamp: now,
		})
	}

	return alerts
}
