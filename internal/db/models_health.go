package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type QualityRating string

const (
	QualityHigh    QualityRating = "high"
	QualityMedium  QualityRating = "medium"
	QualityLow     QualityRating = "low"
	QualityFlagged QualityRating = "flagged"
)

type VolumeTier string

const (
	TierUnverified VolumeTier = "unverified"
	Tier1          VolumeTier = "tier1"
	Tier2          VolumeTier = "tier2"
	Tier3          VolumeTier = "tier3"
	Tier4          VolumeTier = "tier4"
)

type AlertType string

const (
	AlertRateLimit       AlertType = "rate_limit"
	AlertQualityLow      AlertType = "quality_low"
	AlertWarmupExceeded  AlertType = "warmup_exceeded"
	AlertResponseRateLow AlertType = "response_rate_low"
	AlertTooManyFailures AlertType = "too_many_failures"
)

type AlertSeverity string

const (
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

type HealthAlert struct {
	Type      AlertType     `json:"type"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
}

type HealthAlertList []HealthAlert

func (l HealthAlertList) Value() (driver.Value, error) {
	return json.Marshal(l)
}

func (l *HealthAlertList) Scan(value interface{}) error {
	if value == nil {
		*l = HealthAlertList{}
		return nil
	}
	return json.Unmarshal(value.([]byte), l)
}

// HealthMetricsSnapshot é o snapshot corrente de saúde de uma instância,
// sobrescrito a cada recálculo.
type HealthMetricsSnapshot struct {
	ID         string `json:"id" db:"id"`
	InstanceID string `json:"instance_id" db:"instance_id"`
	TenantID   string `json:"-" db:"tenant_id"`

	HealthScore   int           `json:"health_score" db:"health_score"`
	QualityRating QualityRating `json:"quality_rating" db:"quality_rating"`
	CurrentTier   VolumeTier    `json:"current_tier" db:"current_tier"`
	DailyLimit    int           `json:"daily_limit" db:"daily_limit"`

	DaysSinceConnection *int `json:"days_since_connection,omitempty" db:"days_since_connection"`
	IsWarmingUp         bool `json:"is_warming_up" db:"is_warming_up"`

	MessagesSentLastMinute int `json:"messages_sent_last_minute" db:"messages_sent_last_minute"`
	MessagesSentLastHour   int `json:"messages_sent_last_hour" db:"messages_sent_last_hour"`
	MessagesSentLast24h    int `json:"messages_sent_last_24h" db:"messages_sent_last_24h"`
	MessagesSentLast7Days  int `json:"messages_sent_last_7_days" db:"messages_sent_last_7_days"`

	MessagesDelivered     int `json:"messages_delivered" db:"messages_delivered"`
	MessagesRead          int `json:"messages_read" db:"messages_read"`
	MessagesFailed        int `json:"messages_failed" db:"messages_failed"`
	UserResponsesReceived int `json:"user_responses_received" db:"user_responses_received"`
	UserBlocksReported    int `json:"user_blocks_reported" db:"user_blocks_reported"`

	LastMessageSentAt *time.Time `json:"last_message_sent_at,omitempty" db:"last_message_sent_at"`

	Alerts    HealthAlertList `json:"alerts" db:"alerts"`
	HasAlerts bool            `json:"has_alerts" db:"has_alerts"`

	MetricsCalculatedAt time.Time `json:"metrics_calculated_at" db:"metrics_calculated_at"`
	CreatedAt           time.Time `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time `json:"updated_at" db:"updated_at"`
}
