package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
)

type Collector struct {
	config *config.MimirConfig

	// Métricas de envio
	messagesTotal       *prometheus.CounterVec
	messageSendDuration *prometheus.HistogramVec

	// Métricas de saúde das instâncias
	healthScore        *prometheus.GaugeVec
	dailyLimitUsage    *prometheus.GaugeVec
	instanceWarmingUp  *prometheus.GaugeVec
	healthAlertsActive *prometheus.GaugeVec
	tierLevel          *prometheus.GaugeVec

	// Métricas de recuperação de carrinho
	cartsTotal            *prometheus.CounterVec
	cartsRecoveredTotal   *prometheus.CounterVec
	recoveryAttemptsTotal *prometheus.CounterVec

	// Métricas do worker
	jobsQueueSize     *prometheus.GaugeVec
	workerUtilization *prometheus.GaugeVec
}

// Nível numérico de cada tier, para gauge
var tierLevels = map[db.VolumeTier]float64{
	db.TierUnverified: 0,
	db.Tier1:          1,
	db.Tier2:          2,
	db.Tier3:          3,
	db.Tier4:          4,
}

func NewCollector(cfg config.MimirConfig) *Collector {
	return &Collector{
		config: &cfg,

		messagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartback_messages_total",
				Help: "Total number of WhatsApp messages sent",
			},
			[]string{"tenant_id", "instance_id", "channel", "status"},
		),

		messageSendDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cartback_message_send_duration_seconds",
				Help:    "Duration of message sends in seconds",
				Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"tenant_id", "instance_id", "channel"},
		),

		healthScore: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cartback_instance_health_score",
				Help: "Current health score of the WhatsApp instance (0-100)",
			},
			[]string{"tenant_id", "instance_id"},
		),

		dailyLimitUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cartback_instance_daily_limit_usage_percent",
				Help: "Percentage of the daily send limit used in the last 24h",
			},
			[]string{"tenant_id", "instance_id"},
		),

		instanceWarmingUp: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cartback_instance_warming_up",
				Help: "Whether the instance is in the warm-up period (1) or not (0)",
			},
			[]string{"tenant_id", "instance_id"},
		),

		healthAlertsActive: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cartback_instance_alerts_active",
				Help: "Active health alerts by type and severity",
			},
			[]string{"tenant_id", "instance_id", "type", "severity"},
		),

		tierLevel: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cartback_instance_tier_level",
				Help: "Current messaging tier of the instance (0=unverified, 4=tier4)",
			},
			[]string{"tenant_id", "instance_id"},
		),

		cartsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartback_abandoned_carts_total",
				Help: "Total number of abandoned carts ingested",
			},
			[]string{"tenant_id", "source"},
		),

		cartsRecoveredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartback_recovered_carts_total",
				Help: "Total number of carts recovered",
			},
			[]string{"tenant_id", "source"},
		),

		recoveryAttemptsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cartback_recovery_attempts_total",
				Help: "Total number of recovery attempts processed",
			},
			[]string{"tenant_id", "status"},
		),

		jobsQueueSize: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cartback_jobs_queue_size",
				Help: "Number of jobs waiting in the queue",
			},
			[]string{"queue"},
		),

		workerUtilization: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "cartback_worker_utilization",
				Help: "Worker pool utilization ratio",
			},
			[]string{"queue"},
		),
	}
}

func (c *Collector) RecordMessageSent(instance *db.WhatsAppInstance, status db.MessageStatus, duration time.Duration) {
	c.messagesTotal.WithLabelValues(
		instance.TenantID, instance.ID, string(instance.Channel), string(status),
	).Inc()

	c.messageSendDuration.WithLabelValues(
		instance.TenantID, instance.ID, string(instance.Channel),
	).Observe(duration.Seconds())
}

func (c *Collector) RecordHealthSnapshot(snapshot *db.HealthMetricsSnapshot) {
	c.healthScore.WithLabelValues(snapshot.TenantID, snapshot.InstanceID).
		Set(float64(snapshot.HealthScore))

	usage := 0.0
	if snapshot.DailyLimit > 0 {
		usage = float64(snapshot.MessagesSentLast24h) / float64(snapshot.DailyLimit) * 100
	}
	c.dailyLimitUsage.WithLabelValues(snapshot.TenantID, snapshot.InstanceID).Set(usage)

	warming := 0.0
	if snapshot.IsWarmingUp {
		warming = 1
	}
	c.instanceWarmingUp.WithLabelValues(snapshot.TenantID, snapshot.InstanceID).Set(warming)

	c.tierLevel.WithLabelValues(snapshot.TenantID, snapshot.InstanceID).
		Set(tierLevels[snapshot.CurrentTier])

	// Alertas são regenerados a cada recálculo; zera as séries antigas
	// da instância antes de marcar as atuais
	c.healthAlertsActive.DeletePartialMatch(prometheus.Labels{
		"tenant_id":   snapshot.TenantID,
		"instance_id": snapshot.InstanceID,
	})
	for _, alert := range snapshot.Alerts {
		c.healthAlertsActive.WithLabelValues(
			snapshot.TenantID, snapshot.InstanceID, string(alert.Type), string(alert.Severity),
		).Set(1)
	}
}

func (c *Collector) RecordCartAbandoned(tenantID string, source db.CartSource) {
	c.cartsTotal.WithLabelValues(tenantID, string(source)).Inc()
}

func (c *Collector) RecordCartRecovered(tenantID string, source db.CartSource) {
	c.cartsRecoveredTotal.WithLabelValues(tenantID, string(source)).Inc()
}

func (c *Collector) RecordRecoveryAttempt(tenantID string, status db.AttemptStatus) {
	c.recoveryAttemptsTotal.WithLabelValues(tenantID, string(status)).Inc()
}

func (c *Collector) RecordWorkerMetrics(queue string, queueSize int, utilization float64) {
	c.jobsQueueSize.WithLabelValues(queue).Set(float64(queueSize))
	c.workerUtilization.WithLabelValues(queue).Set(utilization)
}
