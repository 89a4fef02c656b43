package health

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/cartback/cartback/internal/db"
	"go.uber.org/zap"
)

const (
	warmupPeriodDays    = 21
	warmupMaxDailySends = 50
)

// MessageLogStore fornece as contagens de mensagens por janela rolante.
type MessageLogStore interface {
	CountMessagesSince(instanceID string, since time.Time) (int, error)
	CountMessagesByStatusSince(instanceID string, since time.Time) (map[db.MessageStatus]int, error)
	LastMessageSentAt(instanceID string) (*time.Time, error)
}

type InstanceStore interface {
	GetInstanceByID(id string) (*db.WhatsAppInstance, error)
}

type SnapshotStore interface {
	GetSnapshotByInstance(instanceID string) (*db.HealthMetricsSnapshot, error)
	CreateSnapshot(s *db.HealthMetricsSnapshot) error
	UpdateSnapshot(s *db.HealthMetricsSnapshot) error
}

type Service struct {
	instances InstanceStore
	messages  MessageLogStore
	snapshots SnapshotStore
	logger    *zap.Logger
}

func NewService(instances InstanceStore, messages MessageLogStore, snapshots SnapshotStore, logger *zap.Logger) *Service {
	return &Service{
		instances: instances,
		messages:  messages,
		snapshots: snapshots,
		logger:    logger,
	}
}

// qualityRates agrupa as taxas derivadas dos contadores de qualidade,
// usadas tanto no score quanto na geração de alertas.
type qualityRates struct {
	deliveryRate float64
	failureRate  float64
	responseRate float64
	usagePercent float64
}

// CalculateAndUpdateMetrics recalcula o snapshot de saúde da instância:
// contadores rolantes, contadores de qualidade, score, rating e alertas.
// O snapshot é criado lazily no primeiro health check.
func (s *Service) CalculateAndUpdateMetrics(instanceID string) (*db.HealthMetricsSnapshot, error) {
	instance, err := s.instances.GetInstanceByID(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	snapshot, err := s.loadOrCreateSnapshot(instance)
	if err != nil {
		return nil, err
	}

	now := time.Now()

	// Janelas rolantes de envio; cada contagem é uma query independente
	windows := []struct {
		since time.Time
		dest  *int
	}{
		{now.Add(-1 * time.Minute), &snapshot.MessagesSentLastMinute},
		{now.Add(-1 * time.Hour), &snapshot.MessagesSentLastHour},
		{now.Add(-24 * time.Hour), &snapshot.MessagesSentLast24h},
		{now.Add(-7 * 24 * time.Hour), &snapshot.MessagesSentLast7Days},
	}

	for _, w := range windows {
		count, err := s.messages.CountMessagesSince(instanceID, w.since)
		if err != nil {
			return nil, fmt.Errorf("failed to count messages: %w", err)
		}
		*w.dest = count
	}

	lastSent, err := s.messages.LastMessageSentAt(instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get last sent timestamp: %w", err)
	}
	snapshot.LastMessageSentAt = lastSent

	// Contadores de qualidade sobre a janela de 7 dias
	statusCounts, err := s.messages.CountMessagesByStatusSince(instanceID, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("failed to count messages by status: %w", err)
	}

	snapshot.MessagesDelivered = statusCounts[db.MessageDelivered] + statusCounts[db.MessageRead]
	snapshot.MessagesRead = statusCounts[db.MessageRead]
	snapshot.MessagesFailed = statusCounts[db.MessageFailed]

	totalMessages := 0
	for _, count := range statusCounts {
		totalMessages += count
	}

	// UserResponsesReceived é estimado a partir das leituras enquanto não
	// há sinal real de mensagens inbound. UserBlocksReported não tem fonte
	// de dados e permanece com o valor atual.
	snapshot.UserResponsesReceived = int(math.Floor(float64(snapshot.MessagesRead) * 0.4))

	if instance.ConnectedAt != nil {
		days := int(math.Floor(now.Sub(*instance.ConnectedAt).Hours() / 24))
		if days < 0 {
			days = 0
		}
		snapshot.DaysSinceConnection = &days
		snapshot.IsWarmingUp = days < warmupPeriodDays
	}

	rates := s.computeRates(snapshot, totalMessages)
	snapshot.HealthScore = s.computeHealthScore(snapshot, rates)
	snapshot.QualityRating = QualityRatingForScore(snapshot.HealthScore)

	snapshot.Alerts = s.generateAlerts(snapshot, rates, now)
	snapshot.HasAlerts = len(snapshot.Alerts) > 0

	snapshot.MetricsCalculatedAt = now
	snapshot.UpdatedAt = now

	if err := s.snapshots.UpdateSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot: %w", err)
	}

	s.logger.Debug("Health metrics recalculated",
		zap.String("instance_id", instanceID),
		zap.Int("health_score", snapshot.HealthScore),
		zap.String("quality_rating", string(snapshot.QualityRating)),
		zap.Int("alerts", len(snapshot.Alerts)),
	)

	return snapshot, nil
}

func (s *Service) loadOrCreateSnapshot(instance *db.WhatsAppInstance) (*db.HealthMetricsSnapshot, error) {
	snapshot, err := s.snapshots.GetSnapshotByInstance(instance.ID)
	if err == nil {
		return snapshot, nil
	}
	if err != db.ErrSnapshotNotFound {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	now := time.Now()
	snapshot = &db.HealthMetricsSnapshot{
		ID:                  uuid.New().String(),
		InstanceID:          instance.ID,
		TenantID:            instance.TenantID,
		HealthScore:         100,
		QualityRating:       db.QualityHigh,
		CurrentTier:         db.TierUnverified,
		DailyLimit:          tierDailyLimits[db.TierUnverified],
		Alerts:              db.HealthAlertList{},
		MetricsCalculatedAt: now,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := s.snapshots.CreateSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("failed to create snapshot: %w", err)
	}

	return snapshot, nil
}

// computeRates deriva as taxas a partir dos contadores; divisões por zero
// caem no caso neutro "sem mensagens ainda".
func (s *Service) computeRates(snapshot *db.HealthMetricsSnapshot, totalMessages int) qualityRates {
	rates := qualityRates{
		deliveryRate: 100,
	}

	if totalMessages > 0 {
		rates.deliveryRate = float64(snapshot.MessagesDelivered) / float64(totalMessages) * 100
		rates.failureRate = float64(snapshot.MessagesFailed) / float64(totalMessages) * 100
	}

	if snapshot.MessagesDelivered > 0 {
		rates.responseRate = float64(snapshot.UserResponsesReceived) / float64(snapshot.MessagesDelivered) * 100
	}

	if snapshot.DailyLimit > 0 {
		rates.usagePercent = float64(snapshot.MessagesSentLast24h) / float64(snapshot.DailyLimit) * 100
	}

	return rates
}

// computeHealthScore parte de 100 e aplica apenas penalidades, com o
// resultado final limitado a [0, 100].
func (s *Service) computeHealthScore(snapshot *db.HealthMetricsSnapshot, rates qualityRates) int {
	score := 100.0

	// Taxa de entrega
	if rates.deliveryRate < 95 {
		score -= (95 - rates.deliveryRate) * 0.5
	}
	if rates.deliveryRate < 85 {
		score -= 10
	}
	if rates.deliveryRate < 70 {
		score -= 15
	}

	// Taxa de falha
	if rates.failureRate > 5 {
		score -= (rates.failureRate - 5) * 2
	}
	if rates.failureRate > 10 {
		score -= 15
	}
	if rates.failureRate > 20 {
		score -= 25
	}

	// Taxa de resposta
	if rates.responseRate < 30 {
		score -= (30 - rates.responseRate) * 0.8
	}
	if rates.responseRate < 20 {
		score -= 15
	}
	if rates.responseRate < 10 {
		score -= 20
	}

	// Bloqueios reportados: penalidades fixas cumulativas por faixa
	if snapshot.UserBlocksReported > 0 && snapshot.MessagesSentLast7Days > 0 {
		blockRate := float64(snapshot.UserBlocksReported) / float64(snapshot.MessagesSentLast7Days) * 100
		if blockRate > 0.5 {
			score -= 20
		}
		if blockRate > 1 {
			score -= 30
		}
		if blockRate > 2 {
			score -= 40
		}
	}

	// Proximidade do limite diário
	if float64(snapshot.MessagesSentLast24h) >= 0.8*float64(snapshot.DailyLimit) {
		score -= 5
	}

	// Envio agressivo durante o warm-up
	if snapshot.IsWarmingUp && snapshot.MessagesSentLast24h > warmupMaxDailySends {
		score -= 10
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return int(math.Round(score))
}

// QualityRatingForScore converte o score numérico no bucket de qualidade.
func QualityRatingForScore(score int) db.QualityRating {
	switch {
	case score >= 80:
		return db.QualityHigh
	case score >= 60:
		return db.QualityMedium
	case score >= 40:
		return db.QualityLow
	default:
		return db.QualityFlagged
	}
}
