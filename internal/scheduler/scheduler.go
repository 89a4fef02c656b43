package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
	"github.com/cartback/cartback/internal/health"
	"github.com/cartback/cartback/internal/metrics"
	"github.com/cartback/cartback/internal/queue"
	"github.com/cartback/cartback/internal/storage/redis"
)

const dueAttemptsBatchSize = 500

// Scheduler enfileira tentativas vencidas no Redis e mantém os snapshots
// de saúde das instâncias conectadas atualizados.
type Scheduler struct {
	repo    *db.Repository
	queue   *queue.RedisQueue
	health  *health.Service
	cache   *redis.Client
	metrics *metrics.Collector
	logger  *zap.Logger
	config  *config.Config
}

func NewScheduler(repo *db.Repository, q *queue.RedisQueue, healthService *health.Service, cache *redis.Client, m *metrics.Collector, logger *zap.Logger, cfg *config.Config) *Scheduler {
	return &Scheduler{
		repo:    repo,
		queue:   q,
		health:  healthService,
		cache:   cache,
		metrics: m,
		logger:  logger,
		config:  cfg,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting scheduler",
		zap.Duration("poll_interval", s.config.Scheduler.PollInterval),
		zap.Duration("health_refresh", s.config.Scheduler.HealthRefresh),
	)

	pollTicker := time.NewTicker(s.config.Scheduler.PollInterval)
	defer pollTicker.Stop()

	healthTicker := time.NewTicker(s.config.Scheduler.HealthRefresh)
	defer healthTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Stopping scheduler")
			return
		case <-pollTicker.C:
			s.enqueueDueAttempts(ctx)
		case <-healthTicker.C:
			s.refreshInstanceHealth(ctx)
		}
	}
}

func (s *Scheduler) enqueueDueAttempts(ctx context.Context) {
	attempts, err := s.repo.GetDueAttempts(time.Now(), dueAttemptsBatchSize)
	if err != nil {
		s.logger.Error("Failed to get due attempts", zap.Error(err))
		return
	}

	for _, attempt := range attempts {
		job := &queue.Job{
			ID:            uuid.New().String(),
			AttemptID:     attempt.ID,
			CartID:        attempt.CartID,
			TenantID:      attempt.TenantID,
			AttemptNumber: attempt.AttemptNumber,
			ScheduledFor:  attempt.ScheduledFor,
			CreatedAt:     time.Now(),
		}

		if err := s.queue.Push(ctx, job); err != nil {
			s.logger.Error("Failed to enqueue attempt",
				zap.Error(err),
				zap.String("attempt_id", attempt.ID),
			)
			continue
		}

		// Marca como enfileirada para o próximo poll não repetir
		attempt.Status = db.AttemptQueued
		if err := s.repo.UpdateAttempt(attempt); err != nil {
			s.logger.Error("Failed to mark attempt as queued",
				zap.Error(err),
				zap.String("attempt_id", attempt.ID),
			)
		}

		s.logger.Debug("Enqueued recovery attempt",
			zap.String("attempt_id", attempt.ID),
			zap.String("cart_id", attempt.CartID),
		)
	}

	if length, err := s.queue.Length(ctx); err == nil {
		s.metrics.RecordWorkerMetrics("recovery_attempts", int(length), 0)
	}
}

func (s *Scheduler) refreshInstanceHealth(ctx context.Context) {
	instances, err := s.repo.GetConnectedInstances()
	if err != nil {
		s.logger.Error("Failed to get connected instances", zap.Error(err))
		return
	}

	for _, instance := range instances {
		snapshot, err := s.health.CalculateAndUpdateMetrics(instance.ID)
		if err != nil {
			s.logger.Error("Failed to refresh instance health",
				zap.Error(err),
				zap.String("instance_id", instance.ID),
			)
			continue
		}

		if err := s.health.UpdateTierIfNeeded(snapshot); err != nil {
			s.logger.Error("Failed to update instance tier",
				zap.Error(err),
				zap.String("instance_id", instance.ID),
			)
		}

		s.metrics.RecordHealthSnapshot(snapshot)

		if err := s.cache.CacheInstanceHealth(ctx, instance.ID, snapshot); err != nil {
			s.logger.Warn("Failed to cache instance health",
				zap.Error(err),
				zap.String("instance_id", instance.ID),
			)
		}
	}

	s.logger.Debug("Instance health refreshed", zap.Int("instances", len(instances)))
}
