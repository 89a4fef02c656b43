package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/db"
	"github.com/cartback/cartback/internal/queue"
	"github.com/cartback/cartback/internal/recovery"
)

const popTimeout = 5 * time.Second

// WorkerPool consome tentativas enfileiradas no Redis e as executa pelo
// serviço de recuperação.
type WorkerPool struct {
	repo     *db.Repository
	queue    *queue.RedisQueue
	recovery *recovery.Service
	logger   *zap.Logger
	count    int
	wg       sync.WaitGroup
}

func NewWorkerPool(repo *db.Repository, q *queue.RedisQueue, recoveryService *recovery.Service, logger *zap.Logger, count int) *WorkerPool {
	return &WorkerPool{
		repo:     repo,
		queue:    q,
		recovery: recoveryService,
		logger:   logger,
		count:    count,
	}
}

func (p *WorkerPool) Start(ctx context.Context) {
	p.logger.Info("Starting worker pool", zap.Int("worker_count", p.count))

	for i := 0; i < p.count; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.run(ctx, p.logger.With(zap.Int("worker_id", id)))
		}(i)
	}

	p.wg.Wait()
	p.logger.Info("Worker pool stopped")
}

func (p *WorkerPool) run(ctx context.Context, logger *zap.Logger) {
	logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("Worker stopped")
			return
		default:
		}

		job, err := p.queue.Pop(ctx, popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrTimeout) || errors.Is(err, context.Canceled) {
				continue
			}
			logger.Error("Failed to pop job", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}

		p.processJob(job, logger)
	}
}

func (p *WorkerPool) processJob(job *queue.Job, logger *zap.Logger) {
	start := time.Now()

	attempt, err := p.repo.GetAttempt(job.AttemptID)
	if err != nil {
		logger.Error("Failed to load attempt",
			zap.Error(err),
			zap.String("attempt_id", job.AttemptID),
		)
		return
	}

	// Job antigo na fila; a tentativa já foi resolvida por outro caminho
	if attempt.Status != db.AttemptScheduled && attempt.Status != db.AttemptQueued {
		logger.Debug("Skipping already resolved attempt",
			zap.String("attempt_id", attempt.ID),
			zap.String("status", string(attempt.Status)),
		)
		return
	}

	if err := p.recovery.ProcessAttempt(attempt); err != nil {
		logger.Error("Failed to process attempt",
			zap.Error(err),
			zap.String("attempt_id", attempt.ID),
			zap.String("cart_id", attempt.CartID),
		)
		return
	}

	logger.Debug("Attempt processed",
		zap.String("attempt_id", attempt.ID),
		zap.Duration("duration", time.Since(start)),
	)
}
