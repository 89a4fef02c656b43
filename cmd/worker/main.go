package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
	"github.com/cartback/cartback/internal/metrics"
	"github.com/cartback/cartback/internal/queue"
	"github.com/cartback/cartback/internal/recovery"
	"github.com/cartback/cartback/internal/scheduler"
	"github.com/cartback/cartback/internal/storage/redis"
	"github.com/cartback/cartback/internal/whatsapp"
)

func main() {
	godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	database, err := db.NewConnection(cfg.Database.URL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	repo := db.NewRepository(database)

	cache := redis.NewClient(cfg.Redis.URL)
	defer cache.Close()

	jobQueue := queue.NewRedisQueue(cache.Client)
	metricsCollector := metrics.NewCollector(cfg.Mimir)

	senders := map[db.InstanceChannel]whatsapp.Sender{
		db.ChannelEvolution: whatsapp.NewEvolutionSender(cfg.Evolution),
		db.ChannelMetaCloud: whatsapp.NewMetaCloudSender(cfg.Meta),
	}

	recoveryService := recovery.NewService(repo, senders, metricsCollector, logger, cfg.Recovery)
	pool := scheduler.NewWorkerPool(repo, jobQueue, recoveryService, logger, cfg.Scheduler.WorkerCount)

	ctx, cancel := context.WithCancel(context.Background())
	go metricsCollector.StartRemoteWrite(ctx)

	done := make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(done)
	}()

	logger.Info("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down worker...")
	cancel()
	<-done
	logger.Info("Worker exited")
}
