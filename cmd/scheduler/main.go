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
	"github.com/cartback/cartback/internal/health"
	"github.com/cartback/cartback/internal/metrics"
	"github.com/cartback/cartback/internal/queue"
	"github.com/cartback/cartback/internal/scheduler"
	"github.com/cartback/cartback/internal/storage/redis"
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
	healthService := health.NewService(repo, repo, repo, logger)

	sched := scheduler.NewScheduler(repo, jobQueue, healthService, cache, metricsCollector, logger, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go sched.Start(ctx)
	go metricsCollector.StartRemoteWrite(ctx)

	logger.Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down scheduler...")
	cancel()
	logger.Info("Scheduler stopped")
}
