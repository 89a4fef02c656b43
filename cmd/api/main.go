package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/api"
	"github.com/cartback/cartback/internal/api/handlers"
	"github.com/cartback/cartback/internal/billing"
	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
	"github.com/cartback/cartback/internal/health"
	"github.com/cartback/cartback/internal/metrics"
	"github.com/cartback/cartback/internal/recovery"
	"github.com/cartback/cartback/internal/storage/redis"
	"github.com/cartback/cartback/internal/whatsapp"
	"github.com/cartback/cartback/pkg/nuvemshop"
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

	if err := db.RunMigrations(database, cfg.Database.MigrationsPath); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	repo := db.NewRepository(database)

	cache := redis.NewClient(cfg.Redis.URL)
	defer cache.Close()

	metricsCollector := metrics.NewCollector(cfg.Mimir)

	evolutionSender := whatsapp.NewEvolutionSender(cfg.Evolution)
	senders := map[db.InstanceChannel]whatsapp.Sender{
		db.ChannelEvolution: evolutionSender,
		db.ChannelMetaCloud: whatsapp.NewMetaCloudSender(cfg.Meta),
	}

	healthService := health.NewService(repo, repo, repo, logger)
	recoveryService := recovery.NewService(repo, senders, metricsCollector, logger, cfg.Recovery)

	handler := handlers.NewHandler(
		repo,
		healthService,
		recoveryService,
		metricsCollector,
		cache,
		evolutionSender,
		nuvemshop.NewClient(cfg.Nuvemshop),
		billing.NewClient(cfg.Asaas),
		cfg,
		logger,
	)

	server := api.NewServer(cfg, handler, repo, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go metricsCollector.StartRemoteWrite(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: server.Router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("API server started", zap.String("port", cfg.Server.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
