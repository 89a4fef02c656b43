package handlers

import (
	"go.uber.org/zap"

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

type Handler struct {
	repo      *db.Repository
	health    *health.Service
	recovery  *recovery.Service
	metrics   *metrics.Collector
	cache     *redis.Client
	evolution *whatsapp.EvolutionSender
	nuvemshop *nuvemshop.Client
	asaas     *billing.Client
	config    *config.Config
	logger    *zap.Logger
}

func NewHandler(repo *db.Repository, healthService *health.Service, recoveryService *recovery.Service, m *metrics.Collector, cache *redis.Client, evolution *whatsapp.EvolutionSender, store *nuvemshop.Client, asaas *billing.Client, cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		repo:      repo,
		health:    healthService,
		recovery:  recoveryService,
		metrics:   m,
		cache:     cache,
		evolution: evolution,
		nuvemshop: store,
		asaas:     asaas,
		config:    cfg,
		logger:    logger,
	}
}
