package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/api/handlers"
	"github.com/cartback/cartback/internal/api/middleware"
	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
)

type Server struct {
	Router  *gin.Engine
	config  *config.Config
	handler *handlers.Handler
	repo    *db.Repository
	logger  *zap.Logger
}

func NewServer(cfg *config.Config, handler *handlers.Handler, repo *db.Repository, logger *zap.Logger) *Server {
	gin.SetMode(cfg.Server.Mode)
	router := gin.New()

	router.Use(middleware.Logger(logger))
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	server := &Server{
		Router:  router,
		config:  cfg,
		handler: handler,
		repo:    repo,
		logger:  logger,
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	h := s.handler

	s.Router.GET("/health", h.Health)
	s.Router.GET("/ready", h.Ready)

	// Callbacks externos; cada um cuida da própria autenticação
	hooks := s.Router.Group("/webhooks")
	{
		hooks.POST("/carts", h.CartWebhook)
		hooks.POST("/nuvemshop", h.NuvemshopWebhook)
		hooks.POST("/evolution", h.EvolutionStatusWebhook)
		hooks.GET("/meta", h.MetaVerifyWebhook)
		hooks.POST("/meta", h.MetaStatusWebhook)
		hooks.POST("/asaas", h.AsaasWebhook)
	}

	auth := s.Router.Group("/api/v1/auth")
	{
		auth.POST("/signup", h.SignUp)
		auth.POST("/login", h.Login)
		auth.POST("/refresh", h.RefreshToken)
	}

	api := s.Router.Group("/api/v1")
	api.Use(middleware.AuthRequired(s.config.JWT.Secret))
	api.Use(middleware.TenantContext(s.repo))
	{
		api.POST("/instances", h.CreateInstance)
		api.GET("/instances", h.ListInstances)
		api.GET("/instances/:id", h.GetInstance)
		api.DELETE("/instances/:id", h.DeleteInstance)
		api.POST("/instances/:id/connect", h.ConnectInstance)
		api.GET("/instances/:id/health", h.GetInstanceHealth)
		api.POST("/instances/:id/health/refresh", h.RefreshInstanceHealth)
		api.GET("/instances/:id/messages", h.GetMessageHistory)

		api.POST("/templates", h.CreateTemplate)
		api.GET("/templates", h.ListTemplates)
		api.GET("/templates/:id", h.GetTemplate)
		api.PUT("/templates/:id", h.UpdateTemplate)
		api.DELETE("/templates/:id", h.DeleteTemplate)

		api.GET("/carts", h.ListCarts)
		api.GET("/carts/:id", h.GetCart)

		api.GET("/metrics/overview", h.GetOverview)

		api.POST("/billing/subscribe", h.Subscribe)
		api.GET("/billing/subscription", h.GetSubscription)
		api.GET("/billing/payments", h.ListPayments)

		api.GET("/integrations/nuvemshop/callback", h.NuvemshopCallback)
	}
}
