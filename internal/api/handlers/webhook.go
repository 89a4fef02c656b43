package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/billing"
	"github.com/cartback/cartback/internal/db"
	"github.com/cartback/cartback/internal/webhooks"
)

// CartWebhook recebe eventos de carrinho da integração custom,
// autenticados pela API key do tenant.
func (h *Handler) CartWebhook(c *gin.Context) {
	apiKey := c.GetHeader("X-API-Key")
	if apiKey == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "X-API-Key header required"})
		return
	}

	tenant, err := h.repo.GetTenantByAPIKey(apiKey)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
		return
	}
	if !tenant.IsActive {
		c.JSON(http.StatusForbidden, gin.H{"error": "Account is disabled"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	event, err := webhooks.ParseCustomEvent(body)
	if err != nil {
		var parseErr *webhooks.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Invalid payload",
				"field": parseErr.Field,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	cart, err := h.recovery.HandleCartEvent(tenant.ID, event)
	if err != nil {
		if errors.Is(err, db.ErrCartNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Cart not found"})
			return
		}
		h.logger.Error("Failed to handle cart event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart_id": cart.ID, "status": cart.Status})
}

// NuvemshopWebhook resolve a loja pelo store_id do envelope e busca os
// detalhes do checkout pela API antes de normalizar o evento.
func (h *Handler) NuvemshopWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	envelope, err := webhooks.ParseNuvemshopEnvelope(body)
	if err != nil {
		var parseErr *webhooks.ParseError
		if errors.As(err, &parseErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Invalid payload",
				"field": parseErr.Field,
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	store, err := h.repo.GetNuvemshopStore(envelope.StoreID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Unknown store"})
		return
	}

	var event *webhooks.CartEvent
	switch envelope.Event {
	case webhooks.NuvemshopCheckoutAbandoned:
		checkout, err := h.nuvemshop.GetCheckout(envelope.StoreID, envelope.ID, store.AccessToken)
		if err != nil {
			h.logger.Error("Failed to fetch checkout", zap.Error(err), zap.Int64("checkout_id", envelope.ID))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to fetch checkout"})
			return
		}

		event, err = webhooks.NuvemshopAbandonedEvent(envelope, &webhooks.NuvemshopCartDetails{
			CustomerName:  checkout.Contact.Name,
			CustomerPhone: checkout.Contact.Phone,
			TotalCents:    checkout.TotalCents(),
			Currency:      checkout.Currency,
			CheckoutURL:   checkout.AbandonedURL,
			OccurredAt:    checkout.CreatedAt,
		})
		if err != nil {
			// Checkout sem telefone não tem como ser recuperado via WhatsApp
			h.logger.Info("Skipping checkout without phone", zap.Int64("checkout_id", envelope.ID))
			c.JSON(http.StatusOK, gin.H{"ignored": true})
			return
		}
	case webhooks.NuvemshopOrderPaid:
		event = webhooks.NuvemshopRecoveredEvent(envelope)
	}

	cart, err := h.recovery.HandleCartEvent(store.TenantID, event)
	if err != nil {
		if errors.Is(err, db.ErrCartNotFound) {
			// order/paid de um pedido que nunca passou por abandono
			c.JSON(http.StatusOK, gin.H{"ignored": true})
			return
		}
		h.logger.Error("Failed to handle cart event", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cart_id": cart.ID, "status": cart.Status})
}

// NuvemshopCallback conclui a instalação do app trocando o código OAuth
// pelas credenciais da loja.
func (h *Handler) NuvemshopCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "code query parameter required"})
		return
	}

	tenantID := c.GetString("tenant_id")

	creds, err := h.nuvemshop.ExchangeCode(code)
	if err != nil {
		h.logger.Error("Failed to exchange OAuth code", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to exchange code"})
		return
	}

	store := &db.NuvemshopStore{
		TenantID:    tenantID,
		StoreID:     creds.StoreID,
		AccessToken: creds.AccessToken,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}

	if err := h.repo.UpsertNuvemshopStore(store); err != nil {
		h.logger.Error("Failed to save store credentials", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save store"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"store_id": creds.StoreID})
}

// EvolutionStatusWebhook aplica callbacks de entrega da Evolution API ao
// log de mensagens. Eventos desconhecidos são ignorados para o provedor
// não ficar reenviando.
func (h *Handler) EvolutionStatusWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	update, err := webhooks.ParseEvolutionStatus(body)
	if err != nil {
		h.logger.Debug("Ignoring evolution webhook", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}

	if err := h.repo.UpdateMessageStatus(update.ProviderMessageID, update.Status, update.Error); err != nil {
		h.logger.Error("Failed to update message status", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"applied": true})
}

// MetaVerifyWebhook responde ao handshake de verificação da Meta.
func (h *Handler) MetaVerifyWebhook(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != "subscribe" || token != h.config.Meta.VerifyToken {
		c.JSON(http.StatusForbidden, gin.H{"error": "Verification failed"})
		return
	}

	c.String(http.StatusOK, challenge)
}

// MetaStatusWebhook aplica os statuses de um callback da Cloud API; um
// callback pode trazer vários.
func (h *Handler) MetaStatusWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	updates, err := webhooks.ParseMetaStatuses(body)
	if err != nil {
		h.logger.Debug("Ignoring meta webhook", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}

	applied := 0
	for _, update := range updates {
		if err := h.repo.UpdateMessageStatus(update.ProviderMessageID, update.Status, update.Error); err != nil {
			h.logger.Error("Failed to update message status",
				zap.Error(err),
				zap.String("provider_message_id", update.ProviderMessageID),
			)
			continue
		}
		applied++
	}

	c.JSON(http.StatusOK, gin.H{"applied": applied})
}

// AsaasWebhook processa callbacks de cobrança, atualizando pagamento e
// assinatura do tenant.
func (h *Handler) AsaasWebhook(c *gin.Context) {
	if h.config.Asaas.WebhookToken != "" &&
		c.GetHeader("asaas-access-token") != h.config.Asaas.WebhookToken {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid webhook token"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read body"})
		return
	}

	event, err := billing.ParseWebhook(body)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	tenantID := event.Payment.ExternalRef
	if tenantID == "" {
		h.logger.Warn("Asaas webhook without external reference",
			zap.String("payment_id", event.Payment.ID),
		)
		c.JSON(http.StatusOK, gin.H{"ignored": true})
		return
	}

	subscription, err := h.repo.GetSubscriptionByTenant(tenantID)
	if err != nil {
		h.logger.Error("Failed to get subscription", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	payment := &db.Payment{
		ID:             uuid.New().String(),
		TenantID:       tenantID,
		AsaasPaymentID: event.Payment.ID,
		AmountCents:    event.Payment.AmountCents(),
		Status:         billing.PaymentStatus(event.Event),
		PaidAt:         event.Payment.PaidAt(),
		CreatedAt:      time.Now(),
	}
	if subscription != nil {
		payment.SubscriptionID = &subscription.ID
	}

	if err := h.repo.CreatePayment(payment); err != nil {
		h.logger.Error("Failed to save payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if status := billing.SubscriptionStatus(event.Event); status != "" && subscription != nil {
		subscription.Status = status
		if status == "active" {
			periodEnd := time.Now().AddDate(0, 1, 0)
			subscription.CurrentPeriodEnd = &periodEnd
		}
		subscription.UpdatedAt = time.Now()

		if err := h.repo.UpsertSubscription(subscription); err != nil {
			h.logger.Error("Failed to update subscription", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	h.logger.Info("Billing event processed",
		zap.String("event", event.Event),
		zap.String("tenant_id", tenantID),
		zap.String("payment_id", event.Payment.ID),
	)

	c.JSON(http.StatusOK, gin.H{"applied": true})
}
