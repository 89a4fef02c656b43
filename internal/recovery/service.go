package recovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
	"github.com/cartback/cartback/internal/webhooks"
	"github.com/cartback/cartback/internal/whatsapp"
)

// Store cobre as operações de persistência que o fluxo de recuperação usa.
type Store interface {
	CreateCart(c *db.AbandonedCart) error
	UpdateCart(c *db.AbandonedCart) error
	GetCart(id, tenantID string) (*db.AbandonedCart, error)
	GetCartByExternalID(tenantID string, source db.CartSource, externalID string) (*db.AbandonedCart, error)

	CreateAttempt(a *db.RecoveryAttempt) error
	UpdateAttempt(a *db.RecoveryAttempt) error
	CancelPendingAttempts(cartID string) error

	GetInstancesByTenant(tenantID string) ([]*db.WhatsAppInstance, error)
	GetInstanceByID(id string) (*db.WhatsAppInstance, error)
	GetTemplatesByTenant(tenantID string) ([]*db.MessageTemplate, error)
	GetTemplate(id, tenantID string) (*db.MessageTemplate, error)

	CreateMessageLog(m *db.MessageLog) error
}

// Recorder é o subconjunto do coletor de métricas usado aqui.
type Recorder interface {
	RecordCartAbandoned(tenantID string, source db.CartSource)
	RecordCartRecovered(tenantID string, source db.CartSource)
	RecordRecoveryAttempt(tenantID string, status db.AttemptStatus)
	RecordMessageSent(instance *db.WhatsAppInstance, status db.MessageStatus, duration time.Duration)
}

type Service struct {
	store   Store
	senders map[db.InstanceChannel]whatsapp.Sender
	metrics Recorder
	logger  *zap.Logger
	config  config.RecoveryConfig
}

func NewService(store Store, senders map[db.InstanceChannel]whatsapp.Sender, metrics Recorder, logger *zap.Logger, cfg config.RecoveryConfig) *Service {
	return &Service{
		store:   store,
		senders: senders,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}
}

// HandleCartEvent processa um evento normalizado de carrinho. Abandono cria
// (ou atualiza) o carrinho e agenda a primeira tentativa; recuperação marca
// o carrinho e cancela as tentativas pendentes.
func (s *Service) HandleCartEvent(tenantID string, event *webhooks.CartEvent) (*db.AbandonedCart, error) {
	switch event.Kind {
	case webhooks.EventCartAbandoned:
		return s.handleAbandoned(tenantID, event)
	case webhooks.EventCartRecovered:
		return s.handleRecovered(tenantID, event)
	default:
		return nil, fmt.Errorf("unknown cart event kind: %s", event.Kind)
	}
}

func (s *Service) handleAbandoned(tenantID string, event *webhooks.CartEvent) (*db.AbandonedCart, error) {
	existing, err := s.store.GetCartByExternalID(tenantID, event.Source, event.ExternalID)
	if err != nil && !errors.Is(err, db.ErrCartNotFound) {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	now := time.Now()

	if existing != nil {
		// Webhook repetido ou carrinho atualizado na loja; atualiza os
		// dados sem reagendar tentativas
		existing.CustomerName = event.CustomerName
		existing.CustomerPhone = event.CustomerPhone
		existing.TotalCents = event.TotalCents
		existing.CheckoutURL = event.CheckoutURL
		if event.Items != nil {
			existing.Items = event.Items
		}
		existing.UpdatedAt = now

		if err := s.store.UpdateCart(existing); err != nil {
			return nil, fmt.Errorf("failed to update cart: %w", err)
		}
		return existing, nil
	}

	cart := &db.AbandonedCart{
		ID:            uuid.New().String(),
		TenantID:      tenantID,
		Source:        event.Source,
		ExternalID:    event.ExternalID,
		CustomerName:  event.CustomerName,
		CustomerPhone: event.CustomerPhone,
		TotalCents:    event.TotalCents,
		Currency:      event.Currency,
		CheckoutURL:   event.CheckoutURL,
		Items:         event.Items,
		Status:        db.CartOpen,
		AbandonedAt:   event.OccurredAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.store.CreateCart(cart); err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	s.metrics.RecordCartAbandoned(tenantID, cart.Source)

	if err := s.scheduleAttempt(cart, 1); err != nil {
		// O carrinho já foi salvo; a falha de agendamento não derruba o
		// webhook
		s.logger.Warn("No recovery attempt scheduled",
			zap.String("cart_id", cart.ID),
			zap.String("tenant_id", tenantID),
			zap.Error(err),
		)
		return cart, nil
	}

	cart.Status = db.CartRecovering
	cart.UpdatedAt = time.Now()
	if err := s.store.UpdateCart(cart); err != nil {
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	s.logger.Info("Abandoned cart registered",
		zap.String("cart_id", cart.ID),
		zap.String("tenant_id", tenantID),
		zap.String("source", string(cart.Source)),
		zap.Int64("total_cents", cart.TotalCents),
	)

	return cart, nil
}

func (s *Service) handleRecovered(tenantID string, event *webhooks.CartEvent) (*db.AbandonedCart, error) {
	cart, err := s.store.GetCartByExternalID(tenantID, event.Source, event.ExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	if cart.Status == db.CartRecovered {
		return cart, nil
	}

	now := time.Now()
	cart.Status = db.CartRecovered
	cart.RecoveredAt = &now
	cart.UpdatedAt = now

	if err := s.store.UpdateCart(cart); err != nil {
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	if err := s.store.CancelPendingAttempts(cart.ID); err != nil {
		s.logger.Error("Failed to cancel pending attempts", zap.Error(err))
	}

	s.metrics.RecordCartRecovered(tenantID, cart.Source)

	s.logger.Info("Cart recovered",
		zap.String("cart_id", cart.ID),
		zap.String("tenant_id", tenantID),
	)

	return cart, nil
}

// scheduleAttempt escolhe a instância conectada e o template do tenant e
// agenda a tentativa de número attemptNumber.
func (s *Service) scheduleAttempt(cart *db.AbandonedCart, attemptNumber int) error {
	instance, err := s.pickInstance(cart.TenantID)
	if err != nil {
		return err
	}

	templates, err := s.store.GetTemplatesByTenant(cart.TenantID)
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if len(templates) == 0 {
		return fmt.Errorf("tenant has no message templates")
	}

	attempt := &db.RecoveryAttempt{
		ID:            uuid.New().String(),
		CartID:        cart.ID,
		TenantID:      cart.TenantID,
		InstanceID:    instance.ID,
		TemplateID:    templates[0].ID,
		AttemptNumber: attemptNumber,
		Status:        db.AttemptScheduled,
		ScheduledFor:  time.Now().Add(s.delayForAttempt(attemptNumber)),
		CreatedAt:     time.Now(),
	}

	if err := s.store.CreateAttempt(attempt); err != nil {
		return fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Recovery attempt scheduled",
		zap.String("cart_id", cart.ID),
		zap.Int("attempt_number", attemptNumber),
		zap.Time("scheduled_for", attempt.ScheduledFor),
	)

	return nil
}

func (s *Service) pickInstance(tenantID string) (*db.WhatsAppInstance, error) {
	instances, err := s.store.GetInstancesByTenant(tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	for _, instance := range instances {
		if instance.Status == db.InstanceConnected {
			return instance, nil
		}
	}

	return nil, fmt.Errorf("tenant has no connected instance")
}

func (s *Service) delayForAttempt(attemptNumber int) time.Duration {
	delays := s.config.AttemptDelays
	if len(delays) == 0 {
		return time.Hour
	}
	if attemptNumber-1 < len(delays) {
		return delays[attemptNumber-1]
	}
	return delays[len(delays)-1]
}

// ProcessAttempt executa uma tentativa vencida: renderiza o template, envia
// pela instância e agenda a próxima tentativa enquanto houver.
func (s *Service) ProcessAttempt(attempt *db.RecoveryAttempt) error {
	cart, err := s.store.GetCart(attempt.CartID, attempt.TenantID)
	if err != nil {
		return fmt.Errorf("failed to get cart: %w", err)
	}

	// Carrinho já resolvido entre o agendamento e a execução
	if cart.Status == db.CartRecovered || cart.Status == db.CartExpired {
		attempt.Status = db.AttemptCancelled
		if err := s.store.UpdateAttempt(attempt); err != nil {
			return fmt.Errorf("failed to cancel attempt: %w", err)
		}
		s.metrics.RecordRecoveryAttempt(attempt.TenantID, db.AttemptCancelled)
		return nil
	}

	instance, err := s.store.GetInstanceByID(attempt.InstanceID)
	if err != nil {
		return s.failAttempt(attempt, fmt.Sprintf("instance unavailable: %v", err))
	}
	if instance.Status != db.InstanceConnected {
		return s.failAttempt(attempt, "instance is not connected")
	}

	template, err := s.store.GetTemplate(attempt.TemplateID, attempt.TenantID)
	if err != nil {
		return s.failAttempt(attempt, fmt.Sprintf("template unavailable: %v", err))
	}

	body, ordered, err := whatsapp.RenderTemplate(template, templateValues(cart))
	if err != nil {
		return s.failAttempt(attempt, err.Error())
	}

	sender, ok := s.senders[instance.Channel]
	if !ok {
		return s.failAttempt(attempt, fmt.Sprintf("no sender for channel %s", instance.Channel))
	}

	start := time.Now()
	result := sender.Send(instance, &whatsapp.OutboundMessage{
		To:        cart.CustomerPhone,
		Body:      body,
		Template:  template,
		Variables: ordered,
	})
	duration := time.Since(start)

	now := time.Now()
	log := &db.MessageLog{
		ID:                uuid.New().String(),
		TenantID:          attempt.TenantID,
		InstanceID:        instance.ID,
		CartID:            &cart.ID,
		TemplateID:        &template.ID,
		ToPhone:           cart.CustomerPhone,
		Body:              body,
		Status:            result.Status,
		ProviderMessageID: result.ProviderMessageID,
		Error:             result.Error,
		CreatedAt:         now,
	}
	if result.Status == db.MessageSent {
		log.SentAt = &now
	}

	if err := s.store.CreateMessageLog(log); err != nil {
		s.logger.Error("Failed to create message log", zap.Error(err))
	}

	s.metrics.RecordMessageSent(instance, result.Status, duration)

	if result.Status == db.MessageFailed {
		attempt.Status = db.AttemptFailed
		attempt.Error = result.Error
	} else {
		attempt.Status = db.AttemptSent
		attempt.SentAt = &now
	}
	attempt.MessageLogID = &log.ID

	if err := s.store.UpdateAttempt(attempt); err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	s.metrics.RecordRecoveryAttempt(attempt.TenantID, attempt.Status)

	s.logger.Info("Recovery attempt processed",
		zap.String("cart_id", cart.ID),
		zap.Int("attempt_number", attempt.AttemptNumber),
		zap.String("status", string(attempt.Status)),
	)

	if attempt.AttemptNumber < s.config.MaxAttempts {
		if err := s.scheduleAttempt(cart, attempt.AttemptNumber+1); err != nil {
			s.logger.Warn("Failed to schedule next attempt",
				zap.String("cart_id", cart.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

func (s *Service) failAttempt(attempt *db.RecoveryAttempt, reason string) error {
	attempt.Status = db.AttemptFailed
	attempt.Error = reason

	if err := s.store.UpdateAttempt(attempt); err != nil {
		return fmt.Errorf("failed to update attempt: %w", err)
	}

	s.metrics.RecordRecoveryAttempt(attempt.TenantID, db.AttemptFailed)

	s.logger.Warn("Recovery attempt failed",
		zap.String("cart_id", attempt.CartID),
		zap.Int("attempt_number", attempt.AttemptNumber),
		zap.String("reason", reason),
	)

	return nil
}

// templateValues expõe os campos do carrinho como variáveis de template.
func templateValues(cart *db.AbandonedCart) map[string]string {
	return map[string]string{
		"customer_name": cart.CustomerName,
		"total":         FormatTotal(cart.TotalCents, cart.Currency),
		"checkout_url":  cart.CheckoutURL,
	}
}

// FormatTotal formata o valor em centavos na moeda do carrinho.
func FormatTotal(cents int64, currency string) string {
	whole := cents / 100
	frac := cents % 100
	if frac < 0 {
		frac = -frac
	}

	if currency == "" || currency == "BRL" {
		return fmt.Sprintf("R$ %d,%02d", whole, frac)
	}
	return fmt.Sprintf("%s %d.%02d", currency, whole, frac)
}
