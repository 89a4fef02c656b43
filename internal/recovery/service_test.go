package recovery

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
	"github.com/cartback/cartback/internal/webhooks"
	"github.com/cartback/cartback/internal/whatsapp"
)

type fakeStore struct {
	carts     map[string]*db.AbandonedCart
	attempts  map[string]*db.RecoveryAttempt
	instances map[string][]*db.WhatsAppInstance
	templates map[string][]*db.MessageTemplate
	logs      []*db.MessageLog
	cancelled []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:     make(map[string]*db.AbandonedCart),
		attempts:  make(map[string]*db.RecoveryAttempt),
		instances: make(map[string][]*db.WhatsAppInstance),
		templates: make(map[string][]*db.MessageTemplate),
	}
}

func (f *fakeStore) CreateCart(c *db.AbandonedCart) error {
	f.carts[c.ID] = c
	return nil
}

func (f *fakeStore) UpdateCart(c *db.AbandonedCart) error {
	f.carts[c.ID] = c
	return nil
}

func (f *fakeStore) GetCart(id, tenantID string) (*db.AbandonedCart, error) {
	c, ok := f.carts[id]
	if !ok || c.TenantID != tenantID {
		return nil, db.ErrCartNotFound
	}
	return c, nil
}

func (f *fakeStore) GetCartByExternalID(tenantID string, source db.CartSource, externalID string) (*db.AbandonedCart, error) {
	for _, c := range f.carts {
		if c.TenantID == tenantID && c.Source == source && c.ExternalID == externalID {
			return c, nil
		}
	}
	return nil, db.ErrCartNotFound
}

func (f *fakeStore) CreateAttempt(a *db.RecoveryAttempt) error {
	f.attempts[a.ID] = a
	return nil
}

func (f *fakeStore) UpdateAttempt(a *db.RecoveryAttempt) error {
	f.attempts[a.ID] = a
	return nil
}

func (f *fakeStore) CancelPendingAttempts(cartID string) error {
	f.cancelled = append(f.cancelled, cartID)
	for _, a := range f.attempts {
		if a.CartID == cartID && a.Status == db.AttemptScheduled {
			a.Status = db.AttemptCancelled
		}
	}
	return nil
}

func (f *fakeStore) GetInstancesByTenant(tenantID string) ([]*db.WhatsAppInstance, error) {
	return f.instances[tenantID], nil
}

func (f *fakeStore) GetInstanceByID(id string) (*db.WhatsAppInstance, error) {
	for _, list := range f.instances {
		for _, i := range list {
			if i.ID == id {
				return i, nil
			}
		}
	}
	return nil, db.ErrInstanceNotFound
}

func (f *fakeStore) GetTemplatesByTenant(tenantID string) ([]*db.MessageTemplate, error) {
	return f.templates[tenantID], nil
}

func (f *fakeStore) GetTemplate(id, tenantID string) (*db.MessageTemplate, error) {
	for _, t := range f.templates[tenantID] {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, db.ErrTemplateNotFound
}

func (f *fakeStore) CreateMessageLog(m *db.MessageLog) error {
	f.logs = append(f.logs, m)
	return nil
}

func (f *fakeStore) attemptsForCart(cartID string) []*db.RecoveryAttempt {
	var out []*db.RecoveryAttempt
	for _, a := range f.attempts {
		if a.CartID == cartID {
			out = append(out, a)
		}
	}
	return out
}

type fakeRecorder struct {
	abandoned int
	recovered int
	attempts  map[db.AttemptStatus]int
	messages  int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{attempts: make(map[db.AttemptStatus]int)}
}

func (f *fakeRecorder) RecordCartAbandoned(string, db.CartSource) { f.abandoned++ }
func (f *fakeRecorder) RecordCartRecovered(string, db.CartSource) { f.recovered++ }
func (f *fakeRecorder) RecordRecoveryAttempt(_ string, status db.AttemptStatus) {
	f.attempts[status]++
}
func (f *fakeRecorder) RecordMessageSent(*db.WhatsAppInstance, db.MessageStatus, time.Duration) {
	f.messages++
}

type fakeSender struct {
	result *whatsapp.SendResult
	sent   []*whatsapp.OutboundMessage
}

func (f *fakeSender) Send(_ *db.WhatsAppInstance, message *whatsapp.OutboundMessage) *whatsapp.SendResult {
	f.sent = append(f.sent, message)
	return f.result
}

func testConfig() config.RecoveryConfig {
	return config.RecoveryConfig{
		MaxAttempts:   3,
		AttemptDelays: []time.Duration{time.Hour, 6 * time.Hour, 24 * time.Hour},
	}
}

func seedTenant(store *fakeStore, tenantID string) (*db.WhatsAppInstance, *db.MessageTemplate) {
	instance := &db.WhatsAppInstance{
		ID:         "inst-1",
		TenantID:   tenantID,
		Channel:    db.ChannelEvolution,
		Status:     db.InstanceConnected,
		ExternalID: "loja-principal",
	}
	template := &db.MessageTemplate{
		ID:        "tpl-1",
		TenantID:  tenantID,
		Name:      "primeiro-lembrete",
		Language:  "pt_BR",
		Body:      "Oi {{customer_name}}! Seu carrinho de {{total}} ainda está te esperando: {{checkout_url}}",
		Variables: db.StringSlice{"customer_name", "total", "checkout_url"},
	}
	store.instances[tenantID] = []*db.WhatsAppInstance{instance}
	store.templates[tenantID] = []*db.MessageTemplate{template}
	return instance, template
}

func abandonedEvent(externalID string) *webhooks.CartEvent {
	return &webhooks.CartEvent{
		Source:        db.CartSourceCustom,
		Kind:          webhooks.EventCartAbandoned,
		ExternalID:    externalID,
		CustomerName:  "Maria",
		CustomerPhone: "5511999990000",
		TotalCents:    15990,
		Currency:      "BRL",
		CheckoutURL:   "https://loja.example/checkout/abc",
		OccurredAt:    time.Now(),
	}
}

func TestHandleCartEvent_AbandonedCreatesCartAndSchedulesAttempt(t *testing.T) {
	store := newFakeStore()
	seedTenant(store, "tenant-1")
	recorder := newFakeRecorder()
	svc := NewService(store, nil, recorder, zap.NewNop(), testConfig())

	cart, err := svc.HandleCartEvent("tenant-1", abandonedEvent("cart-42"))
	require.NoError(t, err)
	require.NotNil(t, cart)

	assert.Equal(t, db.CartRecovering, cart.Status)
	assert.Equal(t, 1, recorder.abandoned)

	attempts := store.attemptsForCart(cart.ID)
	require.Len(t, attempts, 1)
	assert.Equal(t, 1, attempts[0].AttemptNumber)
	assert.Equal(t, db.AttemptScheduled, attempts[0].Status)
	assert.Equal(t, "inst-1", attempts[0].InstanceID)
	assert.Equal(t, "tpl-1", attempts[0].TemplateID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), attempts[0].ScheduledFor, time.Minute)
}

func TestHandleCartEvent_DuplicateAbandonedUpdatesWithoutRescheduling(t *testing.T) {
	store := newFakeStore()
	seedTenant(store, "tenant-1")
	recorder := newFakeRecorder()
	svc := NewService(store, nil, recorder, zap.NewNop(), testConfig())

	first, err := svc.HandleCartEvent("tenant-1", abandonedEvent("cart-42"))
	require.NoError(t, err)

	update := abandonedEvent("cart-42")
	update.TotalCents = 19990
	second, err := svc.HandleCartEvent("tenant-1", update)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, int64(19990), second.TotalCents)
	assert.Equal(t, 1, recorder.abandoned)
	assert.Len(t, store.attemptsForCart(first.ID), 1)
}

func TestHandleCartEvent_NoConnectedInstanceStillSavesCart(t *testing.T) {
	store := newFakeStore()
	recorder := newFakeRecorder()
	svc := NewService(store, nil, recorder, zap.NewNop(), testConfig())

	cart, err := svc.HandleCartEvent("tenant-1", abandonedEvent("cart-42"))
	require.NoError(t, err)
	require.NotNil(t, cart)

	assert.Equal(t, db.CartOpen, cart.Status)
	assert.Empty(t, store.attemptsForCart(cart.ID))
}

func TestHandleCartEvent_RecoveredCancelsPendingAttempts(t *testing.T) {
	store := newFakeStore()
	seedTenant(store, "tenant-1")
	recorder := newFakeRecorder()
	svc := NewService(store, nil, recorder, zap.NewNop(), testConfig())

	cart, err := svc.HandleCartEvent("tenant-1", abandonedEvent("cart-42"))
	require.NoError(t, err)

	recoveredEvent := &webhooks.CartEvent{
		Source:     db.CartSourceCustom,
		Kind:       webhooks.EventCartRecovered,
		ExternalID: "cart-42",
		OccurredAt: time.Now(),
	}
	recovered, err := svc.HandleCartEvent("tenant-1", recoveredEvent)
	require.NoError(t, err)

	assert.Equal(t, db.CartRecovered, recovered.Status)
	require.NotNil(t, recovered.RecoveredAt)
	assert.Contains(t, store.cancelled, cart.ID)
	assert.Equal(t, 1, recorder.recovered)

	attempts := store.attemptsForCart(cart.ID)
	require.Len(t, attempts, 1)
	assert.Equal(t, db.AttemptCancelled, attempts[0].Status)
}

func TestHandleCartEvent_RecoveredUnknownCart(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, nil, newFakeRecorder(), zap.NewNop(), testConfig())

	_, err := svc.HandleCartEvent("tenant-1", &webhooks.CartEvent{
		Source:     db.CartSourceCustom,
		Kind:       webhooks.EventCartRecovered,
		ExternalID: "nope",
	})
	assert.Error(t, err)
}

func processSetup(t *testing.T, sendResult *whatsapp.SendResult) (*Service, *fakeStore, *fakeRecorder, *fakeSender, *db.RecoveryAttempt) {
	t.Helper()

	store := newFakeStore()
	instance, template := seedTenant(store, "tenant-1")
	recorder := newFakeRecorder()
	sender := &fakeSender{result: sendResult}
	senders := map[db.InstanceChannel]whatsapp.Sender{db.ChannelEvolution: sender}
	svc := NewService(store, senders, recorder, zap.NewNop(), testConfig())

	cart := &db.AbandonedCart{
		ID:            "cart-1",
		TenantID:      "tenant-1",
		Source:        db.CartSourceCustom,
		ExternalID:    "cart-42",
		CustomerName:  "Maria",
		CustomerPhone: "5511999990000",
		TotalCents:    15990,
		Currency:      "BRL",
		CheckoutURL:   "https://loja.example/checkout/abc",
		Status:        db.CartRecovering,
		AbandonedAt:   time.Now().Add(-time.Hour),
	}
	store.carts[cart.ID] = cart

	attempt := &db.RecoveryAttempt{
		ID:            "att-1",
		CartID:        cart.ID,
		TenantID:      "tenant-1",
		InstanceID:    instance.ID,
		TemplateID:    template.ID,
		AttemptNumber: 1,
		Status:        db.AttemptScheduled,
		ScheduledFor:  time.Now().Add(-time.Minute),
	}
	store.attempts[attempt.ID] = attempt

	return svc, store, recorder, sender, attempt
}

func TestProcessAttempt_SendsRenderedMessage(t *testing.T) {
	svc, store, recorder, sender, attempt := processSetup(t, &whatsapp.SendResult{
		ProviderMessageID: "wamid-123",
		Status:            db.MessageSent,
	})

	require.NoError(t, svc.ProcessAttempt(attempt))

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "5511999990000", sender.sent[0].To)
	assert.Equal(t,
		"Oi Maria! Seu carrinho de R$ 159,90 ainda está te esperando: https://loja.example/checkout/abc",
		sender.sent[0].Body,
	)

	assert.Equal(t, db.AttemptSent, attempt.Status)
	require.NotNil(t, attempt.SentAt)
	require.NotNil(t, attempt.MessageLogID)

	require.Len(t, store.logs, 1)
	assert.Equal(t, "wamid-123", store.logs[0].ProviderMessageID)
	assert.Equal(t, db.MessageSent, store.logs[0].Status)
	require.NotNil(t, store.logs[0].CartID)
	assert.Equal(t, "cart-1", *store.logs[0].CartID)

	assert.Equal(t, 1, recorder.messages)
	assert.Equal(t, 1, recorder.attempts[db.AttemptSent])

	// A segunda tentativa entra na fila com o delay seguinte
	attempts := store.attemptsForCart("cart-1")
	require.Len(t, attempts, 2)
	var next *db.RecoveryAttempt
	for _, a := range attempts {
		if a.AttemptNumber == 2 {
			next = a
		}
	}
	require.NotNil(t, next)
	assert.WithinDuration(t, time.Now().Add(6*time.Hour), next.ScheduledFor, time.Minute)
}

func TestProcessAttempt_CartAlreadyRecovered(t *testing.T) {
	svc, store, recorder, sender, attempt := processSetup(t, &whatsapp.SendResult{Status: db.MessageSent})
	store.carts["cart-1"].Status = db.CartRecovered

	require.NoError(t, svc.ProcessAttempt(attempt))

	assert.Empty(t, sender.sent)
	assert.Equal(t, db.AttemptCancelled, attempt.Status)
	assert.Equal(t, 1, recorder.attempts[db.AttemptCancelled])
	assert.Len(t, store.attemptsForCart("cart-1"), 1)
}

func TestProcessAttempt_SendFailureStillSchedulesNext(t *testing.T) {
	svc, store, recorder, _, attempt := processSetup(t, &whatsapp.SendResult{
		Status: db.MessageFailed,
		Error:  "connection refused",
	})

	require.NoError(t, svc.ProcessAttempt(attempt))

	assert.Equal(t, db.AttemptFailed, attempt.Status)
	assert.Equal(t, "connection refused", attempt.Error)
	assert.Equal(t, 1, recorder.attempts[db.AttemptFailed])
	assert.Len(t, store.attemptsForCart("cart-1"), 2)
}

func TestProcessAttempt_LastAttemptDoesNotScheduleNext(t *testing.T) {
	svc, store, _, _, attempt := processSetup(t, &whatsapp.SendResult{Status: db.MessageSent})
	attempt.AttemptNumber = 3

	require.NoError(t, svc.ProcessAttempt(attempt))

	assert.Len(t, store.attemptsForCart("cart-1"), 1)
}

func TestProcessAttempt_DisconnectedInstanceFails(t *testing.T) {
	svc, store, recorder, sender, attempt := processSetup(t, &whatsapp.SendResult{Status: db.MessageSent})
	store.instances["tenant-1"][0].Status = db.InstanceDisconnected

	require.NoError(t, svc.ProcessAttempt(attempt))

	assert.Empty(t, sender.sent)
	assert.Equal(t, db.AttemptFailed, attempt.Status)
	assert.Contains(t, attempt.Error, "not connected")
	assert.Equal(t, 1, recorder.attempts[db.AttemptFailed])
}

func TestFormatTotal(t *testing.T) {
	tests := []struct {
		cents    int64
		currency string
		want     string
	}{
		{15990, "BRL", "R$ 159,90"},
		{100, "", "R$ 1,00"},
		{5, "BRL", "R$ 0,05"},
		{250000, "USD", "USD 2500.00"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d_%s", tt.cents, tt.currency), func(t *testing.T) {
			assert.Equal(t, tt.want, FormatTotal(tt.cents, tt.currency))
		})
	}
}
