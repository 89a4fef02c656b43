package webhooks

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/cartback/cartback/internal/db"
)

// Eventos da Nuvemshop chegam como envelope enxuto; os dados do checkout
// são buscados depois pela API REST da loja.
type NuvemshopEnvelope struct {
	StoreID int64  `json:"store_id"`
	Event   string `json:"event"`
	ID      int64  `json:"id"`
}

const (
	NuvemshopCheckoutAbandoned = "checkout/abandoned"
	NuvemshopOrderPaid         = "order/paid"
)

// ExternalID retorna o identificador do recurso como string, no formato
// usado em abandoned_carts.external_id.
func (e *NuvemshopEnvelope) ExternalID() string {
	return strconv.FormatInt(e.ID, 10)
}

// NuvemshopCartDetails são os dados do checkout buscados na API da loja
// depois que o envelope chega.
type NuvemshopCartDetails struct {
	CustomerName  string
	CustomerPhone string
	TotalCents    int64
	Currency      string
	CheckoutURL   string
	Items         map[string]interface{}
	OccurredAt    time.Time
}

// NuvemshopAbandonedEvent monta o evento normalizado de abandono a partir
// do envelope e dos detalhes do checkout.
func NuvemshopAbandonedEvent(envelope *NuvemshopEnvelope, details *NuvemshopCartDetails) (*CartEvent, error) {
	phone := normalizePhone(details.CustomerPhone)
	if phone == "" {
		return nil, &ParseError{Source: "nuvemshop", Field: "customer.phone", Reason: "is required"}
	}

	event := &CartEvent{
		Source:        db.CartSourceNuvemshop,
		Kind:          EventCartAbandoned,
		ExternalID:    envelope.ExternalID(),
		CustomerName:  details.CustomerName,
		CustomerPhone: phone,
		TotalCents:    details.TotalCents,
		Currency:      details.Currency,
		CheckoutURL:   details.CheckoutURL,
		OccurredAt:    details.OccurredAt,
	}

	if event.Currency == "" {
		event.Currency = "BRL"
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	if details.Items != nil {
		event.Items = db.JSONB(details.Items)
	}

	return event, nil
}

// NuvemshopRecoveredEvent monta o evento de recuperação; order/paid só
// precisa do identificador do checkout.
func NuvemshopRecoveredEvent(envelope *NuvemshopEnvelope) *CartEvent {
	return &CartEvent{
		Source:     db.CartSourceNuvemshop,
		Kind:       EventCartRecovered,
		ExternalID: envelope.ExternalID(),
		OccurredAt: time.Now(),
	}
}

func ParseNuvemshopEnvelope(data []byte) (*NuvemshopEnvelope, error) {
	var envelope NuvemshopEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &ParseError{Source: "nuvemshop", Field: "body", Reason: "is not valid JSON"}
	}

	if envelope.StoreID == 0 {
		return nil, &ParseError{Source: "nuvemshop", Field: "store_id", Reason: "is required"}
	}
	if envelope.ID == 0 {
		return nil, &ParseError{Source: "nuvemshop", Field: "id", Reason: "is required"}
	}

	switch envelope.Event {
	case NuvemshopCheckoutAbandoned, NuvemshopOrderPaid:
	default:
		return nil, &ParseError{Source: "nuvemshop", Field: "event", Reason: "is not a known event type"}
	}

	return &envelope, nil
}
