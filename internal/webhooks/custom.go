package webhooks

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/cartback/cartback/internal/db"
)

// Payload de integração custom: união discriminada pelo campo "type".
type customPayload struct {
	Type string          `json:"type"`
	Cart *customCartBody `json:"cart"`
}

type customCartBody struct {
	ID            string                 `json:"id"`
	CustomerName  string                 `json:"customer_name"`
	CustomerPhone string                 `json:"customer_phone"`
	TotalCents    int64                  `json:"total_cents"`
	Currency      string                 `json:"currency"`
	CheckoutURL   string                 `json:"checkout_url"`
	Items         map[string]interface{} `json:"items"`
	OccurredAt    *time.Time             `json:"occurred_at"`
}

// ParseCustomEvent valida e normaliza um webhook da integração custom.
// Campos obrigatórios ausentes produzem *ParseError em vez de serem
// acessados às cegas rio abaixo.
func ParseCustomEvent(data []byte) (*CartEvent, error) {
	var payload customPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ParseError{Source: "custom", Field: "body", Reason: "is not valid JSON"}
	}

	var kind EventKind
	switch payload.Type {
	case "cart.abandoned":
		kind = EventCartAbandoned
	case "cart.recovered":
		kind = EventCartRecovered
	default:
		return nil, &ParseError{Source: "custom", Field: "type", Reason: "is not a known event type"}
	}

	if payload.Cart == nil {
		return nil, &ParseError{Source: "custom", Field: "cart", Reason: "is required"}
	}
	if payload.Cart.ID == "" {
		return nil, &ParseError{Source: "custom", Field: "cart.id", Reason: "is required"}
	}

	event := &CartEvent{
		Source:      db.CartSourceCustom,
		Kind:        kind,
		ExternalID:  payload.Cart.ID,
		OccurredAt:  time.Now(),
		Currency:    payload.Cart.Currency,
		CheckoutURL: payload.Cart.CheckoutURL,
	}

	if payload.Cart.OccurredAt != nil {
		event.OccurredAt = *payload.Cart.OccurredAt
	}

	// Carrinho recuperado só precisa do identificador
	if kind == EventCartRecovered {
		return event, nil
	}

	phone := normalizePhone(payload.Cart.CustomerPhone)
	if phone == "" {
		return nil, &ParseError{Source: "custom", Field: "cart.customer_phone", Reason: "is required"}
	}
	if payload.Cart.TotalCents < 0 {
		return nil, &ParseError{Source: "custom", Field: "cart.total_cents", Reason: "must not be negative"}
	}

	event.CustomerName = payload.Cart.CustomerName
	event.CustomerPhone = phone
	event.TotalCents = payload.Cart.TotalCents
	if event.Currency == "" {
		event.Currency = "BRL"
	}
	if payload.Cart.Items != nil {
		event.Items = db.JSONB(payload.Cart.Items)
	}

	return event, nil
}

// normalizePhone remove máscara e exige só dígitos (formato E.164 sem o +).
func normalizePhone(phone string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	if len(cleaned) < 10 {
		return ""
	}
	return cleaned
}
