package billing

import (
	"encoding/json"
	"fmt"
	"time"
)

// WebhookEvent é o envelope enviado pelo Asaas nos callbacks de cobrança.
type WebhookEvent struct {
	Event   string          `json:"event"`
	Payment *PaymentPayload `json:"payment"`
}

type PaymentPayload struct {
	ID           string  `json:"id"`
	Customer     string  `json:"customer"`
	Subscription string  `json:"subscription"`
	Value        float64 `json:"value"`
	Status       string  `json:"status"`
	PaymentDate  string  `json:"paymentDate"`
	// Referência externa preenchida com o tenant_id na criação da cobrança
	ExternalRef string `json:"externalReference"`
	BillingType string `json:"billingType"`
	DueDate     string `json:"dueDate"`
}

// ParseWebhook decodifica e valida o callback do Asaas.
func ParseWebhook(body []byte) (*WebhookEvent, error) {
	var event WebhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to decode webhook: %w", err)
	}

	if event.Event == "" {
		return nil, fmt.Errorf("missing event type")
	}
	if event.Payment == nil || event.Payment.ID == "" {
		return nil, fmt.Errorf("missing payment data")
	}

	return &event, nil
}

// AmountCents converte o valor decimal do Asaas para centavos.
func (p *PaymentPayload) AmountCents() int64 {
	return int64(p.Value*100 + 0.5)
}

// PaidAt retorna a data de pagamento, quando presente.
func (p *PaymentPayload) PaidAt() *time.Time {
	if p.PaymentDate == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", p.PaymentDate)
	if err != nil {
		return nil
	}
	return &t
}

// PaymentStatus mapeia o evento do Asaas para o status interno do pagamento.
func PaymentStatus(event string) string {
	switch event {
	case "PAYMENT_CONFIRMED", "PAYMENT_RECEIVED":
		return "paid"
	case "PAYMENT_OVERDUE":
		return "overdue"
	case "PAYMENT_REFUNDED":
		return "refunded"
	case "PAYMENT_DELETED":
		return "cancelled"
	default:
		return "pending"
	}
}

// SubscriptionStatus mapeia o evento para o status da assinatura, ou vazio
// quando o evento não altera a assinatura.
func SubscriptionStatus(event string) string {
	switch event {
	case "PAYMENT_CONFIRMED", "PAYMENT_RECEIVED":
		return "active"
	case "PAYMENT_OVERDUE":
		return "past_due"
	case "PAYMENT_REFUNDED", "PAYMENT_DELETED":
		return "cancelled"
	default:
		return ""
	}
}
