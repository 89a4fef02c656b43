package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhook(t *testing.T) {
	body := []byte(`{
		"event": "PAYMENT_CONFIRMED",
		"payment": {
			"id": "pay_123",
			"customer": "cus_456",
			"subscription": "sub_789",
			"value": 49.90,
			"paymentDate": "2026-08-29",
			"externalReference": "tenant-1"
		}
	}`)

	event, err := ParseWebhook(body)
	require.NoError(t, err)

	assert.Equal(t, "PAYMENT_CONFIRMED", event.Event)
	assert.Equal(t, "pay_123", event.Payment.ID)
	assert.Equal(t, "tenant-1", event.Payment.ExternalRef)
	assert.Equal(t, int64(4990), event.Payment.AmountCents())

	paidAt := event.Payment.PaidAt()
	require.NotNil(t, paidAt)
	assert.Equal(t, time.Date(2026, 8, 29, 0, 0, 0, 0, time.UTC), *paidAt)
}

func TestParseWebhook_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"missing event", `{"payment": {"id": "pay_1"}}`},
		{"missing payment", `{"event": "PAYMENT_CONFIRMED"}`},
		{"missing payment id", `{"event": "PAYMENT_CONFIRMED", "payment": {}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseWebhook([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestPaymentStatus(t *testing.T) {
	assert.Equal(t, "paid", PaymentStatus("PAYMENT_CONFIRMED"))
	assert.Equal(t, "paid", PaymentStatus("PAYMENT_RECEIVED"))
	assert.Equal(t, "overdue", PaymentStatus("PAYMENT_OVERDUE"))
	assert.Equal(t, "refunded", PaymentStatus("PAYMENT_REFUNDED"))
	assert.Equal(t, "cancelled", PaymentStatus("PAYMENT_DELETED"))
	assert.Equal(t, "pending", PaymentStatus("PAYMENT_CREATED"))
}

func TestSubscriptionStatus(t *testing.T) {
	assert.Equal(t, "active", SubscriptionStatus("PAYMENT_CONFIRMED"))
	assert.Equal(t, "past_due", SubscriptionStatus("PAYMENT_OVERDUE"))
	assert.Equal(t, "cancelled", SubscriptionStatus("PAYMENT_REFUNDED"))
	assert.Equal(t, "", SubscriptionStatus("PAYMENT_CREATED"))
}
