package webhooks

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cartback/cartback/internal/db"
)

func TestParseCustomEvent_Abandoned(t *testing.T) {
	payload := []byte(`{
		"type": "cart.abandoned",
		"cart": {
			"id": "cart-42",
			"customer_name": "Maria",
			"customer_phone": "+55 (11) 99999-8888",
			"total_cents": 14990,
			"checkout_url": "https://loja.example/checkout/abc",
			"items": {"sku-1": 2}
		}
	}`)

	event, err := ParseCustomEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, db.CartSourceCustom, event.Source)
	assert.Equal(t, EventCartAbandoned, event.Kind)
	assert.Equal(t, "cart-42", event.ExternalID)
	assert.Equal(t, "5511999998888", event.CustomerPhone)
	assert.Equal(t, int64(14990), event.TotalCents)
	assert.Equal(t, "BRL", event.Currency)
}

func TestParseCustomEvent_Recovered(t *testing.T) {
	payload := []byte(`{"type": "cart.recovered", "cart": {"id": "cart-42"}}`)

	event, err := ParseCustomEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, EventCartRecovered, event.Kind)
}

func TestParseCustomEvent_Malformed(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		wantField string
	}{
		{"invalid json", `{not json`, "body"},
		{"unknown type", `{"type": "order.created", "cart": {"id": "x"}}`, "type"},
		{"missing cart", `{"type": "cart.abandoned"}`, "cart"},
		{"missing cart id", `{"type": "cart.abandoned", "cart": {"customer_phone": "5511999998888"}}`, "cart.id"},
		{"missing phone", `{"type": "cart.abandoned", "cart": {"id": "x"}}`, "cart.customer_phone"},
		{"short phone", `{"type": "cart.abandoned", "cart": {"id": "x", "customer_phone": "123"}}`, "cart.customer_phone"},
		{"negative total", `{"type": "cart.abandoned", "cart": {"id": "x", "customer_phone": "5511999998888", "total_cents": -1}}`, "cart.total_cents"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCustomEvent([]byte(tt.payload))
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, tt.wantField, parseErr.Field)
		})
	}
}

func TestParseNuvemshopEnvelope(t *testing.T) {
	envelope, err := ParseNuvemshopEnvelope([]byte(`{"store_id": 123, "event": "checkout/abandoned", "id": 9001}`))
	require.NoError(t, err)

	assert.Equal(t, int64(123), envelope.StoreID)
	assert.Equal(t, NuvemshopCheckoutAbandoned, envelope.Event)
	assert.Equal(t, "9001", envelope.ExternalID())
}

func TestParseNuvemshopEnvelope_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"invalid json", `[}`},
		{"missing store", `{"event": "order/paid", "id": 1}`},
		{"missing id", `{"store_id": 1, "event": "order/paid"}`},
		{"unknown event", `{"store_id": 1, "event": "product/created", "id": 2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseNuvemshopEnvelope([]byte(tt.payload))
			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
		})
	}
}

func TestParseEvolutionStatus(t *testing.T) {
	payload := []byte(`{"event": "messages.update", "data": {"keyId": "BAE5F5", "status": "READ"}}`)

	update, err := ParseEvolutionStatus(payload)
	require.NoError(t, err)

	assert.Equal(t, "BAE5F5", update.ProviderMessageID)
	assert.Equal(t, db.MessageRead, update.Status)
}

func TestParseEvolutionStatus_UnknownStatus(t *testing.T) {
	payload := []byte(`{"event": "messages.update", "data": {"keyId": "BAE5F5", "status": "PLAYED"}}`)

	_, err := ParseEvolutionStatus(payload)
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "data.status", parseErr.Field)
}

func TestParseMetaStatuses(t *testing.T) {
	payload := []byte(`{
		"entry": [{
			"changes": [{
				"value": {
					"statuses": [
						{"id": "wamid.1", "status": "delivered"},
						{"id": "wamid.2", "status": "failed", "errors": [{"title": "Message undeliverable"}]}
					]
				}
			}]
		}]
	}`)

	updates, err := ParseMetaStatuses(payload)
	require.NoError(t, err)
	require.Len(t, updates, 2)

	assert.Equal(t, db.MessageDelivered, updates[0].Status)
	assert.Equal(t, db.MessageFailed, updates[1].Status)
	assert.Equal(t, "Message undeliverable", updates[1].Error)
}
