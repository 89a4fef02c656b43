package db

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

type InstanceChannel string

const (
	ChannelEvolution InstanceChannel = "evolution"
	ChannelMetaCloud InstanceChannel = "meta_cloud"
)

type InstanceStatus string

const (
	InstanceCreated      InstanceStatus = "created"
	InstanceConnecting   InstanceStatus = "connecting"
	InstanceConnected    InstanceStatus = "connected"
	InstanceDisconnected InstanceStatus = "disconnected"
)

type MessageStatus string

const (
	MessagePending   MessageStatus = "pending"
	MessageSent      MessageStatus = "sent"
	MessageDelivered MessageStatus = "delivered"
	MessageRead      MessageStatus = "read"
	MessageFailed    MessageStatus = "failed"
)

type Tenant struct {
	ID            string    `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	APIKey        string    `json:"-" db:"api_key"`
	MimirTenantID string    `json:"mimir_tenant_id" db:"mimir_tenant_id"`
	MaxInstances  int       `json:"max_instances" db:"max_instances"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

type WhatsAppInstance struct {
	ID          string          `json:"id" db:"id"`
	TenantID    string          `json:"-" db:"tenant_id"`
	Name        string          `json:"name" db:"name"`
	Channel     InstanceChannel `json:"channel" db:"channel"`
	PhoneNumber string          `json:"phone_number" db:"phone_number"`
	Status      InstanceStatus  `json:"status" db:"status"`
	// Identificador da instância no provedor (Evolution instance name
	// ou phone_number_id da Cloud API)
	ExternalID  string     `json:"external_id" db:"external_id"`
	ConnectedAt *time.Time `json:"connected_at,omitempty" db:"connected_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

type MessageTemplate struct {
	ID        string      `json:"id" db:"id"`
	TenantID  string      `json:"-" db:"tenant_id"`
	Name      string      `json:"name" db:"name"`
	Language  string      `json:"language" db:"language"`
	Body      string      `json:"body" db:"body"`
	Variables StringSlice `json:"variables" db:"variables"`
	// Status de aprovação na Meta (empty para templates Evolution)
	MetaStatus string    `json:"meta_status,omitempty" db:"meta_status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

type MessageLog struct {
	ID         string        `json:"id" db:"id"`
	TenantID   string        `json:"-" db:"tenant_id"`
	InstanceID string        `json:"instance_id" db:"instance_id"`
	CartID     *string       `json:"cart_id,omitempty" db:"cart_id"`
	TemplateID *string       `json:"template_id,omitempty" db:"template_id"`
	ToPhone    string        `json:"to_phone" db:"to_phone"`
	Body       string        `json:"body" db:"body"`
	Status     MessageStatus `json:"status" db:"status"`
	// ID da mensagem no provedor, usado para correlacionar webhooks de status
	ProviderMessageID string     `json:"provider_message_id,omitempty" db:"provider_message_id"`
	Error             string     `json:"error,omitempty" db:"error"`
	SentAt            *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
}

type CartSource string

const (
	CartSourceNuvemshop CartSource = "nuvemshop"
	CartSourceCustom    CartSource = "custom"
)

type CartStatus string

const (
	CartOpen       CartStatus = "open"
	CartRecovering CartStatus = "recovering"
	CartRecovered  CartStatus = "recovered"
	CartExpired    CartStatus = "expired"
)

type AbandonedCart struct {
	ID            string     `json:"id" db:"id"`
	TenantID      string     `json:"-" db:"tenant_id"`
	Source        CartSource `json:"source" db:"source"`
	ExternalID    string     `json:"external_id" db:"external_id"`
	CustomerName  string     `json:"customer_name" db:"customer_name"`
	CustomerPhone string     `json:"customer_phone" db:"customer_phone"`
	TotalCents    int64      `json:"total_cents" db:"total_cents"`
	Currency      string     `json:"currency" db:"currency"`
	CheckoutURL   string     `json:"checkout_url" db:"checkout_url"`
	Items         JSONB      `json:"items,omitempty" db:"items"`
	Status        CartStatus `json:"status" db:"status"`
	AbandonedAt   time.Time  `json:"abandoned_at" db:"abandoned_at"`
	RecoveredAt   *time.Time `json:"recovered_at,omitempty" db:"recovered_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

type AttemptStatus string

const (
	AttemptScheduled AttemptStatus = "scheduled"
	AttemptQueued    AttemptStatus = "queued"
	AttemptSent      AttemptStatus = "sent"
	AttemptFailed    AttemptStatus = "failed"
	AttemptCancelled AttemptStatus = "cancelled"
)

type RecoveryAttempt struct {
	ID            string        `json:"id" db:"id"`
	CartID        string        `json:"cart_id" db:"cart_id"`
	TenantID      string        `json:"-" db:"tenant_id"`
	InstanceID    string        `json:"instance_id" db:"instance_id"`
	TemplateID    string        `json:"template_id" db:"template_id"`
	AttemptNumber int           `json:"attempt_number" db:"attempt_number"`
	Status        AttemptStatus `json:"status" db:"status"`
	ScheduledFor  time.Time     `json:"scheduled_for" db:"scheduled_for"`
	SentAt        *time.Time    `json:"sent_at,omitempty" db:"sent_at"`
	MessageLogID  *string       `json:"message_log_id,omitempty" db:"message_log_id"`
	Error         string        `json:"error,omitempty" db:"error"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}

// NuvemshopStore guarda as credenciais OAuth obtidas na instalação do app,
// usadas para buscar os detalhes dos checkouts abandonados.
type NuvemshopStore struct {
	TenantID    string    `json:"-" db:"tenant_id"`
	StoreID     int64     `json:"store_id" db:"store_id"`
	AccessToken string    `json:"-" db:"access_token"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

type Subscription struct {
	ID               string     `json:"id" db:"id"`
	TenantID         string     `json:"-" db:"tenant_id"`
	AsaasCustomerID  string     `json:"asaas_customer_id" db:"asaas_customer_id"`
	Plan             string     `json:"plan" db:"plan"`
	Status           string     `json:"status" db:"status"`
	CurrentPeriodEnd *time.Time `json:"current_period_end,omitempty" db:"current_period_end"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at" db:"updated_at"`
}

type Payment struct {
	ID             string     `json:"id" db:"id"`
	TenantID       string     `json:"-" db:"tenant_id"`
	SubscriptionID *string    `json:"subscription_id,omitempty" db:"subscription_id"`
	AsaasPaymentID string     `json:"asaas_payment_id" db:"asaas_payment_id"`
	AmountCents    int64      `json:"amount_cents" db:"amount_cents"`
	Status         string     `json:"status" db:"status"`
	PaidAt         *time.Time `json:"paid_at,omitempty" db:"paid_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

// Custom types for PostgreSQL arrays and JSONB
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (s *StringSlice) Scan(value interface{}) error {
	if value == nil {
		*s = []string{}
		return nil
	}
	return json.Unmarshal(value.([]byte), s)
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	return json.Unmarshal(value.([]byte), j)
}
