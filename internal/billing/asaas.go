package billing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cartback/cartback/internal/config"
)

// Client fala com a API do Asaas para criar clientes e assinaturas.
type Client struct {
	config config.AsaasConfig
	client *http.Client
}

func NewClient(cfg config.AsaasConfig) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type asaasCustomer struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type asaasSubscription struct {
	ID       string  `json:"id"`
	Customer string  `json:"customer"`
	Value    float64 `json:"value"`
	Cycle    string  `json:"cycle"`
	Status   string  `json:"status"`
}

func (c *Client) CreateCustomer(name, email string) (string, error) {
	payload := map[string]string{
		"name":  name,
		"email": email,
	}

	var created asaasCustomer
	if err := c.post("/customers", payload, &created); err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}

	return created.ID, nil
}

func (c *Client) CreateSubscription(customerID string, valueCents int64, description string) (string, error) {
	payload := map[string]interface{}{
		"customer":    customerID,
		"billingType": "CREDIT_CARD",
		"value":       float64(valueCents) / 100,
		"cycle":       "MONTHLY",
		"description": description,
		"nextDueDate": time.Now().AddDate(0, 1, 0).Format("2006-01-02"),
	}

	var created asaasSubscription
	if err := c.post("/subscriptions", payload, &created); err != nil {
		return "", fmt.Errorf("failed to create subscription: %w", err)
	}

	return created.ID, nil
}

func (c *Client) post(path string, payload interface{}, dest interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.config.URL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("access_token", c.config.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(dest)
}
