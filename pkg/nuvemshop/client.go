package nuvemshop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/cartback/cartback/internal/config"
)

const authorizeURL = "https://www.tiendanube.com/apps/authorize/token"

// Client consome a API da Nuvemshop. Os webhooks de checkout abandonado
// trazem só o ID do recurso, o resto vem daqui.
type Client struct {
	config config.NuvemshopConfig
	client *http.Client
}

func NewClient(cfg config.NuvemshopConfig) *Client {
	return &Client{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Credentials é o resultado da troca do código OAuth na instalação do app.
type Credentials struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
	StoreID     int64  `json:"user_id"`
}

func (c *Client) ExchangeCode(code string) (*Credentials, error) {
	payload := map[string]string{
		"client_id":     c.config.ClientID,
		"client_secret": c.config.ClientSecret,
		"grant_type":    "authorization_code",
		"code":          code,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, authorizeURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var creds Credentials
	if err := json.NewDecoder(resp.Body).Decode(&creds); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if creds.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}

	return &creds, nil
}

// Checkout é um checkout abandonado retornado pela API de recursos.
type Checkout struct {
	ID           int64             `json:"id"`
	Token        string            `json:"token"`
	AbandonedURL string            `json:"abandoned_checkout_url"`
	Total        string            `json:"total"`
	Currency     string            `json:"currency"`
	Contact      CheckoutContact   `json:"customer"`
	Products     []CheckoutProduct `json:"products"`
	CreatedAt    time.Time         `json:"created_at"`
}

type CheckoutContact struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CheckoutProduct struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

// TotalCents converte o total decimal em string da API para centavos.
func (c *Checkout) TotalCents() int64 {
	value, err := strconv.ParseFloat(c.Total, 64)
	if err != nil {
		return 0
	}
	return int64(value*100 + 0.5)
}

func (c *Client) GetCheckout(storeID int64, checkoutID int64, accessToken string) (*Checkout, error) {
	url := fmt.Sprintf("%s/%d/checkouts/%d", c.config.URL, storeID, checkoutID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authentication", "bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("checkout %d not found", checkoutID)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var checkout Checkout
	if err := json.NewDecoder(resp.Body).Decode(&checkout); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &checkout, nil
}
