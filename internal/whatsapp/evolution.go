package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
)

// EvolutionSender envia mensagens de texto via Evolution API. Números não
// verificados compartilham a infraestrutura da Evolution, então os envios
// são limitados por um rate limiter global do processo.
type EvolutionSender struct {
	config  config.EvolutionConfig
	client  *http.Client
	limiter *rate.Limiter
}

func NewEvolutionSender(cfg config.EvolutionConfig) *EvolutionSender {
	return &EvolutionSender{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), cfg.Burst),
	}
}

type evolutionSendRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type evolutionSendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

func (e *EvolutionSender) Send(instance *db.WhatsAppInstance, message *OutboundMessage) *SendResult {
	result := &SendResult{}

	if err := e.limiter.Wait(context.Background()); err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("rate limiter aborted: %v", err)
		return result
	}

	payload := evolutionSendRequest{
		Number: message.To,
		Text:   message.Body,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("failed to marshal payload: %v", err)
		return result
	}

	url := fmt.Sprintf("%s/message/sendText/%s", e.config.URL, instance.ExternalID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		return result
	}

	var body evolutionSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("failed to decode response: %v", err)
		return result
	}

	result.ProviderMessageID = body.Key.ID
	result.Status = db.MessageSent
	return result
}

// CreateInstance provisiona uma instância na Evolution API e retorna o
// nome externo usado nas chamadas seguintes.
func (e *EvolutionSender) CreateInstance(instanceName string) error {
	payload := map[string]interface{}{
		"instanceName": instanceName,
		"qrcode":       true,
		"integration":  "WHATSAPP-BAILEYS",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, e.config.URL+"/instance/create", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

// ConnectionState consulta o estado da conexão da instância no provedor.
func (e *EvolutionSender) ConnectionState(instanceName string) (string, error) {
	url := fmt.Sprintf("%s/instance/connectionState/%s", e.config.URL, instanceName)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var body struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	return body.Instance.State, nil
}
