package whatsapp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cartback/cartback/internal/config"
	"github.com/cartback/cartback/internal/db"
)

// MetaCloudSender envia mensagens templated pela WhatsApp Cloud API.
// Diferente da Evolution, a Cloud API só aceita templates aprovados, então
// o corpo do template é convertido para o formato de componentes da Meta.
type MetaCloudSender struct {
	config config.MetaConfig
	client *http.Client
}

func NewMetaCloudSender(cfg config.MetaConfig) *MetaCloudSender {
	return &MetaCloudSender{
		config: cfg,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type metaTemplatePayload struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         metaTemplate `json:"template"`
}

type metaTemplate struct {
	Name       string          `json:"name"`
	Language   metaLanguage    `json:"language"`
	Components []metaComponent `json:"components,omitempty"`
}

type metaLanguage struct {
	Code string `json:"code"`
}

type metaComponent struct {
	Type       string          `json:"type"`
	Parameters []metaParameter `json:"parameters,omitempty"`
}

type metaParameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type metaSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// BuildTemplatePayload converte um template e seus valores resolvidos para
// o formato de componentes exigido pela Cloud API.
func BuildTemplatePayload(to string, template *db.MessageTemplate, variables []string) metaTemplatePayload {
	payload := metaTemplatePayload{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "template",
		Template: metaTemplate{
			Name:     template.Name,
			Language: metaLanguage{Code: template.Language},
		},
	}

	if len(variables) > 0 {
		params := make([]metaParameter, 0, len(variables))
		for _, v := range variables {
			params = append(params, metaParameter{Type: "text", Text: v})
		}
		payload.Template.Components = []metaComponent{
			{Type: "body", Parameters: params},
		}
	}

	return payload
}

func (m *MetaCloudSender) Send(instance *db.WhatsAppInstance, message *OutboundMessage) *SendResult {
	result := &SendResult{}

	if message.Template == nil {
		result.Status = db.MessageFailed
		result.Error = "cloud api requires an approved template"
		return result
	}

	payload := BuildTemplatePayload(message.To, message.Template, message.Variables)

	data, err := json.Marshal(payload)
	if err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("failed to marshal payload: %v", err)
		return result
	}

	// instance.ExternalID guarda o phone_number_id da Cloud API
	url := fmt.Sprintf("%s/%s/%s/messages", m.config.GraphURL, m.config.APIVersion, instance.ExternalID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("failed to create request: %v", err)
		return result
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.config.AccessToken)

	resp, err := m.client.Do(req)
	if err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("request failed: %v", err)
		return result
	}
	defer resp.Body.Close()

	var body metaSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("failed to decode response: %v", err)
		return result
	}

	if body.Error != nil {
		result.Status = db.MessageFailed
		result.Error = fmt.Sprintf("cloud api error %d: %s", body.Error.Code, body.Error.Message)
		return result
	}

	if len(body.Messages) == 0 {
		result.Status = db.MessageFailed
		result.Error = "cloud api returned no message id"
		return result
	}

	result.ProviderMessageID = body.Messages[0].ID
	result.Status = db.MessageSent
	return result
}
