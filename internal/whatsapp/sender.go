package whatsapp

import (
	"github.com/cartback/cartback/internal/db"
)

// OutboundMessage é uma mensagem de recuperação pronta para envio.
type OutboundMessage struct {
	To       string
	Body     string
	Template *db.MessageTemplate
	// Valores já resolvidos das variáveis do template, na ordem declarada
	Variables []string
}

type SendResult struct {
	ProviderMessageID string
	Status            db.MessageStatus
	Error             string
}

// Sender envia mensagens por um canal específico (Evolution ou Cloud API).
type Sender interface {
	Send(instance *db.WhatsAppInstance, message *OutboundMessage) *SendResult
}
