package webhooks

import (
	"encoding/json"

	"github.com/cartback/cartback/internal/db"
)

// StatusUpdate é a forma normalizada dos callbacks de entrega dos dois
// provedores; alimenta os contadores de qualidade do health engine.
type StatusUpdate struct {
	ProviderMessageID string
	Status            db.MessageStatus
	Error             string
}

type evolutionStatusPayload struct {
	Event string `json:"event"`
	Data  struct {
		KeyID  string `json:"keyId"`
		Status string `json:"status"`
	} `json:"data"`
}

// ParseEvolutionStatus trata o evento messages.update da Evolution API.
func ParseEvolutionStatus(data []byte) (*StatusUpdate, error) {
	var payload evolutionStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ParseError{Source: "evolution", Field: "body", Reason: "is not valid JSON"}
	}

	if payload.Event != "messages.update" {
		return nil, &ParseError{Source: "evolution", Field: "event", Reason: "is not a known event type"}
	}
	if payload.Data.KeyID == "" {
		return nil, &ParseError{Source: "evolution", Field: "data.keyId", Reason: "is required"}
	}

	update := &StatusUpdate{ProviderMessageID: payload.Data.KeyID}

	switch payload.Data.Status {
	case "SERVER_ACK":
		update.Status = db.MessageSent
	case "DELIVERY_ACK":
		update.Status = db.MessageDelivered
	case "READ":
		update.Status = db.MessageRead
	case "ERROR":
		update.Status = db.MessageFailed
	default:
		return nil, &ParseError{Source: "evolution", Field: "data.status", Reason: "is not a known status"}
	}

	return update, nil
}

type metaStatusPayload struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Statuses []struct {
					ID     string `json:"id"`
					Status string `json:"status"`
					Errors []struct {
						Title string `json:"title"`
					} `json:"errors"`
				} `json:"statuses"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// ParseMetaStatuses extrai as atualizações de status de um callback da
// Cloud API; um callback pode carregar vários statuses.
func ParseMetaStatuses(data []byte) ([]StatusUpdate, error) {
	var payload metaStatusPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, &ParseError{Source: "meta", Field: "body", Reason: "is not valid JSON"}
	}

	updates := []StatusUpdate{}
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			for _, status := range change.Value.Statuses {
				if status.ID == "" {
					return nil, &ParseError{Source: "meta", Field: "statuses.id", Reason: "is required"}
				}

				update := StatusUpdate{ProviderMessageID: status.ID}
				switch status.Status {
				case "sent":
					update.Status = db.MessageSent
				case "delivered":
					update.Status = db.MessageDelivered
				case "read":
					update.Status = db.MessageRead
				case "failed":
					update.Status = db.MessageFailed
					if len(status.Errors) > 0 {
						update.Error = status.Errors[0].Title
					}
				default:
					continue
				}

				updates = append(updates, update)
			}
		}
	}

	return updates, nil
}
