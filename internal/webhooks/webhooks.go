package webhooks

import (
	"fmt"
	"time"

	"github.com/cartback/cartback/internal/db"
)

type EventKind string

const (
	EventCartAbandoned EventKind = "cart_abandoned"
	EventCartRecovered EventKind = "cart_recovered"
)

// ParseError identifica payloads malformados na borda, antes de qualquer
// acesso a campo; o handler converte em 422.
type ParseError struct {
	Source string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid %s payload: field %q %s", e.Source, e.Field, e.Reason)
}

// CartEvent é a forma normalizada dos webhooks de carrinho, independente
// da origem.
type CartEvent struct {
	Source        db.CartSource
	Kind          EventKind
	ExternalID    string
	CustomerName  string
	CustomerPhone string
	TotalCents    int64
	Currency      string
	CheckoutURL   string
	Items         db.JSONB
	OccurredAt    time.Time
}
