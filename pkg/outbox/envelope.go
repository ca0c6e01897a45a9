package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// SettlementEvent is the payload published when a payment transitions into
// settlement. RawPayload carries the original gateway notification.
type SettlementEvent struct {
	OrderID    uuid.UUID       `json:"orderId"`
	PaymentID  uuid.UUID       `json:"paymentId"`
	Amount     int64           `json:"amount"`
	RawPayload json.RawMessage `json:"rawPayload"`
}
