package events

import (
	"context"
	"encoding/json"
	"time"
)

const (
	EventOrderCreated      = "OrderCreated"
	EventOrderUpdated      = "OrderUpdated"
	EventOrderDeleted      = "OrderDeleted"
	EventLocationUpdated   = "LocationUpdated"
	EventDeliveryStarted   = "DeliveryStarted"
	EventDeliveryArrived   = "DeliveryArrived"
	EventDeliveryCancelled = "DeliveryCancelled"
	EventDeliveryCompleted = "DeliveryCompleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

// Publisher must not block the caller for long; delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, eventType, orderID string, payload any)
}

type nopPublisher struct{}

func NewNop() Publisher { return nopPublisher{} }

func (nopPublisher) Publish(context.Context, string, string, any) {}
