// Package events publishes order lifecycle notifications for external subscribers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

const TypeOrderPlaced = "order.placed"

type OrderPlaced struct {
	OrderID     uuid.UUID   `json:"order_id"`
	OrderNumber string      `json:"order_number"`
	UserID      uuid.UUID   `json:"user_id"`
	Total       money.Money `json:"total"`
	PlacedAt    time.Time   `json:"placed_at"`
}

// envelope is the wire shape shared by all published events.
type envelope struct {
	Type       string          `json:"type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

func encode(eventType string, at time.Time, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("events: failed to encode %s payload: %w", eventType, err)
	}
	return json.Marshal(envelope{Type: eventType, OccurredAt: at.UTC(), Payload: body})
}

// Publisher delivers OrderPlaced notifications. Delivery is best effort.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error
}

type NopPublisher struct{}

func (NopPublisher) PublishOrderPlaced(context.Context, OrderPlaced) error { return nil }
