package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
)

// Publisher sends a payload to the orders topic and returns the message id.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Envelope is the JSON body published for every order event.
type Envelope struct {
	EventID     uuid.UUID `json:"event_id"`
	EventType   string    `json:"event_type"`
	OccurredAt  time.Time `json:"occurred_at"`
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Data        any       `json:"data"`
}

type orderCreatedData struct {
	OwnerID      *uuid.UUID        `json:"owner_id,omitempty"`
	ContactEmail string            `json:"contact_email"`
	Status       enums.OrderStatus `json:"status"`
	Currency     enums.Currency    `json:"currency"`
	Total        string            `json:"total"`
	LineCount    int               `json:"line_count"`
}

type statusChangedData struct {
	FromStatus enums.OrderStatus `json:"from_status"`
	ToStatus   enums.OrderStatus `json:"to_status"`
}

// PubSubNotifier publishes order events to Pub/Sub.
type PubSubNotifier struct {
	publisher Publisher
	now       func() time.Time
}

func NewPubSubNotifier(publisher Publisher) (*PubSubNotifier, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher required")
	}
	return &PubSubNotifier{publisher: publisher, now: time.Now}, nil
}

func (n *PubSubNotifier) NotifyOrderCreated(ctx context.Context, order models.Order) error {
	return n.publish(ctx, EventOrderCreated, order, orderCreatedData{
		OwnerID:      order.OwnerID,
		ContactEmail: order.ContactEmail,
		Status:       order.Status,
		Currency:     order.Currency,
		Total:        order.Total.StringFixed(2),
		LineCount:    len(order.LineItems),
	})
}

func (n *PubSubNotifier) NotifyStatusChanged(ctx context.Context, order models.Order, from, to enums.OrderStatus) error {
	return n.publish(ctx, EventOrderStatusChanged, order, statusChangedData{FromStatus: from, ToStatus: to})
}

func (n *PubSubNotifier) publish(ctx context.Context, eventType string, order models.Order, data any) error {
	env := Envelope{
		EventID:     uuid.New(),
		EventType:   eventType,
		OccurredAt:  n.now().UTC(),
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Data:        data,
	}
	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", eventType, err)
	}
	attrs := map[string]string{
		"event_type": eventType,
		"order_id":   order.ID.String(),
	}
	if _, err := n.publisher.Publish(ctx, payload, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	return nil
}
