package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/printmesh/api/internal/services"
)

// PubSubOrderPublisher publishes order domain events to a Pub/Sub topic for
// downstream consumers (notification fan-out, analytics, partner webhooks).
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order event publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

type orderEventMessage struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	OrderNumber    string    `json:"orderNumber,omitempty"`
	SubOrderID     string    `json:"subOrderId,omitempty"`
	PreviousStatus string    `json:"previousStatus,omitempty"`
	CurrentStatus  string    `json:"currentStatus,omitempty"`
	ActorID        string    `json:"actorId,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// PublishOrderEvent enqueues the event on the configured topic. Publish
// results are awaited so callers can log failures, delivery is still
// best-effort from the mutation's point of view.
func (p *PubSubOrderPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(orderEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		OrderNumber:    event.OrderNumber,
		SubOrderID:     event.SubOrderID,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "currentStatus", event.CurrentStatus)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
