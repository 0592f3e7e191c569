package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/bizledger/api/internal/services"
)

// PubSubBillingEventPublisher publishes billing lifecycle events to a Pub/Sub topic.
type PubSubBillingEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubBillingEventPublisher constructs a Pub/Sub backed billing event publisher.
func NewPubSubBillingEventPublisher(topic *pubsub.Topic) (*PubSubBillingEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub billing event publisher: topic is required")
	}
	return &PubSubBillingEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishBillingEvent enqueues a billing event message on the configured topic.
func (p *PubSubBillingEventPublisher) PublishBillingEvent(ctx context.Context, message services.BillingEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub billing event publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal billing event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", message.EventType)
	setAttr(attrs, "billingId", message.BillingID)
	setAttr(attrs, "invoice", message.Invoice)
	setAttr(attrs, "billingType", message.BillingType)
	setAttr(attrs, "customerId", message.CustomerID)
	setAttr(attrs, "status", message.Status)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish billing event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
