package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/bizledger/api/internal/services"
)

func TestPubSubBillingEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "billing-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubBillingEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubBillingEventPublisher: %v", err)
	}

	occurredAt := time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC)
	msg := services.BillingEventMessage{
		EventType:   "billing.created",
		BillingID:   "INV-00042",
		Invoice:     "INV-00042",
		BillingType: "service",
		CustomerID:  "cust-1",
		Status:      "partial",
		OccurredAt:  occurredAt,
	}

	if _, err := publisher.PublishBillingEvent(ctx, msg); err != nil {
		t.Fatalf("PublishBillingEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.BillingEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.BillingID != msg.BillingID || payload.EventType != msg.EventType {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != "billing.created" {
		t.Fatalf("expected eventType attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["invoice"]; attr != "INV-00042" {
		t.Fatalf("expected invoice attribute, got %q", attr)
	}
}
