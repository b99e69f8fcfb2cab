package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type capturePublisher struct{ msgs []kafkago.Message }

func (c *capturePublisher) Publish(key, value []byte, headers ...kafkago.Header) error {
	c.msgs = append(c.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
	return nil
}

func TestKafkaEventsOrderConfirmed(t *testing.T) {
	pub := &capturePublisher{}
	ev := &KafkaEvents{Producer: pub, Service: "pizza-orders"}
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")

	err := ev.OrderConfirmed(ctx, Order{
		ID:         12,
		UserID:     5,
		TotalPrice: decimal.RequireFromString("15"),
		Items:      []LineItem{{VariantID: 3, Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("OrderConfirmed: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	m := pub.msgs[0]
	if string(m.Key) != string(PartitionKey(12)) {
		t.Errorf("key = %q", m.Key)
	}

	var env Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		t.Fatal(err)
	}
	if env.EventType != EventOrderConfirmed || env.TraceID != "req-1" || env.CorrelationID != "12" {
		t.Errorf("envelope = %+v", env)
	}
	var p OrderConfirmedPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.TotalPrice != "15.00" || len(p.Items) != 1 || p.Items[0].Qty != 2 {
		t.Errorf("payload = %+v", p)
	}
}
