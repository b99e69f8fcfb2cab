package orders

import (
	"context"
	"encoding/json"
	"time"

	kafkax "github.com/ariefcatur/pizza-club-orders/internal/kafka"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	EventOrderConfirmed       = "OrderConfirmed"
	EventDeliveryNotification = "DeliveryNotification"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

func NewEnvelope(eventType, producer, correlationID string, payload any) Envelope {
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      producer,
		CorrelationID: correlationID,
		Payload:       kafkax.MustMarshal(payload),
	}
}

// Headers are the routing headers every envelope is published with.
func (e Envelope) Headers() []kafkago.Header {
	return []kafkago.Header{
		{Key: "x-event-type", Value: []byte(e.EventType)},
		{Key: "x-event-version", Value: []byte("1")},
	}
}

type OrderConfirmedPayload struct {
	OrderID    int64     `json:"order_id"`
	UserID     int64     `json:"user_id"`
	TotalPrice string    `json:"total_price"`
	Items      []ItemQty `json:"items"`
}

type ItemQty struct {
	VariantID int64 `json:"variant_id"`
	Qty       int   `json:"qty"`
}

type DeliveryNotificationPayload struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// Publisher is the part of kafka.Producer the event adapters use.
type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header) error
}

// KafkaEvents publishes OrderConfirmed events after a capture commits.
type KafkaEvents struct {
	Producer Publisher
	Service  string
}

func (k *KafkaEvents) OrderConfirmed(ctx context.Context, o Order) error {
	items := make([]ItemQty, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, ItemQty{VariantID: it.VariantID, Qty: it.Quantity})
	}
	ev := NewEnvelope(EventOrderConfirmed, k.Service, string(PartitionKey(o.ID)), OrderConfirmedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalPrice: o.TotalPrice.StringFixed(2),
		Items:      items,
	})
	ev.TraceID = middleware.GetReqID(ctx)
	return k.Producer.Publish(PartitionKey(o.ID), kafkax.MustMarshal(ev), ev.Headers()...)
}
