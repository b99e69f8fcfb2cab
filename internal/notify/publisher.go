// Package notify delivers order notifications. The API publishes them to Kafka; the
// notifier process consumes the topic and sends each one as an SMS.
package notify

import (
	"context"

	kafkax "github.com/ariefcatur/pizza-club-orders/internal/kafka"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	"github.com/go-chi/chi/v5/middleware"
)

// Publisher implements orders.Notifier by queueing a DeliveryNotification event.
type Publisher struct {
	Producer orders.Publisher
	Service  string
}

func (p *Publisher) SendNotification(ctx context.Context, phone, message string) error {
	ev := orders.NewEnvelope(orders.EventDeliveryNotification, p.Service, "",
		orders.DeliveryNotificationPayload{Phone: phone, Message: message})
	ev.TraceID = middleware.GetReqID(ctx)
	return p.Producer.Publish([]byte(phone), kafkax.MustMarshal(ev), ev.Headers()...)
}
