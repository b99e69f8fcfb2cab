package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkax "github.com/ariefcatur/pizza-club-orders/internal/kafka"
	"github.com/ariefcatur/pizza-club-orders/internal/metrics"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Dedup records which events were already handled.
type Dedup interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

var errNoPhone = errors.New("notification without phone number")

const (
	defaultAttempts = 3
	defaultBackoff  = time.Second
)

// Worker turns DeliveryNotification events into SMS messages.
type Worker struct {
	SMS   SMSSender
	Dedup Dedup
	Log   *zap.Logger

	// Attempts bounds the sends per message; Backoff is the delay before the second
	// one and doubles after that. Zero values mean 3 attempts and one second.
	Attempts int
	Backoff  time.Duration
}

// Handle is a kafka.Handler. Failed sends are retried in place: a later commit on the
// partition acknowledges this offset as well, so the message is never redelivered. An
// error is returned once the attempts are spent and the notification is lost.
func (w *Worker) Handle(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		w.Log.Warn("dropping undecodable message", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}
	if env.EventType != orders.EventDeliveryNotification {
		return nil
	}
	log := w.Log.With(zap.String("event_id", env.EventID), zap.String("request_id", env.TraceID))

	// Redis being down must not block deliveries; at worst a message is sent twice.
	seen, err := w.Dedup.Seen(ctx, env.EventID)
	if err != nil {
		log.Warn("dedup lookup failed", zap.Error(err))
	}
	if seen {
		metrics.Notification("duplicate")
		return nil
	}

	p, err := kafkax.UnwrapPayload[orders.DeliveryNotificationPayload](env.Payload)
	if err != nil {
		log.Warn("dropping notification with bad payload", zap.Error(err))
		return nil
	}
	if p.Phone == "" {
		metrics.Notification("skipped")
		log.Warn("dropping notification", zap.Error(errNoPhone))
		return nil
	}

	if err := w.send(ctx, log, p); err != nil {
		metrics.Notification("failed")
		log.Error("sms lost", zap.Error(err))
		return err
	}
	metrics.Notification("delivered")
	if err := w.Dedup.Mark(ctx, env.EventID); err != nil {
		log.Warn("dedup mark failed", zap.Error(err))
	}
	log.Info("sms delivered")
	return nil
}

func (w *Worker) send(ctx context.Context, log *zap.Logger, p orders.DeliveryNotificationPayload) error {
	attempts, delay := w.Attempts, w.Backoff
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if delay <= 0 {
		delay = defaultBackoff
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
		lastErr = w.SMS.SendSMS(ctx, p.Phone, p.Message)
		if lastErr == nil {
			return nil
		}
		log.Warn("sms send failed", zap.Int("attempt", attempt), zap.Error(lastErr))
	}
	return fmt.Errorf("send sms after %d attempts: %w", attempts, lastErr)
}
