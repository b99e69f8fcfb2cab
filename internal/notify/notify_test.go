package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkax "github.com/ariefcatur/pizza-club-orders/internal/kafka"
	"github.com/ariefcatur/pizza-club-orders/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap/zaptest"
)

type capture struct{ msgs []kafkago.Message }

func (c *capture) Publish(key, value []byte, headers ...kafkago.Header) error {
	c.msgs = append(c.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
	return nil
}

type fakeSMS struct {
	sent  []string
	err   error
	fails int // calls that fail with err before sends start to succeed; 0 fails forever
	calls int
}

func (f *fakeSMS) SendSMS(_ context.Context, to, body string) error {
	f.calls++
	if f.err != nil && (f.fails == 0 || f.calls <= f.fails) {
		return f.err
	}
	f.sent = append(f.sent, to+": "+body)
	return nil
}

type memDedup struct {
	seen    map[string]bool
	seenErr error
}

func (d *memDedup) Seen(_ context.Context, id string) (bool, error) { return d.seen[id], d.seenErr }

func (d *memDedup) Mark(_ context.Context, id string) error {
	d.seen[id] = true
	return nil
}

func publish(t *testing.T, phone, text string) kafkago.Message {
	t.Helper()
	c := &capture{}
	p := &Publisher{Producer: c, Service: "pizza-api"}
	if err := p.SendNotification(context.Background(), phone, text); err != nil {
		t.Fatalf("SendNotification: %v", err)
	}
	if len(c.msgs) != 1 {
		t.Fatalf("published %d messages", len(c.msgs))
	}
	return c.msgs[0]
}

func TestPublisherEnvelope(t *testing.T) {
	m := publish(t, "+359888000111", orders.DeliveryMessage(3))

	if string(m.Key) != "+359888000111" {
		t.Errorf("key = %q", m.Key)
	}
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		t.Fatal(err)
	}
	if env.EventType != orders.EventDeliveryNotification || env.Producer != "pizza-api" || env.EventID == "" {
		t.Errorf("envelope = %+v", env)
	}
	p, err := kafkax.UnwrapPayload[orders.DeliveryNotificationPayload](env.Payload)
	if err != nil || p.Message != "Order #3 has been submitted for delivery" {
		t.Errorf("payload = %+v, %v", p, err)
	}
	if len(m.Headers) != 2 || string(m.Headers[0].Value) != orders.EventDeliveryNotification {
		t.Errorf("headers = %v", m.Headers)
	}
}

func newWorker(t *testing.T) (*Worker, *fakeSMS, *memDedup) {
	sms := &fakeSMS{}
	dd := &memDedup{seen: map[string]bool{}}
	return &Worker{SMS: sms, Dedup: dd, Log: zaptest.NewLogger(t), Attempts: 3, Backoff: time.Millisecond}, sms, dd
}

func TestWorkerSendsOncePerEvent(t *testing.T) {
	w, sms, _ := newWorker(t)
	m := publish(t, "+359888000111", "Order #3 has been submitted for delivery")

	for i := 0; i < 2; i++ {
		if err := w.Handle(context.Background(), m); err != nil {
			t.Fatalf("Handle: %v", err)
		}
	}
	if len(sms.sent) != 1 || sms.sent[0] != "+359888000111: Order #3 has been submitted for delivery" {
		t.Errorf("sent = %v", sms.sent)
	}
}

func TestWorkerRetriesFailedSendInPlace(t *testing.T) {
	w, sms, dd := newWorker(t)
	sms.err = errors.New("twilio 503")
	sms.fails = 2
	m := publish(t, "+359888000111", "hi")

	if err := w.Handle(context.Background(), m); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sms.calls != 3 || len(sms.sent) != 1 {
		t.Errorf("calls = %d, sent = %v", sms.calls, sms.sent)
	}
	if !dd.seen[mustEventID(t, m)] {
		t.Error("delivered notification not marked as handled")
	}
}

func TestWorkerGivesUpAfterAttempts(t *testing.T) {
	w, sms, dd := newWorker(t)
	sms.err = errors.New("twilio 503")
	m := publish(t, "+359888000111", "hi")

	err := w.Handle(context.Background(), m)
	if !errors.Is(err, sms.err) {
		t.Fatalf("Handle = %v, want the send error", err)
	}
	if sms.calls != 3 {
		t.Errorf("calls = %d, want 3", sms.calls)
	}
	if len(dd.seen) != 0 {
		t.Error("failed send must not be marked as handled")
	}
}

func TestWorkerStopsRetryingOnShutdown(t *testing.T) {
	w, sms, _ := newWorker(t)
	w.Backoff = time.Hour
	sms.err = errors.New("twilio 503")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := w.Handle(ctx, publish(t, "+1555", "hi")); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Handle = %v, want deadline exceeded", err)
	}
	if sms.calls != 1 {
		t.Errorf("calls = %d, want 1", sms.calls)
	}
}

func mustEventID(t *testing.T, m kafkago.Message) string {
	t.Helper()
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		t.Fatal(err)
	}
	return env.EventID
}

func TestWorkerSendsWhenDedupUnavailable(t *testing.T) {
	w, sms, dd := newWorker(t)
	dd.seenErr = errors.New("redis down")

	if err := w.Handle(context.Background(), publish(t, "+1555", "hi")); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(sms.sent) != 1 {
		t.Errorf("sent = %v", sms.sent)
	}
}

func TestWorkerDropsUnusableMessages(t *testing.T) {
	w, sms, _ := newWorker(t)
	other := orders.NewEnvelope(orders.EventOrderConfirmed, "pizza-api", "1", orders.OrderConfirmedPayload{OrderID: 1})

	msgs := []kafkago.Message{
		{Value: []byte("not json")},
		{Value: kafkax.MustMarshal(other)},
		publish(t, "", "hi"),
	}
	for _, m := range msgs {
		if err := w.Handle(context.Background(), m); err != nil {
			t.Errorf("Handle(%s) = %v, want nil", m.Value, err)
		}
	}
	if len(sms.sent) != 0 {
		t.Errorf("sent = %v", sms.sent)
	}
}
