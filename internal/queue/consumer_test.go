package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

type mailerStub struct {
	to, name, subject, body string
	calls                   int
	err                     error
	deadline                bool
}

func (m *mailerStub) Send(ctx context.Context, toAddress, toName, subject, body string) error {
	m.calls++
	m.to, m.name, m.subject, m.body = toAddress, toName, subject, body
	_, m.deadline = ctx.Deadline()
	return m.err
}

func TestConsumer_Handle_DeliversNotification(t *testing.T) {
	t.Parallel()
	mailer := &mailerStub{}
	c := NewConsumer("amqp://unused", "", mailer, zap.NewNop(), time.Second)

	body, _ := json.Marshal(Notification{
		Event:     EventBookingRequested,
		BookingID: "bk-1",
		To:        "ana@example.com",
		ToName:    "Ana Silva",
		Subject:   "Booking Request Sent",
		Body:      "Your booking request has been sent.",
	})
	if err := c.handle(context.Background(), body); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if mailer.calls != 1 || mailer.to != "ana@example.com" || mailer.name != "Ana Silva" || mailer.subject != "Booking Request Sent" {
		t.Fatalf("unexpected delivery: %+v", mailer)
	}
	if !mailer.deadline {
		t.Fatal("delivery must run under a timeout")
	}
	if c.queue != DefaultNotificationQueue {
		t.Fatalf("expected default queue, got %q", c.queue)
	}
}

func TestConsumer_Handle_Rejects(t *testing.T) {
	t.Parallel()
	cases := map[string]struct {
		body   []byte
		mailer *mailerStub
	}{
		"malformed json": {body: []byte("{"), mailer: &mailerStub{}},
		"no recipient":   {body: []byte(`{"event":"booking.requested","subject":"x"}`), mailer: &mailerStub{}},
		"mailer failure": {body: []byte(`{"to":"a@b.c","subject":"x"}`), mailer: &mailerStub{err: errors.New("smtp down")}},
	}
	for name, tc := range cases {
		c := NewConsumer("amqp://unused", "q", tc.mailer, zap.NewNop(), time.Second)
		if err := c.handle(context.Background(), tc.body); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDirect_Send(t *testing.T) {
	t.Parallel()
	mailer := &mailerStub{}
	d := Direct{Mailer: mailer}

	if err := d.Send(context.Background(), Notification{To: "tom@example.com", Subject: "New Booking Request", Body: "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if mailer.to != "tom@example.com" || mailer.body != "hi" {
		t.Fatalf("unexpected delivery: %+v", mailer)
	}
	if err := d.Send(context.Background(), Notification{Subject: "x"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestSleep_StopsOnCancel(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if sleep(ctx, time.Minute) {
		t.Fatal("sleep must return false when the context is done")
	}
	if !sleep(context.Background(), time.Millisecond) {
		t.Fatal("sleep must return true after the full duration")
	}
}
