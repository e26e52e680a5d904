package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Mailer delivers one rendered notification.
type Mailer interface {
	Send(ctx context.Context, toAddress, toName, subject, body string) error
}

// Consumer drains the notification queue and hands each message to a
// Mailer.  Undeliverable messages are rejected without requeue to avoid
// tight redelivery loops.
type Consumer struct {
	url     string
	queue   string
	mailer  Mailer
	logger  *zap.Logger
	timeout time.Duration
}

// NewConsumer returns a Consumer bound to the broker at url.
func NewConsumer(url, queue string, mailer Mailer, logger *zap.Logger, timeout time.Duration) *Consumer {
	if queue == "" {
		queue = DefaultNotificationQueue
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Consumer{url: url, queue: queue, mailer: mailer, logger: logger, timeout: timeout}
}

// Run connects and consumes until ctx is cancelled, reconnecting with
// exponential backoff whenever the broker connection drops.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("notification consumer: dial failed",
				zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("notification consumer: loop ended, reconnecting", zap.Error(err))
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("notification consumer: set QoS failed", zap.Error(err))
	}
	if _, err := declare(ch, c.queue); err != nil {
		return err
	}
	msgs, err := ch.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := c.handle(ctx, d.Body); err != nil {
			c.logger.Error("notification consumer: delivery failed",
				zap.String("message_id", d.MessageId), zap.Error(err))
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
	var n Notification
	if err := json.Unmarshal(body, &n); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if n.To == "" {
		return errors.New("notification without recipient")
	}
	sctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.mailer.Send(sctx, n.To, n.ToName, n.Subject, n.Body); err != nil {
		return fmt.Errorf("send %s: %w", n.Event, err)
	}
	c.logger.Info("notification delivered",
		zap.String("event", n.Event), zap.String("booking_id", n.BookingID))
	return nil
}

// sleep waits for d or until ctx is done; it reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
