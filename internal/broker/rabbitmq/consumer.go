package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/dripwave/sequencer/internal/metrics"
)

// Handler processes one delivery's body, returning an error to trigger the
// retry/DLQ path (spec.md §4.3 "Retry & DLQ").
type Handler func(ctx context.Context, body []byte, retries int) error

type ConsumerConfig struct {
	URL        string
	Queue      string
	Prefetch   int
	ConsumeTag string
	MaxRetries int
}

// Consumer is a reconnecting, single-queue consumer with manual ack and a
// header-counted retry republish, grounded on email-service's
// app/consumer/consumer.go supervisor-loop shape but simplified to the
// spec's single queue + x-retries header instead of tiered DLX queues.
type Consumer struct {
	cfg ConsumerConfig
	log zerolog.Logger
	h   Handler

	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewConsumer(cfg ConsumerConfig, h Handler, log zerolog.Logger) *Consumer {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	return &Consumer{
		cfg: cfg,
		h:   h,
		log: log.With().Str("component", "rabbitmq_consumer").Logger(),
	}
}

// Run blocks, consuming until ctx is cancelled, reconnecting with backoff
// on connection loss.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		deliveries, err := c.connectAndConsume()
		if err != nil {
			c.log.Error().Err(err).Dur("backoff", backoff).Msg("connect failed; retrying")
			if !sleepOrDone(ctx, backoff) {
				return nil
			}
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}
		backoff = time.Second

		c.consumeLoop(ctx, deliveries)
		c.closeConn()

		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !sleepOrDone(ctx, backoff) {
			return nil
		}
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (c *Consumer) connectAndConsume() (<-chan amqp.Delivery, error) {
	conn, err := amqp.Dial(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}

	if _, err := ch.QueueDeclare(c.cfg.Queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}

	// spec.md §4.3: "prefetch = 1".
	if err := ch.Qos(c.cfg.Prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("qos: %w", err)
	}

	deliveries, err := ch.Consume(c.cfg.Queue, c.cfg.ConsumeTag, false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}

	c.conn = conn
	c.ch = ch
	c.log.Info().Str("queue", c.cfg.Queue).Int("prefetch", c.cfg.Prefetch).Msg("consumer ready")
	return deliveries, nil
}

func (c *Consumer) consumeLoop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			// A delivery already received is handled to completion even
			// if ctx is cancelled meanwhile.
			c.handleDelivery(context.WithoutCancel(ctx), d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	retries := getRetries(d.Headers)

	err := c.h(ctx, d.Body, retries)
	if err == nil {
		_ = d.Ack(false)
		return
	}

	if retries < c.cfg.MaxRetries {
		nextRetries := retries + 1
		headers := amqp.Table{"x-retries": int32(nextRetries)}
		pub := amqp.Publishing{
			ContentType:  d.ContentType,
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      headers,
		}
		if pubErr := c.ch.PublishWithContext(ctx, "", c.cfg.Queue, false, false, pub); pubErr != nil {
			c.log.Error().Err(pubErr).Msg("retry republish failed; requeueing original")
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
		metrics.WorkerRetryTotal.Inc()
		c.log.Warn().Err(err).Int("retries", nextRetries).Msg("handler failed; republished with incremented x-retries")
		return
	}

	metrics.WorkerDLQTotal.Inc()
	c.log.Error().Err(err).Int("retries", retries).Msg("retries exhausted; rejecting without requeue (DLQ)")
	_ = d.Nack(false, false)
}

func (c *Consumer) closeConn() {
	if c.ch != nil {
		_ = c.ch.Close()
		c.ch = nil
	}
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

func getRetries(h amqp.Table) int {
	if h == nil {
		return 0
	}
	v, ok := h["x-retries"]
	if !ok {
		return 0
	}
	switch t := v.(type) {
	case int32:
		return int(t)
	case int64:
		return int(t)
	case int:
		return t
	case float64:
		return int(t)
	default:
		return 0
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
