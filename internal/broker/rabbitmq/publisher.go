// Package rabbitmq is the broker layer shared by the Pump (publisher) and
// Worker (consumer), grounded on event-service's
// internal/infrastructure/messaging/rabbitmq/publisher.go (confirms +
// mandatory-return publish loop) and email-service's
// internal/infrastructure/messaging/rabbitmq/consumer.go (connect/declare/
// consume supervisor loop).
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publishWait = 300 * time.Millisecond

// Publisher publishes directly to a named, durable queue (spec.md §4.2:
// "publish to the broker on queue named by topic" — no exchange is named,
// so the default exchange with the queue name as routing key is used).
type Publisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel

	confirmCh <-chan amqp.Confirmation
	returnCh  <-chan amqp.Return

	declared map[string]bool
}

func NewPublisher(url string) (*Publisher, error) {
	if url == "" {
		return nil, errors.New("missing rabbitmq url")
	}
	p := &Publisher{url: url, declared: map[string]bool{}}
	if err := p.connectLocked(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Publisher) connectLocked() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	p.confirmCh = ch.NotifyPublish(make(chan amqp.Confirmation, 8))
	p.returnCh = ch.NotifyReturn(make(chan amqp.Return, 8))
	p.conn = conn
	p.ch = ch
	p.declared = map[string]bool{}
	return nil
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}

// Ping reports whether the publisher holds a live connection, used by the
// Pump's /readyz handler.
func (p *Publisher) Ping(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil || p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	return nil
}

func (p *Publisher) ensureQueue(queue string) error {
	if p.declared[queue] {
		return nil
	}
	if _, err := p.ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return err
	}
	p.declared[queue] = true
	return nil
}

// Publish sends body to the named durable queue, persistent delivery, and
// waits up to publishWait for a publisher confirm or a mandatory return
// (spec.md §5: "all broker queues declared durable=true; messages
// persistent=true"). A nack or a return is an error; if neither a confirm
// nor a return arrives within publishWait, Publish reports success.
func (p *Publisher) Publish(ctx context.Context, queue string, body []byte, headers amqp.Table) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil || p.conn == nil || p.conn.IsClosed() {
		_ = p.Close()
		if err := p.connectLocked(); err != nil {
			return fmt.Errorf("rabbitmq reconnect failed: %w", err)
		}
	}

	if err := p.ensureQueue(queue); err != nil {
		return fmt.Errorf("queue declare failed: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		Body:         body,
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      headers,
	}

	if err := p.ch.PublishWithContext(ctx, "", queue, true, false, pub); err != nil {
		return err
	}

	timer := time.NewTimer(publishWait)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ret := <-p.returnCh:
			return fmt.Errorf("rabbitmq returned: %d %s", ret.ReplyCode, ret.ReplyText)
		case conf := <-p.confirmCh:
			if !conf.Ack {
				return errors.New("rabbitmq publish not acked")
			}
			return nil
		case <-timer.C:
			return nil
		}
	}
}
