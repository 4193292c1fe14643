package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher delivers lifecycle events to RabbitMQ.  It is an explicit
// dependency injected into the booking service, with a Connect/Close
// lifecycle owned by main; there is no package-level connection.
// Delivery is best-effort at-least-once: a publish failure after a
// committed state transition is logged and reported to the caller, who
// must not roll the transition back because of it.
type Publisher struct {
	url    string
	logger *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns an unconnected Publisher for the given broker
// URL.  Call Connect before the first publish, or let Publish dial
// lazily.
func NewPublisher(url string, logger *zap.Logger) *Publisher {
	return &Publisher{url: url, logger: logger}
}

// Connect dials the broker and opens a channel.  It is safe to call
// again after a connection loss; any previous connection is discarded.
func (p *Publisher) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connectLocked()
}

func (p *Publisher) connectLocked() error {
	p.closeLocked()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return err
	}
	p.conn = conn
	p.ch = ch
	return nil
}

// Close releases the channel and connection.  Safe to call multiple
// times and on a never-connected Publisher.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
}

func (p *Publisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

// Publish marshals the payload as JSON and delivers it persistently to
// the named durable queue.  On a broken channel it reconnects once and
// retries; any remaining error is returned so the caller can log and
// move on.
func (p *Publisher) Publish(ctx context.Context, queueName string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.connectLocked(); err != nil {
			return err
		}
	}
	if err := p.publishLocked(ctx, queueName, body); err != nil {
		p.logger.Warn("publish failed, reconnecting",
			zap.String("queue", queueName), zap.Error(err))
		if err := p.connectLocked(); err != nil {
			return err
		}
		return p.publishLocked(ctx, queueName, body)
	}
	return nil
}

func (p *Publisher) publishLocked(ctx context.Context, queueName string, body []byte) error {
	// Declare is idempotent; durable so messages survive broker restarts.
	if _, err := p.ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		return err
	}
	return p.ch.PublishWithContext(ctx,
		"",        // default exchange
		queueName, // routing key = queue name
		false,     // mandatory
		false,     // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
