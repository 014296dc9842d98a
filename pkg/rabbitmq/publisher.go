// Package rabbitmq publishes outbox events to a topic exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/clubsphere/clubsphere-backend/pkg/config"
	"github.com/clubsphere/clubsphere-backend/pkg/logger"
)

const exchangeKind = "topic"

type channel interface {
	PublishWithDeferredConfirmWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) (*amqp.DeferredConfirmation, error)
	Close() error
}

// Message is a broker-neutral outbound message.
type Message struct {
	RoutingKey string
	MessageID  string
	Body       []byte
	Headers    map[string]string
	Timestamp  time.Time
}

// Publisher holds one confirm-mode channel. Publishes are serialized on it.
type Publisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       channel
	exchange string
}

// NewPublisher dials the broker, declares the durable exchange and enables publisher confirms.
func NewPublisher(ctx context.Context, cfg config.RabbitMQConfig, logg *logger.Logger) (*Publisher, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if strings.TrimSpace(cfg.Exchange) == "" {
		return nil, errors.New("rabbitmq exchange is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, exchangeKind, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "exchange", cfg.Exchange), "rabbitmq publisher initialized")
	}
	return &Publisher{conn: conn, ch: ch, exchange: cfg.Exchange}, nil
}

func newWithChannel(ch channel, exchange string) *Publisher {
	return &Publisher{ch: ch, exchange: exchange}
}

// Publish sends a persistent JSON message and waits for the broker ack.
func (p *Publisher) Publish(ctx context.Context, msg Message) error {
	if p == nil || p.ch == nil {
		return errors.New("rabbitmq publisher not initialized")
	}
	if msg.RoutingKey == "" {
		return errors.New("routing key is required")
	}
	headers := amqp.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	p.mu.Lock()
	confirm, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.exchange, msg.RoutingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    msg.MessageID,
		Timestamp:    ts,
		Headers:      headers,
		Body:         msg.Body,
	})
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.RoutingKey, err)
	}
	if confirm == nil {
		return nil
	}
	acked, err := confirm.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("await confirm %s: %w", msg.RoutingKey, err)
	}
	if !acked {
		return fmt.Errorf("broker nacked %s", msg.RoutingKey)
	}
	return nil
}

// Ping reports whether the connection is still open.
func (p *Publisher) Ping(context.Context) error {
	if p == nil || p.conn == nil {
		return errors.New("rabbitmq publisher not initialized")
	}
	if p.conn.IsClosed() {
		return errors.New("rabbitmq connection closed")
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
