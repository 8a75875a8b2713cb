// Package events publishes proceso state changes to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bybot/pagare-worker/internal/types"
)

// DefaultExchange is the topic exchange events are published to
const DefaultExchange = "bybot.events"

// Event names; the routing key is "proceso.<name>"
const (
	Analyzed      = "analyzed"
	AnalysisRetry = "analysis_retry"
	AnalysisError = "analysis_error"
	Filled        = "filled"
	FillRetry     = "fill_retry"
)

// Event is one state change of a proceso
type Event struct {
	ID        string      `json:"id"`
	Name      string      `json:"event"`
	ProcesoID int64       `json:"proceso_id"`
	Codigo    string      `json:"codigo,omitempty"`
	Estado    types.State `json:"estado"`
	Intentos  int         `json:"intentos_analisis"`
	Error     string      `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// RoutingKey returns the routing key of the event
func (e Event) RoutingKey() string {
	return "proceso." + e.Name
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Channel is the subset of *amqp.Channel used by the publisher
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes JSON events as persistent messages
type AMQPPublisher struct {
	conn     *amqp.Connection
	channel  Channel
	exchange string
	logger   *slog.Logger
}

// Dial connects to the broker and declares the exchange
func Dial(url, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	p, err := NewPublisher(ch, exchange, logger)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// NewPublisher declares a durable topic exchange on ch and publishes to it
func NewPublisher(ch Channel, exchange string, logger *slog.Logger) (*AMQPPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	err := ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &AMQPPublisher{channel: ch, exchange: exchange, logger: logger}, nil
}

// Publish sends e, filling in its ID and timestamp when unset
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	err = p.channel.PublishWithContext(ctx,
		p.exchange,     // exchange
		e.RoutingKey(), // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    e.ID,
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    e.Timestamp,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", e.RoutingKey(), err)
	}

	p.logger.Debug("event published", "routing_key", e.RoutingKey(), "proceso_id", e.ProcesoID)
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	if err := p.channel.Close(); err != nil {
		p.logger.Warn("failed to close channel", "error", err)
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Nop drops events; used when AMQP_URL is empty
type Nop struct{}

// Publish does nothing
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing
func (Nop) Close() error { return nil }
