package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chat-client/internal/observability"
	"chat-client/internal/telemetry"
)

// Publisher publishes connection events and notices.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error
	Close() error
}

// NewPublisher returns an exchange-bound publisher. Any failure to reach
// the broker degrades to a publisher that only logs.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		return degrade("empty amqp url")
	}
	p, err := dial(amqpURL, exchange)
	if err != nil {
		return degrade(err.Error())
	}
	log.Printf("rabbitmq connected exchange=%s", exchange)
	return p
}

func dial(amqpURL, exchange string) (*amqpPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel: %w", err)
	}
	// durable topic exchange, shared with the backend's event consumers
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
	}
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}, nil
}

func degrade(reason string) Publisher {
	log.Printf("event publisher mode=noop reason=%q", reason)
	return logPublisher{}
}

type amqpPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any, headers map[string]string) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", routingKey, err)
	}

	table := make(amqp.Table, len(headers))
	for key, value := range headers {
		table[key] = value
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		Headers:      table,
		Body:         body,
	}
	if err := p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, msg); err != nil {
		log.Printf("rabbitmq publish failed routing_key=%s err=%v", routingKey, err)
		return err
	}
	return nil
}

func (p *amqpPublisher) Close() error {
	_ = p.ch.Close()
	return p.conn.Close()
}

// logPublisher stands in when no broker is reachable.
type logPublisher struct{}

func (logPublisher) Publish(_ context.Context, routingKey string, event any, _ map[string]string) error {
	log.Printf("rabbitmq noop publish routing_key=%s %s", routingKey, describeEvent(event))
	return nil
}

func (logPublisher) Close() error { return nil }

func describeEvent(event any) string {
	switch e := event.(type) {
	case telemetry.NoticeEnvelope:
		return fmt.Sprintf("event_type=%s level=%s text=%q", e.EventType, e.Payload.Level, e.Payload.Text)
	case observability.EventEnvelope:
		return fmt.Sprintf("event_type=%s event_name=%s", e.EventType, e.EventName)
	default:
		return fmt.Sprintf("event=%T", event)
	}
}

// IsLive reports whether p delivers to a broker.
func IsLive(p Publisher) bool {
	_, ok := p.(*amqpPublisher)
	return ok
}
