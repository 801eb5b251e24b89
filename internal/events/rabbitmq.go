package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type connection interface {
	Channel() (channel, error)
	IsClosed() bool
	Close() error
}

type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{Connection: conn}, nil
}

// RabbitPublisher publishes events to a durable fanout exchange. A closed channel or
// connection is reopened on the next publish.
type RabbitPublisher struct {
	url      string
	exchange string
	dial     func(url string) (connection, error)

	mu   sync.Mutex
	conn connection
	ch   channel
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	return newRabbitPublisher(url, exchange, dialAMQP)
}

func newRabbitPublisher(url, exchange string, dial func(string) (connection, error)) (*RabbitPublisher, error) {
	p := &RabbitPublisher{url: url, exchange: exchange, dial: dial}
	if err := p.reopen(); err != nil {
		return nil, err
	}
	log.Info().Str("exchange", exchange).Msg("RabbitMQ publisher ready")
	return p, nil
}

// reopen dials again if the connection is gone and opens a fresh channel. Callers hold p.mu.
func (p *RabbitPublisher) reopen() error {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}

	if p.conn == nil || p.conn.IsClosed() {
		conn, err := p.dial(p.url)
		if err != nil {
			return fmt.Errorf("events: failed to connect to rabbitmq: %w", err)
		}
		p.conn = conn
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("events: failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		p.exchange,
		amqp.ExchangeFanout,
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		return fmt.Errorf("events: failed to declare exchange %q: %w", p.exchange, err)
	}
	p.ch = ch
	return nil
}

func (p *RabbitPublisher) PublishOrderPlaced(ctx context.Context, evt OrderPlaced) error {
	now := time.Now()
	body, err := encode(TypeOrderPlaced, now, evt)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		MessageId:    evt.OrderID.String(),
		Type:         TypeOrderPlaced,
		Body:         body,
	}

	// amqp channels are not safe for concurrent publishing.
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.ch == nil {
		if err := p.reopen(); err != nil {
			return err
		}
	}

	err = p.ch.PublishWithContext(ctx, p.exchange, TypeOrderPlaced, false, false, msg)
	if errors.Is(err, amqp.ErrClosed) {
		log.Warn().Str("exchange", p.exchange).Msg("RabbitMQ channel closed, reopening")
		if reopenErr := p.reopen(); reopenErr != nil {
			return errors.Join(fmt.Errorf("events: failed to publish %s for order %s: %w", TypeOrderPlaced, evt.OrderID, err), reopenErr)
		}
		err = p.ch.PublishWithContext(ctx, p.exchange, TypeOrderPlaced, false, false, msg)
	}
	if err != nil {
		return fmt.Errorf("events: failed to publish %s for order %s: %w", TypeOrderPlaced, evt.OrderID, err)
	}
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}
