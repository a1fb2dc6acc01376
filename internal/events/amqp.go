package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	exchangeName = "bookshop.events"
	exchangeType = "topic"

	maxRetries     = 3
	initialBackoff = 100 * time.Millisecond
	maxBackoff     = 5 * time.Second
	confirmTimeout = 5 * time.Second
)

// AMQPPublisher publishes to a durable topic exchange with publisher confirms.
type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     *zap.Logger

	// confirms arrive in publish order; one publish in flight at a time
	mu sync.Mutex
}

func NewAMQPPublisher(url string, log *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := channel.ExchangeDeclare(exchangeName, exchangeType, true, false, false, false, nil); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if err := channel.Confirm(false); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	log.Info("events.connected", zap.String("exchange", exchangeName))
	return &AMQPPublisher{conn: conn, channel: channel, log: log}, nil
}

// Publish retries with exponential backoff until the broker acks the event.
func (p *AMQPPublisher) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	backoff := initialBackoff
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				backoff = min(backoff*2, maxBackoff)
			}
		}

		confirm, err := p.channel.PublishWithDeferredConfirmWithContext(ctx, exchangeName, e.EventType, false, false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
				MessageId:    e.EventID,
				Body:         body,
				Headers: amqp.Table{
					"event_type":    e.EventType,
					"event_version": e.EventVersion,
				},
			})
		if err != nil {
			lastErr = err
			p.log.Warn("events.publish.retry", zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}

		waitCtx, cancel := context.WithTimeout(ctx, confirmTimeout)
		acked, err := confirm.WaitContext(waitCtx)
		cancel()
		switch {
		case err != nil:
			lastErr = err
		case !acked:
			lastErr = errors.New("event not acknowledged")
		default:
			p.log.Debug("events.published",
				zap.String("event_id", e.EventID),
				zap.String("event_type", e.EventType))
			return nil
		}
		p.log.Warn("events.publish.unconfirmed", zap.Int("attempt", attempt+1), zap.Error(lastErr))
	}
	return fmt.Errorf("publish %s after %d attempts: %w", e.EventType, maxRetries, lastErr)
}

func (p *AMQPPublisher) IsHealthy() bool {
	return p.conn != nil && !p.conn.IsClosed()
}

func (p *AMQPPublisher) Close() error {
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.log.Error("events.channel.close", zap.Error(err))
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
