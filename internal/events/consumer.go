package events

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	prefetchCount = 16

	DefaultRequeueDelay = time.Second
)

type Handler interface {
	Handle(ctx context.Context, eventType string, body []byte) error
}

// Consumer reads trigger events from a durable queue bound to a fanout
// exchange and acknowledges each one after its handler returns.
type Consumer struct {
	conn      *amqp.Connection
	queue     string
	handler   Handler
	permanent func(error) bool

	// requeueDelay holds a transiently failed delivery before it goes back
	// to the queue.
	requeueDelay time.Duration
}

func NewConsumer(url, exchange, queue string, handler Handler, permanent func(error) bool) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(queue, "", exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &Consumer{
		conn:         conn,
		queue:        queue,
		handler:      handler,
		permanent:    permanent,
		requeueDelay: DefaultRequeueDelay,
	}, nil
}

func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		ch.Close()
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		ch.Close()
		return fmt.Errorf("consume queue: %w", err)
	}

	go func() {
		<-ctx.Done()
		_ = ch.Cancel("", false)
		ch.Close()
	}()

	zap.L().Info("Consuming events", zap.String("queue", c.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				zap.L().Info("Event channel closed")
				return nil
			}

			c.handleDelivery(ctx, d)
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, d amqp.Delivery) {
	err := c.handler.Handle(ctx, d.Type, d.Body)

	switch {
	case err == nil:
		if ackErr := d.Ack(false); ackErr != nil {
			zap.L().Error("Error while acking event", zap.String("type", d.Type), zap.Error(ackErr))
		}
	case c.permanent != nil && c.permanent(err):
		zap.L().Error(
			"Dropping event",
			zap.String("type", d.Type),
			zap.String("message_id", d.MessageId),
			zap.Error(err),
		)

		if nackErr := d.Nack(false, false); nackErr != nil {
			zap.L().Error("Error while rejecting event", zap.String("type", d.Type), zap.Error(nackErr))
		}
	default:
		zap.L().Warn(
			"Requeueing event",
			zap.String("type", d.Type),
			zap.String("message_id", d.MessageId),
			zap.Duration("delay", c.requeueDelay),
			zap.Error(err),
		)

		c.wait(ctx)

		if nackErr := d.Nack(false, true); nackErr != nil {
			zap.L().Error("Error while requeueing event", zap.String("type", d.Type), zap.Error(nackErr))
		}
	}
}

func (c *Consumer) wait(ctx context.Context) {
	if c.requeueDelay <= 0 {
		return
	}

	timer := time.NewTimer(c.requeueDelay)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}

func (c *Consumer) Close() error {
	return c.conn.Close()
}
