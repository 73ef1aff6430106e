package events

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

type ackRecorder struct {
	acked   int
	nacked  int
	requeue bool
}

func (a *ackRecorder) Ack(tag uint64, multiple bool) error {
	a.acked++
	return nil
}

func (a *ackRecorder) Nack(tag uint64, multiple, requeue bool) error {
	a.nacked++
	a.requeue = requeue
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

type handlerFunc func(ctx context.Context, eventType string, body []byte) error

func (f handlerFunc) Handle(ctx context.Context, eventType string, body []byte) error {
	return f(ctx, eventType, body)
}

var errTransient = errors.New("database unavailable")

func TestConsumerHandleDelivery(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantAcked   int
		wantNacked  int
		wantRequeue bool
	}{
		{name: "success", err: nil, wantAcked: 1},
		{name: "permanent", err: ErrInvalidEvent, wantNacked: 1, wantRequeue: false},
		{name: "transient", err: errTransient, wantNacked: 1, wantRequeue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotType string

			c := &Consumer{
				handler: handlerFunc(func(ctx context.Context, eventType string, body []byte) error {
					gotType = eventType
					return tt.err
				}),
				permanent: func(err error) bool { return errors.Is(err, ErrInvalidEvent) },
			}

			ack := &ackRecorder{}
			c.handleDelivery(context.Background(), amqp.Delivery{
				Acknowledger: ack,
				Type:         TypeOrderCreated,
				Body:         []byte(`{}`),
			})

			assert.Equal(t, TypeOrderCreated, gotType)
			assert.Equal(t, tt.wantAcked, ack.acked)
			assert.Equal(t, tt.wantNacked, ack.nacked)
			assert.Equal(t, tt.wantRequeue, ack.requeue)
		})
	}
}

func TestConsumerDelaysRequeue(t *testing.T) {
	c := &Consumer{
		handler: handlerFunc(func(ctx context.Context, eventType string, body []byte) error {
			return errTransient
		}),
		permanent:    func(err error) bool { return errors.Is(err, ErrInvalidEvent) },
		requeueDelay: 50 * time.Millisecond,
	}

	ack := &ackRecorder{}
	started := time.Now()
	c.handleDelivery(context.Background(), amqp.Delivery{Acknowledger: ack, Type: TypeOrderCreated})

	assert.True(t, time.Since(started) >= 50*time.Millisecond, "requeue waits for the delay")
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c.requeueDelay = time.Hour
	ack = &ackRecorder{}
	c.handleDelivery(ctx, amqp.Delivery{Acknowledger: ack, Type: TypeOrderCreated})

	assert.Equal(t, 1, ack.nacked, "shutdown still hands the delivery back")
	assert.True(t, ack.requeue)
}
