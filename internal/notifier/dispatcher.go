// Package notifier delivers best-effort notifications after the ledger has
// committed. Delivery failures are logged and never reach the caller.
package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type Kind string

const (
	KindPointsAwarded Kind = "points.awarded"
	KindUserWelcome   Kind = "user.welcome"
	KindStockLow      Kind = "stock.low"
)

type Notification struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	UserID    string    `json:"userId,omitempty"`
	Email     string    `json:"-"`
	Subject   string    `json:"subject,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

func New(kind Kind, userID string, subject string, message string) Notification {
	return Notification{
		ID:        uuid.New(),
		Kind:      kind,
		UserID:    userID,
		Subject:   subject,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}
}

type Sink interface {
	Name() string
	Accepts(Notification) bool
	Send(context.Context, Notification) error
}

type Dispatcher struct {
	queue   chan Notification
	sinks   []Sink
	workers int
	timeout time.Duration
}

func NewDispatcher(queueSize int, workers int, timeout time.Duration, sinks ...Sink) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1
	}

	if workers < 1 {
		workers = 1
	}

	return &Dispatcher{
		queue:   make(chan Notification, queueSize),
		sinks:   sinks,
		workers: workers,
		timeout: timeout,
	}
}

// Enqueue hands n to the workers without blocking. It reports false when the
// queue is full and n was dropped.
func (d *Dispatcher) Enqueue(n Notification) bool {
	select {
	case d.queue <- n:
		return true
	default:
		zap.L().Warn(
			"notification queue full, dropping notification",
			zap.String("id", n.ID.String()),
			zap.String("kind", string(n.Kind)),
		)
		return false
	}
}

// Start runs the workers until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)

	for i := 0; i < d.workers; i++ {
		eg.Go(func() error {
			for {
				select {
				case n := <-d.queue:
					d.deliver(ctx, n)
				case <-ctx.Done():
					return nil
				}
			}
		})
	}

	return eg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, sink := range d.sinks {
		if !sink.Accepts(n) {
			continue
		}

		sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := sink.Send(sendCtx, n)
		cancel()

		if err != nil {
			zap.L().Error(
				"notification delivery failed",
				zap.String("sink", sink.Name()),
				zap.String("id", n.ID.String()),
				zap.String("kind", string(n.Kind)),
				zap.String("user_id", n.UserID),
				zap.Error(err),
			)

			continue
		}

		zap.L().Debug(
			"notification delivered",
			zap.String("sink", sink.Name()),
			zap.String("id", n.ID.String()),
			zap.String("kind", string(n.Kind)),
		)
	}
}
