package sweeper

import (
	"context"
	"time"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/VladKvetkin/settlement/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultInterval = 24 * time.Hour
	DefaultAge      = 24 * time.Hour
)

// Sweeper moves orders that stayed pending for longer than age into processing.
type Sweeper struct {
	storage  storage.Storage
	interval time.Duration
	age      time.Duration
	now      func() time.Time
}

func NewSweeper(storage storage.Storage, interval time.Duration, age time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if age <= 0 {
		age = DefaultAge
	}

	return &Sweeper{
		storage:  storage,
		interval: interval,
		age:      age,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Sweeper) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.run(ctx)

	for {
		select {
		case <-ticker.C:
			s.run(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *Sweeper) run(ctx context.Context) {
	count, err := s.Sweep(ctx)
	if err != nil {
		zap.L().Error("Error while sweeping pending orders", zap.Error(err))
		return
	}

	zap.L().Info("Swept pending orders", zap.Int64("count", count))
}

func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	return s.storage.AdvanceOrders(ctx, entities.OrderStatusPending, entities.OrderStatusProcessing, s.now().Add(-s.age))
}
