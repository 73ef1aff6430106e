// Package settlement credits loyalty points for an order at most once.
//
// The idempotency marker and the balance update are written in the same
// ledger transaction: an order either has both or neither. A transaction that
// loses a race to a concurrent one on the same user is rerun from the start,
// a bounded number of times.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/VladKvetkin/settlement/internal/storage"
	"go.uber.org/zap"
)

const (
	DefaultMaxAttempts = 5

	retryPause = 10 * time.Millisecond
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrTransactionConflict = errors.New("transaction conflict: retries exhausted")
	ErrInvalidAward        = errors.New("award must not be negative")
	ErrBalanceOverflow     = errors.New("balance would exceed the maximum number of points")
)

type Outcome string

const (
	// OutcomeSettled means the award was added to the balance.
	OutcomeSettled Outcome = "settled"
	// OutcomeNoAward means the marker was written but the order earned nothing.
	OutcomeNoAward Outcome = "no_award"
	// OutcomeAlreadySettled means an earlier attempt already committed; nothing was written.
	OutcomeAlreadySettled Outcome = "already_settled"
)

type Result struct {
	OrderID  string  `json:"orderId"`
	UserID   string  `json:"userId"`
	Award    int64   `json:"award"`
	Balance  int64   `json:"balance"`
	Outcome  Outcome `json:"outcome"`
	Attempts int     `json:"attempts"`
}

type Service struct {
	storage     storage.Storage
	maxAttempts int
	now         func() time.Time
}

func NewService(storage storage.Storage, maxAttempts int) *Service {
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}

	return &Service{
		storage:     storage,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Settle applies award to the user's balance once per orderID. Repeating the
// call for a settled order is a successful no-op.
func (s *Service) Settle(ctx context.Context, userID string, orderID string, award int64) (Result, error) {
	if award < 0 {
		return Result{}, ErrInvalidAward
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		result, err := s.settleOnce(ctx, userID, orderID, award)
		if err == nil {
			result.Attempts = attempt
			return result, nil
		}

		if !errors.Is(err, storage.ErrConflict) {
			return Result{}, err
		}

		zap.L().Warn(
			"settlement transaction conflict",
			zap.String("order_id", orderID),
			zap.String("user_id", userID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)

		if attempt < s.maxAttempts {
			if err := sleep(ctx, time.Duration(attempt)*retryPause); err != nil {
				return Result{}, err
			}
		}
	}

	return Result{}, ErrTransactionConflict
}

func (s *Service) settleOnce(ctx context.Context, userID string, orderID string, award int64) (Result, error) {
	result := Result{
		OrderID: orderID,
		UserID:  userID,
		Award:   award,
	}

	err := s.storage.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
		balance, err := tx.GetUserBalance(ctx, userID)
		if err != nil {
			if errors.Is(err, storage.ErrNoRows) {
				return ErrUserNotFound
			}

			return fmt.Errorf("read balance: %w", err)
		}

		existing, err := tx.GetSettlement(ctx, orderID)
		if err == nil {
			result.Award = existing.Award
			result.Balance = balance
			result.Outcome = OutcomeAlreadySettled
			return nil
		}

		if !errors.Is(err, storage.ErrNoRows) {
			return fmt.Errorf("read settlement marker: %w", err)
		}

		result.Balance = balance
		result.Outcome = OutcomeNoAward

		if award > 0 {
			if balance > math.MaxInt64-award {
				return ErrBalanceOverflow
			}

			result.Balance = balance + award
			result.Outcome = OutcomeSettled

			if err := tx.SetUserBalance(ctx, userID, result.Balance); err != nil {
				return fmt.Errorf("write balance: %w", err)
			}
		}

		marker := entities.Settlement{
			OrderID:   orderID,
			UserID:    userID,
			Award:     award,
			SettledAt: s.now(),
		}

		if err := tx.CreateSettlement(ctx, marker); err != nil {
			return fmt.Errorf("write settlement marker: %w", err)
		}

		return nil
	})
	if err != nil {
		return Result{}, err
	}

	return result, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
