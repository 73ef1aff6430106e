package settlement

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/VladKvetkin/settlement/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T, users map[string]int64) *storage.BoltStorage {
	t.Helper()

	s, err := storage.NewBoltStorage(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	for userID, balance := range users {
		_, err := s.CreateUser(ctx, entities.User{ID: userID})
		require.NoError(t, err)

		balance := balance
		require.NoError(t, s.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			return tx.SetUserBalance(ctx, userID, balance)
		}))
	}

	return s
}

func balanceOf(t *testing.T, s storage.Storage, userID string) int64 {
	t.Helper()

	user, err := s.GetUser(context.Background(), userID)
	require.NoError(t, err)

	return user.LoyaltyPoints
}

func TestSettleCreditsOnce(t *testing.T) {
	ledger := newLedger(t, map[string]int64{"u1": 50})
	service := NewService(ledger, 3)
	ctx := context.Background()

	result, err := service.Settle(ctx, "u1", "o1", 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, result.Outcome)
	assert.Equal(t, int64(52), result.Balance)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int64(52), balanceOf(t, ledger, "u1"))

	result, err = service.Settle(ctx, "u1", "o1", 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySettled, result.Outcome)
	assert.Equal(t, int64(2), result.Award)
	assert.Equal(t, int64(52), balanceOf(t, ledger, "u1"))
}

func TestSettleZeroAwardWritesMarkerOnly(t *testing.T) {
	ledger := newLedger(t, map[string]int64{"u1": 50})
	service := NewService(ledger, 3)
	ctx := context.Background()

	result, err := service.Settle(ctx, "u1", "o1", 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNoAward, result.Outcome)
	assert.Equal(t, int64(50), balanceOf(t, ledger, "u1"))

	marker, err := ledger.GetSettlement(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), marker.Award)
	assert.Equal(t, "u1", marker.UserID)

	result, err = service.Settle(ctx, "u1", "o1", 0)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadySettled, result.Outcome)
}

func TestSettleUnknownUserLeavesNoMarker(t *testing.T) {
	ledger := newLedger(t, nil)
	service := NewService(ledger, 3)
	ctx := context.Background()

	_, err := service.Settle(ctx, "ghost", "o1", 5)
	require.ErrorIs(t, err, ErrUserNotFound)

	_, err = ledger.GetSettlement(ctx, "o1")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestSettleRejectsNegativeAward(t *testing.T) {
	service := NewService(newLedger(t, map[string]int64{"u1": 0}), 3)

	_, err := service.Settle(context.Background(), "u1", "o1", -1)
	assert.ErrorIs(t, err, ErrInvalidAward)
}

func TestSettleRejectsBalanceOverflow(t *testing.T) {
	ledger := newLedger(t, map[string]int64{"u1": math.MaxInt64 - 1})
	service := NewService(ledger, 3)
	ctx := context.Background()

	_, err := service.Settle(ctx, "u1", "o1", 2)
	require.ErrorIs(t, err, ErrBalanceOverflow)
	assert.Equal(t, int64(math.MaxInt64-1), balanceOf(t, ledger, "u1"))

	_, err = ledger.GetSettlement(ctx, "o1")
	assert.ErrorIs(t, err, storage.ErrNoRows)

	result, err := service.Settle(ctx, "u1", "o2", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64), result.Balance, "filling up to the limit is allowed")
}

func TestSettleRedeliveredConcurrently(t *testing.T) {
	ledger := newLedger(t, map[string]int64{"u1": 10})
	service := NewService(ledger, 3)

	var (
		wg      sync.WaitGroup
		settled atomic.Int32
	)

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			result, err := service.Settle(context.Background(), "u1", "o1", 4)
			assert.NoError(t, err)

			if result.Outcome == OutcomeSettled {
				settled.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), settled.Load())
	assert.Equal(t, int64(14), balanceOf(t, ledger, "u1"))
}

func TestSettleDistinctOrdersSameUserConcurrently(t *testing.T) {
	ledger := newLedger(t, map[string]int64{"u1": 0})
	service := NewService(ledger, 3)

	var wg sync.WaitGroup
	for i := 1; i <= 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			_, err := service.Settle(context.Background(), "u1", fmt.Sprintf("o%d", i), int64(i))
			assert.NoError(t, err)
		}(i)
	}

	wg.Wait()

	assert.Equal(t, int64(55), balanceOf(t, ledger, "u1"))
}

// conflictingStorage makes the first n transactions fail as if they lost a
// race, after running fn, so partial writes would be visible if not rolled back.
type conflictingStorage struct {
	storage.Storage

	remaining atomic.Int32
	calls     atomic.Int32
}

var errLostRace = errors.New("lost race")

func (c *conflictingStorage) RunTransaction(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
	c.calls.Add(1)

	if c.remaining.Add(-1) >= 0 {
		err := c.Storage.RunTransaction(ctx, func(ctx context.Context, tx storage.Tx) error {
			if err := fn(ctx, tx); err != nil {
				return err
			}

			return errLostRace
		})
		if errors.Is(err, errLostRace) {
			return fmt.Errorf("%w: could not serialize access", storage.ErrConflict)
		}

		return err
	}

	return c.Storage.RunTransaction(ctx, fn)
}

func TestSettleRetriesConflicts(t *testing.T) {
	ledger := &conflictingStorage{Storage: newLedger(t, map[string]int64{"u1": 50})}
	ledger.remaining.Store(2)

	service := NewService(ledger, 3)

	result, err := service.Settle(context.Background(), "u1", "o1", 2)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSettled, result.Outcome)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, int64(52), balanceOf(t, ledger, "u1"))
}

func TestSettleGivesUpAfterMaxAttempts(t *testing.T) {
	ledger := &conflictingStorage{Storage: newLedger(t, map[string]int64{"u1": 50})}
	ledger.remaining.Store(100)

	service := NewService(ledger, 4)

	_, err := service.Settle(context.Background(), "u1", "o1", 2)
	require.ErrorIs(t, err, ErrTransactionConflict)
	assert.Equal(t, int32(4), ledger.calls.Load())
	assert.Equal(t, int64(50), balanceOf(t, ledger, "u1"))

	_, err = ledger.GetSettlement(context.Background(), "o1")
	assert.ErrorIs(t, err, storage.ErrNoRows)
}

func TestSettleStopsRetryingWhenCancelled(t *testing.T) {
	ledger := &conflictingStorage{Storage: newLedger(t, map[string]int64{"u1": 50})}
	ledger.remaining.Store(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewService(ledger, 5).Settle(ctx, "u1", "o1", 2)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransactionConflict)
}
