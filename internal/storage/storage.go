package storage

import (
	"context"
	"errors"
	"time"

	"github.com/VladKvetkin/settlement/internal/entities"
)

var (
	ErrConflict = errors.New("conflict")
	ErrNoRows   = errors.New("no rows")
)

// Tx is the view of the ledger available inside RunTransaction.
type Tx interface {
	GetUserBalance(context.Context, string) (int64, error)
	GetSettlement(context.Context, string) (entities.Settlement, error)

	SetUserBalance(context.Context, string, int64) error
	CreateSettlement(context.Context, entities.Settlement) error
}

type Storage interface {
	GetUser(context.Context, string) (entities.User, error)
	GetUserOrders(context.Context, string) ([]entities.Order, error)
	GetSettlement(context.Context, string) (entities.Settlement, error)
	GetSettlementFailures(context.Context, int) ([]entities.SettlementFailure, error)

	CreateUser(context.Context, entities.User) (bool, error)
	SaveOrder(context.Context, entities.Order) (bool, error)
	RecordFailure(context.Context, entities.SettlementFailure) error

	AdvanceOrders(context.Context, entities.OrderStatus, entities.OrderStatus, time.Time) (int64, error)

	// RunTransaction runs fn atomically. It returns ErrConflict when the
	// transaction lost a race with a concurrent one and may be retried.
	RunTransaction(context.Context, func(context.Context, Tx) error) error

	Close() error
}
