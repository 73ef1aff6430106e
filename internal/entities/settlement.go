package entities

import (
	"time"

	"github.com/google/uuid"
)

// Settlement marks an order whose loyalty points were credited. One per order, never updated.
type Settlement struct {
	OrderID   string    `db:"order_id" json:"orderId"`
	UserID    string    `db:"user_id" json:"userId"`
	Award     int64     `db:"award" json:"award"`
	SettledAt time.Time `db:"settled_at" json:"settledAt"`
}

type FailureReason string

const (
	FailureUserNotFound        FailureReason = "user_not_found"
	FailureTransactionConflict FailureReason = "transaction_conflict"
	FailureOverflow            FailureReason = "overflow"
	FailureInternal            FailureReason = "internal"
)

// SettlementFailure is an audit row kept so that missing credits can be reconciled.
type SettlementFailure struct {
	ID        uuid.UUID     `db:"id" json:"id"`
	OrderID   string        `db:"order_id" json:"orderId"`
	UserID    string        `db:"user_id" json:"userId"`
	Award     int64         `db:"award" json:"award"`
	Reason    FailureReason `db:"reason" json:"reason"`
	Error     string        `db:"error" json:"error"`
	CreatedAt time.Time     `db:"created_at" json:"createdAt"`
}
