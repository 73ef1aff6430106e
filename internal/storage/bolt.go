package storage

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/VladKvetkin/settlement/internal/entities"
	bolt "github.com/boltdb/bolt"
)

var (
	usersBucket       = []byte("users")
	ordersBucket      = []byte("orders")
	settlementsBucket = []byte("settlements")
	failuresBucket    = []byte("settlement_failures")
)

// BoltStorage keeps the ledger in a single bolt file. Bolt runs one writer at
// a time, so RunTransaction never reports ErrConflict.
type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{usersBucket, ordersBucket, settlementsBucket, failuresBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}

func (s *BoltStorage) RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return fn(ctx, &boltTx{tx: tx})
	})
}

func (s *BoltStorage) GetUser(ctx context.Context, userID string) (entities.User, error) {
	var user entities.User

	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(usersBucket), userID, &user)
	})

	return user, err
}

func (s *BoltStorage) CreateUser(ctx context.Context, user entities.User) (bool, error) {
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(usersBucket)
		if b.Get([]byte(user.ID)) != nil {
			return nil
		}

		user.LoyaltyPoints = 0
		if user.CreatedAt.IsZero() {
			user.CreatedAt = time.Now().UTC()
		}

		created = true
		return putJSON(b, user.ID, user)
	})

	return created, err
}

func (s *BoltStorage) SaveOrder(ctx context.Context, order entities.Order) (bool, error) {
	created := false

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ordersBucket)
		if b.Get([]byte(order.ID)) != nil {
			return nil
		}

		order.PointsAwarded = nil

		created = true
		return putJSON(b, order.ID, order)
	})

	return created, err
}

func (s *BoltStorage) GetUserOrders(ctx context.Context, userID string) ([]entities.Order, error) {
	var orders []entities.Order

	err := s.db.View(func(tx *bolt.Tx) error {
		settlements := tx.Bucket(settlementsBucket)

		return tx.Bucket(ordersBucket).ForEach(func(k, v []byte) error {
			var order entities.Order
			if err := json.Unmarshal(v, &order); err != nil {
				return err
			}

			if order.UserID != userID {
				return nil
			}

			var settlement entities.Settlement
			if err := getJSON(settlements, order.ID, &settlement); err == nil {
				award := settlement.Award
				order.PointsAwarded = &award
			}

			orders = append(orders, order)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})

	return orders, nil
}

func (s *BoltStorage) GetSettlement(ctx context.Context, orderID string) (entities.Settlement, error) {
	var settlement entities.Settlement

	err := s.db.View(func(tx *bolt.Tx) error {
		return getJSON(tx.Bucket(settlementsBucket), orderID, &settlement)
	})

	return settlement, err
}

func (s *BoltStorage) AdvanceOrders(ctx context.Context, from, to entities.OrderStatus, createdBefore time.Time) (int64, error) {
	var advanced int64

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(ordersBucket)

		var due []entities.Order
		err := b.ForEach(func(k, v []byte) error {
			var order entities.Order
			if err := json.Unmarshal(v, &order); err != nil {
				return err
			}

			if order.Status == from && order.CreatedAt.Before(createdBefore) {
				due = append(due, order)
			}

			return nil
		})
		if err != nil {
			return err
		}

		for _, order := range due {
			order.Status = to
			if err := putJSON(b, order.ID, order); err != nil {
				return err
			}
		}

		advanced = int64(len(due))
		return nil
	})

	return advanced, err
}

func (s *BoltStorage) RecordFailure(ctx context.Context, failure entities.SettlementFailure) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return putJSON(tx.Bucket(failuresBucket), failureKey(failure), failure)
	})
}

func (s *BoltStorage) GetSettlementFailures(ctx context.Context, limit int) ([]entities.SettlementFailure, error) {
	var failures []entities.SettlementFailure

	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(failuresBucket).Cursor()

		for k, v := c.Last(); k != nil && len(failures) < limit; k, v = c.Prev() {
			var failure entities.SettlementFailure
			if err := json.Unmarshal(v, &failure); err != nil {
				return err
			}

			failures = append(failures, failure)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return failures, nil
}

// failureKey sorts failures by time, newest last.
func failureKey(failure entities.SettlementFailure) string {
	return failure.CreatedAt.UTC().Format("20060102T150405.000000000") + "/" + failure.ID.String()
}

type boltTx struct {
	tx *bolt.Tx
}

func (t *boltTx) GetUserBalance(ctx context.Context, userID string) (int64, error) {
	var user entities.User
	if err := getJSON(t.tx.Bucket(usersBucket), userID, &user); err != nil {
		return 0, err
	}

	return user.LoyaltyPoints, nil
}

func (t *boltTx) GetSettlement(ctx context.Context, orderID string) (entities.Settlement, error) {
	var settlement entities.Settlement
	err := getJSON(t.tx.Bucket(settlementsBucket), orderID, &settlement)

	return settlement, err
}

func (t *boltTx) SetUserBalance(ctx context.Context, userID string, balance int64) error {
	b := t.tx.Bucket(usersBucket)

	var user entities.User
	if err := getJSON(b, userID, &user); err != nil {
		return err
	}

	user.LoyaltyPoints = balance

	return putJSON(b, userID, user)
}

func (t *boltTx) CreateSettlement(ctx context.Context, settlement entities.Settlement) error {
	b := t.tx.Bucket(settlementsBucket)
	if b.Get([]byte(settlement.OrderID)) != nil {
		return ErrConflict
	}

	return putJSON(b, settlement.OrderID, settlement)
}

func getJSON(b *bolt.Bucket, key string, v any) error {
	data := b.Get([]byte(key))
	if data == nil {
		return ErrNoRows
	}

	return json.Unmarshal(data, v)
}

func putJSON(b *bolt.Bucket, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return b.Put([]byte(key), data)
}
