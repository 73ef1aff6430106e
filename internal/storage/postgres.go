package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/jackc/pgerrcode"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type PostgresStorage struct {
	db *sqlx.DB
}

func NewPostgresStorage(db *sqlx.DB) (*PostgresStorage, error) {
	storage := &PostgresStorage{db: db}

	if err := storage.runMigrations(context.Background()); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func (s *PostgresStorage) RunTransaction(ctx context.Context, fn func(context.Context, Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return mapPostgresError(err)
	}

	defer tx.Rollback()

	if err := fn(ctx, &postgresTx{tx: tx}); err != nil {
		return mapPostgresError(err)
	}

	return mapPostgresError(tx.Commit())
}

func (s *PostgresStorage) GetUser(ctx context.Context, userID string) (entities.User, error) {
	var user entities.User

	err := s.db.GetContext(
		ctx,
		&user,
		"SELECT id, email, loyalty_points, subscribed_at, created_at FROM users WHERE id = $1;",
		userID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user, ErrNoRows
		}

		return user, err
	}

	return user, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user entities.User) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO users (id, email, loyalty_points, subscribed_at)
		VALUES ($1, $2, 0, $3)
		ON CONFLICT (id) DO NOTHING;`,
		user.ID, user.Email, user.SubscribedAt,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (s *PostgresStorage) SaveOrder(ctx context.Context, order entities.Order) (bool, error) {
	result, err := s.db.ExecContext(
		ctx,
		`INSERT INTO orders (id, user_id, items, status, created_at, risk_assessment)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING;`,
		order.ID, order.UserID, order.Items, order.Status, order.CreatedAt, order.RiskAssessment,
	)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return affected == 1, nil
}

func (s *PostgresStorage) GetUserOrders(ctx context.Context, userID string) ([]entities.Order, error) {
	var orders []entities.Order

	err := s.db.SelectContext(
		ctx,
		&orders,
		`SELECT o.id, o.user_id, o.items, o.status, o.created_at, o.risk_assessment, s.award AS points_awarded
		FROM orders o
		LEFT JOIN settlements s ON s.order_id = o.id
		WHERE o.user_id = $1
		ORDER BY o.created_at ASC;`,
		userID,
	)
	if err != nil {
		return nil, err
	}

	return orders, nil
}

func (s *PostgresStorage) GetSettlement(ctx context.Context, orderID string) (entities.Settlement, error) {
	return getSettlement(ctx, s.db, orderID)
}

func (s *PostgresStorage) AdvanceOrders(ctx context.Context, from, to entities.OrderStatus, createdBefore time.Time) (int64, error) {
	result, err := s.db.ExecContext(
		ctx,
		`UPDATE orders SET status = $1 WHERE status = $2 AND created_at < $3;`,
		to, from, createdBefore,
	)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (s *PostgresStorage) RecordFailure(ctx context.Context, failure entities.SettlementFailure) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO settlement_failures (id, order_id, user_id, award, reason, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		failure.ID, failure.OrderID, failure.UserID, failure.Award, failure.Reason, failure.Error, failure.CreatedAt,
	)

	return err
}

func (s *PostgresStorage) GetSettlementFailures(ctx context.Context, limit int) ([]entities.SettlementFailure, error) {
	var failures []entities.SettlementFailure

	err := s.db.SelectContext(
		ctx,
		&failures,
		"SELECT * FROM settlement_failures ORDER BY created_at DESC LIMIT $1;",
		limit,
	)
	if err != nil {
		return nil, err
	}

	return failures, nil
}

func (s *PostgresStorage) runMigrations(ctx context.Context) error {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	defer tx.Rollback()

	for _, entry := range entries {
		body, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			return fmt.Errorf("exec migration %s: %w", entry.Name(), err)
		}
	}

	return tx.Commit()
}

type postgresTx struct {
	tx *sqlx.Tx
}

func (t *postgresTx) GetUserBalance(ctx context.Context, userID string) (int64, error) {
	var balance int64

	row := t.tx.QueryRowxContext(ctx, "SELECT loyalty_points FROM users WHERE id = $1 FOR UPDATE;", userID)

	if err := row.Err(); err != nil {
		return 0, err
	}

	if err := row.Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNoRows
		}

		return 0, err
	}

	return balance, nil
}

func (t *postgresTx) GetSettlement(ctx context.Context, orderID string) (entities.Settlement, error) {
	return getSettlement(ctx, t.tx, orderID)
}

func (t *postgresTx) SetUserBalance(ctx context.Context, userID string, balance int64) error {
	result, err := t.tx.ExecContext(ctx, "UPDATE users SET loyalty_points = $1 WHERE id = $2;", balance, userID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if affected == 0 {
		return ErrNoRows
	}

	return nil
}

func (t *postgresTx) CreateSettlement(ctx context.Context, settlement entities.Settlement) error {
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO settlements (order_id, user_id, award, settled_at)
		VALUES ($1, $2, $3, $4);`,
		settlement.OrderID, settlement.UserID, settlement.Award, settlement.SettledAt,
	)

	return err
}

func getSettlement(ctx context.Context, q sqlx.QueryerContext, orderID string) (entities.Settlement, error) {
	var settlement entities.Settlement

	err := sqlx.GetContext(
		ctx,
		q,
		&settlement,
		"SELECT order_id, user_id, award, settled_at FROM settlements WHERE order_id = $1;",
		orderID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return settlement, ErrNoRows
		}

		return settlement, err
	}

	return settlement, nil
}

// mapPostgresError turns serialization failures, deadlocks and a duplicate
// settlement marker into ErrConflict so the caller can rerun the transaction.
func mapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		if pgerrcode.IsTransactionRollback(code) || code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Message)
		}
	}

	return err
}
