// Package trigger reacts to order, user and product events. Each handler is
// safe to run more than once for the same event.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/VladKvetkin/settlement/internal/entities"
	"github.com/VladKvetkin/settlement/internal/events"
	"github.com/VladKvetkin/settlement/internal/notifier"
	"github.com/VladKvetkin/settlement/internal/points"
	"github.com/VladKvetkin/settlement/internal/settlement"
	"github.com/VladKvetkin/settlement/internal/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	DefaultLowStockThreshold = 10

	welcomeSubject = "Welcome to CommerceAI!"
	welcomeMessage = "Thanks for signing up. We're excited to have you on board."
	awardedSubject = "You earned loyalty points"
)

type Enqueuer interface {
	Enqueue(notifier.Notification) bool
}

type Triggers struct {
	storage           storage.Storage
	settlement        *settlement.Service
	notifications     Enqueuer
	lowStockThreshold int
	now               func() time.Time
}

func New(storage storage.Storage, service *settlement.Service, notifications Enqueuer, lowStockThreshold int) *Triggers {
	if lowStockThreshold < 1 {
		lowStockThreshold = DefaultLowStockThreshold
	}

	return &Triggers{
		storage:           storage,
		settlement:        service,
		notifications:     notifications,
		lowStockThreshold: lowStockThreshold,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// Handle routes a raw event by its type. It lets the consumer treat every
// trigger the same way.
func (t *Triggers) Handle(ctx context.Context, eventType string, body []byte) error {
	switch eventType {
	case events.TypeOrderCreated:
		event, err := events.DecodeOrderCreated(body)
		if err != nil {
			return err
		}

		_, err = t.OrderCreated(ctx, event)
		return err
	case events.TypeUserCreated:
		event, err := events.DecodeUserCreated(body)
		if err != nil {
			return err
		}

		return t.UserCreated(ctx, event)
	case events.TypeProductUpdated:
		event, err := events.DecodeProductUpdated(body)
		if err != nil {
			return err
		}

		_, err = t.ProductUpdated(ctx, event)
		return err
	default:
		return fmt.Errorf("%w: unknown event type %q", events.ErrInvalidEvent, eventType)
	}
}

// IsPermanent reports whether redelivering the event that produced err cannot succeed.
func IsPermanent(err error) bool {
	return errors.Is(err, events.ErrInvalidEvent) ||
		errors.Is(err, settlement.ErrUserNotFound) ||
		errors.Is(err, settlement.ErrTransactionConflict) ||
		errors.Is(err, settlement.ErrInvalidAward) ||
		errors.Is(err, settlement.ErrBalanceOverflow) ||
		errors.Is(err, points.ErrAwardOverflow)
}

func (t *Triggers) OrderCreated(ctx context.Context, event events.OrderCreated) (settlement.Result, error) {
	order := event.Order()

	if _, err := t.storage.SaveOrder(ctx, order); err != nil {
		return settlement.Result{}, fmt.Errorf("save order: %w", err)
	}

	var award int64
	if order.Status != entities.OrderStatusCancelled {
		var err error
		if award, err = points.Award(order.Items); err != nil {
			t.recordFailure(ctx, order, 0, err)
			return settlement.Result{}, err
		}
	}

	result, err := t.settlement.Settle(ctx, order.UserID, order.ID, award)
	if err != nil {
		t.recordFailure(ctx, order, award, err)
		return settlement.Result{}, err
	}

	zap.L().Info(
		"Order settled",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int64("award", result.Award),
		zap.String("outcome", string(result.Outcome)),
		zap.Int("attempts", result.Attempts),
	)

	if result.Outcome == settlement.OutcomeSettled {
		t.notifyAwarded(ctx, result)
	}

	return result, nil
}

// recordFailure audits failures that redelivery cannot fix. Transient ones are only logged.
func (t *Triggers) recordFailure(ctx context.Context, order entities.Order, award int64, err error) {
	if !IsPermanent(err) {
		zap.L().Warn(
			"Transient error while settling order",
			zap.String("order_id", order.ID),
			zap.String("user_id", order.UserID),
			zap.Error(err),
		)

		return
	}

	zap.L().Error(
		"Error while settling order",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.Int64("award", award),
		zap.Error(err),
	)

	failure := entities.SettlementFailure{
		ID:        uuid.New(),
		OrderID:   order.ID,
		UserID:    order.UserID,
		Award:     award,
		Reason:    failureReason(err),
		Error:     err.Error(),
		CreatedAt: t.now(),
	}

	if err := t.storage.RecordFailure(context.WithoutCancel(ctx), failure); err != nil {
		zap.L().Error("Error while recording settlement failure", zap.String("order_id", order.ID), zap.Error(err))
	}
}

func failureReason(err error) entities.FailureReason {
	switch {
	case errors.Is(err, settlement.ErrUserNotFound):
		return entities.FailureUserNotFound
	case errors.Is(err, settlement.ErrTransactionConflict):
		return entities.FailureTransactionConflict
	case errors.Is(err, settlement.ErrBalanceOverflow), errors.Is(err, points.ErrAwardOverflow):
		return entities.FailureOverflow
	default:
		return entities.FailureInternal
	}
}

func (t *Triggers) notifyAwarded(ctx context.Context, result settlement.Result) {
	n := notifier.New(
		notifier.KindPointsAwarded,
		result.UserID,
		awardedSubject,
		fmt.Sprintf("You earned %d loyalty points for order %s. Your balance is now %d.", result.Award, result.OrderID, result.Balance),
	)

	user, err := t.storage.GetUser(ctx, result.UserID)
	if err != nil {
		zap.L().Warn("Error while looking up user email", zap.String("user_id", result.UserID), zap.Error(err))
	} else {
		n.Email = user.Email
	}

	t.notifications.Enqueue(n)
}

func (t *Triggers) UserCreated(ctx context.Context, event events.UserCreated) error {
	user := entities.User{
		ID:    event.UserID,
		Email: event.Email,
	}

	if user.Email != "" {
		subscribedAt := t.now()
		user.SubscribedAt = &subscribedAt
	}

	created, err := t.storage.CreateUser(ctx, user)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if !created {
		zap.L().Info("User already exists", zap.String("user_id", user.ID))
		return nil
	}

	if user.Email == "" {
		zap.L().Warn("User has no email, skipping welcome", zap.String("user_id", user.ID))
		return nil
	}

	n := notifier.New(notifier.KindUserWelcome, user.ID, welcomeSubject, welcomeMessage)
	n.Email = user.Email
	t.notifications.Enqueue(n)

	return nil
}

// ProductUpdated raises one alert per variant whose inventory fell below the
// threshold with this update. It returns the number of alerts raised.
func (t *Triggers) ProductUpdated(ctx context.Context, event events.ProductUpdated) (int, error) {
	alerts := LowStockAlerts(event, t.lowStockThreshold)

	for _, alert := range alerts {
		zap.L().Info("Low stock", zap.String("product_id", event.ProductID), zap.String("alert", alert))
		t.notifications.Enqueue(notifier.New(notifier.KindStockLow, "", "", alert))
	}

	return len(alerts), nil
}
