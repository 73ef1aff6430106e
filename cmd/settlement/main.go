package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/VladKvetkin/settlement/internal/config"
	"github.com/VladKvetkin/settlement/internal/events"
	"github.com/VladKvetkin/settlement/internal/feed"
	"github.com/VladKvetkin/settlement/internal/handler"
	"github.com/VladKvetkin/settlement/internal/logger"
	"github.com/VladKvetkin/settlement/internal/notifier"
	"github.com/VladKvetkin/settlement/internal/server"
	"github.com/VladKvetkin/settlement/internal/settlement"
	"github.com/VladKvetkin/settlement/internal/storage"
	"github.com/VladKvetkin/settlement/internal/sweeper"
	"github.com/VladKvetkin/settlement/internal/trigger"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	os.Exit(start())
}

func start() int {
	config, err := config.NewConfig(os.Args[1:])
	if err != nil {
		zap.L().Error("error create config", zap.Error(err))
		return 1
	}

	if err := logger.Initialize(config.LogLevel); err != nil {
		zap.L().Error("error init logger", zap.Error(err))
		return 1
	}

	defer zap.L().Sync()

	ledger, err := openStorage(config)
	if err != nil {
		zap.L().Error("error open ledger", zap.Error(err))
		return 1
	}

	defer ledger.Close()

	hub := feed.NewHub()
	dispatcher := notifier.NewDispatcher(config.NotifyQueueSize, config.NotifyWorkers, config.NotifyTimeout, sinks(config, hub)...)

	var (
		service  = settlement.NewService(ledger, config.SettlementMaxAttempts)
		triggers = trigger.New(ledger, service, dispatcher, config.LowStockThreshold)
		sweeper  = sweeper.NewSweeper(ledger, config.SweepInterval, config.SweepAge)
	)

	server := server.NewServer(config, handler.NewHandler(ledger, triggers, hub))

	var consumer *events.Consumer
	if config.AMQPURL != "" {
		consumer, err = events.NewConsumer(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, triggers, trigger.IsPermanent)
		if err != nil {
			zap.L().Error("error connect event consumer", zap.Error(err))
			return 1
		}

		defer consumer.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		if err := server.Start(); err != nil {
			zap.L().Error("error starting server", zap.Error(err))
			return err
		}

		return nil
	})

	eg.Go(func() error {
		return hub.Run(ctx)
	})

	eg.Go(func() error {
		return dispatcher.Start(ctx)
	})

	eg.Go(func() error {
		return sweeper.Start(ctx)
	})

	if consumer != nil {
		eg.Go(func() error {
			if err := consumer.Start(ctx); err != nil {
				zap.L().Error("error consuming events", zap.Error(err))
				return err
			}

			return nil
		})
	}

	<-ctx.Done()

	eg.Go(func() error {
		if err := server.Stop(); err != nil {
			zap.L().Error("error stopping server", zap.Error(err))
			return err
		}

		return nil
	})

	if err := eg.Wait(); err != nil {
		return 1
	}

	return 0
}

func openStorage(config config.Config) (storage.Storage, error) {
	if config.LedgerPath != "" {
		return storage.NewBoltStorage(config.LedgerPath)
	}

	db, err := sqlx.Connect("postgres", config.DatabaseURI)
	if err != nil {
		return nil, err
	}

	postgresStorage, err := storage.NewPostgresStorage(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return postgresStorage, nil
}

func sinks(config config.Config, hub *feed.Hub) []notifier.Sink {
	sinks := []notifier.Sink{hub}

	if config.AlertWebhookURL != "" {
		sinks = append(sinks, notifier.NewWebhookSink(config.AlertWebhookURL, notifier.DefaultRetryPolicy, notifier.KindStockLow))
	} else {
		zap.L().Warn("ALERT_WEBHOOK_URL is not set, low stock alerts are only logged")
	}

	if config.SendGridAPIKey != "" {
		sinks = append(sinks, notifier.NewEmailSink(config.SendGridURL, config.SendGridAPIKey, config.SendGridFrom, notifier.DefaultRetryPolicy))
	} else {
		zap.L().Warn("SENDGRID_API_KEY is not set, skipping emails")
	}

	return sinks
}
