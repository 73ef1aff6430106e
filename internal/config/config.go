package config

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/VladKvetkin/settlement/internal/notifier"
	"github.com/VladKvetkin/settlement/internal/settlement"
	"github.com/VladKvetkin/settlement/internal/sweeper"
	"github.com/VladKvetkin/settlement/internal/trigger"
	"github.com/caarlos0/env/v8"
)

type Config struct {
	Address     string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	LedgerPath  string `env:"LEDGER_PATH"`
	LogLevel    string `env:"LOG_LEVEL"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE"`
	AMQPQueue    string `env:"AMQP_QUEUE"`

	JWTSecret    string `env:"JWT_SECRET"`
	TriggerToken string `env:"TRIGGER_TOKEN"`

	SettlementMaxAttempts int           `env:"SETTLEMENT_MAX_ATTEMPTS"`
	SweepInterval         time.Duration `env:"SWEEP_INTERVAL"`
	SweepAge              time.Duration `env:"SWEEP_AGE"`
	LowStockThreshold     int           `env:"LOW_STOCK_THRESHOLD"`

	NotifyWorkers   int           `env:"NOTIFY_WORKERS"`
	NotifyQueueSize int           `env:"NOTIFY_QUEUE_SIZE"`
	NotifyTimeout   time.Duration `env:"NOTIFY_TIMEOUT"`

	AlertWebhookURL string `env:"ALERT_WEBHOOK_URL"`
	SendGridAPIKey  string `env:"SENDGRID_API_KEY"`
	SendGridFrom    string `env:"SENDGRID_FROM"`
	SendGridURL     string `env:"SENDGRID_URL"`
}

// NewConfig reads flags from args, lets the environment override them and
// validates the result.
func NewConfig(args []string) (Config, error) {
	config := Config{
		Address:               "localhost:8080",
		LogLevel:              "info",
		AMQPExchange:          "orders",
		AMQPQueue:             "settlement",
		SettlementMaxAttempts: settlement.DefaultMaxAttempts,
		SweepInterval:         sweeper.DefaultInterval,
		SweepAge:              sweeper.DefaultAge,
		LowStockThreshold:     trigger.DefaultLowStockThreshold,
		NotifyWorkers:         4,
		NotifyQueueSize:       256,
		NotifyTimeout:         10 * time.Second,
		SendGridFrom:          "welcome@your-app-name.com",
		SendGridURL:           notifier.DefaultSendGridURL,
	}

	if err := config.parseFlags(args); err != nil {
		return Config{}, err
	}

	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}

	if err := config.validateConfig(); err != nil {
		return Config{}, err
	}

	return config, nil
}

func (c *Config) parseFlags(args []string) error {
	fs := flag.NewFlagSet("settlement", flag.ContinueOnError)

	fs.StringVar(&c.Address, "a", c.Address, "Service address")
	fs.StringVar(&c.DatabaseURI, "d", c.DatabaseURI, "Database URI")
	fs.StringVar(&c.LedgerPath, "l", c.LedgerPath, "Embedded ledger file")
	fs.StringVar(&c.AMQPURL, "q", c.AMQPURL, "RabbitMQ URL")

	return fs.Parse(args)
}

func (c *Config) validateConfig() error {
	if (c.DatabaseURI == "") == (c.LedgerPath == "") {
		return errors.New("exactly one of DATABASE_URI and LEDGER_PATH must be set")
	}

	if _, _, err := net.SplitHostPort(c.Address); err != nil {
		return fmt.Errorf("invalid run address: %w", err)
	}

	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	if c.TriggerToken == "" {
		return errors.New("TRIGGER_TOKEN is required")
	}

	for _, URI := range []string{c.AlertWebhookURL, c.SendGridURL} {
		if URI == "" {
			continue
		}

		if _, err := url.ParseRequestURI(URI); err != nil {
			return err
		}
	}

	if c.SettlementMaxAttempts < 1 {
		return errors.New("SETTLEMENT_MAX_ATTEMPTS must be positive")
	}

	return nil
}
