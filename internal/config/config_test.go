package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("TRIGGER_TOKEN", "token")
}

func TestNewConfigDefaults(t *testing.T) {
	setRequiredEnv(t)

	config, err := NewConfig([]string{"-l", "/tmp/ledger.db"})
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", config.Address)
	assert.Equal(t, "/tmp/ledger.db", config.LedgerPath)
	assert.Equal(t, 5, config.SettlementMaxAttempts)
	assert.Equal(t, 24*time.Hour, config.SweepInterval)
	assert.Equal(t, 10, config.LowStockThreshold)
	assert.Equal(t, "settlement", config.AMQPQueue)
}

func TestNewConfigEnvOverridesFlags(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("DATABASE_URI", "postgres://localhost/ledger")
	t.Setenv("SWEEP_INTERVAL", "1h")
	t.Setenv("SETTLEMENT_MAX_ATTEMPTS", "3")

	config, err := NewConfig([]string{"-a", "localhost:7070", "-d", "postgres://flag/ledger"})
	require.NoError(t, err)

	assert.Equal(t, ":9090", config.Address)
	assert.Equal(t, "postgres://localhost/ledger", config.DatabaseURI)
	assert.Equal(t, time.Hour, config.SweepInterval)
	assert.Equal(t, 3, config.SettlementMaxAttempts)
}

func TestNewConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{name: "no ledger", args: nil},
		{name: "two ledgers", args: []string{"-d", "postgres://localhost/ledger", "-l", "/tmp/ledger.db"}},
		{name: "bad address", args: []string{"-l", "/tmp/ledger.db", "-a", "nowhere"}},
		{name: "bad webhook", env: map[string]string{"ALERT_WEBHOOK_URL": "hooks"}, args: []string{"-l", "/tmp/ledger.db"}},
		{name: "no attempts", env: map[string]string{"SETTLEMENT_MAX_ATTEMPTS": "0"}, args: []string{"-l", "/tmp/ledger.db"}},
		{name: "unknown flag", args: []string{"-z"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for key, value := range tt.env {
				t.Setenv(key, value)
			}

			_, err := NewConfig(tt.args)
			assert.Error(t, err)
		})
	}
}

func TestNewConfigRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TRIGGER_TOKEN", "token")

	_, err := NewConfig([]string{"-l", "/tmp/ledger.db"})
	assert.Error(t, err)
}
