package config

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/urfave/cli/v3"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parse(t *testing.T, args ...string) Config {
	t.Helper()
	var cfg Config
	cmd := &cli.Command{
		Name:  "test",
		Flags: Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg = FromCommand(c)
			return nil
		},
	}
	require.NoError(t, cmd.Run(context.Background(), append([]string{"test"}, args...)))
	return cfg
}

func TestFromCommand_Defaults(t *testing.T) {
	cfg := parse(t)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageInMemory, cfg.Storage)
	assert.Equal(t, time.Minute, cfg.ProcessorInterval)
	assert.Equal(t, 5*time.Minute, cfg.RecoveryInterval)
	assert.Equal(t, 7*24*time.Hour, cfg.HoldingWindow)
	assert.Equal(t, domain.CurrencyNGN, cfg.LedgerCurrency)
	assert.NoError(t, cfg.Validate())
}

func TestFromCommand_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE", "sqlite")
	t.Setenv("DATABASE_URL", "tips.db")
	t.Setenv("PROCESSOR_INTERVAL", "30s")
	t.Setenv("LEDGER_CURRENCY", "hbd")

	cfg := parse(t, "--port", "9090")

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, StorageSQLite, cfg.Storage)
	assert.Equal(t, "tips.db", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.ProcessorInterval)
	assert.Equal(t, domain.CurrencyHBD, cfg.LedgerCurrency)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:              "8080",
		Storage:           StorageInMemory,
		LogLevel:          "info",
		ProcessorInterval: time.Minute,
		RecoveryInterval:  time.Minute,
		HoldingWindow:     time.Hour,
		LedgerCurrency:    domain.CurrencyNGN,
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(c *Config){
		"missing port":     func(c *Config) { c.Port = "" },
		"unknown storage":  func(c *Config) { c.Storage = "redis" },
		"postgres no dsn":  func(c *Config) { c.Storage = StoragePostgres },
		"bad level":        func(c *Config) { c.LogLevel = "trace" },
		"zero interval":    func(c *Config) { c.RecoveryInterval = 0 },
		"negative window":  func(c *Config) { c.HoldingWindow = -time.Second },
		"unknown currency": func(c *Config) { c.LedgerCurrency = "USD" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}
