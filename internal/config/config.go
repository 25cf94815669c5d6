package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/urfave/cli/v3"
)

const (
	StorageInMemory = "in-memory"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

const (
	defaultProcessorInterval = time.Minute
	defaultRecoveryInterval  = 5 * time.Minute
	defaultHoldingWindow     = 7 * 24 * time.Hour
)

var (
	ErrInvalidConfig = errors.New("invalid config")

	storages  = []string{StorageInMemory, StoragePostgres, StorageSQLite}
	logLevels = []string{"debug", "info", "warn", "error"}
)

// Config - настройки процесса сервера.
type Config struct {
	Port              string
	Storage           string
	DatabaseURL       string
	NATSURL           string
	NATSSubject       string
	LogLevel          string
	ProcessorInterval time.Duration
	RecoveryInterval  time.Duration
	HoldingWindow     time.Duration
	LedgerCurrency    domain.Currency
	MockData          bool
}

// FromCommand собирает Config из флагов команды.
func FromCommand(c *cli.Command) Config {
	return Config{
		Port:              c.String("port"),
		Storage:           c.String("storage"),
		DatabaseURL:       c.String("database-url"),
		NATSURL:           c.String("nats-url"),
		NATSSubject:       c.String("nats-subject"),
		LogLevel:          c.String("log-level"),
		ProcessorInterval: c.Duration("processor-interval"),
		RecoveryInterval:  c.Duration("recovery-interval"),
		HoldingWindow:     c.Duration("holding-window"),
		LedgerCurrency:    domain.Currency(strings.ToUpper(c.String("ledger-currency"))),
		MockData:          c.Bool("mock-data"),
	}
}

// Validate проверяет согласованность настроек.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("%w: port is required", ErrInvalidConfig)
	}
	if !slices.Contains(storages, c.Storage) {
		return fmt.Errorf("%w: unknown storage %q, allowed values are: %s", ErrInvalidConfig, c.Storage, storages)
	}
	if c.Storage != StorageInMemory && c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL must be set for %s storage", ErrInvalidConfig, c.Storage)
	}
	if !slices.Contains(logLevels, c.LogLevel) {
		return fmt.Errorf("%w: invalid log level %q", ErrInvalidConfig, c.LogLevel)
	}
	if c.ProcessorInterval <= 0 || c.RecoveryInterval <= 0 {
		return fmt.Errorf("%w: sweep intervals must be positive", ErrInvalidConfig)
	}
	if c.HoldingWindow <= 0 {
		return fmt.Errorf("%w: holding window must be positive", ErrInvalidConfig)
	}
	if !c.LedgerCurrency.Valid() {
		return fmt.Errorf("%w: unsupported ledger currency %q", ErrInvalidConfig, c.LedgerCurrency)
	}
	return nil
}
