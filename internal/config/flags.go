package config

import (
	"fmt"
	"slices"

	"github.com/UkralStul/tipping-service/internal/notify"
	"github.com/urfave/cli/v3"
)

// Flags - флаги команды сервера. Каждый флаг читается и из переменной окружения.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "HTTP port",
			Value:   "8080",
			Sources: cli.EnvVars("PORT"),
		},
		&cli.StringFlag{
			Name:    "storage",
			Usage:   "Storage type (in-memory, postgres or sqlite)",
			Value:   StorageInMemory,
			Sources: cli.EnvVars("STORAGE"),
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "Postgres DSN or sqlite file path",
			Sources: cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "nats-url",
			Aliases: []string{"n"},
			Usage:   "NATS server URL for notifications, empty to log them",
			Sources: cli.EnvVars("NATS_URL"),
		},
		&cli.StringFlag{
			Name:    "nats-subject",
			Usage:   "NATS subject for notifications",
			Value:   notify.DefaultSubject,
			Sources: cli.EnvVars("NATS_SUBJECT"),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Aliases: []string{"l"},
			Usage:   "The level of the logs",
			Value:   "info",
			Validator: func(value string) error {
				if !slices.Contains(logLevels, value) {
					return fmt.Errorf("invalid log level: %s, allowed values are: %s", value, logLevels)
				}
				return nil
			},
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
		&cli.DurationFlag{
			Name:    "processor-interval",
			Usage:   "Interval of the payout processor",
			Value:   defaultProcessorInterval,
			Sources: cli.EnvVars("PROCESSOR_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:    "recovery-interval",
			Usage:   "Interval of the payout recovery scan",
			Value:   defaultRecoveryInterval,
			Sources: cli.EnvVars("RECOVERY_INTERVAL"),
		},
		&cli.DurationFlag{
			Name:    "holding-window",
			Usage:   "How long tips are held before payout",
			Value:   defaultHoldingWindow,
			Sources: cli.EnvVars("HOLDING_WINDOW"),
		},
		&cli.StringFlag{
			Name:    "ledger-currency",
			Usage:   "Currency recorded in pending reward entries",
			Value:   "NGN",
			Sources: cli.EnvVars("LEDGER_CURRENCY"),
		},
		&cli.BoolFlag{
			Name:    "mock-data",
			Usage:   "Fill storage with demo data and allow creating users with a starting balance (development only)",
			Sources: cli.EnvVars("MOCK_DATA"),
		},
	}
}
