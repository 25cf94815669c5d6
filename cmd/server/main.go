package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/UkralStul/tipping-service/api"
	"github.com/UkralStul/tipping-service/graph"
	"github.com/UkralStul/tipping-service/internal/config"
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/metrics"
	"github.com/UkralStul/tipping-service/internal/notify"
	"github.com/UkralStul/tipping-service/internal/settlement"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/UkralStul/tipping-service/internal/storage/inmemory"
	"github.com/UkralStul/tipping-service/internal/storage/postgres"
	"github.com/UkralStul/tipping-service/internal/tipping"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "tipping-server"
	version     = "0.1.0"
)

func main() {
	cmd := &cli.Command{
		Name:    serviceName,
		Usage:   "Tipping escrow and settlement service",
		Version: version,
		Flags:   config.Flags(),
		Action:  run,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, c *cli.Command) error {
	cfg := config.FromCommand(c)
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := newLogger(os.Stdout, serviceName, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	store, closeStore, err := openStorage(cfg)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info("storage ready", "storage", cfg.Storage)

	notifier, closeNotifier, err := openNotifier(cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	svc := tipping.NewService(store,
		tipping.WithNotifier(notifier),
		tipping.WithMetrics(m),
		tipping.WithLogger(logger.With("component", "tipping")),
		tipping.WithHoldingWindow(cfg.HoldingWindow),
		tipping.WithBalanceSeeding(cfg.MockData),
	)
	settler := settlement.New(store,
		settlement.WithNotifier(notifier),
		settlement.WithMetrics(m),
		settlement.WithLogger(logger.With("component", "settlement")),
		settlement.WithCurrency(cfg.LedgerCurrency),
	)

	if cfg.MockData {
		logger.Warn("mock data mode: users may be created with a starting balance")
		if err := fillWithMockData(ctx, svc, logger); err != nil {
			return err
		}
	}

	resolver := &graph.Resolver{Service: svc, Logger: logger.With("component", "graphql")}
	handler := &api.Handler{
		Service:    svc,
		Storage:    store,
		Logger:     logger.With("component", "api"),
		Gatherer:   reg,
		GraphQL:    graph.NewHandler(resolver),
		Playground: graph.Playground("/query"),
	}
	server := &api.Server{Addr: ":" + cfg.Port, Handler: handler.Routes(), Logger: logger}
	scheduler := &settlement.Scheduler{
		Settler:           settler,
		ProcessorInterval: cfg.ProcessorInterval,
		RecoveryInterval:  cfg.RecoveryInterval,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(ctx) })
	g.Go(func() error { return scheduler.Run(ctx) })

	err = g.Wait()
	logger.Info("server stopped")
	return err
}

func openStorage(cfg config.Config) (storage.Storage, func(), error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	case config.StorageSQLite:
		store, err := postgres.NewSQLite(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		return store, func() { _ = store.Close() }, nil
	default:
		return inmemory.New(), func() {}, nil
	}
}

func openNotifier(cfg config.Config, logger *slog.Logger) (notify.Notifier, func(), error) {
	if cfg.NATSURL == "" {
		return notify.Log{Logger: logger.With("component", "notify")}, func() {}, nil
	}
	n, err := notify.NewNATS(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing notifications to nats", "url", cfg.NATSURL, "subject", cfg.NATSSubject)
	return n, func() { _ = n.Close() }, nil
}

func fillWithMockData(ctx context.Context, svc *tipping.Service, logger *slog.Logger) error {
	// 1. Пользователи с начальным балансом.
	artist, err := svc.CreateUser(ctx, "artist", decimal.Zero)
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create artist: %w", err)
	}
	fan, err := svc.CreateUser(ctx, "fan", decimal.NewFromInt(100))
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create fan: %w", err)
	}

	// 2. Пост артиста.
	post, err := svc.CreatePost(ctx, artist.ID, domain.PostDraft{
		Title: "New single out now",
		Body:  "Stream it and leave a tip!",
		Media: []domain.Media{{URL: "https://cdn.example.com/single.mp3", Type: domain.MediaAudio}},
		Tags:  []string{"afrobeats", "new-release"},
	})
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create post: %w", err)
	}

	// 3. Комментарий фаната и ответ артиста.
	post, err = svc.CreateComment(ctx, post.ID, fan.ID, "This one is fire", "")
	if err != nil {
		return fmt.Errorf("fillWithMockData: failed to create comment: %w", err)
	}
	if _, err = svc.CreateComment(ctx, post.ID, artist.ID, "Thank you!", post.Comments[0].ID); err != nil {
		return fmt.Errorf("fillWithMockData: failed to create reply: %w", err)
	}

	// 4. Чаевые на пост.
	if _, _, err = svc.TipTarget(ctx, post.ID, "", fan.ID, decimal.NewFromInt(5), domain.CurrencyNGN); err != nil {
		return fmt.Errorf("fillWithMockData: failed to tip post: %w", err)
	}

	logger.Info("mock data filled", "post_id", post.ID, "artist_id", artist.ID, "fan_id", fan.ID)
	return nil
}
