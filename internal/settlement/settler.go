package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/metrics"
	"github.com/UkralStul/tipping-service/internal/notify"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/shopspring/decimal"
)

// Sweep - вид прохода выплат.
type Sweep string

const (
	SweepProcessor Sweep = "processor"
	SweepRecovery  Sweep = "recovery"
)

const (
	defaultPageSize    = 100
	defaultMaxAttempts = 5
)

// Report - итог одного прохода.
type Report struct {
	Sweep    Sweep
	Posts    int
	Due      int
	Settled  int
	Failed   int
	Credited decimal.Decimal
}

// Settler переводит объекты из Due в Settled и начисляет сумму чаевых
// владельцу. Проходы Processor и Recovery не координируются между собой:
// однократность начисления обеспечивает сравнение версии поста в
// storage.SettleTarget.
type Settler struct {
	store       storage.Storage
	notifier    notify.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	now         func() time.Time
	currency    domain.Currency
	pageSize    int
	maxAttempts int
}

// Option настраивает Settler.
type Option func(*Settler)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Settler) { s.notifier = n }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Settler) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Settler) { s.logger = l }
}

// WithClock задает источник времени для проверки PayoutAt.
func WithClock(now func() time.Time) Option {
	return func(s *Settler) { s.now = now }
}

// WithCurrency задает валюту записей pendingBreakdown.
func WithCurrency(c domain.Currency) Option {
	return func(s *Settler) { s.currency = c }
}

// WithPageSize задает размер страницы постов для Recovery.
func WithPageSize(n int) Option {
	return func(s *Settler) { s.pageSize = n }
}

// New создает Settler.
func New(store storage.Storage, opts ...Option) *Settler {
	s := &Settler{
		store:       store,
		now:         func() time.Time { return time.Now().UTC() },
		currency:    domain.CurrencyNGN,
		pageSize:    defaultPageSize,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	if s.pageSize <= 0 {
		s.pageSize = defaultPageSize
	}
	return s
}

// RunProcessor выплачивает объекты постов, отобранных по индексу
// next_payout_at <= now.
func (s *Settler) RunProcessor(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Sweep: SweepProcessor, Credited: decimal.Zero}
	s.logger.DebugContext(ctx, "running payout processor")

	posts, err := s.store.GetDuePosts(ctx, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "payout processor failed to load due posts", "error", err)
		return report, err
	}
	for _, post := range posts {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.settlePost(ctx, post, SweepProcessor, &report)
	}

	s.finish(ctx, &report, start)
	return report, nil
}

// RunRecovery обходит все посты постранично и выплачивает пропущенные
// объекты. Записи начислений помечаются Recovered.
func (s *Settler) RunRecovery(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Sweep: SweepRecovery, Credited: decimal.Zero}
	s.logger.DebugContext(ctx, "running payout recovery scan")

	for offset := 0; ; offset += s.pageSize {
		posts, err := s.store.GetPosts(ctx, s.pageSize, offset)
		if err != nil {
			s.logger.ErrorContext(ctx, "payout recovery failed to load posts", "offset", offset, "error", err)
			return report, err
		}
		for _, post := range posts {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			s.settlePost(ctx, post, SweepRecovery, &report)
		}
		if len(posts) < s.pageSize {
			break
		}
	}

	s.finish(ctx, &report, start)
	return report, nil
}

func (s *Settler) finish(ctx context.Context, report *Report, start time.Time) {
	s.metrics.SweepDuration.WithLabelValues(string(report.Sweep)).Observe(time.Since(start).Seconds())
	s.logger.InfoContext(ctx, "payout sweep finished",
		"sweep", report.Sweep, "posts", report.Posts, "due", report.Due,
		"settled", report.Settled, "failed", report.Failed, "credited", report.Credited.String())
}

// settlePost выплачивает каждый готовый объект поста отдельно: ошибка по
// одному объекту не мешает остальным.
func (s *Settler) settlePost(ctx context.Context, post *domain.Post, sweep Sweep, report *Report) {
	report.Posts++
	for _, target := range post.DueTargets(s.now()) {
		report.Due++
		credited, settled, err := s.settleTarget(ctx, post.ID, target.ID, sweep)
		if err != nil {
			report.Failed++
			s.metrics.SettleFailures.WithLabelValues(string(sweep)).Inc()
			s.logger.WarnContext(ctx, "failed to settle target, will retry on next sweep",
				"sweep", sweep, "post_id", post.ID, "target_id", target.ID, "kind", target.Kind,
				"owner_id", target.OwnerID, "error", err)
			continue
		}
		if !settled {
			continue
		}
		report.Settled++
		report.Credited = report.Credited.Add(credited)
	}
}

// settleTarget перечитывает пост и пытается захватить объект. Возвращает
// начисленную сумму и признак того, что переход выполнил именно этот вызов.
func (s *Settler) settleTarget(ctx context.Context, postID, targetID string, sweep Sweep) (decimal.Decimal, bool, error) {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		post, err := s.store.GetPostByID(ctx, postID)
		if err != nil {
			return decimal.Zero, false, err
		}
		target, err := post.Locate(targetID)
		if err != nil {
			return decimal.Zero, false, err
		}

		now := s.now()
		if !target.Escrow.Due(now) {
			// Уже выплачен другим проходом.
			return decimal.Zero, false, nil
		}

		amount := target.Escrow.TotalTips
		var credit *storage.Credit
		if amount.IsPositive() {
			credit = &storage.Credit{
				UserID: target.OwnerID,
				Entry: domain.RewardEntry{
					SourceID:   target.ID,
					SourceType: target.Kind,
					Amount:     amount,
					Currency:   s.currency,
					Recovered:  sweep == SweepRecovery,
					CreatedAt:  now,
				},
			}
		}
		target.Escrow.MarkPaidOut()

		err = s.store.SettleTarget(ctx, post, credit)
		if errors.Is(err, storage.ErrVersionConflict) {
			s.logger.DebugContext(ctx, "post changed during settlement, re-reading",
				"post_id", postID, "target_id", targetID, "attempt", attempt)
			continue
		}
		if err != nil {
			return decimal.Zero, false, err
		}

		s.metrics.Settled.WithLabelValues(string(sweep), string(target.Kind)).Inc()
		if credit != nil {
			s.metrics.Credited.WithLabelValues(string(sweep)).Add(amount.InexactFloat64())
			n := notify.Notification{
				UserID:  target.OwnerID,
				Type:    notify.TypePayout,
				PostID:  postID,
				Message: fmt.Sprintf("Your %s earned %s %s in tips", target.Kind, amount.String(), s.currency),
			}
			if target.Kind != domain.KindPost {
				n.CommentID = target.ID
			}
			notify.Send(ctx, s.notifier, s.logger, n)
		}
		return amount, true, nil
	}
	return decimal.Zero, false, fmt.Errorf("settle target %s: %w", targetID, storage.ErrVersionConflict)
}
