package tipping

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/metrics"
	"github.com/UkralStul/tipping-service/internal/notify"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultHoldingWindow - срок удержания чаевых до выплаты.
const DefaultHoldingWindow = 7 * 24 * time.Hour

const defaultMaxAttempts = 8

const (
	defaultPageSize    = 20
	defaultRandomPosts = 5
	maxPageSize        = 100
)

// Service выполняет операции над постами, комментариями и чаевыми.
type Service struct {
	store         storage.Storage
	notifier      notify.Notifier
	metrics       *metrics.Metrics
	logger        *slog.Logger
	now           func() time.Time
	holdingWindow time.Duration
	maxAttempts   int
	allowSeeding  bool
}

// Option настраивает Service.
type Option func(*Service)

// WithNotifier задает получателя уведомлений.
func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMetrics задает коллекторы метрик.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger задает логгер.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithClock задает источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithHoldingWindow задает срок удержания чаевых.
func WithHoldingWindow(d time.Duration) Option {
	return func(s *Service) { s.holdingWindow = d }
}

// WithMaxAttempts ограничивает число повторов при конфликте версий поста.
func WithMaxAttempts(n int) Option {
	return func(s *Service) { s.maxAttempts = n }
}

// WithBalanceSeeding разрешает регистрацию пользователей с ненулевым
// начальным балансом. Нужна только для разработки и демо-данных.
func WithBalanceSeeding(enabled bool) Option {
	return func(s *Service) { s.allowSeeding = enabled }
}

// NewService создает сервис поверх хранилища.
func NewService(store storage.Storage, opts ...Option) *Service {
	s := &Service{
		store:         store,
		now:           func() time.Time { return time.Now().UTC() },
		holdingWindow: DefaultHoldingWindow,
		maxAttempts:   defaultMaxAttempts,
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
	if s.maxAttempts <= 0 {
		s.maxAttempts = defaultMaxAttempts
	}
	return s
}

// === Users ===

// CreateUser регистрирует пользователя. Ненулевой начальный баланс
// допускается только при включенном WithBalanceSeeding.
func (s *Service) CreateUser(ctx context.Context, username string, balance decimal.Decimal) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrEmptyUsername
	}
	if err := domain.ValidateBalance(balance); err != nil {
		return nil, err
	}
	if !balance.IsZero() && !s.allowSeeding {
		return nil, domain.ErrSeedingDisabled
	}
	user, err := s.store.CreateUser(ctx, &domain.User{
		ID:             uuid.NewString(),
		Username:       username,
		Balance:        balance,
		PendingRewards: decimal.Zero,
		CreatedAt:      s.now(),
	})
	return user, domain.Internal(err)
}

func (s *Service) GetUser(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.store.GetUserByID(ctx, id)
	return user, domain.Internal(err)
}

func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	limit, offset = page(limit, offset, defaultPageSize)
	users, err := s.store.GetUsers(ctx, limit, offset)
	return users, domain.Internal(err)
}

// === Posts ===

// CreatePost публикует пост. Окно удержания отсчитывается от момента публикации.
func (s *Service) CreatePost(ctx context.Context, authorID string, draft domain.PostDraft) (*domain.Post, error) {
	draft, err := draft.Normalize()
	if err != nil {
		return nil, err
	}
	author, err := s.store.GetUserByID(ctx, authorID)
	if err != nil {
		return nil, domain.Internal(err)
	}

	now := s.now()
	post, err := s.store.CreatePost(ctx, &domain.Post{
		ID:         uuid.NewString(),
		AuthorID:   author.ID,
		AuthorName: author.Username,
		Title:      draft.Title,
		Body:       draft.Body,
		Media:      draft.Media,
		Tags:       draft.Tags,
		Escrow:     domain.NewEscrow(now, s.holdingWindow),
		Comments:   []*domain.Comment{},
		CreatedAt:  now,
	})
	return post, domain.Internal(err)
}

func (s *Service) GetPost(ctx context.Context, id string) (*domain.Post, error) {
	post, err := s.store.GetPostByID(ctx, id)
	return post, domain.Internal(err)
}

func (s *Service) ListPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	limit, offset = page(limit, offset, defaultPageSize)
	posts, err := s.store.GetPosts(ctx, limit, offset)
	return posts, domain.Internal(err)
}

// RandomPosts возвращает до limit случайных постов, по умолчанию пять.
func (s *Service) RandomPosts(ctx context.Context, limit int) ([]*domain.Post, error) {
	limit, _ = page(limit, 0, defaultRandomPosts)
	posts, err := s.store.GetRandomPosts(ctx, limit)
	return posts, domain.Internal(err)
}

// DeletePost удаляет пост вместе с комментариями. Удалить может только автор
// и только пока в посте нет невыплаченных чаевых.
func (s *Service) DeletePost(ctx context.Context, postID, actorID string) error {
	err := s.retry(ctx, "delete post", func() error {
		post, err := s.store.GetPostByID(ctx, postID)
		if err != nil {
			return err
		}
		if post.AuthorID != actorID {
			return domain.ErrNotPostAuthor
		}
		if post.HasPendingTips() {
			return domain.ErrPostHasPendingTips
		}
		return s.store.DeletePost(ctx, post)
	})
	if err != nil {
		return domain.Internal(err)
	}
	s.logger.InfoContext(ctx, "post deleted", "post_id", postID, "author_id", actorID)
	return nil
}

func page(limit, offset, def int) (int, int) {
	if limit <= 0 || limit > maxPageSize {
		limit = def
	}
	return limit, max(offset, 0)
}

// === Comments ===

// CreateComment добавляет комментарий или ответ и возвращает обновленный пост.
func (s *Service) CreateComment(ctx context.Context, postID, actorID, content, replyTo string) (*domain.Post, error) {
	if err := domain.ValidateContent(content); err != nil {
		return nil, err
	}
	actor, err := s.store.GetUserByID(ctx, actorID)
	if err != nil {
		return nil, domain.Internal(err)
	}

	var (
		post      *domain.Post
		placement domain.Placement
	)
	err = s.retry(ctx, "create comment", func() error {
		post, err = s.store.GetPostByID(ctx, postID)
		if err != nil {
			return err
		}
		placement, err = domain.PlaceComment(post, domain.Author{ID: actor.ID, Name: actor.Username},
			content, replyTo, s.now(), s.holdingWindow)
		if err != nil {
			return err
		}
		return s.store.SavePost(ctx, post)
	})
	if err != nil {
		return nil, domain.Internal(err)
	}

	n := notify.Notification{
		UserID:       placement.NotifyUserID,
		Type:         notify.TypeComment,
		PostID:       post.ID,
		CommentID:    placement.Comment.ID,
		FromUserID:   actor.ID,
		FromUsername: actor.Username,
		Message:      actor.Username + " commented on your post",
	}
	kind := domain.KindComment
	if placement.Reply != nil {
		kind = domain.KindReply
		n.Type = notify.TypeReply
		n.CommentID = placement.Reply.ID
		n.Message = actor.Username + " replied to your comment"
	}
	s.metrics.Comments.WithLabelValues(string(kind)).Inc()
	notify.Send(ctx, s.notifier, s.logger, n)

	return post, nil
}

// === Tips ===

// TipTarget отправляет чаевые на пост (targetID пустой) или на комментарий/ответ.
//
// Списание с баланса отправителя и запись чаевых в пост выполняются одной
// транзакцией хранилища. Если пост изменился параллельно, операция
// повторяется с перечитанным постом.
func (s *Service) TipTarget(ctx context.Context, postID, targetID, senderID string, amount decimal.Decimal, currency domain.Currency) (*domain.Post, domain.Tip, error) {
	if err := domain.ValidateTip(amount, currency); err != nil {
		s.metrics.Tips.WithLabelValues("unknown", "rejected").Inc()
		return nil, domain.Tip{}, err
	}

	var (
		post   *domain.Post
		target domain.Target
		tip    domain.Tip
	)
	err := s.retry(ctx, "tip target", func() error {
		var err error
		post, err = s.store.GetPostByID(ctx, postID)
		if err != nil {
			return err
		}
		target, err = post.Locate(targetID)
		if err != nil {
			return err
		}
		sender, err := s.store.GetUserByID(ctx, senderID)
		if err != nil {
			return err
		}
		tip, err = domain.ApplyTip(target, post.ID, sender, amount, currency, s.now())
		if err != nil {
			return err
		}
		return s.store.CommitTip(ctx, post, storage.Debit{UserID: sender.ID, Amount: amount})
	})
	if err != nil {
		kind := "unknown"
		if target.Kind != "" {
			kind = string(target.Kind)
		}
		s.metrics.Tips.WithLabelValues(kind, "rejected").Inc()
		return nil, domain.Tip{}, domain.Internal(err)
	}
	s.metrics.Tips.WithLabelValues(string(target.Kind), "accepted").Inc()

	s.logger.InfoContext(ctx, "tip recorded",
		"post_id", post.ID, "target_id", target.ID, "kind", target.Kind,
		"from", tip.FromUserID, "amount", tip.Amount.String(), "currency", tip.Currency)

	n := notify.Notification{
		UserID:       target.OwnerID,
		Type:         notify.TypePostTip,
		PostID:       post.ID,
		FromUserID:   tip.FromUserID,
		FromUsername: tip.FromUsername,
		Message:      tip.FromUsername + " tipped your post " + tip.Amount.String() + " " + string(tip.Currency),
	}
	if target.Kind != domain.KindPost {
		n.Type = notify.TypeCommentTip
		n.CommentID = target.ID
		n.Message = tip.FromUsername + " tipped your " + string(target.Kind) + " " + tip.Amount.String() + " " + string(tip.Currency)
	}
	if target.OwnerID == tip.FromUserID {
		n.UserID = ""
	}
	notify.Send(ctx, s.notifier, s.logger, n)

	return post, tip, nil
}

// retry повторяет fn, пока хранилище отвечает конфликтом версий.
func (s *Service) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		err := fn()
		if !errors.Is(err, storage.ErrVersionConflict) {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		s.logger.DebugContext(ctx, "post version conflict, retrying", "op", op, "attempt", attempt)
	}
	return domain.ErrConcurrentUpdate
}
