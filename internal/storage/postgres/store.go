package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/storage"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// postRecord - строка таблицы posts. Дерево комментариев и чаевые лежат
// в Document целиком, next_payout_at индексируется для выборки процессора.
type postRecord struct {
	ID           string      `gorm:"type:varchar(64);primaryKey"`
	AuthorID     string      `gorm:"type:varchar(64);not null;index"`
	NextPayoutAt *time.Time  `gorm:"index"`
	Version      int64       `gorm:"not null"`
	Document     domain.Post `gorm:"type:text;serializer:json;not null"`
	CreatedAt    time.Time   `gorm:"not null;index"`
	UpdatedAt    time.Time
}

func (postRecord) TableName() string { return "posts" }

func newPostRecord(post *domain.Post, version int64) postRecord {
	doc := *post
	doc.Version = version
	return postRecord{
		ID:           post.ID,
		AuthorID:     post.AuthorID,
		NextPayoutAt: utcPtr(post.NextPayoutAt()),
		Version:      version,
		Document:     doc,
		CreatedAt:    post.CreatedAt,
	}
}

func (r *postRecord) toDomain() *domain.Post {
	post := r.Document
	post.ID = r.ID
	post.Version = r.Version
	return &post
}

// Store реализует интерфейс Storage поверх gorm.
type Store struct {
	db *gorm.DB
}

// New создает новый экземпляр хранилища PostgreSQL.
func New(dsn string) (*Store, error) {
	return Open(postgres.Open(dsn))
}

// NewSQLite открывает хранилище в файле SQLite. Используется для локального
// запуска и тестов. Записи в SQLite проходят через одно соединение.
func NewSQLite(path string) (*Store, error) {
	store, err := Open(sqlite.Open(path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"))
	if err != nil {
		return nil, err
	}
	sqlDB, err := store.db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return store, nil
}

// Open подключается через переданный диалект и выполняет миграцию схемы.
func Open(dialector gorm.Dialector) (*Store, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.User{}, &domain.RewardEntry{}, &postRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// === User Methods ===

func (s *Store) CreateUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Omit("PendingBreakdown").Create(user).Error; err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if user.PendingBreakdown == nil {
		user.PendingBreakdown = []domain.RewardEntry{}
	}
	return user, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	err := s.db.WithContext(ctx).
		Preload("PendingBreakdown", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&user, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	if user.PendingBreakdown == nil {
		user.PendingBreakdown = []domain.RewardEntry{}
	}
	return &user, nil
}

func (s *Store) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	result := make(map[string]*domain.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var users []*domain.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (s *Store) GetUsers(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	var users []*domain.User
	err := s.db.WithContext(ctx).Order("created_at ASC").Order("id ASC").Limit(limit).Offset(offset).Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	for _, u := range users {
		u.PendingBreakdown = []domain.RewardEntry{}
	}
	return users, nil
}

// === Post Methods ===

func (s *Store) CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error) {
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	rec := newPostRecord(post, 1)
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, fmt.Errorf("create post: %w", err)
	}
	post.Version = 1
	return post, nil
}

func (s *Store) GetPostByID(ctx context.Context, id string) (*domain.Post, error) {
	var rec postRecord
	if err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPostNotFound
		}
		return nil, fmt.Errorf("get post %s: %w", id, err)
	}
	return rec.toDomain(), nil
}

func (s *Store) GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error) {
	var recs []postRecord
	err := s.db.WithContext(ctx).Order("created_at DESC").Order("id ASC").Limit(limit).Offset(offset).Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("get posts: %w", err)
	}
	return toDomainPosts(recs), nil
}

// GetRandomPosts полагается на RANDOM(), который есть и в PostgreSQL, и в SQLite.
func (s *Store) GetRandomPosts(ctx context.Context, limit int) ([]*domain.Post, error) {
	var recs []postRecord
	if err := s.db.WithContext(ctx).Order("RANDOM()").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("get random posts: %w", err)
	}
	return toDomainPosts(recs), nil
}

func (s *Store) GetDuePosts(ctx context.Context, now time.Time) ([]*domain.Post, error) {
	var recs []postRecord
	err := s.db.WithContext(ctx).
		Where("next_payout_at IS NOT NULL AND next_payout_at <= ?", now.UTC()).
		Order("next_payout_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("get due posts: %w", err)
	}
	return toDomainPosts(recs), nil
}

func toDomainPosts(recs []postRecord) []*domain.Post {
	posts := make([]*domain.Post, 0, len(recs))
	for i := range recs {
		posts = append(posts, recs[i].toDomain())
	}
	return posts
}

// === Write Methods ===

func (s *Store) SavePost(ctx context.Context, post *domain.Post) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return compareAndSwapPost(tx, post)
	})
	if err != nil {
		return err
	}
	post.Version++
	return nil
}

func (s *Store) DeletePost(ctx context.Context, post *domain.Post) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND version = ?", post.ID, post.Version).
		Delete(&postRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete post %s: %w", post.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&postRecord{}).Where("id = ?", post.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("count post %s: %w", post.ID, err)
		}
		if count == 0 {
			return domain.ErrPostNotFound
		}
		return storage.ErrVersionConflict
	}
	return nil
}

func (s *Store) CommitTip(ctx context.Context, post *domain.Post, debit storage.Debit) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.User{}).
			Where("id = ? AND balance >= ?", debit.UserID, debit.Amount).
			Update("balance", gorm.Expr("balance - ?", debit.Amount))
		if res.Error != nil {
			return fmt.Errorf("debit user %s: %w", debit.UserID, res.Error)
		}
		if res.RowsAffected == 0 {
			var count int64
			if err := tx.Model(&domain.User{}).Where("id = ?", debit.UserID).Count(&count).Error; err != nil {
				return fmt.Errorf("count user %s: %w", debit.UserID, err)
			}
			if count == 0 {
				return domain.ErrUserNotFound
			}
			return domain.ErrInsufficientBalance
		}
		return compareAndSwapPost(tx, post)
	})
	if err != nil {
		return err
	}
	post.Version++
	return nil
}

func (s *Store) SettleTarget(ctx context.Context, post *domain.Post, credit *storage.Credit) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Сначала захватываем пост: только одна транзакция пройдет по этой версии.
		if err := compareAndSwapPost(tx, post); err != nil {
			return err
		}
		if credit == nil {
			return nil
		}

		res := tx.Model(&domain.User{}).
			Where("id = ?", credit.UserID).
			Update("pending_rewards", gorm.Expr("pending_rewards + ?", credit.Entry.Amount))
		if res.Error != nil {
			return fmt.Errorf("credit user %s: %w", credit.UserID, res.Error)
		}
		if res.RowsAffected == 0 {
			return domain.ErrUserNotFound
		}

		entry := credit.Entry
		entry.ID = 0
		entry.UserID = credit.UserID
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = time.Now().UTC()
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("append reward entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	post.Version++
	return nil
}

// compareAndSwapPost записывает документ, только если версия в базе равна post.Version.
func compareAndSwapPost(tx *gorm.DB, post *domain.Post) error {
	rec := newPostRecord(post, post.Version+1)
	res := tx.Model(&postRecord{}).
		Where("id = ? AND version = ?", post.ID, post.Version).
		Select("document", "next_payout_at", "version", "updated_at").
		Updates(&rec)
	if res.Error != nil {
		return fmt.Errorf("save post %s: %w", post.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return storage.ErrVersionConflict
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
