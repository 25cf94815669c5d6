package storage

import (
	"context"
	"errors"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrVersionConflict - пост изменился с момента чтения, запись отклонена.
var ErrVersionConflict = errors.New("storage: post version conflict")

// Debit - списание с баланса отправителя чаевых.
type Debit struct {
	UserID string
	Amount decimal.Decimal
}

// Credit - начисление в pendingRewards владельца объекта.
type Credit struct {
	UserID string
	Entry  domain.RewardEntry
}

// Storage определяет контракт для хранилищ.
//
// Пост со всем деревом комментариев и чаевых - один агрегат. Все записи поста
// выполняются через сравнение версии: запись проходит, только если
// post.Version совпадает с сохраненной, после чего версия увеличивается.
type Storage interface {
	CreateUser(ctx context.Context, user *domain.User) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error)
	// GetUsers возвращает страницу пользователей в порядке регистрации.
	GetUsers(ctx context.Context, limit, offset int) ([]*domain.User, error)

	CreatePost(ctx context.Context, post *domain.Post) (*domain.Post, error)
	GetPostByID(ctx context.Context, id string) (*domain.Post, error)
	GetPosts(ctx context.Context, limit, offset int) ([]*domain.Post, error)
	// GetRandomPosts возвращает до limit случайных постов.
	GetRandomPosts(ctx context.Context, limit int) ([]*domain.Post, error)
	// GetDuePosts возвращает посты, у которых есть невыплаченный объект
	// с PayoutAt <= now.
	GetDuePosts(ctx context.Context, now time.Time) ([]*domain.Post, error)

	// SavePost сохраняет изменения дерева комментариев.
	SavePost(ctx context.Context, post *domain.Post) error
	// DeletePost удаляет пост, если его версия не изменилась с момента чтения.
	DeletePost(ctx context.Context, post *domain.Post) error
	// CommitTip в одной транзакции списывает debit.Amount с баланса
	// (только если баланса хватает) и сохраняет пост.
	CommitTip(ctx context.Context, post *domain.Post, debit Debit) error
	// SettleTarget в одной транзакции сохраняет пост с выплаченным объектом
	// и, если credit не nil, начисляет награду владельцу. Если версия поста
	// не совпала или владелец не найден, не меняется ничего.
	SettleTarget(ctx context.Context, post *domain.Post, credit *Credit) error
}
