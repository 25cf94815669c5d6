package inmemory

import (
	"context"
	"testing"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestStore создает хранилище, автора, отправителя и один пост для тестов
func newTestStore(t *testing.T) (*Store, *domain.Post) {
	store := New()
	ctx := context.Background()

	_, err := store.CreateUser(ctx, &domain.User{ID: "author", Username: "author"})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, &domain.User{ID: "fan", Username: "fan", Balance: decimal.NewFromInt(50)})
	require.NoError(t, err)

	post, err := store.CreatePost(ctx, &domain.Post{
		AuthorID:   "author",
		AuthorName: "author",
		Title:      "Test Post",
		Body:       "Content",
		Escrow:     domain.NewEscrow(now, time.Hour),
		CreatedAt:  now,
	})
	require.NoError(t, err)
	return store, post
}

func TestStore_CreateAndGetPost(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	retrieved, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Title, retrieved.Title)
	assert.Equal(t, int64(1), retrieved.Version)

	_, err = store.GetPostByID(ctx, "non-existent-id")
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestStore_ReturnsCopies(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	retrieved, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	retrieved.Title = "mutated"
	retrieved.IsPaidOut = true

	again, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Post", again.Title)
	assert.False(t, again.IsPaidOut)
}

func TestStore_SavePostVersionConflict(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	first, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	second, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)

	first.Comments = append(first.Comments, &domain.Comment{ID: "c1", Content: "first"})
	require.NoError(t, store.SavePost(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	// Второй писатель читал старую версию и не должен затереть комментарий.
	second.Comments = append(second.Comments, &domain.Comment{ID: "c2", Content: "second"})
	err = store.SavePost(ctx, second)
	require.ErrorIs(t, err, storage.ErrVersionConflict)

	stored, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, stored.Comments, 1)
	assert.Equal(t, "c1", stored.Comments[0].ID)
}

func TestStore_CommitTip(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	post.TotalTips = decimal.NewFromInt(20)
	require.NoError(t, store.CommitTip(ctx, post, storage.Debit{UserID: "fan", Amount: decimal.NewFromInt(20)}))

	fan, err := store.GetUserByID(ctx, "fan")
	require.NoError(t, err)
	assert.True(t, fan.Balance.Equal(decimal.NewFromInt(30)))

	stored, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalTips.Equal(decimal.NewFromInt(20)))
}

func TestStore_CommitTipInsufficientBalance(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	post.TotalTips = decimal.NewFromInt(60)
	err := store.CommitTip(ctx, post, storage.Debit{UserID: "fan", Amount: decimal.NewFromInt(60)})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	fan, err := store.GetUserByID(ctx, "fan")
	require.NoError(t, err)
	assert.True(t, fan.Balance.Equal(decimal.NewFromInt(50)))

	stored, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.True(t, stored.TotalTips.IsZero())
	assert.Equal(t, int64(1), stored.Version)
}

func TestStore_SettleTarget(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	stale, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)

	post.MarkPaidOut()
	credit := &storage.Credit{UserID: "author", Entry: domain.RewardEntry{
		SourceID: post.ID, SourceType: domain.KindPost, Amount: decimal.NewFromInt(100), Currency: domain.CurrencyNGN,
	}}
	require.NoError(t, store.SettleTarget(ctx, post, credit))

	// Повторная попытка по устаревшей версии ничего не начисляет.
	stale.MarkPaidOut()
	require.ErrorIs(t, store.SettleTarget(ctx, stale, credit), storage.ErrVersionConflict)

	author, err := store.GetUserByID(ctx, "author")
	require.NoError(t, err)
	assert.True(t, author.PendingRewards.Equal(decimal.NewFromInt(100)))
	require.Len(t, author.PendingBreakdown, 1)
	assert.Equal(t, post.ID, author.PendingBreakdown[0].SourceID)
}

func TestStore_SettleTargetMissingOwner(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	post.MarkPaidOut()
	credit := &storage.Credit{UserID: "ghost", Entry: domain.RewardEntry{Amount: decimal.NewFromInt(1)}}
	require.ErrorIs(t, store.SettleTarget(ctx, post, credit), domain.ErrUserNotFound)

	stored, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsPaidOut)
}

func TestStore_GetDuePosts(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	due, err := store.GetDuePosts(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.GetDuePosts(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, post.ID, due[0].ID)
}

func TestStore_Pagination(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	// Создаем еще 4 поста
	for i := 0; i < 4; i++ {
		_, err := store.CreatePost(ctx, &domain.Post{AuthorID: "author", Title: "t", Body: "b", CreatedAt: now.Add(time.Duration(i+1) * time.Minute)})
		require.NoError(t, err)
	}

	firstPage, err := store.GetPosts(ctx, 2, 0)
	require.NoError(t, err)
	require.Len(t, firstPage, 2)

	secondPage, err := store.GetPosts(ctx, 10, 2)
	require.NoError(t, err)
	require.Len(t, secondPage, 3)

	assert.True(t, firstPage[0].CreatedAt.After(firstPage[1].CreatedAt))
	assert.NotEqual(t, firstPage[1].ID, secondPage[0].ID)

	empty, err := store.GetPosts(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestStore_GetUsers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	users, err := store.GetUsers(ctx, 1, 0)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "author", users[0].ID)

	users, err = store.GetUsers(ctx, 10, 5)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestStore_DeletePost(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	stale := post.Clone()
	require.NoError(t, store.SavePost(ctx, post))
	require.ErrorIs(t, store.DeletePost(ctx, stale), storage.ErrVersionConflict)

	require.NoError(t, store.DeletePost(ctx, post))
	_, err := store.GetPostByID(ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestStore_GetRandomPostsReturnsCopies(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	posts, err := store.GetRandomPosts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, post.ID, posts[0].ID)

	posts[0].Title = "mutated"
	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "mutated", got.Title)
}
