package postgres

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/storage"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestStore поднимает хранилище на SQLite во временном каталоге.
func newTestStore(t *testing.T) (*Store, *domain.Post) {
	t.Helper()
	store, err := NewSQLite(filepath.Join(t.TempDir(), "tipping.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	_, err = store.CreateUser(ctx, &domain.User{ID: "author", Username: "author"})
	require.NoError(t, err)
	_, err = store.CreateUser(ctx, &domain.User{ID: "fan", Username: "fan", Balance: decimal.NewFromInt(50)})
	require.NoError(t, err)

	post := &domain.Post{
		ID:         "post-1",
		AuthorID:   "author",
		AuthorName: "author",
		Title:      "Test Post",
		Body:       "Content",
		Escrow:     domain.NewEscrow(now, time.Hour),
		CreatedAt:  now,
	}
	_, err = domain.PlaceComment(post, domain.Author{ID: "fan", Name: "fan"}, "nice", "", now, 2*time.Hour)
	require.NoError(t, err)

	post, err = store.CreatePost(ctx, post)
	require.NoError(t, err)
	return store, post
}

func TestStore_DocumentRoundTrip(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	retrieved, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "Test Post", retrieved.Title)
	assert.Equal(t, int64(1), retrieved.Version)
	require.Len(t, retrieved.Comments, 1)
	assert.Equal(t, "nice", retrieved.Comments[0].Content)
	assert.True(t, retrieved.PayoutAt.Equal(now.Add(time.Hour)))

	_, err = store.GetPostByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestStore_SavePostVersionConflict(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	stale, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)

	post.Title = "updated"
	require.NoError(t, store.SavePost(ctx, post))
	assert.Equal(t, int64(2), post.Version)

	stale.Title = "lost update"
	require.ErrorIs(t, store.SavePost(ctx, stale), storage.ErrVersionConflict)

	stored, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", stored.Title)
}

func TestStore_CommitTip(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	post.TotalTips = decimal.NewFromInt(20)
	require.NoError(t, store.CommitTip(ctx, post, storage.Debit{UserID: "fan", Amount: decimal.NewFromInt(20)}))

	fan, err := store.GetUserByID(ctx, "fan")
	require.NoError(t, err)
	assert.True(t, fan.Balance.Equal(decimal.NewFromInt(30)), fan.Balance.String())

	err = store.CommitTip(ctx, post, storage.Debit{UserID: "fan", Amount: decimal.NewFromInt(31)})
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)

	err = store.CommitTip(ctx, post, storage.Debit{UserID: "ghost", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, domain.ErrUserNotFound)

	fan, err = store.GetUserByID(ctx, "fan")
	require.NoError(t, err)
	assert.True(t, fan.Balance.Equal(decimal.NewFromInt(30)))
}

func TestStore_CommitTipRollsBackDebitOnConflict(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	stale, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	require.NoError(t, store.SavePost(ctx, post))

	err = store.CommitTip(ctx, stale, storage.Debit{UserID: "fan", Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, storage.ErrVersionConflict)

	fan, err := store.GetUserByID(ctx, "fan")
	require.NoError(t, err)
	assert.True(t, fan.Balance.Equal(decimal.NewFromInt(50)))
}

func TestStore_SettleTargetOnce(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const racers = 4
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		settled int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			post, err := store.GetPostByID(ctx, "post-1")
			if !assert.NoError(t, err) {
				return
			}
			if !post.MarkPaidOut() {
				return
			}
			credit := &storage.Credit{UserID: "author", Entry: domain.RewardEntry{
				SourceID: post.ID, SourceType: domain.KindPost, Amount: decimal.NewFromInt(100), Currency: domain.CurrencyNGN,
			}}
			if err := store.SettleTarget(ctx, post, credit); err == nil {
				mu.Lock()
				settled++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, storage.ErrVersionConflict)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, settled)

	author, err := store.GetUserByID(ctx, "author")
	require.NoError(t, err)
	assert.True(t, author.PendingRewards.Equal(decimal.NewFromInt(100)), author.PendingRewards.String())
	require.Len(t, author.PendingBreakdown, 1)
	assert.Equal(t, domain.KindPost, author.PendingBreakdown[0].SourceType)
	assert.Equal(t, domain.CurrencyNGN, author.PendingBreakdown[0].Currency)
}

func TestStore_SettleTargetMissingOwnerRollsBack(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	post.MarkPaidOut()
	credit := &storage.Credit{UserID: "ghost", Entry: domain.RewardEntry{Amount: decimal.NewFromInt(1)}}
	require.ErrorIs(t, store.SettleTarget(ctx, post, credit), domain.ErrUserNotFound)

	stored, err := store.GetPostByID(ctx, "post-1")
	require.NoError(t, err)
	assert.False(t, stored.IsPaidOut)
	assert.Equal(t, int64(1), stored.Version)
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

	// После выплаты поста индекс указывает на комментарий.
	post.MarkPaidOut()
	require.NoError(t, store.SettleTarget(ctx, post, nil))

	due, err = store.GetDuePosts(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	due, err = store.GetDuePosts(ctx, now.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Len(t, due, 1)
}

func TestStore_GetUsersByIDs(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	users, err := store.GetUsersByIDs(ctx, []string{"author", "fan", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "fan", users["fan"].Username)
}

func TestStore_GetUsers(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	users, err := store.GetUsers(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "author", users[0].ID)
	assert.Equal(t, "fan", users[1].ID)
	assert.NotNil(t, users[0].PendingBreakdown)

	users, err = store.GetUsers(ctx, 10, 1)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "fan", users[0].ID)
}

func TestStore_DeletePost(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	stale := post.Clone()
	post.Title = "edited"
	require.NoError(t, store.SavePost(ctx, post))

	require.ErrorIs(t, store.DeletePost(ctx, stale), storage.ErrVersionConflict)
	require.NoError(t, store.DeletePost(ctx, post))

	_, err := store.GetPostByID(ctx, post.ID)
	require.ErrorIs(t, err, domain.ErrPostNotFound)
	require.ErrorIs(t, store.DeletePost(ctx, post), domain.ErrPostNotFound)
}

func TestStore_GetRandomPosts(t *testing.T) {
	store, first := newTestStore(t)
	ctx := context.Background()

	_, err := store.CreatePost(ctx, &domain.Post{
		ID:        "post-2",
		AuthorID:  "author",
		Title:     "Second",
		Escrow:    domain.NewEscrow(now, time.Hour),
		CreatedAt: now.Add(time.Minute),
	})
	require.NoError(t, err)

	posts, err := store.GetRandomPosts(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	posts, err = store.GetRandomPosts(ctx, 5)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.ElementsMatch(t, []string{first.ID, "post-2"}, []string{posts[0].ID, posts[1].ID})
}

func TestStore_MediaAndTagsRoundTrip(t *testing.T) {
	store, post := newTestStore(t)
	ctx := context.Background()

	post.Media = []domain.Media{{URL: "https://cdn.example.com/a.mp3", Type: domain.MediaAudio}}
	post.Tags = []string{"afrobeats", "live"}
	require.NoError(t, store.SavePost(ctx, post))

	got, err := store.GetPostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Media, got.Media)
	assert.Equal(t, post.Tags, got.Tags)
}
