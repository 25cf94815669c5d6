package tipping

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/notify"
	"github.com/UkralStul/tipping-service/internal/storage/inmemory"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	store    *inmemory.Store
	notes    *notify.Recorder
	owner    *domain.User
	fan      *domain.User
	post     *domain.Post
	ctx      context.Context
	holdTime time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:    inmemory.New(),
		notes:    &notify.Recorder{},
		ctx:      context.Background(),
		holdTime: 7 * 24 * time.Hour,
	}
	f.svc = NewService(f.store,
		WithNotifier(f.notes),
		WithClock(func() time.Time { return now }),
		WithHoldingWindow(f.holdTime),
		WithBalanceSeeding(true),
	)

	var err error
	f.owner, err = f.svc.CreateUser(f.ctx, "owner", decimal.NewFromInt(10))
	require.NoError(t, err)
	f.fan, err = f.svc.CreateUser(f.ctx, "fan", decimal.NewFromInt(50))
	require.NoError(t, err)
	f.post, err = f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{Title: "Song drop", Body: "Listen to this"})
	require.NoError(t, err)
	return f
}

func (f *fixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	u, err := f.svc.GetUser(f.ctx, userID)
	require.NoError(t, err)
	return u.Balance
}

func TestCreatePost(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, "owner", f.post.AuthorName)
	assert.Equal(t, now.Add(f.holdTime), f.post.PayoutAt)
	assert.False(t, f.post.IsPaidOut)

	_, err := f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{Body: "body"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreatePost(f.ctx, "ghost", domain.PostDraft{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreatePost_MediaAndTags(t *testing.T) {
	f := newFixture(t)

	post, err := f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{
		Title: "Live set",
		Body:  "Recorded in Lagos",
		Media: []domain.Media{{URL: "https://cdn.example.com/set.mp4", Type: domain.MediaVideo}},
		Tags:  []string{" live ", "lagos", "live", ""},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"live", "lagos"}, post.Tags)
	require.Len(t, post.Media, 1)

	got, err := f.svc.GetPost(f.ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, post.Media, got.Media)
	assert.Equal(t, post.Tags, got.Tags)

	_, err = f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{
		Title: "t",
		Body:  "b",
		Media: []domain.Media{{URL: "https://cdn.example.com/x", Type: "gif"}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMedia)
}

func TestCreateUser_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateUser(f.ctx, " ", decimal.Zero)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateUser(f.ctx, "neg", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, domain.ErrInvalidBalance)

	_, err = f.svc.CreateUser(f.ctx, "huge", decimal.New(1, 12))
	assert.ErrorIs(t, err, domain.ErrInvalidBalance)

	_, err = f.svc.CreateUser(f.ctx, "dust", decimal.RequireFromString("0.000000001"))
	assert.ErrorIs(t, err, domain.ErrInvalidBalance)
}

func TestCreateUser_SeedingDisabled(t *testing.T) {
	svc := NewService(inmemory.New())
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "rich", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, domain.ErrSeedingDisabled)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	user, err := svc.CreateUser(ctx, "plain", decimal.Zero)
	require.NoError(t, err)
	assert.True(t, user.Balance.IsZero())
}

func TestListUsers(t *testing.T) {
	f := newFixture(t)

	users, err := f.svc.ListUsers(f.ctx, 0, -3)
	require.NoError(t, err)
	require.Len(t, users, 2)

	users, err = f.svc.ListUsers(f.ctx, 1, 1)
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestRandomPosts(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 7; i++ {
		_, err := f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{Title: fmt.Sprintf("post %d", i), Body: "body"})
		require.NoError(t, err)
	}

	posts, err := f.svc.RandomPosts(f.ctx, 0)
	require.NoError(t, err)
	assert.Len(t, posts, 5)

	posts, err = f.svc.RandomPosts(f.ctx, 3)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
	assert.Len(t, lo.UniqBy(posts, func(p *domain.Post) string { return p.ID }), 3)
}

func TestDeletePost(t *testing.T) {
	f := newFixture(t)

	err := f.svc.DeletePost(f.ctx, f.post.ID, f.fan.ID)
	assert.ErrorIs(t, err, domain.ErrNotPostAuthor)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	require.NoError(t, f.svc.DeletePost(f.ctx, f.post.ID, f.owner.ID))
	_, err = f.svc.GetPost(f.ctx, f.post.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)

	err = f.svc.DeletePost(f.ctx, f.post.ID, f.owner.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeletePost_PendingTipsBlockDeletion(t *testing.T) {
	f := newFixture(t)

	post, err := f.svc.CreateComment(f.ctx, f.post.ID, f.owner.ID, "Pinned", "")
	require.NoError(t, err)
	_, _, err = f.svc.TipTarget(f.ctx, f.post.ID, post.Comments[0].ID, f.fan.ID, decimal.NewFromInt(1), domain.CurrencyNGN)
	require.NoError(t, err)

	err = f.svc.DeletePost(f.ctx, f.post.ID, f.owner.ID)
	assert.ErrorIs(t, err, domain.ErrPostHasPendingTips)
	assert.ErrorIs(t, err, domain.ErrConflict)

	_, err = f.svc.GetPost(f.ctx, f.post.ID)
	assert.NoError(t, err)
}

func TestCreateComment_TreeAndNotifications(t *testing.T) {
	f := newFixture(t)

	post, err := f.svc.CreateComment(f.ctx, f.post.ID, f.fan.ID, "Great track", "")
	require.NoError(t, err)
	require.Len(t, post.Comments, 1)
	comment := post.Comments[0]

	post, err = f.svc.CreateComment(f.ctx, f.post.ID, f.owner.ID, "Thanks!", comment.ID)
	require.NoError(t, err)
	reply := post.Comments[0].Children[0]

	post, err = f.svc.CreateComment(f.ctx, f.post.ID, f.fan.ID, "You're welcome", reply.ID)
	require.NoError(t, err)

	require.Len(t, post.Comments, 1)
	require.Len(t, post.Comments[0].Children, 2)
	assert.Equal(t, "owner", post.Comments[0].Children[1].ParentAuthor)

	notes := f.notes.All()
	require.Len(t, notes, 3)
	assert.Equal(t, notify.TypeComment, notes[0].Type)
	assert.Equal(t, f.owner.ID, notes[0].UserID)
	assert.Equal(t, notify.TypeReply, notes[1].Type)
	assert.Equal(t, f.fan.ID, notes[1].UserID)
	assert.Equal(t, f.owner.ID, notes[2].UserID)

	stored, err := f.svc.GetPost(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Comments[0].Children, 2)
}

func TestCreateComment_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateComment(f.ctx, f.post.ID, f.fan.ID, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.svc.CreateComment(f.ctx, "missing", f.fan.ID, "hi", "")
	assert.ErrorIs(t, err, domain.ErrPostNotFound)

	_, err = f.svc.CreateComment(f.ctx, f.post.ID, f.fan.ID, "hi", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateComment_NotificationFailureDoesNotUnwind(t *testing.T) {
	f := newFixture(t)
	f.notes.Err = fmt.Errorf("notifications are down")

	post, err := f.svc.CreateComment(f.ctx, f.post.ID, f.fan.ID, "still saved", "")
	require.NoError(t, err)
	assert.Len(t, post.Comments, 1)
}

func TestTipTarget_Post(t *testing.T) {
	f := newFixture(t)

	post, tip, err := f.svc.TipTarget(f.ctx, f.post.ID, "", f.fan.ID, decimal.NewFromInt(20), domain.CurrencyNGN)
	require.NoError(t, err)

	assert.True(t, post.TotalTips.Equal(decimal.NewFromInt(20)))
	assert.Equal(t, domain.TipPending, tip.Status)
	assert.Equal(t, f.owner.ID, tip.ToUserID)
	assert.True(t, f.balance(t, f.fan.ID).Equal(decimal.NewFromInt(30)))

	notes := f.notes.All()
	require.Len(t, notes, 1)
	assert.Equal(t, notify.TypePostTip, notes[0].Type)
	assert.Equal(t, f.owner.ID, notes[0].UserID)
}

func TestTipTarget_DuplicateRejected(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.TipTarget(f.ctx, f.post.ID, "", f.fan.ID, decimal.NewFromInt(20), domain.CurrencyNGN)
	require.NoError(t, err)

	_, _, err = f.svc.TipTarget(f.ctx, f.post.ID, "", f.fan.ID, decimal.NewFromInt(5), domain.CurrencyNGN)
	require.ErrorIs(t, err, domain.ErrAlreadyTipped)
	require.ErrorIs(t, err, domain.ErrConflict)

	post, err := f.svc.GetPost(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.True(t, post.TotalTips.Equal(decimal.NewFromInt(20)))
	assert.True(t, f.balance(t, f.fan.ID).Equal(decimal.NewFromInt(30)))
}

func TestTipTarget_InsufficientBalance(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.TipTarget(f.ctx, f.post.ID, "", f.fan.ID, decimal.NewFromInt(60), domain.CurrencyNGN)
	require.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.True(t, f.balance(t, f.fan.ID).Equal(decimal.NewFromInt(50)))

	post, err := f.svc.GetPost(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.Empty(t, post.Tips)
}

func TestTipTarget_CommentAndReply(t *testing.T) {
	f := newFixture(t)
	post, err := f.svc.CreateComment(f.ctx, f.post.ID, f.owner.ID, "Pinned", "")
	require.NoError(t, err)
	commentID := post.Comments[0].ID
	post, err = f.svc.CreateComment(f.ctx, f.post.ID, f.fan.ID, "Reply", commentID)
	require.NoError(t, err)
	replyID := post.Comments[0].Children[0].ID

	post, _, err = f.svc.TipTarget(f.ctx, f.post.ID, commentID, f.fan.ID, decimal.NewFromInt(5), domain.CurrencyHIVE)
	require.NoError(t, err)
	assert.True(t, post.Comments[0].TotalTips.Equal(decimal.NewFromInt(5)))
	assert.True(t, post.TotalTips.IsZero())

	post, _, err = f.svc.TipTarget(f.ctx, f.post.ID, replyID, f.owner.ID, decimal.NewFromInt(3), domain.CurrencyHBD)
	require.NoError(t, err)
	assert.True(t, post.Comments[0].Children[0].TotalTips.Equal(decimal.NewFromInt(3)))
	assert.True(t, post.Comments[0].TotalTips.Equal(decimal.NewFromInt(5)))

	assert.True(t, f.balance(t, f.fan.ID).Equal(decimal.NewFromInt(45)))
	assert.True(t, f.balance(t, f.owner.ID).Equal(decimal.NewFromInt(7)))

	var tipNotes int
	for _, n := range f.notes.All() {
		if n.Type == notify.TypeCommentTip {
			tipNotes++
		}
	}
	assert.Equal(t, 2, tipNotes)
}

func TestTipTarget_SelfTipAsymmetry(t *testing.T) {
	f := newFixture(t)

	// Свой пост - можно, уведомление не отправляется.
	_, _, err := f.svc.TipTarget(f.ctx, f.post.ID, "", f.owner.ID, decimal.NewFromInt(1), domain.CurrencyNGN)
	require.NoError(t, err)
	assert.Empty(t, f.notes.All())

	// Свой комментарий - нельзя.
	post, err := f.svc.CreateComment(f.ctx, f.post.ID, f.fan.ID, "mine", "")
	require.NoError(t, err)
	_, _, err = f.svc.TipTarget(f.ctx, f.post.ID, post.Comments[0].ID, f.fan.ID, decimal.NewFromInt(1), domain.CurrencyNGN)
	require.ErrorIs(t, err, domain.ErrSelfTip)
	assert.True(t, f.balance(t, f.fan.ID).Equal(decimal.NewFromInt(50)))
}

func TestTipTarget_Errors(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.TipTarget(f.ctx, f.post.ID, "", f.fan.ID, decimal.Zero, domain.CurrencyNGN)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, _, err = f.svc.TipTarget(f.ctx, f.post.ID, "", f.fan.ID, decimal.NewFromInt(1), domain.Currency("EUR"))
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	_, _, err = f.svc.TipTarget(f.ctx, "missing", "", f.fan.ID, decimal.NewFromInt(1), domain.CurrencyNGN)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)

	_, _, err = f.svc.TipTarget(f.ctx, f.post.ID, "missing", f.fan.ID, decimal.NewFromInt(1), domain.CurrencyNGN)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, _, err = f.svc.TipTarget(f.ctx, f.post.ID, "", "ghost", decimal.NewFromInt(1), domain.CurrencyNGN)
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestTipTarget_ConcurrentSendersLoseNoUpdates(t *testing.T) {
	f := newFixture(t)

	const senders = 20
	ids := make([]string, senders)
	for i := range ids {
		u, err := f.svc.CreateUser(f.ctx, fmt.Sprintf("sender-%d", i), decimal.NewFromInt(10))
		require.NoError(t, err)
		ids[i] = u.ID
	}

	svc := NewService(f.store, WithClock(func() time.Time { return now }), WithMaxAttempts(senders*2))

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _, err := svc.TipTarget(f.ctx, f.post.ID, "", id, decimal.NewFromInt(2), domain.CurrencyNGN)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	post, err := f.svc.GetPost(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.Len(t, post.Tips, senders)
	assert.True(t, post.TotalTips.Equal(decimal.NewFromInt(2*senders)), post.TotalTips.String())
	assert.True(t, post.TotalTips.Equal(post.Sum()))
	for _, id := range ids {
		assert.True(t, f.balance(t, id).Equal(decimal.NewFromInt(8)))
	}
}

func TestTipTarget_ConcurrentDuplicateFromSameSender(t *testing.T) {
	f := newFixture(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.svc.TipTarget(f.ctx, f.post.ID, "", f.fan.ID, decimal.NewFromInt(5), domain.CurrencyNGN)
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.True(t, f.balance(t, f.fan.ID).Equal(decimal.NewFromInt(45)))
}
