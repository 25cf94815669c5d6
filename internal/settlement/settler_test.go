package settlement

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/metrics"
	"github.com/UkralStul/tipping-service/internal/notify"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/UkralStul/tipping-service/internal/storage/inmemory"
	"github.com/UkralStul/tipping-service/internal/tipping"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	created = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	window  = 7 * 24 * time.Hour
	later   = created.Add(window + time.Minute)
)

type fixture struct {
	ctx   context.Context
	store *inmemory.Store
	svc   *tipping.Service
	notes *notify.Recorder
	owner *domain.User
	post  *domain.Post
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: inmemory.New(),
		notes: &notify.Recorder{},
	}
	f.svc = tipping.NewService(f.store,
		tipping.WithClock(func() time.Time { return created }),
		tipping.WithHoldingWindow(window),
		tipping.WithBalanceSeeding(true),
	)

	var err error
	f.owner, err = f.svc.CreateUser(f.ctx, "artist", decimal.Zero)
	require.NoError(t, err)
	f.post, err = f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{Title: "New single", Body: "Out now"})
	require.NoError(t, err)
	return f
}

func (f *fixture) settler(at time.Time, opts ...Option) *Settler {
	opts = append([]Option{
		WithClock(func() time.Time { return at }),
		WithNotifier(f.notes),
	}, opts...)
	return New(f.store, opts...)
}

func (f *fixture) tipFrom(t *testing.T, name, postID, targetID string, amount int64) {
	t.Helper()
	sender, err := f.svc.CreateUser(f.ctx, name, decimal.NewFromInt(amount))
	require.NoError(t, err)
	_, _, err = f.svc.TipTarget(f.ctx, postID, targetID, sender.ID, decimal.NewFromInt(amount), domain.CurrencyHIVE)
	require.NoError(t, err)
}

func (f *fixture) user(t *testing.T, id string) *domain.User {
	t.Helper()
	u, err := f.store.GetUserByID(f.ctx, id)
	require.NoError(t, err)
	return u
}

func TestProcessor_CreditsOnceAndRecoveryFindsNothing(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 100; i++ {
		f.tipFrom(t, fmt.Sprintf("fan-%d", i), f.post.ID, "", 1)
	}

	s := f.settler(later)
	report, err := s.RunProcessor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.True(t, decimal.NewFromInt(100).Equal(report.Credited))

	owner := f.user(t, f.owner.ID)
	assert.True(t, decimal.NewFromInt(100).Equal(owner.PendingRewards))
	require.Len(t, owner.PendingBreakdown, 1)
	entry := owner.PendingBreakdown[0]
	assert.Equal(t, f.post.ID, entry.SourceID)
	assert.Equal(t, domain.KindPost, entry.SourceType)
	assert.Equal(t, domain.CurrencyNGN, entry.Currency)
	assert.False(t, entry.Recovered)

	post, err := f.store.GetPostByID(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.True(t, post.IsPaidOut)
	for _, tip := range post.Tips {
		assert.Equal(t, domain.TipReleased, tip.Status)
	}

	report, err = s.RunRecovery(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Settled)
	assert.True(t, report.Credited.IsZero())

	owner = f.user(t, f.owner.ID)
	assert.True(t, decimal.NewFromInt(100).Equal(owner.PendingRewards))
	assert.Len(t, owner.PendingBreakdown, 1)
}

func TestProcessor_NothingDueBeforeWindow(t *testing.T) {
	f := newFixture(t)
	f.tipFrom(t, "fan", f.post.ID, "", 5)

	report, err := f.settler(created.Add(window - time.Second)).RunProcessor(f.ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Due)
	assert.True(t, f.user(t, f.owner.ID).PendingRewards.IsZero())
}

func TestRecovery_MarksEntriesRecovered(t *testing.T) {
	f := newFixture(t)
	f.tipFrom(t, "fan", f.post.ID, "", 3)

	report, err := f.settler(later, WithCurrency(domain.CurrencyHBD)).RunRecovery(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)

	owner := f.user(t, f.owner.ID)
	require.Len(t, owner.PendingBreakdown, 1)
	assert.True(t, owner.PendingBreakdown[0].Recovered)
	assert.Equal(t, domain.CurrencyHBD, owner.PendingBreakdown[0].Currency)
}

func TestRecovery_PagesThroughAllPosts(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 5; i++ {
		post, err := f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{Title: fmt.Sprintf("post %d", i), Body: "body"})
		require.NoError(t, err)
		f.tipFrom(t, fmt.Sprintf("fan-%d", i), post.ID, "", 2)
	}

	report, err := f.settler(later, WithPageSize(2)).RunRecovery(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, report.Posts)
	// Шесть постов, пять с чаевыми и один пустой.
	assert.Equal(t, 6, report.Settled)
	assert.True(t, decimal.NewFromInt(10).Equal(f.user(t, f.owner.ID).PendingRewards))
}

func TestSettle_ZeroTipsMarksPaidWithoutCredit(t *testing.T) {
	f := newFixture(t)

	report, err := f.settler(later).RunProcessor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)

	post, err := f.store.GetPostByID(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.True(t, post.IsPaidOut)
	owner := f.user(t, f.owner.ID)
	assert.Empty(t, owner.PendingBreakdown)
	assert.Empty(t, f.notes.All())
}

func TestSettle_CommentsAndRepliesIndependently(t *testing.T) {
	f := newFixture(t)
	commenter, err := f.svc.CreateUser(f.ctx, "commenter", decimal.Zero)
	require.NoError(t, err)
	post, err := f.svc.CreateComment(f.ctx, f.post.ID, commenter.ID, "great track", "")
	require.NoError(t, err)
	comment := post.Comments[0]
	post, err = f.svc.CreateComment(f.ctx, f.post.ID, f.owner.ID, "thanks!", comment.ID)
	require.NoError(t, err)
	reply := post.Comments[0].Children[0]

	f.tipFrom(t, "a", f.post.ID, comment.ID, 4)
	f.tipFrom(t, "b", f.post.ID, reply.ID, 6)
	f.tipFrom(t, "c", f.post.ID, "", 1)

	report, err := f.settler(later).RunProcessor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Settled)

	assert.True(t, decimal.NewFromInt(4).Equal(f.user(t, commenter.ID).PendingRewards))
	owner := f.user(t, f.owner.ID)
	assert.True(t, decimal.NewFromInt(7).Equal(owner.PendingRewards))
	assert.Len(t, owner.PendingBreakdown, 2)

	notes := f.notes.All()
	require.Len(t, notes, 3)
	for _, n := range notes {
		assert.Equal(t, notify.TypePayout, n.Type)
	}
}

func TestSettle_SettledTargetIsNoop(t *testing.T) {
	f := newFixture(t)
	f.tipFrom(t, "fan", f.post.ID, "", 2)
	s := f.settler(later)

	_, settled, err := s.settleTarget(f.ctx, f.post.ID, f.post.ID, SweepProcessor)
	require.NoError(t, err)
	assert.True(t, settled)

	amount, settled, err := s.settleTarget(f.ctx, f.post.ID, f.post.ID, SweepRecovery)
	require.NoError(t, err)
	assert.False(t, settled)
	assert.True(t, amount.IsZero())
	assert.True(t, decimal.NewFromInt(2).Equal(f.user(t, f.owner.ID).PendingRewards))
}

func TestSettle_MissingOwnerStaysDue(t *testing.T) {
	f := newFixture(t)
	orphan, err := f.store.CreatePost(f.ctx, &domain.Post{
		ID:        "orphan",
		AuthorID:  "deleted-user",
		Title:     "t",
		Body:      "b",
		Escrow:    domain.NewEscrow(created, window),
		CreatedAt: created.Add(-time.Hour),
	})
	require.NoError(t, err)
	f.tipFrom(t, "fan", orphan.ID, "", 3)
	f.tipFrom(t, "fan2", f.post.ID, "", 5)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	report, err := f.settler(later, WithMetrics(m)).RunProcessor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SettleFailures.WithLabelValues(string(SweepProcessor))))

	post, err := f.store.GetPostByID(f.ctx, orphan.ID)
	require.NoError(t, err)
	assert.False(t, post.IsPaidOut)
	assert.True(t, post.Due(later))
	assert.True(t, decimal.NewFromInt(5).Equal(f.user(t, f.owner.ID).PendingRewards))
}

func TestSettle_ProcessorAndRecoveryConcurrently(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 10; i++ {
		post, err := f.svc.CreatePost(f.ctx, f.owner.ID, domain.PostDraft{Title: fmt.Sprintf("post %d", i), Body: "body"})
		require.NoError(t, err)
		f.tipFrom(t, fmt.Sprintf("fan-%d", i), post.ID, "", 1)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = f.settler(later).RunProcessor(f.ctx)
		}()
		go func() {
			defer wg.Done()
			_, _ = f.settler(later).RunRecovery(f.ctx)
		}()
	}
	wg.Wait()

	owner := f.user(t, f.owner.ID)
	assert.True(t, decimal.NewFromInt(10).Equal(owner.PendingRewards))
	assert.Len(t, owner.PendingBreakdown, 10)
}

func TestSettle_RecordsMetrics(t *testing.T) {
	f := newFixture(t)
	f.tipFrom(t, "fan", f.post.ID, "", 7)

	m := metrics.New(prometheus.NewRegistry())
	_, err := f.settler(later, WithMetrics(m)).RunRecovery(f.ctx)
	require.NoError(t, err)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.Settled.WithLabelValues(string(SweepRecovery), string(domain.KindPost))))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.Credited.WithLabelValues(string(SweepRecovery))))
}

type failingStore struct {
	storage.Storage
	dueErr    error
	settleErr error
}

func (s *failingStore) GetDuePosts(ctx context.Context, now time.Time) ([]*domain.Post, error) {
	if s.dueErr != nil {
		return nil, s.dueErr
	}
	return s.Storage.GetDuePosts(ctx, now)
}

func (s *failingStore) SettleTarget(ctx context.Context, post *domain.Post, credit *storage.Credit) error {
	if s.settleErr != nil {
		return s.settleErr
	}
	return s.Storage.SettleTarget(ctx, post, credit)
}

func TestProcessor_LoadError(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("db down")
	s := New(&failingStore{Storage: f.store, dueErr: boom}, WithClock(func() time.Time { return later }))

	_, err := s.RunProcessor(f.ctx)
	assert.ErrorIs(t, err, boom)
}

func TestSettle_PersistentConflictLeavesTargetDue(t *testing.T) {
	f := newFixture(t)
	f.tipFrom(t, "fan", f.post.ID, "", 2)
	s := New(&failingStore{Storage: f.store, settleErr: storage.ErrVersionConflict},
		WithClock(func() time.Time { return later }))

	report, err := s.RunProcessor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	post, err := f.store.GetPostByID(f.ctx, f.post.ID)
	require.NoError(t, err)
	assert.False(t, post.IsPaidOut)
	assert.True(t, f.user(t, f.owner.ID).PendingRewards.IsZero())
}

func TestSettle_NotificationFailureDoesNotUndoCredit(t *testing.T) {
	f := newFixture(t)
	f.tipFrom(t, "fan", f.post.ID, "", 2)
	f.notes.Err = errors.New("notifier down")

	report, err := f.settler(later).RunProcessor(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Settled)
	assert.True(t, decimal.NewFromInt(2).Equal(f.user(t, f.owner.ID).PendingRewards))
}

func TestScheduler_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	f.tipFrom(t, "fan", f.post.ID, "", 2)

	ctx, cancel := context.WithCancel(f.ctx)
	sched := &Scheduler{
		Settler:           f.settler(later),
		ProcessorInterval: 5 * time.Millisecond,
		RecoveryInterval:  5 * time.Millisecond,
	}
	done := make(chan error, 1)
	go func() { done <- sched.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.user(t, f.owner.ID).PendingRewards.Equal(decimal.NewFromInt(2))
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Len(t, f.user(t, f.owner.ID).PendingBreakdown, 1)
}
