package graph

import (
	"context"
	"net/http"
	"testing"

	"github.com/99designs/gqlgen/client"
	"github.com/UkralStul/tipping-service/graph/model"
	"github.com/UkralStul/tipping-service/internal/dataloader"
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/session"
	"github.com/UkralStul/tipping-service/internal/storage/inmemory"
	"github.com/UkralStul/tipping-service/internal/tipping"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx      context.Context
	store    *inmemory.Store
	resolver *Resolver
	owner    *domain.User
	fan      *domain.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inmemory.New()
	f := &fixture{
		store:    store,
		resolver: &Resolver{Service: tipping.NewService(store, tipping.WithBalanceSeeding(true))},
	}
	f.ctx = dataloader.NewContext(context.Background(), store)

	var err error
	f.owner, err = f.resolver.Mutation().CreateUser(f.ctx, model.NewUser{Username: "owner"})
	require.NoError(t, err)
	balance := decimal.NewFromInt(20)
	f.fan, err = f.resolver.Mutation().CreateUser(f.ctx, model.NewUser{Username: "fan", Balance: &balance})
	require.NoError(t, err)
	return f
}

func (f *fixture) as(user *domain.User) context.Context {
	return session.WithUser(f.ctx, user.ID)
}

func TestMutation_TipFlow(t *testing.T) {
	f := newFixture(t)
	m := f.resolver.Mutation()

	post, err := m.CreatePost(f.as(f.owner), model.NewPost{
		Title: "Single",
		Body:  "Out now",
		Media: []domain.Media{{URL: "https://cdn.example.com/s.mp3", Type: domain.MediaAudio}},
		Tags:  []string{"afro"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"afro"}, post.Tags)

	post, err = m.CreateComment(f.as(f.fan), model.NewComment{PostID: post.ID, Content: "fire"})
	require.NoError(t, err)
	commentID := post.Comments[0].ID

	res, err := m.TipPost(f.as(f.fan), model.TipInput{PostID: post.ID, Amount: decimal.NewFromInt(3), Currency: "ngn"})
	require.NoError(t, err)
	assert.Equal(t, domain.KindPost, res.Tip.TargetKind)
	assert.True(t, res.Post.TotalTips.Equal(decimal.NewFromInt(3)))

	_, err = m.TipComment(f.as(f.owner), commentID, model.TipInput{PostID: post.ID, Amount: decimal.NewFromInt(1), Currency: "NGN"})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	_, err = m.TipComment(f.as(f.fan), commentID, model.TipInput{PostID: post.ID, Amount: decimal.NewFromInt(1), Currency: "NGN"})
	assert.ErrorIs(t, err, domain.ErrSelfTip)

	_, err = m.TipPost(f.as(f.fan), model.TipInput{PostID: post.ID, Amount: decimal.NewFromInt(1), Currency: "USD"})
	assert.ErrorIs(t, err, domain.ErrInvalidCurrency)

	user, err := f.resolver.Query().User(f.ctx, f.fan.ID)
	require.NoError(t, err)
	assert.True(t, user.Balance.Equal(decimal.NewFromInt(17)))
}

func TestMutation_RequiresUser(t *testing.T) {
	f := newFixture(t)
	m := f.resolver.Mutation()

	_, err := m.CreatePost(f.ctx, model.NewPost{Title: "t", Body: "b"})
	assert.ErrorIs(t, err, errMissingUser)
	_, err = m.DeletePost(f.ctx, "p")
	assert.ErrorIs(t, err, errMissingUser)
	_, err = m.TipPost(f.ctx, model.TipInput{PostID: "p", Amount: decimal.NewFromInt(1), Currency: "NGN"})
	assert.ErrorIs(t, err, errMissingUser)
}

func TestMutation_DeletePost(t *testing.T) {
	f := newFixture(t)
	m := f.resolver.Mutation()

	post, err := m.CreatePost(f.as(f.owner), model.NewPost{Title: "t", Body: "b"})
	require.NoError(t, err)

	_, err = m.DeletePost(f.as(f.fan), post.ID)
	assert.ErrorIs(t, err, domain.ErrNotPostAuthor)

	ok, err := m.DeletePost(f.as(f.owner), post.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.resolver.Query().Post(f.ctx, post.ID)
	assert.ErrorIs(t, err, domain.ErrPostNotFound)
}

func TestQuery_ListsAndAuthors(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		_, err := f.resolver.Mutation().CreatePost(f.as(f.owner), model.NewPost{Title: "t", Body: "b"})
		require.NoError(t, err)
	}
	q := f.resolver.Query()

	posts, err := q.Posts(f.ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, posts, 6)

	two := 2
	posts, err = q.Posts(f.ctx, &two, &two)
	require.NoError(t, err)
	assert.Len(t, posts, 2)

	random, err := q.RandomPosts(f.ctx, nil)
	require.NoError(t, err)
	assert.Len(t, random, 5)

	users, err := q.Users(f.ctx, nil, nil)
	require.NoError(t, err)
	assert.Len(t, users, 2)

	author, err := f.resolver.Post().Author(f.ctx, posts[0])
	require.NoError(t, err)
	assert.Equal(t, "owner", author.Username)

	ghost, err := f.resolver.Comment().Author(f.ctx, &domain.Comment{AuthorID: "ghost"})
	require.NoError(t, err)
	assert.Nil(t, ghost)

	// Без лоадера в контексте автор читается через сервис.
	author, err = f.resolver.Reply().Author(context.Background(), &domain.Reply{AuthorID: f.fan.ID})
	require.NoError(t, err)
	assert.Equal(t, "fan", author.Username)
}

func TestErrorCode(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errMissingUser, "UNAUTHENTICATED"},
		{domain.ErrInvalidAmount, "BAD_REQUEST"},
		{domain.ErrNotPostAuthor, "FORBIDDEN"},
		{domain.ErrPostNotFound, "NOT_FOUND"},
		{domain.ErrAlreadyTipped, "CONFLICT"},
		{domain.Internal(assert.AnError), "INTERNAL"},
		{assert.AnError, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, errorCode(tc.err), tc.err.Error())
	}
}

func TestHandler_EndToEnd(t *testing.T) {
	f := newFixture(t)
	h := session.Middleware(dataloader.Middleware(f.store, NewHandler(f.resolver)))
	c := client.New(h)

	var created struct {
		CreatePost struct {
			ID     string
			Author struct{ Username string }
		}
	}
	c.MustPost(`mutation { createPost(input: {title: "Live", body: "Tonight", tags: ["gig"]}) { id author { username } } }`,
		&created, client.AddHeader(session.Header, f.owner.ID))
	assert.Equal(t, "owner", created.CreatePost.Author.Username)

	var tipped struct {
		TipPost struct {
			Tip  struct{ Amount string }
			Post struct{ TotalTips string }
		}
	}
	c.MustPost(`mutation($id: ID!) { tipPost(input: {postId: $id, amount: "2.5", currency: "NGN"}) { tip { amount } post { totalTips } } }`,
		&tipped, client.Var("id", created.CreatePost.ID), client.AddHeader(session.Header, f.fan.ID))
	assert.Equal(t, "2.5", tipped.TipPost.Tip.Amount)
	assert.Equal(t, "2.5", tipped.TipPost.Post.TotalTips)

	var deleted struct{ DeletePost bool }
	err := c.Post(`mutation($id: ID!) { deletePost(id: $id) }`, &deleted,
		client.Var("id", created.CreatePost.ID), client.AddHeader(session.Header, f.owner.ID))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLICT")

	var resp struct {
		Post struct {
			Title string
			Tags  []string
		}
	}
	c.MustPost(`query($id: ID!) { post(id: $id) { title tags } }`, &resp, client.Var("id", created.CreatePost.ID))
	assert.Equal(t, "Live", resp.Post.Title)
	assert.Equal(t, []string{"gig"}, resp.Post.Tags)

	err = c.Post(`query { post(id: "missing") { id } }`, &resp)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")

	err = c.Post(`mutation { createPost(input: {title: "t", body: "b"}) { id } }`, &created)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UNAUTHENTICATED")
}

func TestPlayground(t *testing.T) {
	assert.Implements(t, (*http.Handler)(nil), Playground("/query"))
}
