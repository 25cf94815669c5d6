package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/UkralStul/tipping-service/internal/dataloader"
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/metrics"
	"github.com/UkralStul/tipping-service/internal/session"
	"github.com/UkralStul/tipping-service/internal/storage/inmemory"
	"github.com/UkralStul/tipping-service/internal/tipping"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t      *testing.T
	server *httptest.Server
}

func newTestServer(t *testing.T, opts ...tipping.Option) *testServer {
	t.Helper()
	store := inmemory.New()
	reg := prometheus.NewRegistry()
	opts = append([]tipping.Option{tipping.WithMetrics(metrics.New(reg)), tipping.WithBalanceSeeding(true)}, opts...)
	h := &Handler{
		Service:  tipping.NewService(store, opts...),
		Storage:  store,
		Gatherer: reg,
	}
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &testServer{t: t, server: srv}
}

func (s *testServer) do(method, path, actor string, body any, out any) int {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	require.NoError(s.t, err)
	if actor != "" {
		req.Header.Set(UserHeader, actor)
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (s *testServer) createUser(name string, balance string) domain.User {
	s.t.Helper()
	var u domain.User
	code := s.do(http.MethodPost, "/users", "", map[string]string{"username": name, "balance": balance}, &u)
	require.Equal(s.t, http.StatusCreated, code)
	return u
}

func TestAPI_TipFlow(t *testing.T) {
	s := newTestServer(t)
	owner := s.createUser("owner", "0")
	fan := s.createUser("fan", "25")

	var post domain.Post
	code := s.do(http.MethodPost, "/posts", owner.ID, map[string]string{"title": "Demo", "body": "Listen"}, &post)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "owner", post.AuthorName)

	var tipped tipResponse
	code = s.do(http.MethodPost, "/posts/"+post.ID+"/tips", fan.ID, map[string]string{"amount": "10", "currency": "hive"}, &tipped)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.CurrencyHIVE, tipped.Tip.Currency)
	assert.Equal(t, "10", tipped.Post.TotalTips.String())

	var errBody errorResponse
	code = s.do(http.MethodPost, "/posts/"+post.ID+"/tips", fan.ID, map[string]string{"amount": "1", "currency": "HIVE"}, &errBody)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, domain.ErrAlreadyTipped.Error(), errBody.Error)

	var user domain.User
	code = s.do(http.MethodGet, "/users/"+fan.ID, "", nil, &user)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "15", user.Balance.String())
}

func TestAPI_CommentTree(t *testing.T) {
	s := newTestServer(t)
	owner := s.createUser("owner", "0")
	fan := s.createUser("fan", "5")

	var post domain.Post
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/posts", owner.ID, map[string]string{"title": "t", "body": "b"}, &post))

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/posts/"+post.ID+"/comments", fan.ID, map[string]string{"content": "nice"}, &post))
	commentID := post.Comments[0].ID
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/posts/"+post.ID+"/comments", owner.ID,
		map[string]string{"content": "thanks", "replyTo": commentID}, &post))

	var errBody errorResponse
	code := s.do(http.MethodPost, "/posts/"+post.ID+"/comments/"+commentID+"/tips", fan.ID,
		map[string]string{"amount": "1", "currency": "NGN"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, domain.ErrSelfTip.Error(), errBody.Error)

	var tipped tipResponse
	code = s.do(http.MethodPost, "/posts/"+post.ID+"/comments/"+commentID+"/tips", owner.ID,
		map[string]string{"amount": "0", "currency": "NGN"}, &errBody)
	assert.Equal(t, http.StatusBadRequest, code)

	replyID := post.Comments[0].Children[0].ID
	code = s.do(http.MethodPost, "/posts/"+post.ID+"/comments/"+replyID+"/tips", fan.ID,
		map[string]string{"amount": "2", "currency": "NGN"}, &tipped)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, domain.KindReply, tipped.Tip.TargetKind)

	var got domain.Post
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/posts/"+post.ID, "", nil, &got))
	require.Len(t, got.Comments, 1)
	assert.Equal(t, "fan", got.Comments[0].AuthorName)
	require.Len(t, got.Comments[0].Children, 1)
	assert.Equal(t, "owner", got.Comments[0].Children[0].AuthorName)
	assert.Equal(t, "fan", got.Comments[0].Children[0].ParentAuthor)

	var posts []domain.Post
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/posts?limit=5", "", nil, &posts))
	assert.Len(t, posts, 1)
}

func TestAPI_Errors(t *testing.T) {
	s := newTestServer(t)
	owner := s.createUser("owner", "0")

	var errBody errorResponse
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodPost, "/posts", "", map[string]string{"title": "t", "body": "b"}, &errBody))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/posts/missing", "", nil, &errBody))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/users/missing", "", nil, &errBody))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/posts/x/tips", owner.ID,
		map[string]string{"amount": "1", "currency": "USD"}, &errBody))
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/users", "", map[string]string{"username": ""}, &errBody))
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	resp, err := s.server.Client().Get(s.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	s.createUser("owner", "0")
	resp, err = s.server.Client().Get(s.server.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{domain.ErrTargetNotFound, http.StatusNotFound},
		{domain.ErrInsufficientBalance, http.StatusConflict},
		{domain.ErrNotPostAuthor, http.StatusForbidden},
		{domain.ErrSeedingDisabled, http.StatusForbidden},
		{domain.ErrConcurrentUpdate, http.StatusConflict},
		{domain.Internal(errors.New("db down")), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", domain.ErrAlreadySettled), http.StatusConflict},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, statusFor(tc.err), tc.err.Error())
	}
}

func TestAPI_PostMediaTagsAndDelete(t *testing.T) {
	s := newTestServer(t)
	owner := s.createUser("owner", "0")
	fan := s.createUser("fan", "5")

	var post domain.Post
	code := s.do(http.MethodPost, "/posts", owner.ID, map[string]any{
		"title": "Clip",
		"body":  "Behind the scenes",
		"media": []map[string]string{{"url": "https://cdn.example.com/c.mp4", "type": "video"}},
		"tags":  []string{"bts", "bts", " studio "},
	}, &post)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, []domain.Media{{URL: "https://cdn.example.com/c.mp4", Type: domain.MediaVideo}}, post.Media)
	assert.Equal(t, []string{"bts", "studio"}, post.Tags)

	var errBody errorResponse
	assert.Equal(t, http.StatusBadRequest, s.do(http.MethodPost, "/posts", owner.ID, map[string]any{
		"title": "t", "body": "b", "media": []map[string]string{{"url": "x", "type": "gif"}},
	}, &errBody))

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodDelete, "/posts/"+post.ID, "", nil, &errBody))
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodDelete, "/posts/"+post.ID, fan.ID, nil, &errBody))

	var tipped tipResponse
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/posts/"+post.ID+"/tips", fan.ID,
		map[string]string{"amount": "1", "currency": "NGN"}, &tipped))
	assert.Equal(t, http.StatusConflict, s.do(http.MethodDelete, "/posts/"+post.ID, owner.ID, nil, &errBody))
	assert.Equal(t, domain.ErrPostHasPendingTips.Error(), errBody.Error)

	var other domain.Post
	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/posts", owner.ID, map[string]string{"title": "t", "body": "b"}, &other))
	assert.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/posts/"+other.ID, owner.ID, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/posts/"+other.ID, "", nil, &errBody))
}

func TestAPI_RandomPostsAndUsers(t *testing.T) {
	s := newTestServer(t)
	owner := s.createUser("owner", "0")
	s.createUser("fan", "5")
	for i := 0; i < 7; i++ {
		require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/posts", owner.ID,
			map[string]string{"title": fmt.Sprintf("post %d", i), "body": "b"}, nil))
	}

	var posts []domain.Post
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/posts/random", "", nil, &posts))
	assert.Len(t, posts, 5)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/posts/random?limit=2", "", nil, &posts))
	assert.Len(t, posts, 2)
	assert.Equal(t, "owner", posts[0].AuthorName)

	var users []domain.User
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/users", "", nil, &users))
	assert.Len(t, users, 2)
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/users?limit=1&offset=1", "", nil, &users))
	require.Len(t, users, 1)
	assert.Equal(t, "fan", users[0].Username)
}

func TestAPI_RejectsMalformedPaging(t *testing.T) {
	s := newTestServer(t)

	var errBody errorResponse
	for _, path := range []string{"/posts?limit=abc", "/posts?offset=-1", "/users?limit=1.5", "/posts/random?limit=x"} {
		assert.Equal(t, http.StatusBadRequest, s.do(http.MethodGet, path, "", nil, &errBody), path)
	}
}

func TestAPI_RejectsOversizedBody(t *testing.T) {
	s := newTestServer(t)
	owner := s.createUser("owner", "0")

	var errBody errorResponse
	code := s.do(http.MethodPost, "/posts", owner.ID,
		map[string]string{"title": "t", "body": strings.Repeat("a", maxBodyBytes)}, &errBody)
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
}

func TestAPI_BalanceSeedingDisabled(t *testing.T) {
	s := newTestServer(t, tipping.WithBalanceSeeding(false))

	var errBody errorResponse
	code := s.do(http.MethodPost, "/users", "", map[string]string{"username": "rich", "balance": "1000"}, &errBody)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, domain.ErrSeedingDisabled.Error(), errBody.Error)

	s.createUser("plain", "0")
}

func TestRoutes_MountsGraphQLWithLoadersAndSession(t *testing.T) {
	var (
		user       string
		hasLoaders bool
	)
	store := inmemory.New()
	h := &Handler{
		Service: tipping.NewService(store),
		Storage: store,
		GraphQL: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user = session.UserID(r.Context())
			hasLoaders = dataloader.For(r.Context()) != nil
			w.WriteHeader(http.StatusOK)
		}),
		Playground: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}),
	}
	routes := h.Routes()

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"query":"{ posts { id } }"}`))
	req.Header.Set(UserHeader, "fan")
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "fan", user)
	assert.True(t, hasLoaders)

	rec = httptest.NewRecorder()
	routes.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/playground", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
