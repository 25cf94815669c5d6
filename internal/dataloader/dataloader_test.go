package dataloader

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/UkralStul/tipping-service/internal/storage/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	storage.Storage
	calls atomic.Int32
}

func (s *countingStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	s.calls.Add(1)
	return s.Storage.GetUsersByIDs(ctx, ids)
}

func TestUsernames_BatchesLookups(t *testing.T) {
	ctx := context.Background()
	mem := inmemory.New()
	for _, name := range []string{"alice", "bob"} {
		_, err := mem.CreateUser(ctx, &domain.User{ID: name, Username: name})
		require.NoError(t, err)
	}
	store := &countingStore{Storage: mem}

	names := NewLoaders(store).Usernames(ctx, []string{"alice", "bob", "ghost", "alice"})

	assert.Equal(t, map[string]string{"alice": "alice", "bob": "bob"}, names)
	assert.Equal(t, int32(1), store.calls.Load())
}

func TestMiddleware_InjectsLoaders(t *testing.T) {
	var got *Loaders
	h := Middleware(inmemory.New(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = For(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.NotNil(t, got)
	assert.NotNil(t, got.UserByID)
	assert.Nil(t, For(context.Background()))
}

func TestUser_LoadsThroughContext(t *testing.T) {
	mem := inmemory.New()
	_, err := mem.CreateUser(context.Background(), &domain.User{ID: "alice", Username: "alice"})
	require.NoError(t, err)

	ctx := NewContext(context.Background(), mem)
	user, err := For(ctx).User(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)

	_, err = For(ctx).User(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}
