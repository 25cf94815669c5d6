package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	var got string
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = UserID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(Header, "  user-1 ")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "user-1", got)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Empty(t, got)
}

func TestUserID_EmptyContext(t *testing.T) {
	assert.Empty(t, UserID(context.Background()))
	assert.Equal(t, "u", UserID(WithUser(context.Background(), "u")))
}
