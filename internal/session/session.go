// Package session переносит id текущего пользователя из заголовка запроса
// в контекст. Аутентификация выполняется до сервиса.
package session

import (
	"context"
	"net/http"
	"strings"
)

// Header - заголовок с id текущего пользователя.
const Header = "X-User-ID"

type contextKey string

const key = contextKey("user")

// WithUser кладет id пользователя в контекст.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, key, userID)
}

// UserID возвращает id пользователя из контекста или пустую строку.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(key).(string)
	return id
}

// Middleware читает Header и сохраняет его значение в контексте запроса.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := strings.TrimSpace(r.Header.Get(Header)); id != "" {
			r = r.WithContext(WithUser(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}
