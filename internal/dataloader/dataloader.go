package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/storage"
	"github.com/graph-gophers/dataloader"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	UserByID *dataloader.Loader
}

// NewLoaders создает лоадеры поверх хранилища. Лоадеры кешируют результат,
// поэтому живут не дольше одного запроса.
func NewLoaders(store storage.Storage) *Loaders {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Один запрос к хранилищу на весь батч
		users, err := store.GetUsersByIDs(ctx, keys.Keys())
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Результат в том же порядке, что и ключи
		for i, k := range keys {
			user, ok := users[k.String()]
			if !ok {
				results[i] = &dataloader.Result{Error: domain.ErrUserNotFound}
				continue
			}
			results[i] = &dataloader.Result{Data: user}
		}
		return results
	}

	return &Loaders{
		UserByID: dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(time.Millisecond*1)),
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), store)))
	})
}

// NewContext кладет в контекст свежие лоадеры.
func NewContext(ctx context.Context, store storage.Storage) context.Context {
	return context.WithValue(ctx, key, NewLoaders(store))
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) *Loaders {
	loaders, _ := ctx.Value(key).(*Loaders)
	return loaders
}

// Usernames загружает имена пользователей по id одним батчем.
// Ненайденные пользователи в результат не попадают.
func (l *Loaders) Usernames(ctx context.Context, ids []string) map[string]string {
	values, _ := l.UserByID.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	names := make(map[string]string, len(values))
	for _, v := range values {
		if user, ok := v.(*domain.User); ok && user != nil {
			names[user.ID] = user.Username
		}
	}
	return names
}

// User загружает одного пользователя через батч.
func (l *Loaders) User(ctx context.Context, id string) (*domain.User, error) {
	v, err := l.UserByID.Load(ctx, dataloader.StringKey(id))()
	if err != nil {
		return nil, err
	}
	user, _ := v.(*domain.User)
	return user, nil
}
