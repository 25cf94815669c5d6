package graph

//go:generate go run github.com/99designs/gqlgen generate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/UkralStul/tipping-service/internal/dataloader"
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/UkralStul/tipping-service/internal/session"
	"github.com/UkralStul/tipping-service/internal/tipping"
)

// This file will not be regenerated automatically.
//
// It serves as dependency injection for your app, add any dependencies you require here.

var errMissingUser = errors.New("missing " + session.Header + " header")

// Resolver - корневая структура резолвера.
type Resolver struct {
	Service *tipping.Service
	Logger  *slog.Logger
}

func (r *Resolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

// actor возвращает id текущего пользователя для мутаций.
func actor(ctx context.Context) (string, error) {
	id := session.UserID(ctx)
	if id == "" {
		return "", errMissingUser
	}
	return id, nil
}

// loadUser берет автора через лоадер запроса. Удаленный автор дает nil.
func (r *Resolver) loadUser(ctx context.Context, id string) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	if loaders := dataloader.For(ctx); loaders != nil {
		user, err = loaders.User(ctx, id)
	} else {
		user, err = r.Service.GetUser(ctx, id)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		return nil, nil
	}
	return user, err
}
