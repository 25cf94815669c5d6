package graph

import (
	"context"
	"errors"
	"net/http"

	"github.com/99designs/gqlgen/graphql"
	"github.com/99designs/gqlgen/graphql/handler"
	"github.com/99designs/gqlgen/graphql/handler/extension"
	"github.com/99designs/gqlgen/graphql/handler/transport"
	"github.com/99designs/gqlgen/graphql/playground"
	"github.com/UkralStul/tipping-service/graph/generated"
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

const complexityLimit = 500

// NewHandler собирает HTTP-обработчик GraphQL. Лоадеры и id пользователя
// в контекст кладут внешние middleware.
func NewHandler(r *Resolver) http.Handler {
	srv := handler.New(generated.NewExecutableSchema(generated.Config{Resolvers: r}))
	srv.AddTransport(transport.Options{})
	srv.AddTransport(transport.GET{})
	srv.AddTransport(transport.POST{})
	srv.Use(extension.Introspection{})
	srv.Use(extension.FixedComplexityLimit(complexityLimit))
	srv.SetErrorPresenter(r.presentError)
	return srv
}

// Playground отдает GraphQL playground для endpoint.
func Playground(endpoint string) http.Handler {
	return playground.Handler("Tipping GraphQL playground", endpoint)
}

// presentError добавляет код класса ошибки в extensions.code и скрывает
// текст внутренних ошибок.
func (r *Resolver) presentError(ctx context.Context, err error) *gqlerror.Error {
	gqlErr := graphql.DefaultErrorPresenter(ctx, err)
	code := errorCode(err)
	if code == "" {
		return gqlErr
	}
	if code == "INTERNAL" {
		r.logger().ErrorContext(ctx, "graphql resolver failed", "path", gqlErr.Path.String(), "error", err)
		gqlErr.Message = "internal error"
	}
	if gqlErr.Extensions == nil {
		gqlErr.Extensions = map[string]any{}
	}
	gqlErr.Extensions["code"] = code
	return gqlErr
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errMissingUser):
		return "UNAUTHENTICATED"
	case errors.Is(err, domain.ErrValidation):
		return "BAD_REQUEST"
	case errors.Is(err, domain.ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, domain.ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		return "CONFLICT"
	case errors.Is(err, domain.ErrInternal):
		return "INTERNAL"
	default:
		return ""
	}
}
