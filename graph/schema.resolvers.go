package graph

// This file will be automatically regenerated based on the schema, any resolver implementations
// will be copied through when generating and any unknown code will be moved to the end.

import (
	"context"

	"github.com/UkralStul/tipping-service/graph/generated"
	"github.com/UkralStul/tipping-service/graph/model"
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/shopspring/decimal"
)

// === Field Resolvers ===

// Author резолвер автора поста. Имя в документе может устареть,
// поэтому пользователь берется через лоадер.
func (r *postResolver) Author(ctx context.Context, obj *domain.Post) (*domain.User, error) {
	return r.loadUser(ctx, obj.AuthorID)
}

func (r *commentResolver) Author(ctx context.Context, obj *domain.Comment) (*domain.User, error) {
	return r.loadUser(ctx, obj.AuthorID)
}

func (r *replyResolver) Author(ctx context.Context, obj *domain.Reply) (*domain.User, error) {
	return r.loadUser(ctx, obj.AuthorID)
}

// === Mutation Resolvers ===

// CreateUser регистрирует пользователя. Начальный баланс принимается
// только при включенной выдаче тестовых балансов.
func (r *mutationResolver) CreateUser(ctx context.Context, input model.NewUser) (*domain.User, error) {
	balance := decimal.Zero
	if input.Balance != nil {
		balance = *input.Balance
	}
	return r.Service.CreateUser(ctx, input.Username, balance)
}

func (r *mutationResolver) CreatePost(ctx context.Context, input model.NewPost) (*domain.Post, error) {
	author, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	return r.Service.CreatePost(ctx, author, domain.PostDraft{
		Title: input.Title,
		Body:  input.Body,
		Media: input.Media,
		Tags:  input.Tags,
	})
}

func (r *mutationResolver) DeletePost(ctx context.Context, id string) (bool, error) {
	author, err := actor(ctx)
	if err != nil {
		return false, err
	}
	if err := r.Service.DeletePost(ctx, id, author); err != nil {
		return false, err
	}
	return true, nil
}

func (r *mutationResolver) CreateComment(ctx context.Context, input model.NewComment) (*domain.Post, error) {
	author, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	replyTo := ""
	if input.ReplyTo != nil {
		replyTo = *input.ReplyTo
	}
	return r.Service.CreateComment(ctx, input.PostID, author, input.Content, replyTo)
}

func (r *mutationResolver) TipPost(ctx context.Context, input model.TipInput) (*model.TipResult, error) {
	return r.tip(ctx, "", input)
}

func (r *mutationResolver) TipComment(ctx context.Context, commentID string, input model.TipInput) (*model.TipResult, error) {
	return r.tip(ctx, commentID, input)
}

func (r *mutationResolver) tip(ctx context.Context, targetID string, input model.TipInput) (*model.TipResult, error) {
	sender, err := actor(ctx)
	if err != nil {
		return nil, err
	}
	currency, err := domain.ParseCurrency(input.Currency)
	if err != nil {
		return nil, err
	}
	post, tip, err := r.Service.TipTarget(ctx, input.PostID, targetID, sender, input.Amount, currency)
	if err != nil {
		return nil, err
	}
	return &model.TipResult{Tip: tip, Post: post}, nil
}

// === Query Resolvers ===

func (r *queryResolver) Posts(ctx context.Context, limit *int, offset *int) ([]*domain.Post, error) {
	return r.Service.ListPosts(ctx, deref(limit), deref(offset))
}

func (r *queryResolver) RandomPosts(ctx context.Context, limit *int) ([]*domain.Post, error) {
	return r.Service.RandomPosts(ctx, deref(limit))
}

func (r *queryResolver) Post(ctx context.Context, id string) (*domain.Post, error) {
	return r.Service.GetPost(ctx, id)
}

func (r *queryResolver) User(ctx context.Context, id string) (*domain.User, error) {
	return r.Service.GetUser(ctx, id)
}

func (r *queryResolver) Users(ctx context.Context, limit *int, offset *int) ([]*domain.User, error) {
	return r.Service.ListUsers(ctx, deref(limit), deref(offset))
}

// === Boilerplate: Связывание резолверов с сгенерированным интерфейсом ===

// Comment returns generated.CommentResolver implementation.
func (r *Resolver) Comment() generated.CommentResolver { return &commentResolver{r} }

// Mutation returns generated.MutationResolver implementation.
func (r *Resolver) Mutation() generated.MutationResolver { return &mutationResolver{r} }

// Post returns generated.PostResolver implementation.
func (r *Resolver) Post() generated.PostResolver { return &postResolver{r} }

// Query returns generated.QueryResolver implementation.
func (r *Resolver) Query() generated.QueryResolver { return &queryResolver{r} }

// Reply returns generated.ReplyResolver implementation.
func (r *Resolver) Reply() generated.ReplyResolver { return &replyResolver{r} }

type commentResolver struct{ *Resolver }
type mutationResolver struct{ *Resolver }
type postResolver struct{ *Resolver }
type queryResolver struct{ *Resolver }
type replyResolver struct{ *Resolver }

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
