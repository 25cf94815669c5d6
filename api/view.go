package api

import (
	"context"

	"github.com/UkralStul/tipping-service/internal/dataloader"
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/samber/lo"
)

// hydrateNames подставляет актуальные имена авторов из лоадера запроса.
// Имена, сохраненные в документе поста, остаются, если пользователь не найден.
func hydrateNames(ctx context.Context, post *domain.Post) {
	loaders := dataloader.For(ctx)
	if loaders == nil || post == nil {
		return
	}

	ids := []string{post.AuthorID}
	for _, c := range post.Comments {
		ids = append(ids, c.AuthorID)
		for _, r := range c.Children {
			ids = append(ids, r.AuthorID)
		}
	}
	names := loaders.Usernames(ctx, lo.Uniq(ids))

	rename := func(id string, name *string) {
		if n, ok := names[id]; ok {
			*name = n
		}
	}
	rename(post.AuthorID, &post.AuthorName)
	for _, c := range post.Comments {
		rename(c.AuthorID, &c.AuthorName)
		for _, r := range c.Children {
			rename(r.AuthorID, &r.AuthorName)
		}
	}
}
