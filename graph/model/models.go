package model

import (
	"github.com/UkralStul/tipping-service/internal/domain"
	"github.com/shopspring/decimal"
)

type NewUser struct {
	Username string           `json:"username"`
	Balance  *decimal.Decimal `json:"balance,omitempty"`
}

type NewPost struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Media []domain.Media `json:"media,omitempty"`
	Tags  []string       `json:"tags,omitempty"`
}

type NewComment struct {
	PostID  string  `json:"postId"`
	Content string  `json:"content"`
	ReplyTo *string `json:"replyTo,omitempty"`
}

type TipInput struct {
	PostID   string          `json:"postId"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// TipResult - принятые чаевые и пост после записи.
type TipResult struct {
	Tip  domain.Tip   `json:"tip"`
	Post *domain.Post `json:"post"`
}
