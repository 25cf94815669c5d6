package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TargetKind - тип объекта, на который можно отправить чаевые.
type TargetKind string

const (
	KindPost    TargetKind = "post"
	KindComment TargetKind = "comment"
	KindReply   TargetKind = "reply"
)

// TipStatus - состояние чаевых в эскроу.
type TipStatus string

const (
	TipPending  TipStatus = "pending"
	TipReleased TipStatus = "released"
)

// MediaType - вид вложения поста.
type MediaType string

const (
	MediaAudio MediaType = "audio"
	MediaVideo MediaType = "video"
	MediaImage MediaType = "image"
)

// Media - вложение поста: ссылка на файл и его вид.
type Media struct {
	URL  string    `json:"url"`
	Type MediaType `json:"type"`
}

// User представляет пользователя и его балансы.
type User struct {
	ID               string          `json:"id" gorm:"type:varchar(64);primaryKey"`
	Username         string          `json:"username" gorm:"type:varchar(255);not null"`
	Balance          decimal.Decimal `json:"balance" gorm:"type:numeric(20,8);not null;default:0"`
	PendingRewards   decimal.Decimal `json:"pendingRewards" gorm:"type:numeric(20,8);not null;default:0"`
	PendingBreakdown []RewardEntry   `json:"pendingBreakdown" gorm:"foreignKey:UserID"`
	CreatedAt        time.Time       `json:"createdAt" gorm:"not null"`
}

// RewardEntry - запись об источнике начисленной награды.
type RewardEntry struct {
	ID         uint            `json:"-" gorm:"primaryKey;autoIncrement"`
	UserID     string          `json:"-" gorm:"type:varchar(64);not null;index"`
	SourceID   string          `json:"sourceId" gorm:"type:varchar(64);not null"`
	SourceType TargetKind      `json:"sourceType" gorm:"type:varchar(16);not null"`
	Amount     decimal.Decimal `json:"amount" gorm:"type:numeric(20,8);not null"`
	Currency   Currency        `json:"currency" gorm:"type:varchar(8);not null"`
	Recovered  bool            `json:"recovered" gorm:"not null;default:false"`
	CreatedAt  time.Time       `json:"createdAt" gorm:"not null"`
}

// Tip - чаевые, отправленные на пост, комментарий или ответ.
type Tip struct {
	ID           string          `json:"id"`
	PostID       string          `json:"postId"`
	TargetID     string          `json:"targetId"`
	TargetKind   TargetKind      `json:"targetKind"`
	FromUserID   string          `json:"fromUserId"`
	FromUsername string          `json:"fromUsername"`
	ToUserID     string          `json:"toUserId"`
	ToUsername   string          `json:"toUsername"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     Currency        `json:"currency"`
	Status       TipStatus       `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Post представляет пост вместе со всем деревом комментариев.
// Весь агрегат хранится одним документом.
type Post struct {
	ID         string   `json:"id"`
	AuthorID   string   `json:"authorId"`
	AuthorName string   `json:"author"`
	Title      string   `json:"title"`
	Body       string   `json:"body"`
	Media      []Media  `json:"media"`
	Tags       []string `json:"tags"`
	Escrow
	Comments  []*Comment `json:"comments"`
	CreatedAt time.Time  `json:"createdAt"`
	Version   int64      `json:"version"`
}

// Comment - комментарий верхнего уровня.
type Comment struct {
	ID         string `json:"id"`
	PostID     string `json:"postId"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"commentAuthor"`
	Content    string `json:"content"`
	Escrow
	Children  []*Reply  `json:"children"`
	CreatedAt time.Time `json:"createdAt"`
}

// Reply - ответ на комментарий или на другой ответ. Всегда лежит в Children
// комментария верхнего уровня.
type Reply struct {
	ID           string `json:"id"`
	AuthorID     string `json:"authorId"`
	AuthorName   string `json:"commentAuthor"`
	Content      string `json:"content"`
	ParentAuthor string `json:"parentAuthor"`
	ReplyTo      string `json:"replyTo"`
	Escrow
	CreatedAt time.Time `json:"createdAt"`
}

// Clone возвращает глубокую копию пользователя.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PendingBreakdown = append([]RewardEntry(nil), u.PendingBreakdown...)
	return &clone
}

// Clone возвращает глубокую копию поста со всеми комментариями.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	clone := *p
	clone.Media = append([]Media{}, p.Media...)
	clone.Tags = append([]string{}, p.Tags...)
	clone.Escrow = p.Escrow.clone()
	clone.Comments = make([]*Comment, 0, len(p.Comments))
	for _, c := range p.Comments {
		cc := *c
		cc.Escrow = c.Escrow.clone()
		cc.Children = make([]*Reply, 0, len(c.Children))
		for _, r := range c.Children {
			rc := *r
			rc.Escrow = r.Escrow.clone()
			cc.Children = append(cc.Children, &rc)
		}
		clone.Comments = append(clone.Comments, &cc)
	}
	return &clone
}
