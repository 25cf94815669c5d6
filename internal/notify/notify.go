package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Type - тип уведомления.
type Type string

const (
	TypeComment    Type = "comment"
	TypeReply      Type = "reply"
	TypePostTip    Type = "post-tip"
	TypeCommentTip Type = "comment-tip"
	TypePayout     Type = "payout"
)

// Notification - запрос на создание уведомления для пользователя.
type Notification struct {
	UserID       string    `json:"userId"`
	Type         Type      `json:"type"`
	PostID       string    `json:"postId"`
	CommentID    string    `json:"commentId,omitempty"`
	FromUserID   string    `json:"fromUserId,omitempty"`
	FromUsername string    `json:"fromUsername,omitempty"`
	Message      string    `json:"message"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Notifier создает уведомления. Доставка - забота внешней системы.
type Notifier interface {
	CreateNotification(ctx context.Context, n Notification) error
}

// Send создает уведомление и только логирует ошибку: изменения ядра
// к этому моменту уже сохранены.
func Send(ctx context.Context, notifier Notifier, logger *slog.Logger, n Notification) {
	if notifier == nil || n.UserID == "" {
		return
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if err := notifier.CreateNotification(ctx, n); err != nil {
		logger.Warn("failed to create notification",
			"type", n.Type, "user_id", n.UserID, "post_id", n.PostID, "error", err)
	}
}

// Log пишет уведомления в лог.
type Log struct {
	Logger *slog.Logger
}

func (l Log) CreateNotification(ctx context.Context, n Notification) error {
	l.Logger.InfoContext(ctx, "notification",
		"type", n.Type, "user_id", n.UserID, "post_id", n.PostID, "comment_id", n.CommentID, "message", n.Message)
	return nil
}

// Recorder хранит уведомления в памяти.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
	// Err, если задан, возвращается из CreateNotification.
	Err error
}

func (r *Recorder) CreateNotification(ctx context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.items = append(r.items, n)
	return nil
}

// All возвращает копию сохраненных уведомлений.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}
