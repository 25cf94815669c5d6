package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxContentLength - максимальная длина комментария в символах.
const MaxContentLength = 2000

// Author - автор нового комментария.
type Author struct {
	ID   string
	Name string
}

// Placement - результат размещения комментария в дереве.
type Placement struct {
	// Comment - комментарий верхнего уровня: новый или владелец нового ответа.
	Comment *Comment
	// Reply - новый ответ, nil для комментария верхнего уровня.
	Reply *Reply
	// NotifyUserID - кому отправить уведомление, пусто если автор отвечает сам себе.
	NotifyUserID string
}

// ValidateContent проверяет текст комментария.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return ErrContentTooLong
	}
	return nil
}

// PlaceComment добавляет комментарий или ответ в дерево поста.
//
// Без replyTo создается комментарий верхнего уровня. С replyTo ищется
// комментарий верхнего уровня, которому принадлежит replyTo (он сам или один
// из его ответов), и новый ответ добавляется в его Children. Глубина дерева
// не превышает двух уровней.
func PlaceComment(post *Post, author Author, content, replyTo string, now time.Time, holdingWindow time.Duration) (Placement, error) {
	if err := ValidateContent(content); err != nil {
		return Placement{}, err
	}

	if replyTo == "" {
		comment := &Comment{
			ID:         uuid.NewString(),
			PostID:     post.ID,
			AuthorID:   author.ID,
			AuthorName: author.Name,
			Content:    content,
			Escrow:     NewEscrow(now, holdingWindow),
			Children:   []*Reply{},
			CreatedAt:  now,
		}
		post.Comments = append(post.Comments, comment)
		return Placement{Comment: comment, NotifyUserID: notifyTarget(post.AuthorID, author.ID)}, nil
	}

	owner, target := findReplyTarget(post, replyTo)
	if owner == nil {
		return Placement{}, ErrTargetNotFound
	}

	reply := &Reply{
		ID:           uuid.NewString(),
		AuthorID:     author.ID,
		AuthorName:   author.Name,
		Content:      content,
		ParentAuthor: target.OwnerName,
		ReplyTo:      replyTo,
		Escrow:       NewEscrow(now, holdingWindow),
		CreatedAt:    now,
	}
	owner.Children = append(owner.Children, reply)

	return Placement{Comment: owner, Reply: reply, NotifyUserID: notifyTarget(target.OwnerID, author.ID)}, nil
}

// findReplyTarget возвращает комментарий верхнего уровня, владеющий id,
// и сам объект с этим id.
func findReplyTarget(post *Post, id string) (*Comment, Target) {
	for _, c := range post.Comments {
		if c.ID == id {
			return c, commentTarget(c)
		}
		for _, r := range c.Children {
			if r.ID == id {
				return c, replyTarget(c, r)
			}
		}
	}
	return nil, Target{}
}

func notifyTarget(ownerID, actorID string) string {
	if ownerID == actorID {
		return ""
	}
	return ownerID
}
