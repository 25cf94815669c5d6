package domain

import "time"

// Target - конкретный объект дерева поста, у которого есть свой журнал чаевых.
type Target struct {
	Kind      TargetKind
	ID        string
	OwnerID   string
	OwnerName string
	Escrow    *Escrow

	// Comment - комментарий верхнего уровня, которому принадлежит объект.
	// Для поста nil, для комментария указывает на него самого.
	Comment *Comment
	Reply   *Reply
}

func (p *Post) target() Target {
	return Target{Kind: KindPost, ID: p.ID, OwnerID: p.AuthorID, OwnerName: p.AuthorName, Escrow: &p.Escrow}
}

func commentTarget(c *Comment) Target {
	return Target{Kind: KindComment, ID: c.ID, OwnerID: c.AuthorID, OwnerName: c.AuthorName, Escrow: &c.Escrow, Comment: c}
}

func replyTarget(c *Comment, r *Reply) Target {
	return Target{Kind: KindReply, ID: r.ID, OwnerID: r.AuthorID, OwnerName: r.AuthorName, Escrow: &r.Escrow, Comment: c, Reply: r}
}

// Locate находит объект по id: пустой id или id поста означает сам пост,
// иначе просматриваются комментарии, затем ответы каждого комментария.
func (p *Post) Locate(id string) (Target, error) {
	if id == "" || id == p.ID {
		return p.target(), nil
	}
	for _, c := range p.Comments {
		if c.ID == id {
			return commentTarget(c), nil
		}
	}
	for _, c := range p.Comments {
		for _, r := range c.Children {
			if r.ID == id {
				return replyTarget(c, r), nil
			}
		}
	}
	return Target{}, ErrTargetNotFound
}

// Targets перечисляет все объекты поста в порядке дерева.
func (p *Post) Targets() []Target {
	targets := []Target{p.target()}
	for _, c := range p.Comments {
		targets = append(targets, commentTarget(c))
		for _, r := range c.Children {
			targets = append(targets, replyTarget(c, r))
		}
	}
	return targets
}

// NextPayoutAt возвращает ближайший PayoutAt среди невыплаченных объектов.
func (p *Post) NextPayoutAt() *time.Time {
	var next *time.Time
	for _, t := range p.Targets() {
		if t.Escrow.IsPaidOut || t.Escrow.PayoutAt.IsZero() {
			continue
		}
		if next == nil || t.Escrow.PayoutAt.Before(*next) {
			at := t.Escrow.PayoutAt
			next = &at
		}
	}
	return next
}

// DueTargets возвращает объекты, готовые к выплате на момент now.
func (p *Post) DueTargets(now time.Time) []Target {
	var due []Target
	for _, t := range p.Targets() {
		if t.Escrow.Due(now) {
			due = append(due, t)
		}
	}
	return due
}
